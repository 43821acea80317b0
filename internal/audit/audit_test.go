package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/antigravity-dev/maestro/internal/actions"
)

func TestRecordActionAndReadMetrics(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	store.RecordAction(actions.Record{
		ID: "a1", Action: "sync_registry", Target: "fleet", Status: "completed",
		StartedAt: time.Now(), FinishedAt: time.Now(),
	})
	store.RecordAction(actions.Record{
		ID: "a2", Action: "ingest_command", Target: "alpha-plaza", Status: "failed",
		StartedAt: time.Now(), FinishedAt: time.Now(), Detail: "no delegate configured",
	})

	if err := store.RecordHealthEvent("posture_degraded", "gateway unreachable"); err != nil {
		t.Fatal(err)
	}
	if err := store.TouchHeartbeatSeen("alpha-plaza", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := store.TouchHeartbeatSeen("alpha-plaza", time.Now()); err != nil {
		t.Fatal(err)
	}

	metrics, err := store.ReadMetrics()
	if err != nil {
		t.Fatal(err)
	}
	if metrics.ActionsTotal != 2 || metrics.ActionsFailed != 1 {
		t.Fatalf("got %+v", metrics)
	}
	if metrics.HeartbeatsSeen["alpha-plaza"] != 2 {
		t.Fatalf("got %+v", metrics.HeartbeatsSeen)
	}

	recent, err := store.ListActions(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d records, want 2", len(recent))
	}
}
