package control

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/antigravity-dev/maestro/internal/directive"
	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/fleet"
	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/antigravity-dev/maestro/internal/knowledge"
)

func writeFixtureProject(t *testing.T, root, slug string) {
	t.Helper()
	dir := filepath.Join(root, slug)
	if err := jsonstore.WriteJSON(filepath.Join(dir, "project.json"), &knowledge.Project{Name: "Alpha Plaza", Slug: slug}); err != nil {
		t.Fatal(err)
	}
	if err := jsonstore.WriteJSON(filepath.Join(dir, "pages", "A101_Floor_Plan_p001", "pass1.json"), &knowledge.Pass1{
		Discipline: "architectural",
	}); err != nil {
		t.Fatal(err)
	}
}

func newFixtureAggregator(t *testing.T) (*Aggregator, *fleet.Registry, *fleet.HeartbeatStore) {
	t.Helper()
	root := t.TempDir()
	writeFixtureProject(t, root, "alpha-plaza")

	registry := fleet.NewRegistry(root, events.NopPublisher{})
	heartbeat := fleet.NewHeartbeatStore(root, 90*time.Second, events.NopPublisher{})
	dirStore := directive.NewStore(root, events.NopPublisher{})

	return New(root, registry, heartbeat, dirStore, nil), registry, heartbeat
}

func TestSnapshotComposesProjectsAndFallsBackWithoutNode(t *testing.T) {
	agg, _, _ := newFixtureAggregator(t)

	snap, err := agg.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Projects) != 1 || snap.Projects[0].Slug != "alpha-plaza" {
		t.Fatalf("got %+v", snap.Projects)
	}
	if snap.Projects[0].PageCount != 1 {
		t.Fatalf("got page count %d, want 1", snap.Projects[0].PageCount)
	}
	if snap.Projects[0].Node != nil {
		t.Fatalf("expected no node status for unregistered project, got %+v", snap.Projects[0].Node)
	}
}

func TestSnapshotCachesUntilInvalidated(t *testing.T) {
	agg, registry, _ := newFixtureAggregator(t)

	first, err := agg.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := registry.Register(fleet.Agent{AgentID: "agent-1", ProjectSlug: "alpha-plaza", Role: fleet.RoleProject}); err != nil {
		t.Fatal(err)
	}

	cached, err := agg.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if cached.Projects[0].Node != nil {
		t.Fatal("expected stale cache to still omit the newly-registered agent")
	}

	agg.OnEvent(events.Event{Type: events.TypeHeartbeatUpdated})
	fresh, err := agg.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Projects[0].Node == nil {
		t.Fatal("expected invalidated cache to pick up the registered agent's stale-fallback node status")
	}

	if first.ComposedAt.After(fresh.ComposedAt) {
		t.Fatal("expected monotonically non-decreasing composed_at")
	}
}

func TestSnapshotReflectsCommanderOnline(t *testing.T) {
	agg, registry, _ := newFixtureAggregator(t)
	if _, err := registry.Register(fleet.Agent{AgentID: "cmd-1", Role: fleet.RoleCommander}); err != nil {
		t.Fatal(err)
	}
	agg.Invalidate()

	snap, err := agg.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if !snap.CommanderOnline {
		t.Fatal("expected commander_online true")
	}
}
