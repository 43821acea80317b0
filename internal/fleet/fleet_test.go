package fleet

import (
	"testing"
	"time"

	"github.com/antigravity-dev/maestro/internal/events"
)

func TestRegisterSecondCommanderConflicts(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, events.NopPublisher{})

	if _, err := reg.Register(Agent{AgentID: "cmd-1", Role: RoleCommander}); err != nil {
		t.Fatal(err)
	}
	_, err := reg.Register(Agent{AgentID: "cmd-2", Role: RoleCommander})
	if _, ok := err.(*Conflict); !ok {
		t.Fatalf("expected *Conflict, got %v", err)
	}
}

func TestHeartbeatStaleness(t *testing.T) {
	dir := t.TempDir()
	store := NewHeartbeatStore(dir, 90*time.Second, events.NopPublisher{})

	stale := time.Now().Add(-200 * time.Second)

	// Write always stamps "now" as of the store's clock, so to produce a
	// stale heartbeat we write with a clock pinned to the past.
	store.now = func() time.Time { return stale }
	if err := store.Write("alpha-plaza", Heartbeat{LoopState: LoopComputing}); err != nil {
		t.Fatal(err)
	}
	store.now = func() time.Time { return stale.Add(400 * time.Second) }

	agent := Agent{AgentID: "agent-1", ProjectSlug: "alpha-plaza", Role: RoleProject}
	status, err := store.Status(agent, store.now())
	if err != nil {
		t.Fatal(err)
	}
	if status.IsFresh {
		t.Fatal("expected stale heartbeat")
	}
	if status.LoopState != LoopIdle {
		t.Fatalf("expected idle fallback, got %q", status.LoopState)
	}
}

func TestGuardConversationSendRejectsArchivedTarget(t *testing.T) {
	target := &Agent{AgentID: "agent-1", Role: RoleProject, Archived: true}
	err := GuardConversationSend(target, "command_center_ui")
	if _, ok := err.(*Forbidden); !ok {
		t.Fatalf("expected *Forbidden, got %v", err)
	}
}

func TestGuardProjectWriteRejectsCommander(t *testing.T) {
	commander := Agent{AgentID: "cmd-1", Role: RoleCommander}
	if err := GuardProjectWrite(commander, "alpha-plaza"); err == nil {
		t.Fatal("expected commander write to be forbidden")
	}
}
