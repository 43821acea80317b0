package actions

import (
	"context"
	"testing"

	"github.com/antigravity-dev/maestro/internal/directive"
	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/fleet"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
)

func newFixtureDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	root := t.TempDir()
	store, err := pathresolve.OpenStore(root)
	if err != nil {
		t.Fatal(err)
	}
	registry := fleet.NewRegistry(root, events.NopPublisher{})
	heartbeat := fleet.NewHeartbeatStore(root, 0, events.NopPublisher{})
	directives := directive.NewStore(root, events.NopPublisher{})
	return New(root, store, registry, heartbeat, directives, events.NopPublisher{}, nil, nil, nil, nil)
}

func TestDispatchUnknownActionReturnsUnsupportedAction(t *testing.T) {
	d := newFixtureDispatcher(t)
	_, err := d.Dispatch(context.Background(), Request{Action: "frobnicate"})
	if _, ok := err.(*UnsupportedAction); !ok {
		t.Fatalf("expected *UnsupportedAction, got %v", err)
	}
}

func TestDispatchCreateProjectNodeThenSyncRegistry(t *testing.T) {
	d := newFixtureDispatcher(t)

	// Project-store writes go through the project's own agent, so the
	// agent is registered before the node is created.
	_, err := d.Dispatch(context.Background(), Request{Action: RegisterProjectAgent, ProjectSlug: "alpha-plaza", AgentID: "agent-1"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.Dispatch(context.Background(), Request{Action: CreateProjectNode, ProjectSlug: "alpha-plaza", ProjectName: "Alpha Plaza", AgentID: "agent-1"})
	if err != nil {
		t.Fatal(err)
	}

	result, err := d.Dispatch(context.Background(), Request{Action: SyncRegistry})
	if err != nil {
		t.Fatal(err)
	}
	agents, ok := result.Data.([]fleet.Agent)
	if !ok || len(agents) != 1 {
		t.Fatalf("got %+v", result.Data)
	}
}

func TestDispatchIngestCommandWithoutDelegateFailsClosed(t *testing.T) {
	d := newFixtureDispatcher(t)
	if _, err := d.Dispatch(context.Background(), Request{Action: RegisterProjectAgent, ProjectSlug: "alpha-plaza", AgentID: "agent-1"}); err != nil {
		t.Fatal(err)
	}
	_, err := d.Dispatch(context.Background(), Request{Action: IngestCommand, ProjectSlug: "alpha-plaza", AgentID: "agent-1", SourcePath: "/tmp/drawings.pdf"})
	if err == nil {
		t.Fatal("expected error when no ingest delegate is configured")
	}
}

func TestDispatchUpsertAndArchiveDirective(t *testing.T) {
	d := newFixtureDispatcher(t)

	result, err := d.Dispatch(context.Background(), Request{
		Action:    UpsertSystemDirective,
		Directive: &directive.Directive{Text: "Always wear PPE", Scope: "fleet"},
	})
	if err != nil {
		t.Fatal(err)
	}
	saved := result.Data.(directive.Directive)
	if saved.ID == "" {
		t.Fatal("expected minted id")
	}

	_, err = d.Dispatch(context.Background(), Request{Action: ArchiveSystemDirective, DirectiveID: saved.ID})
	if err != nil {
		t.Fatal(err)
	}

	listed, err := d.Dispatch(context.Background(), Request{Action: ListSystemDirectives})
	if err != nil {
		t.Fatal(err)
	}
	if dirs := listed.Data.([]directive.Directive); len(dirs) != 0 {
		t.Fatalf("expected archived directive excluded, got %+v", dirs)
	}
}
