package directive

import (
	"testing"

	"github.com/antigravity-dev/maestro/internal/events"
)

func TestUpsertMintsIDAndVersion(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, events.NopPublisher{})

	first, err := store.Upsert(Directive{Text: "Always wear PPE", Scope: "fleet"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == "" || first.Version != 1 {
		t.Fatalf("got %+v", first)
	}

	second, err := store.Upsert(Directive{ID: first.ID, Text: "Always wear PPE on site", Scope: "fleet"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Version != 2 {
		t.Fatalf("expected version bump, got %+v", second)
	}
}

func TestArchiveRetainsRow(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, events.NopPublisher{})

	d, err := store.Upsert(Directive{Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Archive(d.ID); err != nil {
		t.Fatal(err)
	}

	active, err := store.List(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("expected archived directive excluded by default, got %+v", active)
	}

	all, err := store.List(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ArchivedAt == "" {
		t.Fatalf("expected archived row retained, got %+v", all)
	}
}
