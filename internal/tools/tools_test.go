package tools

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/antigravity-dev/maestro/internal/knowledge"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
	"github.com/antigravity-dev/maestro/internal/workspace"
)

func TestSearchFixtureProject(t *testing.T) {
	root := t.TempDir()
	writeFixtureSearchProject(t, root)

	store, err := pathresolve.OpenStore(root)
	if err != nil {
		t.Fatal(err)
	}
	loader := knowledge.NewLoader(store)

	hits, err := Search(loader, filepath.Base(root), "waterproofing", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1: %+v", len(hits), hits)
	}
	if hits[0].PageName != "A101_Floor_Plan_p001" || hits[0].Score != 3 {
		t.Fatalf("got %+v", hits[0])
	}
}

func writeFixtureSearchProject(t *testing.T, root string) {
	t.Helper()
	if err := jsonstore.WriteJSON(filepath.Join(root, "project.json"), &knowledge.Project{Slug: filepath.Base(root)}); err != nil {
		t.Fatal(err)
	}
	if err := jsonstore.WriteJSON(filepath.Join(root, "pages", "A101_Floor_Plan_p001", "pass1.json"), &knowledge.Pass1{}); err != nil {
		t.Fatal(err)
	}
	if err := jsonstore.WriteJSON(filepath.Join(root, "pages", "A111_Floor_Finish_Plan_p001", "pass1.json"), &knowledge.Pass1{}); err != nil {
		t.Fatal(err)
	}
	idx := knowledge.Index{
		Keyword:  map[string][]knowledge.IndexRef{"waterproofing": {{Page: "A101_Floor_Plan_p001", Weight: 1}}},
		Material: map[string][]knowledge.IndexRef{"membrane": {{Page: "A111_Floor_Finish_Plan_p001"}}},
	}
	if err := jsonstore.WriteJSON(filepath.Join(root, "index.json"), &idx); err != nil {
		t.Fatal(err)
	}
}

func TestScheduleTimelineOrdersDaysDescAndSeparatesUnscheduled(t *testing.T) {
	sched := workspace.Schedule{Items: []workspace.ScheduleItem{
		{ID: "1", Title: "Pour footing", DueDate: "2026-02-05"},
		{ID: "2", Title: "Topping out", DueDate: "2026-02-19"},
		{ID: "3", Title: "Unscheduled punch list"},
	}}

	now, err := time.Parse("2006-01-02", "2026-02-10")
	if err != nil {
		t.Fatal(err)
	}
	tl, err := ScheduleTimeline(sched, "2026-02", false, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(tl.Days) != 2 {
		t.Fatalf("got %d days, want 2", len(tl.Days))
	}
	if tl.Days[0].Date != "2026-02-19" || tl.Days[1].Date != "2026-02-05" {
		t.Fatalf("days not desc: %+v", tl.Days)
	}
	if len(tl.Unscheduled) != 1 || tl.Unscheduled[0].ID != "3" {
		t.Fatalf("unexpected unscheduled: %+v", tl.Unscheduled)
	}
}
