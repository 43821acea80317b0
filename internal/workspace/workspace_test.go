package workspace

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
)

func newFixtureMutator(t *testing.T) (*Mutator, string) {
	t.Helper()
	root := t.TempDir()
	if err := jsonstore.WriteJSON(filepath.Join(root, "project.json"), map[string]string{"slug": filepath.Base(root)}); err != nil {
		t.Fatal(err)
	}
	store, err := pathresolve.OpenStore(root)
	if err != nil {
		t.Fatal(err)
	}
	return New(store, events.NopPublisher{}), filepath.Base(root)
}

func TestAddPageConcurrentDedup(t *testing.T) {
	m, slug := newFixtureMutator(t)
	if _, err := m.CreateOrGet(slug, "ws1", "WS1"); err != nil {
		t.Fatal(err)
	}

	const n = 100
	results := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			added, err := m.AddPage(slug, "ws1", "A101_Floor_Plan_p001")
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = added
		}(i)
	}
	wg.Wait()

	addedCount := 0
	for _, r := range results {
		if r {
			addedCount++
		}
	}
	if addedCount != 1 {
		t.Errorf("expected exactly one added:true, got %d", addedCount)
	}

	ws, err := m.CreateOrGet(slug, "ws1", "WS1")
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, p := range ws.Pages {
		if p.PageName == "A101_Floor_Plan_p001" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one pages[] entry, got %d", count)
	}
}

func TestSelectDeselectPointersOrderPreserved(t *testing.T) {
	m, slug := newFixtureMutator(t)
	if _, err := m.AddPage(slug, "ws1", "A101"); err != nil {
		t.Fatal(err)
	}
	if err := m.SelectPointers(slug, "ws1", "A101", []string{"r1", "r2", "r1", "r3"}); err != nil {
		t.Fatal(err)
	}
	ws, err := m.CreateOrGet(slug, "ws1", "WS1")
	if err != nil {
		t.Fatal(err)
	}
	got := ws.Pages[0].SelectedPointers
	want := []string{"r1", "r2", "r3"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if err := m.DeselectPointers(slug, "ws1", "A101", []string{"r2"}); err != nil {
		t.Fatal(err)
	}
	ws, err = m.CreateOrGet(slug, "ws1", "WS1")
	if err != nil {
		t.Fatal(err)
	}
	got = ws.Pages[0].SelectedPointers
	want = []string{"r1", "r3"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestScheduleCloseItemSetsClosedAt(t *testing.T) {
	m, slug := newFixtureMutator(t)
	mintID := func() string { return "item-1" }
	item, err := m.UpsertItem(slug, ScheduleItem{Title: "Pour slab", Type: "activity", Status: "pending"}, mintID)
	if err != nil {
		t.Fatal(err)
	}
	if item.ClosedAt != "" {
		t.Fatalf("pending item must not have closed_at, got %q", item.ClosedAt)
	}

	closed, err := m.CloseItem(slug, item.ID, "done", "completed early")
	if err != nil {
		t.Fatal(err)
	}
	if closed.ClosedAt == "" {
		t.Fatal("expected closed_at to be set")
	}

	reopened, err := m.UpsertItem(slug, ScheduleItem{ID: item.ID, Title: "Pour slab", Type: "activity", Status: "in_progress"}, mintID)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.ClosedAt != "" {
		t.Fatalf("non-terminal transition must clear closed_at, got %q", reopened.ClosedAt)
	}
}

func TestScheduleNormalizationRoundTripIdempotent(t *testing.T) {
	m, slug := newFixtureMutator(t)
	mintID := func() string { return "item-1" }
	if _, err := m.UpsertItem(slug, ScheduleItem{Title: "Pour slab", Type: "bogus-type", Status: "bogus-status"}, mintID); err != nil {
		t.Fatal(err)
	}

	first, err := m.GetSchedule(slug)
	if err != nil {
		t.Fatal(err)
	}
	path, err := m.schedulePath(slug)
	if err != nil {
		t.Fatal(err)
	}
	if err := jsonstore.WriteJSON(path, &first); err != nil {
		t.Fatal(err)
	}
	second, err := m.GetSchedule(slug)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Fatalf("normalization round-trip not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestNotesGeneralCategoryAutoCreated(t *testing.T) {
	m, slug := newFixtureMutator(t)
	mintID := func() string { return "note-1" }
	if _, err := m.AddOrUpdateNote(slug, Note{Text: "Check slope"}, mintID); err != nil {
		t.Fatal(err)
	}
	notes, err := m.GetProjectNotes(slug)
	if err != nil {
		t.Fatal(err)
	}
	foundGeneral := false
	for _, c := range notes.Categories {
		if c.ID == "general" {
			foundGeneral = true
		}
	}
	if !foundGeneral {
		t.Fatal("expected general category to be auto-created")
	}
}
