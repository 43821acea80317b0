package knowledge

import (
	"path/filepath"
	"testing"

	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
)

func writeFixtureProject(t *testing.T, root, slug string) {
	t.Helper()
	dir := filepath.Join(root, slug)
	if err := jsonstore.WriteJSON(filepath.Join(dir, "project.json"), &Project{Name: "Alpha Plaza", Slug: slug}); err != nil {
		t.Fatal(err)
	}
	if err := jsonstore.WriteJSON(filepath.Join(dir, "pages", "A101_Floor_Plan_p001", "pass1.json"), &Pass1{
		Discipline:      "architectural",
		SheetReflection: "Ground floor plan with waterproofing notes.",
	}); err != nil {
		t.Fatal(err)
	}
	if err := jsonstore.WriteJSON(filepath.Join(dir, "pages", "A111_Floor_Finish_Plan_p001", "pass1.json"), &Pass1{
		Discipline: "architectural",
	}); err != nil {
		t.Fatal(err)
	}
}

func TestListProjectsAndPages(t *testing.T) {
	root := t.TempDir()
	writeFixtureProject(t, root, "alpha-plaza")

	projects, err := ListProjects(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[0].Name != "Alpha Plaza" {
		t.Fatalf("got %+v", projects)
	}

	store, err := pathresolve.OpenStore(root)
	if err != nil {
		t.Fatal(err)
	}
	loader := NewLoader(store)
	pages, err := loader.ListPages("alpha-plaza", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
}

func TestLoadPass1FuzzyToken(t *testing.T) {
	root := t.TempDir()
	writeFixtureProject(t, root, "alpha-plaza")

	store, err := pathresolve.OpenStore(root)
	if err != nil {
		t.Fatal(err)
	}
	loader := NewLoader(store)

	name, p1, err := loader.LoadPass1("alpha-plaza", "A101")
	if err != nil {
		t.Fatal(err)
	}
	if name != "A101_Floor_Plan_p001" || p1.Discipline != "architectural" {
		t.Fatalf("got %q %+v", name, p1)
	}
}

func TestLoadPass1NotFound(t *testing.T) {
	root := t.TempDir()
	writeFixtureProject(t, root, "alpha-plaza")

	store, err := pathresolve.OpenStore(root)
	if err != nil {
		t.Fatal(err)
	}
	loader := NewLoader(store)

	if _, _, err := loader.LoadPass1("alpha-plaza", "A999"); err == nil {
		t.Fatal("expected error")
	}
}
