package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/antigravity-dev/maestro/internal/knowledge"
	"github.com/antigravity-dev/maestro/internal/tools"
)

func TestExitCodeForErrMapsTaxonomyToSpecCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{&tools.InvalidArgument{Field: "x", Reason: "y"}, exitBadArg},
		{&tools.NotFound{Kind_: "page", Token: "A1"}, exitNotFound},
		{&tools.Conflict{Detail: "lock held"}, exitConflict},
		{&tools.Corrupt{Path: "/tmp/x.json"}, exitCorruptStore},
	}
	for _, c := range cases {
		if got := exitCodeForErr(c.err); got != c.want {
			t.Fatalf("exitCodeForErr(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestRunUnknownCommandReturnsBadArg(t *testing.T) {
	if got := run([]string{"frobnicate"}); got != exitBadArg {
		t.Fatalf("got %d", got)
	}
}

func TestRunToolsListPagesAgainstFixtureStore(t *testing.T) {
	root := t.TempDir()
	if err := jsonstore.WriteJSON(filepath.Join(root, "alpha-plaza", "project.json"), &knowledge.Project{Name: "Alpha Plaza", Slug: "alpha-plaza"}); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(root, "maestro.toml")
	if err := os.WriteFile(configPath, []byte(`[general]
store_root = "`+root+`"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	got := run([]string{"tools", "list_pages", "alpha-plaza", "", "--config", configPath})
	if got != exitOK {
		t.Fatalf("got exit %d", got)
	}
}

func TestRunToolsUnknownOpReturnsBadArg(t *testing.T) {
	root := t.TempDir()
	configPath := filepath.Join(root, "maestro.toml")
	if err := os.WriteFile(configPath, []byte(`[general]
store_root = "`+root+`"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	got := run([]string{"tools", "frobnicate", "--config", configPath})
	if got != exitBadArg {
		t.Fatalf("got %d", got)
	}
}
