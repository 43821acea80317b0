package pathresolve

import "testing"

func TestSlugDash(t *testing.T) {
	cases := map[string]string{
		"A101 Floor Plan": "a101-floor-plan",
		"Café Résumé":      "cafe-resume",
		"---weird--":       "weird",
	}
	for in, want := range cases {
		if got := SlugDash(in); got != want {
			t.Errorf("SlugDash(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugUnderscore(t *testing.T) {
	if got := SlugUnderscore("My Workspace!"); got != "my_workspace" {
		t.Errorf("SlugUnderscore = %q", got)
	}
}

func TestResolvePageNameExact(t *testing.T) {
	names := []string{"A101_Floor_Plan_p001", "A111_Floor_Finish_Plan_p001"}
	got, err := ResolvePageName("A101_Floor_Plan_p001", names)
	if err != nil || got != "A101_Floor_Plan_p001" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestResolvePageNamePrefix(t *testing.T) {
	names := []string{"A101_Floor_Plan_p001", "A111_Floor_Finish_Plan_p001"}
	got, err := ResolvePageName("A101", names)
	if err != nil || got != "A101_Floor_Plan_p001" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestResolvePageNameNotFound(t *testing.T) {
	names := []string{"A101_Floor_Plan_p001"}
	_, err := ResolvePageName("A999", names)
	if err == nil {
		t.Fatal("expected error")
	}
	pnf, ok := err.(*PageNotFound)
	if !ok {
		t.Fatalf("expected *PageNotFound, got %T", err)
	}
	if len(pnf.Candidates) == 0 {
		t.Fatal("expected candidates")
	}
}

func TestResolvePageNameIdempotent(t *testing.T) {
	names := []string{"A101_Floor_Plan_p001", "A111_Floor_Finish_Plan_p001"}
	first, err := ResolvePageName("A101", names)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ResolvePageName(first, names)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("resolution not idempotent: %q != %q", first, second)
	}
}

func TestResolveActiveProject(t *testing.T) {
	candidates := []string{"beta-tower", "alpha-plaza"}
	got, err := ResolveActiveProject(candidates, nil)
	if err != nil || got != "alpha-plaza" {
		t.Fatalf("default lexicographic choice: got %q, %v", got, err)
	}

	got, err = ResolveActiveProject(candidates, &InstallState{ActiveProjectSlug: "beta-tower"})
	if err != nil || got != "beta-tower" {
		t.Fatalf("install-state preference: got %q, %v", got, err)
	}
}
