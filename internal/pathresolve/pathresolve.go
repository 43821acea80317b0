// Package pathresolve maps project slugs and page tokens to on-disk
// locations under a store root, with deterministic fuzzy resolution.
package pathresolve

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// NotFound is returned when a leg of a path cannot be resolved.
type NotFound struct {
	Kind  string // "project", "page", "region"
	Token string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.Token)
}

// PageNotFound carries the top candidates for a failed fuzzy page lookup.
type PageNotFound struct {
	Token      string
	Candidates []string
}

func (e *PageNotFound) Error() string {
	return fmt.Sprintf("page not found: %q", e.Token)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// SlugDash normalizes a token to project-slug form: lowercase, diacritics
// stripped, non-alphanumerics collapsed to a single "-".
func SlugDash(s string) string {
	return normalize(s, '-')
}

// SlugUnderscore normalizes a token to workspace/note/schedule/category id
// form: lowercase, diacritics stripped, non-alphanumerics collapsed to "_".
func SlugUnderscore(s string) string {
	return normalize(s, '_')
}

func normalize(s string, sep rune) string {
	s = stripDiacritics(s)
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, string(sep))
	s = strings.Trim(s, string(sep))
	if s == "" {
		return string(sep)
	}
	return s
}

// latin1Fold maps each precomposed accented Latin-1 letter to its
// unaccented base letter.
var latin1Fold = func() map[rune]rune {
	from := []rune("ÀÁÂÃÄÅÇÈÉÊËÌÍÎÏÑÒÓÔÕÖÙÚÛÜÝàáâãäåçèéêëìíîïñòóôõöùúûüýÿ")
	to := []rune("AAAAAACEEEEIIIINOOOOOUUUUYaaaaaaceeeeiiiinooooouuuuyy")
	m := make(map[rune]rune, len(from))
	for i, r := range from {
		m[r] = to[i]
	}
	return m
}()

// stripDiacritics folds precomposed Latin-1 letters to their base letter
// and drops combining marks. Accented letters outside Latin-1 are kept
// as they are, so normalize treats them as separators.
func stripDiacritics(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if base, ok := latin1Fold[r]; ok {
			r = base
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store represents a resolved store root, single- or multi-project.
type Store struct {
	Root        string
	MultiProject bool
}

// OpenStore inspects storeRoot and determines whether it is itself a
// single project or a directory containing many projects.
func OpenStore(storeRoot string) (*Store, error) {
	info, err := os.Stat(storeRoot)
	if err != nil {
		return nil, fmt.Errorf("pathresolve: stat store root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pathresolve: store root is not a directory: %s", storeRoot)
	}
	_, err = os.Stat(filepath.Join(storeRoot, "project.json"))
	single := err == nil
	return &Store{Root: storeRoot, MultiProject: !single}, nil
}

// ProjectDir returns the absolute directory for a project slug.
func (s *Store) ProjectDir(slug string) (string, error) {
	if !s.MultiProject {
		return s.Root, nil
	}
	dir := filepath.Join(s.Root, slug)
	if _, err := os.Stat(filepath.Join(dir, "project.json")); err != nil {
		return "", &NotFound{Kind: "project", Token: slug}
	}
	return dir, nil
}

// ProjectSlugs lists the dash-form slugs of every valid project under the
// store root, sorted by name.
func (s *Store) ProjectSlugs() ([]string, error) {
	if !s.MultiProject {
		return []string{filepath.Base(s.Root)}, nil
	}
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("pathresolve: read store root: %w", err)
	}
	var slugs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.Root, e.Name(), "project.json")); err == nil {
			slugs = append(slugs, e.Name())
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

// PagesDir returns the pages/ subdirectory for a project.
func (s *Store) PagesDir(slug string) (string, error) {
	dir, err := s.ProjectDir(slug)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pages"), nil
}

// ResolvePage performs deterministic fuzzy resolution of a page token
// against the page directories present under a project, per three tiers:
// exact match, normalized-prefix match, substring match. Ties (and the
// fuzzy tiers generally) are broken lexicographically.
func (s *Store) ResolvePage(slug, token string) (string, error) {
	pagesDir, err := s.PagesDir(slug)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(pagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &PageNotFound{Token: token}
		}
		return "", fmt.Errorf("pathresolve: read pages dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return ResolvePageName(token, names)
}

// ResolvePageName is the pure resolution function: given a token and the
// set of known page names, returns the single winning name or a
// *PageNotFound error carrying up to 5 candidates. Resolution is
// idempotent: resolving the winning name again returns the same name.
func ResolvePageName(token string, names []string) (string, error) {
	sort.Strings(names)

	for _, n := range names {
		if n == token {
			return n, nil
		}
	}

	normToken := normalizeToken(token)
	var prefixMatches []string
	for _, n := range names {
		if strings.HasPrefix(normalizeToken(n), normToken) {
			prefixMatches = append(prefixMatches, n)
		}
	}
	if len(prefixMatches) > 0 {
		sort.Strings(prefixMatches)
		return prefixMatches[0], nil
	}

	var substrMatches []string
	for _, n := range names {
		if strings.Contains(normalizeToken(n), normToken) {
			substrMatches = append(substrMatches, n)
		}
	}
	if len(substrMatches) > 0 {
		sort.Strings(substrMatches)
		return substrMatches[0], nil
	}

	candidates := names
	if len(candidates) > 5 {
		candidates = candidates[:5]
	}
	return "", &PageNotFound{Token: token, Candidates: candidates}
}

func normalizeToken(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(s)
	return s
}

// RegionDir returns the pointers/<region-id>/ directory for a page.
func (s *Store) RegionDir(slug, pageName, regionID string) (string, error) {
	pagesDir, err := s.PagesDir(slug)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(pagesDir, pageName, "pointers", regionID)
	if _, err := os.Stat(dir); err != nil {
		return "", &NotFound{Kind: "region", Token: regionID}
	}
	return dir, nil
}

// InstallState mirrors ~/.maestro-solo/install.json, used to pick an active
// project when a store root contains more than one.
type InstallState struct {
	ActiveProjectSlug string `json:"active_project_slug"`
	ActiveProjectName string `json:"active_project_name"`
	StoreRoot         string `json:"store_root"`
}

// ResolveActiveProject picks the active project slug among candidates,
// preferring (1) the install-state slug if present among candidates,
// (2) a name match against install state, (3) the lexicographic-first slug.
func ResolveActiveProject(candidates []string, install *InstallState) (string, error) {
	if len(candidates) == 0 {
		return "", &NotFound{Kind: "project", Token: ""}
	}
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	if install != nil {
		if install.ActiveProjectSlug != "" {
			for _, c := range sorted {
				if c == install.ActiveProjectSlug {
					return c, nil
				}
			}
		}
		if install.ActiveProjectName != "" {
			target := SlugDash(install.ActiveProjectName)
			for _, c := range sorted {
				if c == target {
					return c, nil
				}
			}
		}
	}
	return sorted[0], nil
}
