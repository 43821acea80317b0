// Package knowledge loads projects, pages, and regions out of the
// content-addressed store, going through jsonstore for every read.
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
)

// NotAProject is returned when a directory lacks project.json.
type NotAProject struct {
	Dir string
}

func (e *NotAProject) Error() string {
	return fmt.Sprintf("not a project: %s", e.Dir)
}

// Project is project.json's metadata.
type Project struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	CreatedAt string `json:"created_at"`
}

// IndexRef is a single {page, weight} entry in index.json.
type IndexRef struct {
	Page   string  `json:"page"`
	Weight float64 `json:"weight"`
}

// Index is the search index derived from pages/ contents.
type Index struct {
	Keyword   map[string][]IndexRef `json:"keyword"`
	Material  map[string][]IndexRef `json:"material"`
	CrossRefs []CrossRef            `json:"cross_refs"`
}

// CrossRef is a directed reference between two pages.
type CrossRef struct {
	FromPage string `json:"from_page"`
	ToPage   string `json:"to_page"`
	Label    string `json:"label"`
}

// PageMeta is the summary row returned by ListPages.
type PageMeta struct {
	PageName   string `json:"page_name"`
	Discipline string `json:"discipline"`
	PageType   string `json:"page_type"`
}

// Pass1 is a page's sheet-level analysis.
type Pass1 struct {
	Discipline       string     `json:"discipline"`
	PageType         string     `json:"page_type"`
	Regions          []string   `json:"regions"`
	CrossReferences  []CrossRef `json:"cross_references"`
	SheetReflection  string     `json:"sheet_reflection"`
}

// Pass2 is a region's deep-detail analysis.
type Pass2 struct {
	ContentMarkdown  string   `json:"content_markdown"`
	Materials        []string `json:"materials"`
	Dimensions       []string `json:"dimensions"`
	Keynotes         []string `json:"keynotes"`
	CrossReferences  []CrossRef `json:"cross_references"`
	CoordinationNotes []string `json:"coordination_notes"`
	Specifications   []string `json:"specifications"`
}

// Loader reads projects, pages, and regions out of a resolved store.
type Loader struct {
	store *pathresolve.Store
}

// NewLoader wraps an already-opened store root.
func NewLoader(store *pathresolve.Store) *Loader {
	return &Loader{store: store}
}

// ListProjects detects single- vs multi-project layout and returns
// Project metadata for each, sorted by name.
func ListProjects(storeRoot string) ([]Project, error) {
	store, err := pathresolve.OpenStore(storeRoot)
	if err != nil {
		return nil, err
	}
	slugs, err := store.ProjectSlugs()
	if err != nil {
		return nil, err
	}

	projects := make([]Project, 0, len(slugs))
	for _, slug := range slugs {
		dir, err := store.ProjectDir(slug)
		if err != nil {
			continue
		}
		var p Project
		if err := jsonstore.ReadJSON(filepath.Join(dir, "project.json"), &p); err != nil {
			return nil, err
		}
		if p.Slug == "" {
			p.Slug = slug
		}
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

func (l *Loader) projectDir(slug string) (string, error) {
	dir, err := l.store.ProjectDir(slug)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(dir, "project.json")); err != nil {
		return "", &NotAProject{Dir: dir}
	}
	return dir, nil
}

// LoadIndex loads index.json for a project.
func (l *Loader) LoadIndex(slug string) (Index, error) {
	dir, err := l.projectDir(slug)
	if err != nil {
		return Index{}, err
	}
	idx := Index{Keyword: map[string][]IndexRef{}, Material: map[string][]IndexRef{}}
	if err := jsonstore.ReadJSON(filepath.Join(dir, "index.json"), &idx); err != nil {
		return Index{}, err
	}
	return idx, nil
}

// ListPages lists pages under a project, optionally filtered by discipline.
// Pages whose pass1.json is missing are omitted (and should be logged by
// the caller); malformed pass1.json surfaces as *jsonstore.Corrupt.
func (l *Loader) ListPages(slug, discipline string) ([]PageMeta, error) {
	dir, err := l.projectDir(slug)
	if err != nil {
		return nil, err
	}
	pagesDir := filepath.Join(dir, "pages")
	entries, err := os.ReadDir(pagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []PageMeta{}, nil
		}
		return nil, fmt.Errorf("knowledge: read pages dir: %w", err)
	}

	var metas []PageMeta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pass1Path := filepath.Join(pagesDir, e.Name(), "pass1.json")
		if _, err := os.Stat(pass1Path); err != nil {
			continue // missing pass1.json: omit, caller may log
		}
		var p1 Pass1
		if err := jsonstore.ReadJSON(pass1Path, &p1); err != nil {
			return nil, err
		}
		if discipline != "" && !strings.EqualFold(p1.Discipline, discipline) {
			continue
		}
		metas = append(metas, PageMeta{PageName: e.Name(), Discipline: p1.Discipline, PageType: p1.PageType})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].PageName < metas[j].PageName })
	return metas, nil
}

// LoadPass1 loads a page's sheet-level analysis, resolving the page token
// fuzzily against the pages present on disk.
func (l *Loader) LoadPass1(slug, pageToken string) (string, Pass1, error) {
	pageName, err := l.store.ResolvePage(slug, pageToken)
	if err != nil {
		return "", Pass1{}, err
	}
	dir, err := l.projectDir(slug)
	if err != nil {
		return "", Pass1{}, err
	}
	var p1 Pass1
	path := filepath.Join(dir, "pages", pageName, "pass1.json")
	if err := jsonstore.ReadJSON(path, &p1); err != nil {
		return "", Pass1{}, err
	}
	return pageName, p1, nil
}

// LoadPass2 loads a region's deep-detail analysis.
func (l *Loader) LoadPass2(slug, pageToken, regionID string) (string, Pass2, error) {
	pageName, _, err := l.LoadPass1(slug, pageToken)
	if err != nil {
		return "", Pass2{}, err
	}
	regionDir, err := l.store.RegionDir(slug, pageName, regionID)
	if err != nil {
		return "", Pass2{}, err
	}
	var p2 Pass2
	if err := jsonstore.ReadJSON(filepath.Join(regionDir, "pass2.json"), &p2); err != nil {
		return "", Pass2{}, err
	}
	return pageName, p2, nil
}

// CrossReferenceSet is the result of FindCrossReferences.
type CrossReferenceSet struct {
	Outgoing []CrossRef `json:"outgoing"`
	Incoming []CrossRef `json:"incoming"`
}

// FindCrossReferences returns the cross references touching a page, using
// index.json's precomputed cross_refs as the source of truth.
func (l *Loader) FindCrossReferences(slug, pageToken string) (CrossReferenceSet, error) {
	pageName, _, err := l.LoadPass1(slug, pageToken)
	if err != nil {
		return CrossReferenceSet{}, err
	}
	idx, err := l.LoadIndex(slug)
	if err != nil {
		return CrossReferenceSet{}, err
	}
	var out CrossReferenceSet
	for _, ref := range idx.CrossRefs {
		if ref.FromPage == pageName {
			out.Outgoing = append(out.Outgoing, ref)
		}
		if ref.ToPage == pageName {
			out.Incoming = append(out.Incoming, ref)
		}
	}
	return out, nil
}
