package tools

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/antigravity-dev/maestro/internal/knowledge"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
	"github.com/antigravity-dev/maestro/internal/workspace"
	"github.com/google/uuid"
)

// Surface is the fixed set of named operations exposed to agents. Every
// call is validated, idempotent where the data model allows, and fails
// with exactly one Kind from the error taxonomy.
type Surface struct {
	StoreRoot string
	Store     *pathresolve.Store
	Loader    *knowledge.Loader
	Mutator   *workspace.Mutator
	Now       func() time.Time
}

// NewSurface wires a Surface over an already-opened store.
func NewSurface(storeRoot string, store *pathresolve.Store, loader *knowledge.Loader, mutator *workspace.Mutator) *Surface {
	return &Surface{StoreRoot: storeRoot, Store: store, Loader: loader, Mutator: mutator, Now: time.Now}
}

func mintID() string { return uuid.NewString() }

// wrapErr converts pathresolve, knowledge, jsonstore and workspace errors
// into the tool surface's Classified types (NotFound, Corrupt,
// InvalidArgument, Conflict); any other error is returned unchanged.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *pathresolve.NotFound:
		return &NotFound{Kind_: e.Kind, Token: e.Token}
	case *pathresolve.PageNotFound:
		return &NotFound{Kind_: "page", Token: e.Token}
	case *knowledge.NotAProject:
		return &NotFound{Kind_: "project", Token: e.Dir}
	case *jsonstore.Corrupt:
		return &Corrupt{Path: e.Path}
	case *workspace.NotFound:
		return &NotFound{Kind_: e.Kind, Token: e.Token}
	case *workspace.InvalidArgument:
		return &InvalidArgument{Field: e.Field, Reason: e.Reason}
	}
	if err == jsonstore.ErrConflict {
		return &Conflict{Detail: "lock held"}
	}
	return err
}

// ProjectContext is the result of the project_context operation.
type ProjectContext struct {
	Project   knowledge.Project `json:"project"`
	PageCount int               `json:"page_count"`
	StoreRoot string            `json:"store_root"`
}

// ProjectContext resolves project identity plus a cheap page count.
func (s *Surface) ProjectContext(slug string) (ProjectContext, error) {
	pages, err := s.Loader.ListPages(slug, "")
	if err != nil {
		return ProjectContext{}, wrapErr(err)
	}
	projects, err := knowledge.ListProjects(s.StoreRoot)
	if err != nil {
		return ProjectContext{}, wrapErr(err)
	}
	var proj knowledge.Project
	for _, p := range projects {
		if p.Slug == slug {
			proj = p
			break
		}
	}
	return ProjectContext{Project: proj, PageCount: len(pages), StoreRoot: s.StoreRoot}, nil
}

// ListProjects lists every valid project under the store root, for the
// fleet-wide GET /api/projects route.
func (s *Surface) ListProjects() ([]knowledge.Project, error) {
	projects, err := knowledge.ListProjects(s.StoreRoot)
	if err != nil {
		return nil, wrapErr(err)
	}
	return projects, nil
}

// AccessURLs is the result of get_access_urls.
type AccessURLs struct {
	WorkspaceURL     string `json:"workspace_url"`
	CommandCenterURL string `json:"command_center_url"`
}

// GetAccessURLs returns the workspace and command-center URLs for a
// project, given the runtime's own HTTP bind address.
func (s *Surface) GetAccessURLs(slug, httpBase string) (AccessURLs, error) {
	return AccessURLs{
		WorkspaceURL:     fmt.Sprintf("%s/%s", httpBase, slug),
		CommandCenterURL: fmt.Sprintf("%s/api/command-center/state", httpBase),
	}, nil
}

// ListPages lists a project's pages, optionally filtered by discipline.
func (s *Surface) ListPages(slug, discipline string) ([]knowledge.PageMeta, error) {
	pages, err := s.Loader.ListPages(slug, discipline)
	if err != nil {
		return nil, wrapErr(err)
	}
	if pages == nil {
		pages = []knowledge.PageMeta{}
	}
	return pages, nil
}

// Search runs the deterministic search-scoring algorithm.
func (s *Surface) Search(slug, query string, limit int) ([]SearchHit, error) {
	hits, err := Search(s.Loader, slug, query, limit)
	if err != nil {
		return nil, wrapErr(err)
	}
	return hits, nil
}

// SheetSummary is the result of get_sheet_summary.
type SheetSummary struct {
	PageName string          `json:"page_name"`
	Pass1    knowledge.Pass1 `json:"pass1"`
}

// GetSheetSummary resolves a page token fuzzily and returns its pass1.
func (s *Surface) GetSheetSummary(slug, pageToken string) (SheetSummary, error) {
	name, p1, err := s.Loader.LoadPass1(slug, pageToken)
	if err != nil {
		return SheetSummary{}, wrapErr(err)
	}
	return SheetSummary{PageName: name, Pass1: p1}, nil
}

// ListRegions lists the pointer/region ids present for a resolved page.
func (s *Surface) ListRegions(slug, pageToken string) (string, []string, error) {
	name, p1, err := s.Loader.LoadPass1(slug, pageToken)
	if err != nil {
		return "", nil, wrapErr(err)
	}
	regions := p1.Regions
	if regions == nil {
		regions = []string{}
	}
	return name, regions, nil
}

// RegionDetail is the result of get_region_detail.
type RegionDetail struct {
	PageName string          `json:"page_name"`
	RegionID string          `json:"region_id"`
	Pass2    knowledge.Pass2 `json:"pass2"`
}

// GetRegionDetail returns a region's pass2 deep-detail analysis.
func (s *Surface) GetRegionDetail(slug, pageToken, regionID string) (RegionDetail, error) {
	name, p2, err := s.Loader.LoadPass2(slug, pageToken, regionID)
	if err != nil {
		return RegionDetail{}, wrapErr(err)
	}
	return RegionDetail{PageName: name, RegionID: regionID, Pass2: p2}, nil
}

// FindCrossReferences returns the cross references touching a page.
func (s *Surface) FindCrossReferences(slug, pageToken string) (knowledge.CrossReferenceSet, error) {
	refs, err := s.Loader.FindCrossReferences(slug, pageToken)
	if err != nil {
		return knowledge.CrossReferenceSet{}, wrapErr(err)
	}
	return refs, nil
}

// ResolvePageAssetPath resolves a page token to the on-disk path of one of
// its static render assets (page.png serves both the /image and /thumb
// routes; no separate thumbnail file exists in the page directory layout).
func (s *Surface) ResolvePageAssetPath(slug, pageToken, filename string) (string, error) {
	pagesDir, err := s.Store.PagesDir(slug)
	if err != nil {
		return "", wrapErr(err)
	}
	pageName, err := s.Store.ResolvePage(slug, pageToken)
	if err != nil {
		return "", wrapErr(err)
	}
	return filepath.Join(pagesDir, pageName, filename), nil
}

// ResolveRegionCropPath resolves a page/region token pair to its crop
// image path under pointers/<region-id>/crop.png.
func (s *Surface) ResolveRegionCropPath(slug, pageToken, regionID string) (string, error) {
	pageName, err := s.Store.ResolvePage(slug, pageToken)
	if err != nil {
		return "", wrapErr(err)
	}
	dir, err := s.Store.RegionDir(slug, pageName, regionID)
	if err != nil {
		return "", wrapErr(err)
	}
	return filepath.Join(dir, "crop.png"), nil
}

// ResolveWorkspaceImagePath resolves a workspace-generated image filename
// to its on-disk path under workspaces/<ws>/generated_images/.
func (s *Surface) ResolveWorkspaceImagePath(slug, wsSlug, filename string) (string, error) {
	dir, err := s.Store.ProjectDir(slug)
	if err != nil {
		return "", wrapErr(err)
	}
	return filepath.Join(dir, "workspaces", wsSlug, "generated_images", filename), nil
}
