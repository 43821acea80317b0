// Package workspace implements the read-modify-write mutator for
// workspace, notes, and schedule documents: every mutation runs under an
// exclusive lock on its target file and emits one event on success.
package workspace

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
)

// Highlight is a stored pointer highlight on a workspace page.
type Highlight struct {
	RegionID string `json:"region_id"`
}

// BBox is a custom highlight's bounding box in page-image coordinates.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

func (b BBox) valid() bool {
	finite := func(f float64) bool { return f == f && f > -1e18 && f < 1e18 }
	return finite(b.X0) && finite(b.Y0) && finite(b.X1) && finite(b.Y1) && b.X0 < b.X1 && b.Y0 < b.Y1
}

// CustomHighlight is a free-form highlight drawn by a user.
type CustomHighlight struct {
	BBox  BBox   `json:"bbox"`
	Label string `json:"label,omitempty"`
}

// GeneratedImage is an image produced into a workspace.
type GeneratedImage struct {
	Filename       string   `json:"filename"`
	Prompt         string   `json:"prompt"`
	ReferencePages []string `json:"reference_pages"`
	CreatedAt      string   `json:"created_at"`
}

// WorkspacePage is one entry in workspace.json's pages[] array.
type WorkspacePage struct {
	PageName         string            `json:"page_name"`
	Description      string            `json:"description"`
	SelectedPointers []string          `json:"selected_pointers"`
	Highlights       []Highlight       `json:"highlights"`
	CustomHighlights []CustomHighlight `json:"custom_highlights"`
}

// LegacyNote is a per-workspace note, retained alongside project-level
// notes per the open design question on whether they should be merged.
type LegacyNote struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// Workspace is workspaces/<ws-slug>/workspace.json.
type Workspace struct {
	Slug            string           `json:"slug"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	CreatedAt       string           `json:"created_at"`
	Pages           []WorkspacePage  `json:"pages"`
	Notes           []LegacyNote     `json:"notes"`
	GeneratedImages []GeneratedImage `json:"generated_images"`
}

// Mutator performs locked read-modify-write operations against a store.
type Mutator struct {
	store *pathresolve.Store
	bus   events.Publisher
	now   func() time.Time
}

// New constructs a Mutator. bus may be events.NopPublisher{} when no event
// fan-out is wired (e.g. one-shot CLI tool invocations).
func New(store *pathresolve.Store, bus events.Publisher) *Mutator {
	return &Mutator{store: store, bus: bus, now: time.Now}
}

func (m *Mutator) nowRFC3339() string {
	return m.now().UTC().Format(time.RFC3339)
}

func (m *Mutator) workspacePath(slug, wsSlug string) (string, error) {
	dir, err := m.store.ProjectDir(slug)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "workspaces", wsSlug, "workspace.json"), nil
}

func normalizeWorkspace(ws *Workspace, wsSlug string) {
	if ws.Slug == "" {
		ws.Slug = wsSlug
	}
	if ws.Pages == nil {
		ws.Pages = []WorkspacePage{}
	}
	if ws.Notes == nil {
		ws.Notes = []LegacyNote{}
	}
	if ws.GeneratedImages == nil {
		ws.GeneratedImages = []GeneratedImage{}
	}
	for i := range ws.Pages {
		ws.Pages[i].SelectedPointers = dedupStrings(ws.Pages[i].SelectedPointers)
		if ws.Pages[i].Highlights == nil {
			ws.Pages[i].Highlights = []Highlight{}
		}
		if ws.Pages[i].CustomHighlights == nil {
			ws.Pages[i].CustomHighlights = []CustomHighlight{}
		}
	}
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// CreateOrGet returns the workspace at wsSlug, creating it if absent.
func (m *Mutator) CreateOrGet(slug, wsSlug, title string) (Workspace, error) {
	path, err := m.workspacePath(slug, wsSlug)
	if err != nil {
		return Workspace{}, err
	}
	var result Workspace
	err = jsonstore.WithLockRetry(path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var ws Workspace
		if err := jsonstore.ReadJSON(path, &ws); err != nil {
			return err
		}
		created := ws.CreatedAt == ""
		if created {
			ws.CreatedAt = m.nowRFC3339()
			ws.Title = title
		}
		normalizeWorkspace(&ws, wsSlug)
		if err := jsonstore.WriteJSON(path, &ws); err != nil {
			return err
		}
		result = ws
		if created {
			m.bus.Publish(events.Event{Type: events.TypeWorkspaceUpdated, Project: slug, Slug: wsSlug})
		}
		return nil
	})
	return result, err
}

// AddPage adds pageName to the workspace's pages[] if absent. Returns
// added=true the first time a given page is added; concurrent duplicate
// calls resolve to exactly one observable entry and added=false for the
// rest.
func (m *Mutator) AddPage(slug, wsSlug, pageName string) (added bool, err error) {
	path, err := m.workspacePath(slug, wsSlug)
	if err != nil {
		return false, err
	}
	err = jsonstore.WithLockRetry(path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var ws Workspace
		if err := jsonstore.ReadJSON(path, &ws); err != nil {
			return err
		}
		normalizeWorkspace(&ws, wsSlug)

		for _, p := range ws.Pages {
			if p.PageName == pageName {
				added = false
				return nil
			}
		}
		ws.Pages = append(ws.Pages, WorkspacePage{
			PageName:         pageName,
			SelectedPointers: []string{},
			Highlights:       []Highlight{},
			CustomHighlights: []CustomHighlight{},
		})
		if err := jsonstore.WriteJSON(path, &ws); err != nil {
			return err
		}
		added = true
		m.bus.Publish(events.Event{Type: events.TypeWorkspaceUpdated, Project: slug, Slug: wsSlug})
		return nil
	})
	return added, err
}

// RemovePage removes pageName from the workspace.
func (m *Mutator) RemovePage(slug, wsSlug, pageName string) error {
	path, err := m.workspacePath(slug, wsSlug)
	if err != nil {
		return err
	}
	return jsonstore.WithLockRetry(path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var ws Workspace
		if err := jsonstore.ReadJSON(path, &ws); err != nil {
			return err
		}
		normalizeWorkspace(&ws, wsSlug)

		out := ws.Pages[:0]
		for _, p := range ws.Pages {
			if p.PageName != pageName {
				out = append(out, p)
			}
		}
		ws.Pages = out
		if err := jsonstore.WriteJSON(path, &ws); err != nil {
			return err
		}
		m.bus.Publish(events.Event{Type: events.TypeWorkspaceUpdated, Project: slug, Slug: wsSlug})
		return nil
	})
}

func (m *Mutator) mutatePage(slug, wsSlug, pageName string, fn func(*WorkspacePage) error) error {
	path, err := m.workspacePath(slug, wsSlug)
	if err != nil {
		return err
	}
	return jsonstore.WithLockRetry(path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var ws Workspace
		if err := jsonstore.ReadJSON(path, &ws); err != nil {
			return err
		}
		normalizeWorkspace(&ws, wsSlug)

		idx := -1
		for i, p := range ws.Pages {
			if p.PageName == pageName {
				idx = i
				break
			}
		}
		if idx == -1 {
			return &NotFound{Kind: "workspace_page", Token: pageName}
		}
		if err := fn(&ws.Pages[idx]); err != nil {
			return err
		}
		if err := jsonstore.WriteJSON(path, &ws); err != nil {
			return err
		}
		m.bus.Publish(events.Event{Type: events.TypeWorkspaceUpdated, Project: slug, Slug: wsSlug})
		return nil
	})
}

// SelectPointers is a set union over the page's selected_pointers,
// preserving insertion order of survivors.
func (m *Mutator) SelectPointers(slug, wsSlug, pageName string, regionIDs []string) error {
	return m.mutatePage(slug, wsSlug, pageName, func(p *WorkspacePage) error {
		p.SelectedPointers = dedupStrings(append(p.SelectedPointers, regionIDs...))
		return nil
	})
}

// DeselectPointers is a set difference over the page's selected_pointers.
func (m *Mutator) DeselectPointers(slug, wsSlug, pageName string, regionIDs []string) error {
	remove := make(map[string]bool, len(regionIDs))
	for _, id := range regionIDs {
		remove[id] = true
	}
	return m.mutatePage(slug, wsSlug, pageName, func(p *WorkspacePage) error {
		out := p.SelectedPointers[:0]
		for _, id := range p.SelectedPointers {
			if !remove[id] {
				out = append(out, id)
			}
		}
		p.SelectedPointers = out
		return nil
	})
}

// SetPageDescription sets a workspace page's free-text description.
func (m *Mutator) SetPageDescription(slug, wsSlug, pageName, description string) error {
	return m.mutatePage(slug, wsSlug, pageName, func(p *WorkspacePage) error {
		p.Description = description
		return nil
	})
}

// AddCustomHighlight appends a validated custom highlight to a page.
func (m *Mutator) AddCustomHighlight(slug, wsSlug, pageName string, h CustomHighlight) error {
	if !h.BBox.valid() {
		return &InvalidArgument{Field: "bbox", Reason: "bbox must be finite with x0<x1 and y0<y1"}
	}
	return m.mutatePage(slug, wsSlug, pageName, func(p *WorkspacePage) error {
		p.CustomHighlights = append(p.CustomHighlights, h)
		return nil
	})
}

// ClearCustomHighlights removes all custom highlights from a page.
func (m *Mutator) ClearCustomHighlights(slug, wsSlug, pageName string) error {
	return m.mutatePage(slug, wsSlug, pageName, func(p *WorkspacePage) error {
		p.CustomHighlights = []CustomHighlight{}
		return nil
	})
}

// ListWorkspaces lists every workspace slug under a project, sorted.
func (m *Mutator) ListWorkspaces(slug string) ([]string, error) {
	dir, err := m.store.ProjectDir(slug)
	if err != nil {
		return nil, err
	}
	wsDir := filepath.Join(dir, "workspaces")
	return listSubdirSlugs(wsDir)
}

// InvalidArgument is returned for schema/enum violations.
type InvalidArgument struct {
	Field  string
	Reason string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

// NotFound is returned when a workspace/note/item target does not exist.
type NotFound struct {
	Kind  string
	Token string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.Token)
}

func listSubdirSlugs(dir string) ([]string, error) {
	entries, err := readDirOrEmpty(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Strings(out)
	return out, nil
}
