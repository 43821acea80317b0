package tools

import (
	"os"
	"path/filepath"

	"github.com/antigravity-dev/maestro/internal/workspace"
)

// ListWorkspaces lists workspace slugs for a project.
func (s *Surface) ListWorkspaces(slug string) ([]string, error) {
	wss, err := s.Mutator.ListWorkspaces(slug)
	if err != nil {
		return nil, wrapErr(err)
	}
	if wss == nil {
		wss = []string{}
	}
	return wss, nil
}

// GetWorkspace fetches (without creating) a workspace by slug.
func (s *Surface) GetWorkspace(slug, wsSlug string) (workspace.Workspace, error) {
	dir, err := s.Store.ProjectDir(slug)
	if err != nil {
		return workspace.Workspace{}, wrapErr(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "workspaces", wsSlug, "workspace.json")); err != nil {
		return workspace.Workspace{}, &NotFound{Kind_: "workspace", Token: wsSlug}
	}
	ws, err := s.Mutator.CreateOrGet(slug, wsSlug, "")
	if err != nil {
		return workspace.Workspace{}, wrapErr(err)
	}
	return ws, nil
}

// CreateWorkspace creates (or returns the existing) workspace.
func (s *Surface) CreateWorkspace(slug, wsSlug, title string) (workspace.Workspace, error) {
	ws, err := s.Mutator.CreateOrGet(slug, wsSlug, title)
	if err != nil {
		return workspace.Workspace{}, wrapErr(err)
	}
	return ws, nil
}

// AddPage is idempotent: returns added=false on a repeat call.
func (s *Surface) AddPage(slug, wsSlug, pageName string) (bool, error) {
	added, err := s.Mutator.AddPage(slug, wsSlug, pageName)
	if err != nil {
		return false, wrapErr(err)
	}
	return added, nil
}

// RemovePage removes a page from a workspace.
func (s *Surface) RemovePage(slug, wsSlug, pageName string) error {
	return wrapErr(s.Mutator.RemovePage(slug, wsSlug, pageName))
}

// SelectPointers unions region ids into a workspace page's selection.
func (s *Surface) SelectPointers(slug, wsSlug, pageName string, regionIDs []string) error {
	return wrapErr(s.Mutator.SelectPointers(slug, wsSlug, pageName, regionIDs))
}

// DeselectPointers removes region ids from a workspace page's selection.
func (s *Surface) DeselectPointers(slug, wsSlug, pageName string, regionIDs []string) error {
	return wrapErr(s.Mutator.DeselectPointers(slug, wsSlug, pageName, regionIDs))
}

// AddDescription sets a workspace page's free-text description.
func (s *Surface) AddDescription(slug, wsSlug, pageName, description string) error {
	return wrapErr(s.Mutator.SetPageDescription(slug, wsSlug, pageName, description))
}

// SetCustomHighlight appends a validated custom highlight to a page.
func (s *Surface) SetCustomHighlight(slug, wsSlug, pageName string, h workspace.CustomHighlight) error {
	return wrapErr(s.Mutator.AddCustomHighlight(slug, wsSlug, pageName, h))
}

// ClearCustomHighlights removes all custom highlights from a page.
func (s *Surface) ClearCustomHighlights(slug, wsSlug, pageName string) error {
	return wrapErr(s.Mutator.ClearCustomHighlights(slug, wsSlug, pageName))
}

// GetProjectNotes returns the normalized project notes document.
func (s *Surface) GetProjectNotes(slug string) (workspace.ProjectNotes, error) {
	n, err := s.Mutator.GetProjectNotes(slug)
	if err != nil {
		return workspace.ProjectNotes{}, wrapErr(err)
	}
	return n, nil
}

// UpsertNoteCategory inserts or updates a note category.
func (s *Surface) UpsertNoteCategory(slug string, cat workspace.NoteCategory) error {
	return wrapErr(s.Mutator.UpsertCategory(slug, cat))
}

// AddNote mints a fresh id and appends a project note.
func (s *Surface) AddNote(slug string, note workspace.Note) (workspace.Note, error) {
	note.ID = ""
	result, err := s.Mutator.AddOrUpdateNote(slug, note, mintID)
	if err != nil {
		return workspace.Note{}, wrapErr(err)
	}
	return result, nil
}

// UpdateNoteState updates only a note's status/pinned fields.
func (s *Surface) UpdateNoteState(slug, noteID, status string, pinned bool) error {
	return wrapErr(s.Mutator.UpdateNoteState(slug, noteID, status, pinned))
}

// ScheduleStatus is a lightweight summary over the full schedule.
type ScheduleStatus struct {
	TotalItems   int `json:"total_items"`
	OpenItems    int `json:"open_items"`
	BlockedItems int `json:"blocked_items"`
	DoneItems    int `json:"done_items"`
}

// GetScheduleStatus summarizes item counts by status.
func (s *Surface) GetScheduleStatus(slug string) (ScheduleStatus, error) {
	sched, err := s.Mutator.GetSchedule(slug)
	if err != nil {
		return ScheduleStatus{}, wrapErr(err)
	}
	var status ScheduleStatus
	status.TotalItems = len(sched.Items)
	for _, item := range sched.Items {
		switch item.Status {
		case "blocked":
			status.BlockedItems++
		case "done":
			status.DoneItems++
		case "pending", "in_progress":
			status.OpenItems++
		}
	}
	return status, nil
}

// GetScheduleTimeline computes the month-view timeline.
func (s *Surface) GetScheduleTimeline(slug, month string, includeEmptyDays bool) (Timeline, error) {
	sched, err := s.Mutator.GetSchedule(slug)
	if err != nil {
		return Timeline{}, wrapErr(err)
	}
	t, err := ScheduleTimeline(sched, month, includeEmptyDays, s.Now())
	if err != nil {
		return Timeline{}, err
	}
	return t, nil
}

// ListScheduleItems returns every item, unfiltered.
func (s *Surface) ListScheduleItems(slug string) ([]workspace.ScheduleItem, error) {
	sched, err := s.Mutator.GetSchedule(slug)
	if err != nil {
		return nil, wrapErr(err)
	}
	if sched.Items == nil {
		return []workspace.ScheduleItem{}, nil
	}
	return sched.Items, nil
}

// UpsertScheduleItem inserts or updates a schedule item.
func (s *Surface) UpsertScheduleItem(slug string, item workspace.ScheduleItem) (workspace.ScheduleItem, error) {
	result, err := s.Mutator.UpsertItem(slug, item, mintID)
	if err != nil {
		return workspace.ScheduleItem{}, wrapErr(err)
	}
	return result, nil
}

// SetScheduleConstraint records a constraint item linked to an activity.
func (s *Surface) SetScheduleConstraint(slug, activityID, title, notes string) (workspace.ScheduleItem, error) {
	result, err := s.Mutator.SetConstraint(slug, activityID, title, notes, mintID)
	if err != nil {
		return workspace.ScheduleItem{}, wrapErr(err)
	}
	return result, nil
}

// CloseScheduleItem closes an item with a terminal status.
func (s *Surface) CloseScheduleItem(slug, itemID, status, reason string) (workspace.ScheduleItem, error) {
	result, err := s.Mutator.CloseItem(slug, itemID, status, reason)
	if err != nil {
		return workspace.ScheduleItem{}, wrapErr(err)
	}
	return result, nil
}
