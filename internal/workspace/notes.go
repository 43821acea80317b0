package workspace

import (
	"path/filepath"
	"sort"

	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/jsonstore"
)

var noteColors = map[string]bool{
	"slate": true, "blue": true, "green": true, "amber": true, "red": true, "purple": true,
}

// NoteCategory groups project notes.
type NoteCategory struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Order int    `json:"order"`
}

// NoteSourcePage links a note back to the page/workspace it was raised on.
type NoteSourcePage struct {
	PageName      string `json:"page_name"`
	WorkspaceSlug string `json:"workspace_slug"`
}

// Note is a project-level note.
type Note struct {
	ID          string           `json:"id"`
	Text        string           `json:"text"`
	CategoryID  string           `json:"category_id"`
	SourcePages []NoteSourcePage `json:"source_pages"`
	Pinned      bool             `json:"pinned"`
	Status      string           `json:"status"` // open|archived
	CreatedAt   string           `json:"created_at"`
	UpdatedAt   string           `json:"updated_at"`
}

// ProjectNotes is notes/project_notes.json.
type ProjectNotes struct {
	Version    int            `json:"version"`
	UpdatedAt  string         `json:"updated_at"`
	Categories []NoteCategory `json:"categories"`
	Notes      []Note         `json:"notes"`
}

func (m *Mutator) notesPath(slug string) (string, error) {
	dir, err := m.store.ProjectDir(slug)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "notes", "project_notes.json"), nil
}

func normalizeNotes(n *ProjectNotes) {
	hasGeneral := false
	for _, c := range n.Categories {
		if c.ID == "general" {
			hasGeneral = true
			break
		}
	}
	usesGeneral := false
	for _, note := range n.Notes {
		if note.CategoryID == "" || note.CategoryID == "general" {
			usesGeneral = true
			break
		}
	}
	if !hasGeneral && (usesGeneral || len(n.Categories) == 0) {
		n.Categories = append(n.Categories, NoteCategory{ID: "general", Name: "General", Color: "slate", Order: 0})
	}
	for i := range n.Notes {
		if n.Notes[i].CategoryID == "" {
			n.Notes[i].CategoryID = "general"
		}
		if n.Notes[i].Status == "" {
			n.Notes[i].Status = "open"
		}
		if n.Notes[i].SourcePages == nil {
			n.Notes[i].SourcePages = []NoteSourcePage{}
		}
	}
	sort.SliceStable(n.Categories, func(i, j int) bool {
		if n.Categories[i].Order != n.Categories[j].Order {
			return n.Categories[i].Order < n.Categories[j].Order
		}
		return n.Categories[i].Name < n.Categories[j].Name
	})
	sort.SliceStable(n.Notes, func(i, j int) bool {
		if n.Notes[i].Pinned != n.Notes[j].Pinned {
			return n.Notes[i].Pinned
		}
		return n.Notes[i].UpdatedAt > n.Notes[j].UpdatedAt
	})
}

// GetProjectNotes returns the normalized notes document for a project.
func (m *Mutator) GetProjectNotes(slug string) (ProjectNotes, error) {
	path, err := m.notesPath(slug)
	if err != nil {
		return ProjectNotes{}, err
	}
	var n ProjectNotes
	if err := jsonstore.ReadJSON(path, &n); err != nil {
		return ProjectNotes{}, err
	}
	normalizeNotes(&n)
	return n, nil
}

// UpsertCategory inserts or updates a note category by id.
func (m *Mutator) UpsertCategory(slug string, cat NoteCategory) error {
	if cat.Color != "" && !noteColors[cat.Color] {
		return &InvalidArgument{Field: "color", Reason: "must be one of slate,blue,green,amber,red,purple"}
	}
	path, err := m.notesPath(slug)
	if err != nil {
		return err
	}
	return jsonstore.WithLockRetry(path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var n ProjectNotes
		if err := jsonstore.ReadJSON(path, &n); err != nil {
			return err
		}
		normalizeNotes(&n)

		found := false
		for i := range n.Categories {
			if n.Categories[i].ID == cat.ID {
				n.Categories[i] = cat
				found = true
				break
			}
		}
		if !found {
			n.Categories = append(n.Categories, cat)
		}
		n.Version++
		n.UpdatedAt = m.nowRFC3339()
		normalizeNotes(&n)
		if err := jsonstore.WriteJSON(path, &n); err != nil {
			return err
		}
		m.bus.Publish(events.Event{Type: events.TypeNotesUpdated, Project: slug})
		return nil
	})
}

// AddOrUpdateNote upserts a note by id, minting a fresh id when absent.
func (m *Mutator) AddOrUpdateNote(slug string, note Note, mintID func() string) (Note, error) {
	path, err := m.notesPath(slug)
	if err != nil {
		return Note{}, err
	}
	var result Note
	err = jsonstore.WithLockRetry(path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var n ProjectNotes
		if err := jsonstore.ReadJSON(path, &n); err != nil {
			return err
		}
		normalizeNotes(&n)

		now := m.nowRFC3339()
		if note.ID == "" {
			note.ID = mintID()
			note.CreatedAt = now
			note.UpdatedAt = now
			n.Notes = append(n.Notes, note)
		} else {
			found := false
			for i := range n.Notes {
				if n.Notes[i].ID == note.ID {
					note.CreatedAt = n.Notes[i].CreatedAt
					note.UpdatedAt = now
					n.Notes[i] = note
					found = true
					break
				}
			}
			if !found {
				note.CreatedAt = now
				note.UpdatedAt = now
				n.Notes = append(n.Notes, note)
			}
		}
		n.Version++
		n.UpdatedAt = now
		normalizeNotes(&n)
		if err := jsonstore.WriteJSON(path, &n); err != nil {
			return err
		}
		result = note
		m.bus.Publish(events.Event{Type: events.TypeNotesUpdated, Project: slug})
		return nil
	})
	return result, err
}

// UpdateNoteState updates only a note's status and pinned fields.
func (m *Mutator) UpdateNoteState(slug, noteID string, status string, pinned bool) error {
	path, err := m.notesPath(slug)
	if err != nil {
		return err
	}
	return jsonstore.WithLockRetry(path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var n ProjectNotes
		if err := jsonstore.ReadJSON(path, &n); err != nil {
			return err
		}
		normalizeNotes(&n)

		idx := -1
		for i := range n.Notes {
			if n.Notes[i].ID == noteID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return &NotFound{Kind: "note", Token: noteID}
		}
		if status != "open" && status != "archived" {
			status = "open"
		}
		n.Notes[idx].Status = status
		n.Notes[idx].Pinned = pinned
		n.Notes[idx].UpdatedAt = m.nowRFC3339()
		n.Version++
		n.UpdatedAt = n.Notes[idx].UpdatedAt
		normalizeNotes(&n)
		if err := jsonstore.WriteJSON(path, &n); err != nil {
			return err
		}
		m.bus.Publish(events.Event{Type: events.TypeNotesUpdated, Project: slug})
		return nil
	})
}
