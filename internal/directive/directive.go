// Package directive implements CRUD and archival for system directives
// shared across a fleet.
package directive

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/google/uuid"
)

// Directive is one entry in system_directives.json.
type Directive struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Scope      string `json:"scope"`
	Version    int    `json:"version"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	ArchivedAt string `json:"archived_at"`
	UpdatedBy  string `json:"updated_by"`
}

type doc struct {
	Directives []Directive `json:"directives"`
}

// Store manages <fleet-root>/.command_center/system_directives.json.
type Store struct {
	path string
	bus  events.Publisher
	now  func() time.Time
}

// NewStore wires a Store over a fleet root.
func NewStore(fleetRoot string, bus events.Publisher) *Store {
	return &Store{
		path: filepath.Join(fleetRoot, ".command_center", "system_directives.json"),
		bus:  bus,
		now:  time.Now,
	}
}

// Upsert inserts or updates a directive, minting a UUID when id is absent,
// stamping updated_at, and bumping a monotonic version counter.
func (s *Store) Upsert(d Directive) (Directive, error) {
	var result Directive
	err := jsonstore.WithLockRetry(s.path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var data doc
		if err := jsonstore.ReadJSON(s.path, &data); err != nil {
			return err
		}

		now := s.now().UTC().Format(time.RFC3339)
		if d.ID == "" {
			d.ID = uuid.NewString()
			d.CreatedAt = now
			d.Version = 1
			d.UpdatedAt = now
			data.Directives = append(data.Directives, d)
		} else {
			found := false
			for i := range data.Directives {
				if data.Directives[i].ID == d.ID {
					d.CreatedAt = data.Directives[i].CreatedAt
					d.Version = data.Directives[i].Version + 1
					d.UpdatedAt = now
					d.ArchivedAt = data.Directives[i].ArchivedAt
					data.Directives[i] = d
					found = true
					break
				}
			}
			if !found {
				d.CreatedAt = now
				d.Version = 1
				d.UpdatedAt = now
				data.Directives = append(data.Directives, d)
			}
		}

		if err := jsonstore.WriteJSON(s.path, &data); err != nil {
			return err
		}
		result = d
		s.bus.Publish(events.Event{Type: events.TypeDirectiveChanged, ID: d.ID})
		return nil
	})
	return result, err
}

// Archive sets archived_at but retains the row for audit.
func (s *Store) Archive(id string) error {
	return jsonstore.WithLockRetry(s.path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var data doc
		if err := jsonstore.ReadJSON(s.path, &data); err != nil {
			return err
		}
		found := false
		for i := range data.Directives {
			if data.Directives[i].ID == id {
				data.Directives[i].ArchivedAt = s.now().UTC().Format(time.RFC3339)
				data.Directives[i].Version++
				found = true
				break
			}
		}
		if !found {
			return &NotFound{ID: id}
		}
		if err := jsonstore.WriteJSON(s.path, &data); err != nil {
			return err
		}
		s.bus.Publish(events.Event{Type: events.TypeDirectiveChanged, ID: id})
		return nil
	})
}

// List returns directives, defaulting to non-archived only.
func (s *Store) List(includeArchived bool) ([]Directive, error) {
	var data doc
	if err := jsonstore.ReadJSON(s.path, &data); err != nil {
		return nil, err
	}
	out := make([]Directive, 0, len(data.Directives))
	for _, d := range data.Directives {
		if !includeArchived && d.ArchivedAt != "" {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

// NotFound is returned when a directive id does not exist.
type NotFound struct {
	ID string
}

func (e *NotFound) Error() string { return "directive not found: " + e.ID }
