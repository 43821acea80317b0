package workspace

import (
	"path/filepath"

	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/jsonstore"
)

var scheduleTypes = map[string]bool{
	"activity": true, "milestone": true, "constraint": true,
	"inspection": true, "delivery": true, "task": true,
}

var scheduleStatuses = map[string]bool{
	"pending": true, "in_progress": true, "blocked": true, "done": true, "cancelled": true,
}

func terminalStatus(status string) bool {
	return status == "done" || status == "cancelled"
}

// ScheduleItem is one entry in schedule/maestro_schedule.json's items[].
type ScheduleItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date"`
	Owner       string `json:"owner"`
	ActivityID  string `json:"activity_id"`
	Impact      string `json:"impact"`
	Notes       string `json:"notes"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	ClosedAt    string `json:"closed_at"`
	CloseReason string `json:"close_reason"`
}

// Schedule is schedule/maestro_schedule.json.
type Schedule struct {
	Version   int            `json:"version"`
	UpdatedAt string         `json:"updated_at"`
	Items     []ScheduleItem `json:"items"`
}

func (m *Mutator) schedulePath(slug string) (string, error) {
	dir, err := m.store.ProjectDir(slug)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "schedule", "maestro_schedule.json"), nil
}

func normalizeScheduleItem(item *ScheduleItem) {
	if !scheduleTypes[item.Type] {
		item.Type = "activity"
	}
	if !scheduleStatuses[item.Status] {
		item.Status = "pending"
	}
	if terminalStatus(item.Status) {
		if item.ClosedAt == "" {
			item.ClosedAt = item.UpdatedAt
		}
	} else {
		item.ClosedAt = ""
		item.CloseReason = ""
	}
}

func normalizeSchedule(s *Schedule) {
	for i := range s.Items {
		normalizeScheduleItem(&s.Items[i])
	}
}

// GetSchedule returns the normalized schedule document.
func (m *Mutator) GetSchedule(slug string) (Schedule, error) {
	path, err := m.schedulePath(slug)
	if err != nil {
		return Schedule{}, err
	}
	var s Schedule
	if err := jsonstore.ReadJSON(path, &s); err != nil {
		return Schedule{}, err
	}
	normalizeSchedule(&s)
	return s, nil
}

// UpsertItem inserts or updates a schedule item by id, minting a fresh id
// when absent. type/status are coerced to their documented defaults when
// out of the allowed enum.
func (m *Mutator) UpsertItem(slug string, item ScheduleItem, mintID func() string) (ScheduleItem, error) {
	path, err := m.schedulePath(slug)
	if err != nil {
		return ScheduleItem{}, err
	}
	var result ScheduleItem
	err = jsonstore.WithLockRetry(path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var s Schedule
		if err := jsonstore.ReadJSON(path, &s); err != nil {
			return err
		}
		normalizeSchedule(&s)

		now := m.nowRFC3339()
		item.UpdatedAt = now
		normalizeScheduleItem(&item)

		if item.ID == "" {
			item.ID = mintID()
			item.CreatedAt = now
			s.Items = append(s.Items, item)
		} else {
			found := false
			for i := range s.Items {
				if s.Items[i].ID == item.ID {
					item.CreatedAt = s.Items[i].CreatedAt
					s.Items[i] = item
					found = true
					break
				}
			}
			if !found {
				item.CreatedAt = now
				s.Items = append(s.Items, item)
			}
		}
		s.Version++
		s.UpdatedAt = now
		normalizeSchedule(&s)
		if err := jsonstore.WriteJSON(path, &s); err != nil {
			return err
		}
		result = item
		m.bus.Publish(events.Event{Type: events.TypeScheduleUpdated, Project: slug})
		return nil
	})
	return result, err
}

// SetConstraint records a constraint-type item linked to an activity.
func (m *Mutator) SetConstraint(slug, activityID, title, notes string, mintID func() string) (ScheduleItem, error) {
	return m.UpsertItem(slug, ScheduleItem{
		Title:      title,
		Type:       "constraint",
		Status:     "pending",
		ActivityID: activityID,
		Notes:      notes,
	}, mintID)
}

// CloseItem transitions an item to a terminal status and stamps closed_at.
// status must be "done" or "cancelled".
func (m *Mutator) CloseItem(slug, itemID, status, closeReason string) (ScheduleItem, error) {
	if !terminalStatus(status) {
		return ScheduleItem{}, &InvalidArgument{Field: "status", Reason: "must be done or cancelled"}
	}
	path, err := m.schedulePath(slug)
	if err != nil {
		return ScheduleItem{}, err
	}
	var result ScheduleItem
	err = jsonstore.WithLockRetry(path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var s Schedule
		if err := jsonstore.ReadJSON(path, &s); err != nil {
			return err
		}
		normalizeSchedule(&s)

		idx := -1
		for i := range s.Items {
			if s.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return &NotFound{Kind: "schedule_item", Token: itemID}
		}
		now := m.nowRFC3339()
		s.Items[idx].Status = status
		s.Items[idx].CloseReason = closeReason
		s.Items[idx].UpdatedAt = now
		normalizeScheduleItem(&s.Items[idx])
		s.Version++
		s.UpdatedAt = now
		if err := jsonstore.WriteJSON(path, &s); err != nil {
			return err
		}
		result = s.Items[idx]
		m.bus.Publish(events.Event{Type: events.TypeScheduleUpdated, Project: slug})
		return nil
	})
	return result, err
}
