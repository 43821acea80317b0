// Package events defines the typed change events published by the
// mutators and file watcher, and consumed by the event bus and transport
// layers. It has no dependencies so every layer can import it without
// creating cycles.
package events

// Type is the WebSocket/bus frame discriminator.
type Type string

const (
	TypeInit             Type = "init"
	TypeProjectAdded     Type = "project_added"
	TypeProjectRemoved   Type = "project_removed"
	TypePageAdded        Type = "page_added"
	TypePageUpdated      Type = "page_updated"
	TypePageImageReady   Type = "page_image_ready"
	TypeRegionComplete   Type = "region_complete"
	TypeWorkspaceUpdated Type = "workspace_updated"
	TypeScheduleUpdated  Type = "schedule_updated"
	TypeNotesUpdated     Type = "notes_updated"
	TypeHeartbeatUpdated Type = "heartbeat_updated"
	TypeDirectiveChanged Type = "directive_changed"
)

// Event is the common envelope for every typed change notification.
type Event struct {
	Type    Type   `json:"type"`
	Project string `json:"project,omitempty"`
	Page    string `json:"page,omitempty"`
	Region  string `json:"region,omitempty"`
	Slug    string `json:"slug,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Publisher is implemented by the event bus; mutators depend only on this
// narrow interface so they never need to know about subscriber queues.
type Publisher interface {
	Publish(evt Event)
}

// NopPublisher discards every event; used where no bus is wired (CLI
// one-shot tool invocations, tests).
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
