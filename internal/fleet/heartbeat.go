package fleet

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/jsonstore"
)

// LoopState is the project agent's current activity.
type LoopState string

const (
	LoopIdle      LoopState = "idle"
	LoopComputing LoopState = "computing"
	LoopBlocked   LoopState = "blocked"
)

// Heartbeat is <project>/.command_center/heartbeat.json.
type Heartbeat struct {
	LoopState LoopState          `json:"loop_state"`
	Summary   string             `json:"summary"`
	UpdatedAt string             `json:"updated_at"`
	Metrics   map[string]float64 `json:"metrics"`
}

// HeartbeatStore reads and writes project heartbeat files.
type HeartbeatStore struct {
	fleetRoot string
	ttl       time.Duration
	bus       events.Publisher
	now       func() time.Time
}

// NewHeartbeatStore wires a HeartbeatStore with a freshness TTL (default
// 90s per spec, overridable via MAESTRO_HEARTBEAT_TTL_SECONDS upstream).
func NewHeartbeatStore(fleetRoot string, ttl time.Duration, bus events.Publisher) *HeartbeatStore {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &HeartbeatStore{fleetRoot: fleetRoot, ttl: ttl, bus: bus, now: time.Now}
}

func (h *HeartbeatStore) path(projectSlug string) string {
	return filepath.Join(h.fleetRoot, projectSlug, ".command_center", "heartbeat.json")
}

// Write records a project agent's current heartbeat, stamping updated_at.
func (h *HeartbeatStore) Write(projectSlug string, hb Heartbeat) error {
	path := h.path(projectSlug)
	return jsonstore.WithLockRetry(path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		hb.UpdatedAt = h.now().UTC().Format(time.RFC3339)
		if err := jsonstore.WriteJSON(path, &hb); err != nil {
			return err
		}
		h.bus.Publish(events.Event{Type: events.TypeHeartbeatUpdated, Project: projectSlug})
		return nil
	})
}

// Read returns the raw heartbeat document for a project.
func (h *HeartbeatStore) Read(projectSlug string) (Heartbeat, error) {
	var hb Heartbeat
	if err := jsonstore.ReadJSON(h.path(projectSlug), &hb); err != nil {
		return Heartbeat{}, err
	}
	return hb, nil
}

// IsFresh reports whether a heartbeat's age is within the TTL as of now.
func (h *HeartbeatStore) IsFresh(hb Heartbeat, now time.Time) bool {
	if hb.UpdatedAt == "" {
		return false
	}
	updated, err := time.Parse(time.RFC3339, hb.UpdatedAt)
	if err != nil {
		return false
	}
	return now.Sub(updated) <= h.ttl
}

// NodeStatus is the per-node status endpoint's response shape.
type NodeStatus struct {
	AgentID       string             `json:"agent_id"`
	DisplayName   string             `json:"display_name"`
	LoopState     LoopState          `json:"loop_state"`
	IsFresh       bool               `json:"is_fresh"`
	Summary       string             `json:"summary"`
	LastMessageAt string             `json:"last_message_at"`
	Metrics       map[string]float64 `json:"metrics"`
}

// Status composes a node's heartbeat into its public status shape,
// falling back to a stale-duration summary when the heartbeat has
// expired.
func (h *HeartbeatStore) Status(agent Agent, now time.Time) (NodeStatus, error) {
	hb, err := h.Read(agent.ProjectSlug)
	if err != nil {
		return NodeStatus{}, err
	}
	fresh := h.IsFresh(hb, now)
	if fresh {
		return NodeStatus{
			AgentID:       agent.AgentID,
			DisplayName:   agent.DisplayName,
			LoopState:     hb.LoopState,
			IsFresh:       true,
			Summary:       hb.Summary,
			LastMessageAt: hb.UpdatedAt,
			Metrics:       hb.Metrics,
		}, nil
	}

	age := "unknown"
	if updated, err := time.Parse(time.RFC3339, hb.UpdatedAt); err == nil {
		age = now.Sub(updated).Round(time.Second).String()
	}
	return NodeStatus{
		AgentID:       agent.AgentID,
		DisplayName:   agent.DisplayName,
		LoopState:     LoopIdle,
		IsFresh:       false,
		Summary:       fmt.Sprintf("Agent reporting stale; last heartbeat %s ago", age),
		LastMessageAt: hb.UpdatedAt,
		Metrics:       hb.Metrics,
	}, nil
}
