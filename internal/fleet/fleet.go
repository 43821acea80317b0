// Package fleet implements the fleet registry and heartbeat freshness
// tracking that the Command Center Aggregator and chain-of-command guard
// depend on.
package fleet

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/jsonstore"
)

// Role is an agent's position in the chain of command.
type Role string

const (
	RoleCommander Role = "commander"
	RoleProject   Role = "project"
)

// Agent is one entry in fleet_registry.json.
type Agent struct {
	AgentID      string `json:"agent_id"`
	ProjectSlug  string `json:"project_slug"`
	DisplayName  string `json:"display_name"`
	Role         Role   `json:"role"`
	RegisteredAt string `json:"registered_at"`
	Archived     bool   `json:"archived"`
}

type registryDoc struct {
	Agents []Agent `json:"agents"`
}

// Conflict is returned when a write would violate a registry invariant
// (a second commander, a duplicate agent id).
type Conflict struct {
	Detail string
}

func (e *Conflict) Error() string { return "conflict: " + e.Detail }

// Registry manages fleet_registry.json under a fleet root's
// .command_center directory.
type Registry struct {
	path string
	bus  events.Publisher
	now  func() time.Time
}

// NewRegistry wires a Registry over fleetRoot/.command_center/fleet_registry.json.
func NewRegistry(fleetRoot string, bus events.Publisher) *Registry {
	return &Registry{
		path: filepath.Join(fleetRoot, ".command_center", "fleet_registry.json"),
		bus:  bus,
		now:  time.Now,
	}
}

// Register adds a new agent, or returns Conflict if a second commander is
// attempted or the agent_id already exists and is not archived.
func (r *Registry) Register(agent Agent) (Agent, error) {
	var result Agent
	err := jsonstore.WithLockRetry(r.path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var doc registryDoc
		if err := jsonstore.ReadJSON(r.path, &doc); err != nil {
			return err
		}

		for _, a := range doc.Agents {
			if a.AgentID == agent.AgentID && !a.Archived {
				return &Conflict{Detail: fmt.Sprintf("agent %s already registered", agent.AgentID)}
			}
			if agent.Role == RoleCommander && a.Role == RoleCommander && !a.Archived {
				return &Conflict{Detail: "a commander is already registered"}
			}
		}

		agent.RegisteredAt = r.now().UTC().Format(time.RFC3339)
		agent.Archived = false
		doc.Agents = append(doc.Agents, agent)
		if err := jsonstore.WriteJSON(r.path, &doc); err != nil {
			return err
		}
		result = agent
		return nil
	})
	return result, err
}

// Archive marks an agent archived, retaining its registry row.
func (r *Registry) Archive(agentID string) error {
	return jsonstore.WithLockRetry(r.path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var doc registryDoc
		if err := jsonstore.ReadJSON(r.path, &doc); err != nil {
			return err
		}
		found := false
		for i := range doc.Agents {
			if doc.Agents[i].AgentID == agentID {
				doc.Agents[i].Archived = true
				found = true
				break
			}
		}
		if !found {
			return &NotFound{AgentID: agentID}
		}
		return jsonstore.WriteJSON(r.path, &doc)
	})
}

// List returns every registered agent, sorted by agent_id.
func (r *Registry) List() ([]Agent, error) {
	var doc registryDoc
	if err := jsonstore.ReadJSON(r.path, &doc); err != nil {
		return nil, err
	}
	sort.Slice(doc.Agents, func(i, j int) bool { return doc.Agents[i].AgentID < doc.Agents[j].AgentID })
	return doc.Agents, nil
}

// Find returns a single agent by id.
func (r *Registry) Find(agentID string) (Agent, error) {
	agents, err := r.List()
	if err != nil {
		return Agent{}, err
	}
	for _, a := range agents {
		if a.AgentID == agentID {
			return a, nil
		}
	}
	return Agent{}, &NotFound{AgentID: agentID}
}

// NotFound is returned when an agent id is not in the registry.
type NotFound struct {
	AgentID string
}

func (e *NotFound) Error() string { return fmt.Sprintf("agent not found: %q", e.AgentID) }

// FindByProjectSlug returns the project-role agent registered against a
// project slug, archived or not, used by the Command Center's per-node
// endpoints to resolve a {slug} path segment to its owning agent. Archived
// agents are still returned so callers (the chain-of-command guard) can
// distinguish "not registered" from "archived".
func (r *Registry) FindByProjectSlug(projectSlug string) (Agent, error) {
	agents, err := r.List()
	if err != nil {
		return Agent{}, err
	}
	for _, a := range agents {
		if a.ProjectSlug == projectSlug && a.Role == RoleProject {
			return a, nil
		}
	}
	return Agent{}, &NotFound{AgentID: projectSlug}
}
