// Package control implements the Command Center Aggregator: a cached,
// composed snapshot of fleet registry, heartbeat freshness, knowledge
// loader summary counts, system directives, and environmental posture.
package control

import (
	"sort"
	"sync"
	"time"

	"github.com/antigravity-dev/maestro/internal/directive"
	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/fleet"
	"github.com/antigravity-dev/maestro/internal/health"
	"github.com/antigravity-dev/maestro/internal/knowledge"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
)

// ttl bounds how long a cached snapshot is served before a fresh one is
// composed, independent of the event-driven invalidation below.
const ttl = time.Second

// ProjectSummary is one project's row in the awareness snapshot.
type ProjectSummary struct {
	Slug      string            `json:"slug"`
	Name      string            `json:"name"`
	PageCount int               `json:"page_count"`
	Node      *fleet.NodeStatus `json:"node,omitempty"`
}

// Snapshot is the full Command Center awareness payload.
type Snapshot struct {
	Projects        []ProjectSummary      `json:"projects"`
	CommanderOnline bool                  `json:"commander_online"`
	Directives      []directive.Directive `json:"directives"`
	Posture         health.PostureStatus  `json:"posture"`
	ComposedAt      time.Time             `json:"composed_at"`
}

// Aggregator composes and caches awareness snapshots.
type Aggregator struct {
	storeRoot string
	registry  *fleet.Registry
	heartbeat *fleet.HeartbeatStore
	directive *directive.Store
	posture   *health.PostureProbe
	now       func() time.Time

	mu       sync.Mutex
	cached   *Snapshot
	cachedAt time.Time
	dirty    bool
}

// New wires an Aggregator over the already-constructed fleet and
// directive stores for a given store root. It subscribes to nothing
// itself; the caller forwards bus events to OnEvent.
func New(storeRoot string, registry *fleet.Registry, heartbeat *fleet.HeartbeatStore, directiveStore *directive.Store, posture *health.PostureProbe) *Aggregator {
	return &Aggregator{
		storeRoot: storeRoot,
		registry:  registry,
		heartbeat: heartbeat,
		directive: directiveStore,
		posture:   posture,
		now:       time.Now,
	}
}

// Invalidate drops the cached snapshot so the next Snapshot call
// recomposes. OnEvent calls it for HeartbeatUpdated and DirectiveChanged.
// The fleet registry publishes no event on register or archive, so those
// changes reach the snapshot only once the cached copy is older than ttl.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	a.dirty = true
	a.mu.Unlock()
}

// OnEvent wires directly into an events.Publisher-adjacent subscriber
// loop: any of these event types invalidates the cache immediately.
func (a *Aggregator) OnEvent(evt events.Event) {
	switch evt.Type {
	case events.TypeHeartbeatUpdated, events.TypeDirectiveChanged:
		a.Invalidate()
	}
}

// Snapshot returns the current awareness snapshot, recomposing if the
// cache is dirty or older than ttl.
func (a *Aggregator) Snapshot() (Snapshot, error) {
	a.mu.Lock()
	now := a.now()
	if a.cached != nil && !a.dirty && now.Sub(a.cachedAt) < ttl {
		snap := *a.cached
		a.mu.Unlock()
		return snap, nil
	}
	a.mu.Unlock()

	snap, err := a.compose(now)
	if err != nil {
		return Snapshot{}, err
	}

	a.mu.Lock()
	a.cached = &snap
	a.cachedAt = now
	a.dirty = false
	a.mu.Unlock()

	return snap, nil
}

func (a *Aggregator) compose(now time.Time) (Snapshot, error) {
	projects, err := knowledge.ListProjects(a.storeRoot)
	if err != nil {
		return Snapshot{}, err
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Slug < projects[j].Slug })

	agents, err := a.registry.List()
	if err != nil {
		return Snapshot{}, err
	}
	byProjectSlug := make(map[string]fleet.Agent, len(agents))
	commanderOnline := false
	for _, ag := range agents {
		if ag.Archived {
			continue
		}
		if ag.Role == fleet.RoleCommander {
			commanderOnline = true
			continue
		}
		byProjectSlug[ag.ProjectSlug] = ag
	}

	store, err := pathresolve.OpenStore(a.storeRoot)
	if err != nil {
		return Snapshot{}, err
	}
	loader := knowledge.NewLoader(store)

	summaries := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		pages, err := loader.ListPages(p.Slug, "")
		if err != nil {
			return Snapshot{}, err
		}
		summary := ProjectSummary{Slug: p.Slug, Name: p.Name, PageCount: len(pages)}
		if agent, ok := byProjectSlug[p.Slug]; ok {
			status, err := a.heartbeat.Status(agent, now)
			if err != nil {
				return Snapshot{}, err
			}
			summary.Node = &status
		}
		summaries = append(summaries, summary)
	}

	directives, err := a.directive.List(false)
	if err != nil {
		return Snapshot{}, err
	}

	var posture health.PostureStatus
	if a.posture != nil {
		posture = a.posture.Latest()
	}

	return Snapshot{
		Projects:        summaries,
		CommanderOnline: commanderOnline,
		Directives:      directives,
		Posture:         posture,
		ComposedAt:      now,
	}, nil
}
