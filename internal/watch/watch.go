// Package watch recursively watches a store root for filesystem changes
// and publishes debounced, typed events to an in-process bus.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/antigravity-dev/maestro/internal/events"
)

// Watcher watches a store root recursively, debounces per-path bursts by
// a configurable window, and classifies settled changes into the typed
// events the rest of the runtime consumes.
type Watcher struct {
	storeRoot string
	debounce  time.Duration
	fsw       *fsnotify.Watcher
	bus       *Bus
	logger    *slog.Logger

	mu          sync.Mutex
	pending     map[string]time.Time
}

// NewWatcher constructs a Watcher over storeRoot, publishing to bus.
func NewWatcher(storeRoot string, debounce time.Duration, bus *Bus, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		storeRoot: storeRoot,
		debounce:  debounce,
		fsw:       fsw,
		bus:       bus,
		logger:    logger,
		pending:   make(map[string]time.Time),
	}, nil
}

// Start adds every directory under storeRoot to the watch list and runs
// the event loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.storeRoot); err != nil {
		w.logger.Warn("watch: initial tree add failed", "error", err)
	}

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.fsw.Close()
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleRaw(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch: fsnotify error", "error", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := w.fsw.Add(path); addErr != nil {
				w.logger.Warn("watch: add dir failed", "path", path, "error", addErr)
			}
		}
		return nil
	})
}

func (w *Watcher) handleRaw(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.fsw.Add(ev.Name)
		}
	}
	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	now := time.Now()
	w.mu.Lock()
	var ready []string
	for path, seen := range w.pending {
		if now.Sub(seen) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if evt, ok := classify(w.storeRoot, path); ok {
			w.bus.Publish(evt)
		}
	}
}

// classify maps a settled path change to a typed event, or ok=false if
// the path does not correspond to a recognized document.
func classify(storeRoot, path string) (events.Event, bool) {
	rel, err := filepath.Rel(storeRoot, path)
	if err != nil {
		return events.Event{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")

	// <project>/pages/<page>/pass1.json or pointers/<region>/pass2.json
	for i, part := range parts {
		if part == "pages" && i+1 < len(parts) {
			project := projectFromParts(parts, i)
			page := parts[i+1]
			if i+3 < len(parts) && parts[i+2] == "pointers" {
				region := parts[i+3]
				if strings.HasSuffix(path, "pass2.json") {
					return events.Event{Type: events.TypeRegionComplete, Project: project, Page: page, Region: region}, true
				}
				return events.Event{}, false
			}
			if strings.HasSuffix(path, "pass1.json") {
				return events.Event{Type: events.TypePageAdded, Project: project, Page: page}, true
			}
			if strings.HasSuffix(path, "page.png") {
				return events.Event{Type: events.TypePageImageReady, Project: project, Page: page}, true
			}
			if strings.HasSuffix(path, "pass1.json.tmp") {
				return events.Event{}, false
			}
			return events.Event{Type: events.TypePageUpdated, Project: project, Page: page}, true
		}
		if part == "workspaces" && i+1 < len(parts) {
			project := projectFromParts(parts, i)
			return events.Event{Type: events.TypeWorkspaceUpdated, Project: project, Slug: parts[i+1]}, true
		}
		if part == "schedule" {
			return events.Event{Type: events.TypeScheduleUpdated, Project: projectFromParts(parts, i)}, true
		}
		if part == "notes" {
			return events.Event{Type: events.TypeNotesUpdated, Project: projectFromParts(parts, i)}, true
		}
		if part == ".command_center" && i+1 < len(parts) {
			project := projectFromParts(parts, i)
			if parts[i+1] == "heartbeat.json" {
				return events.Event{Type: events.TypeHeartbeatUpdated, Project: project}, true
			}
			if parts[i+1] == "system_directives.json" {
				return events.Event{Type: events.TypeDirectiveChanged}, true
			}
		}
	}
	if rel == "project.json" || (len(parts) == 2 && parts[1] == "project.json") {
		return events.Event{Type: events.TypeProjectAdded, Project: projectFromParts(parts, len(parts))}, true
	}
	return events.Event{}, false
}

func projectFromParts(parts []string, upTo int) string {
	if upTo == 0 {
		return ""
	}
	return parts[0]
}
