// Package transport implements the Live Transport: the HTTP + WebSocket
// surface over the Tool Surface, Action Dispatcher, Command Center
// Aggregator, and fleet/directive stores, grounded on the teacher's
// internal/api package (mux.HandleFunc routing, writeJSON/writeError
// helpers, bearer-token auth).
package transport

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antigravity-dev/maestro/internal/actions"
	"github.com/antigravity-dev/maestro/internal/control"
	"github.com/antigravity-dev/maestro/internal/directive"
	"github.com/antigravity-dev/maestro/internal/fleet"
	"github.com/antigravity-dev/maestro/internal/tools"
	"github.com/antigravity-dev/maestro/internal/watch"
)

// Server is the HTTP + WebSocket live transport.
type Server struct {
	bind          string
	allowedTokens []string

	surface       *tools.Surface
	dispatcher    *actions.Dispatcher
	aggregator    *control.Aggregator
	registry      *fleet.Registry
	heartbeat     *fleet.HeartbeatStore
	directives    *directive.Store
	conversations *fleet.ConversationStore
	bus           *watch.Bus

	logger     *slog.Logger
	httpServer *http.Server
}

// Config is the subset of runtime config the transport needs directly,
// kept separate from internal/config to avoid importing it here.
type Config struct {
	Bind          string
	AllowedTokens []string
}

// New wires a Server over the already-constructed domain layers.
func New(cfg Config, surface *tools.Surface, dispatcher *actions.Dispatcher, aggregator *control.Aggregator, registry *fleet.Registry, heartbeat *fleet.HeartbeatStore, directives *directive.Store, conversations *fleet.ConversationStore, bus *watch.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		bind: cfg.Bind, allowedTokens: cfg.AllowedTokens,
		surface: surface, dispatcher: dispatcher, aggregator: aggregator,
		registry: registry, heartbeat: heartbeat, directives: directives,
		conversations: conversations, bus: bus,
		logger: logger,
	}
}

// Start registers every route and blocks serving until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := s.routes()

	s.httpServer = &http.Server{
		Addr:        s.bind,
		Handler:     mux,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutCtx)
	}()

	s.logger.Info("live transport starting", "bind", s.bind)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// routes builds the route table. Split out of Start so tests can drive
// the real mux (and its {slug}-scoped PathValue population) without
// binding a listener.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleStaticOrWorkspace)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// Workspace UI routes (spec §4.G): every project-scoped read hangs off
	// a {slug} path segment, never a query parameter.
	mux.HandleFunc("GET /api/projects", s.withToken(s.handleListProjects))
	mux.HandleFunc("GET /{slug}/api/project", s.withToken(s.handleProjectContext))
	mux.HandleFunc("GET /{slug}/api/pages", s.withToken(s.handleListPages))
	mux.HandleFunc("GET /{slug}/api/pages/{page}", s.withToken(s.handleSheetSummary))
	mux.HandleFunc("GET /{slug}/api/pages/{page}/regions", s.withToken(s.handleListRegions))
	mux.HandleFunc("GET /{slug}/api/pages/{page}/regions/{id}", s.withToken(s.handleRegionDetail))
	mux.HandleFunc("GET /{slug}/api/pages/{page}/image", s.withToken(s.handlePageImage))
	mux.HandleFunc("GET /{slug}/api/pages/{page}/thumb", s.withToken(s.handlePageThumb))
	mux.HandleFunc("GET /{slug}/api/pages/{page}/regions/{id}/crop", s.withToken(s.handleRegionCrop))
	mux.HandleFunc("GET /{slug}/api/pages/{page}/cross-references", s.withToken(s.handleCrossReferences))
	mux.HandleFunc("GET /{slug}/api/search", s.withToken(s.handleSearch))

	mux.HandleFunc("GET /{slug}/api/workspaces", s.withToken(s.handleListWorkspaces))
	mux.HandleFunc("POST /{slug}/api/workspaces", s.withToken(s.handleCreateWorkspace))
	mux.HandleFunc("GET /{slug}/api/workspaces/{ws}", s.withToken(s.handleGetWorkspace))
	mux.HandleFunc("POST /{slug}/api/workspaces/{ws}/pages", s.withToken(s.handleWorkspacePageMutation))
	mux.HandleFunc("GET /{slug}/api/workspaces/{ws}/images/{file}", s.withToken(s.handleWorkspaceImage))

	mux.HandleFunc("GET /{slug}/api/notes", s.withToken(s.handleNotesGet))
	mux.HandleFunc("POST /{slug}/api/notes", s.withToken(s.handleNotesPost))
	mux.HandleFunc("GET /{slug}/api/schedule", s.withToken(s.handleScheduleGet))
	mux.HandleFunc("POST /{slug}/api/schedule", s.withToken(s.handleSchedulePost))
	mux.HandleFunc("GET /{slug}/api/schedule/timeline", s.withToken(s.handleScheduleTimeline))

	// Command Center routes: fleet-wide, keyed by {slug} mid-path rather
	// than prefixed by it.
	mux.HandleFunc("GET /api/command-center/state", s.withToken(s.handleState))
	mux.HandleFunc("GET /api/command-center/projects/{slug}", s.withToken(s.handleProjectSummary))
	mux.HandleFunc("GET /api/command-center/nodes/{slug}/status", s.withToken(s.handleNodeStatus))
	mux.HandleFunc("GET /api/command-center/nodes/{slug}/conversation", s.withToken(s.handleConversationGet))
	mux.HandleFunc("POST /api/command-center/nodes/{slug}/conversation/send", s.withToken(s.handleConversationSend))
	mux.HandleFunc("GET /api/system/awareness", s.withToken(s.handleAwareness))
	mux.HandleFunc("GET /api/command-center/fleet-registry", s.withToken(s.handleFleetRegistry))
	mux.HandleFunc("POST /api/command-center/actions", s.withToken(s.handleActions))
	mux.HandleFunc("POST /api/command-center/heartbeat", s.withToken(s.handleHeartbeat))

	mux.HandleFunc("/{slug}/ws", s.handleWorkspaceWS)
	mux.HandleFunc("/ws/command-center", s.handleCommandCenterWS)

	return mux
}

// withToken enforces bearer-token auth when allowedTokens is non-empty,
// mirroring the teacher's auth middleware without its file-audit log
// (telemetry for these requests lives in the Audit Store instead).
func (s *Server) withToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedTokens) == 0 {
			next(w, r)
			return
		}
		token := extractBearerToken(r)
		for _, allowed := range s.allowedTokens {
			if token == allowed {
				next(w, r)
				return
			}
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, &fleet.Forbidden{Reason: "valid bearer token required"})
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"websocket_subscribers": s.bus.SubscriberCount()})
}

// handleStaticOrWorkspace stands in for the command-center frontend (UI
// rendering is a non-goal): it returns a minimal placeholder at "/" and
// 404 for every other unmatched path.
func (s *Server) handleStaticOrWorkspace(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"service": "maestro"})
}

// streamAsset serves a page render, region crop, or workspace-generated
// image straight from disk with far-future cache headers, relying on
// http.ServeFile for range-request support (spec §6's static asset
// contract).
func streamAsset(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, path)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
