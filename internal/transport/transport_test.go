package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/antigravity-dev/maestro/internal/actions"
	"github.com/antigravity-dev/maestro/internal/control"
	"github.com/antigravity-dev/maestro/internal/directive"
	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/fleet"
	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/antigravity-dev/maestro/internal/knowledge"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
	"github.com/antigravity-dev/maestro/internal/tools"
	"github.com/antigravity-dev/maestro/internal/watch"
	"github.com/antigravity-dev/maestro/internal/workspace"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	if err := jsonstore.WriteJSON(filepath.Join(root, "alpha-plaza", "project.json"), &knowledge.Project{Name: "Alpha Plaza", Slug: "alpha-plaza"}); err != nil {
		t.Fatal(err)
	}

	store, err := pathresolve.OpenStore(root)
	if err != nil {
		t.Fatal(err)
	}
	bus := watch.NewBus(watch.DefaultQueueDepth)
	loader := knowledge.NewLoader(store)
	mutator := workspace.New(store, bus)
	surface := tools.NewSurface(root, store, loader, mutator)

	registry := fleet.NewRegistry(root, bus)
	heartbeat := fleet.NewHeartbeatStore(root, 90*time.Second, bus)
	directives := directive.NewStore(root, bus)
	conversations := fleet.NewConversationStore(root)
	aggregator := control.New(root, registry, heartbeat, directives, nil)

	dispatcher := actions.New(root, store, registry, heartbeat, directives, bus, nil, nil, nil, nil)

	return New(Config{Bind: "127.0.0.1:0"}, surface, dispatcher, aggregator, registry, heartbeat, directives, conversations, bus, nil)
}

// do drives a request through the real mux so {slug}/{page}/... path
// segments populate via r.PathValue the same way they do in production,
// instead of calling handlers directly with a bare httptest.Request.
func do(srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	return w
}

func TestHandleListPagesEmptyProjectReturnsEmptyList(t *testing.T) {
	srv := setupTestServer(t)
	w := do(srv, http.MethodGet, "/alpha-plaza/api/pages", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var pages []knowledge.PageMeta
	if err := json.NewDecoder(w.Body).Decode(&pages); err != nil {
		t.Fatal(err)
	}
	if len(pages) != 0 {
		t.Fatalf("expected empty, got %+v", pages)
	}
}

func TestHandleSheetSummaryNotFoundMapsTo404(t *testing.T) {
	srv := setupTestServer(t)
	w := do(srv, http.MethodGet, "/alpha-plaza/api/pages/A999", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	var body errorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Kind != "NotFound" {
		t.Fatalf("got kind %q", body.Error.Kind)
	}
}

func TestHandleActionsUnsupportedActionMapsTo400(t *testing.T) {
	srv := setupTestServer(t)
	w := do(srv, http.MethodPost, "/api/command-center/actions", `{"action":"frobnicate"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var body errorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Kind != "UnsupportedAction" {
		t.Fatalf("got kind %q", body.Error.Kind)
	}
}

func TestHandleActionsCreateProjectNode(t *testing.T) {
	srv := setupTestServer(t)
	if _, err := srv.registry.Register(fleet.Agent{AgentID: "beta-agent", ProjectSlug: "beta-tower", Role: fleet.RoleProject}); err != nil {
		t.Fatal(err)
	}
	reqBody := `{"action":"create_project_node","agent_id":"beta-agent","project_slug":"beta-tower","project_name":"Beta Tower"}`
	w := do(srv, http.MethodPost, "/api/command-center/actions", reqBody)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleActionsCreateProjectNodeFromCommanderForbidden(t *testing.T) {
	srv := setupTestServer(t)
	if _, err := srv.registry.Register(fleet.Agent{AgentID: "chief", Role: fleet.RoleCommander}); err != nil {
		t.Fatal(err)
	}
	reqBody := `{"action":"create_project_node","agent_id":"chief","project_slug":"beta-tower","project_name":"Beta Tower"}`
	w := do(srv, http.MethodPost, "/api/command-center/actions", reqBody)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleStateComposes(t *testing.T) {
	srv := setupTestServer(t)
	w := do(srv, http.MethodGet, "/api/command-center/state", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snap control.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Projects) != 1 {
		t.Fatalf("got %+v", snap.Projects)
	}
}

func TestHandleAwarenessAliasesState(t *testing.T) {
	srv := setupTestServer(t)
	w := do(srv, http.MethodGet, "/api/system/awareness", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snap control.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Projects) != 1 {
		t.Fatalf("got %+v", snap.Projects)
	}
}

// TestConversationSendGuardsArchivedTarget is scenario S6: with a registry
// containing a commander and one archived project agent, sending a
// command-center message to the archived agent's slug returns 403.
func TestConversationSendGuardsArchivedTarget(t *testing.T) {
	srv := setupTestServer(t)
	if _, err := srv.registry.Register(fleet.Agent{AgentID: "chief", Role: fleet.RoleCommander}); err != nil {
		t.Fatal(err)
	}
	if _, err := srv.registry.Register(fleet.Agent{AgentID: "alpha-agent", ProjectSlug: "alpha-plaza", Role: fleet.RoleProject}); err != nil {
		t.Fatal(err)
	}
	if err := srv.registry.Archive("alpha-agent"); err != nil {
		t.Fatal(err)
	}

	w := do(srv, http.MethodPost, "/api/command-center/nodes/alpha-plaza/conversation/send", `{"message":"x","source":"command_center_ui"}`)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
	var body errorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Kind != "Forbidden" {
		t.Fatalf("got kind %q", body.Error.Kind)
	}
}

func TestConversationSendAcceptsRegisteredActiveTarget(t *testing.T) {
	srv := setupTestServer(t)
	if _, err := srv.registry.Register(fleet.Agent{AgentID: "alpha-agent", ProjectSlug: "alpha-plaza", Role: fleet.RoleProject}); err != nil {
		t.Fatal(err)
	}

	w := do(srv, http.MethodPost, "/api/command-center/nodes/alpha-plaza/conversation/send", `{"message":"hello","source":"command_center_ui"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(srv, http.MethodGet, "/api/command-center/nodes/alpha-plaza/conversation", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var msgs []fleet.ConversationMessage
	if err := json.NewDecoder(w.Body).Decode(&msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Message != "hello" {
		t.Fatalf("got %+v", msgs)
	}
}

func TestHandleFleetRegistryLists(t *testing.T) {
	srv := setupTestServer(t)
	if _, err := srv.registry.Register(fleet.Agent{AgentID: "chief", Role: fleet.RoleCommander}); err != nil {
		t.Fatal(err)
	}
	w := do(srv, http.MethodGet, "/api/command-center/fleet-registry", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var agents []fleet.Agent
	if err := json.NewDecoder(w.Body).Decode(&agents); err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 {
		t.Fatalf("got %+v", agents)
	}
}

func TestFrameTypeMapsHeartbeatUpdatedToHeartbeat(t *testing.T) {
	if got := frameType(events.TypeHeartbeatUpdated); got != "heartbeat" {
		t.Fatalf("got %q", got)
	}
	if got := frameType(events.TypePageAdded); got != "page_added" {
		t.Fatalf("got %q", got)
	}
}
