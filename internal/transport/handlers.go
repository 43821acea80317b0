package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/antigravity-dev/maestro/internal/fleet"
	"github.com/antigravity-dev/maestro/internal/tools"
	"github.com/antigravity-dev/maestro/internal/workspace"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.surface.ListProjects()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleProjectContext(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	ctx, err := s.surface.ProjectContext(slug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ctx)
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	discipline := r.URL.Query().Get("discipline")
	pages, err := s.surface.ListPages(slug, discipline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	query := r.URL.Query().Get("q")
	limit := queryInt(r, "limit", 10)
	hits, err := s.surface.Search(slug, query, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleSheetSummary(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	page := r.PathValue("page")
	summary, err := s.surface.GetSheetSummary(slug, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListRegions(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	page := r.PathValue("page")
	name, regions, err := s.surface.ListRegions(slug, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page_name": name, "regions": regions})
}

func (s *Server) handleRegionDetail(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	page := r.PathValue("page")
	region := r.PathValue("id")
	detail, err := s.surface.GetRegionDetail(slug, page, region)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCrossReferences(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	page := r.PathValue("page")
	refs, err := s.surface.FindCrossReferences(slug, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

// handlePageThumb serves the same full-render asset as handlePageImage:
// the on-disk page directory layout has no distinct thumbnail file.
func (s *Server) handlePageImage(w http.ResponseWriter, r *http.Request) {
	s.servePageAsset(w, r, "page.png")
}

func (s *Server) handlePageThumb(w http.ResponseWriter, r *http.Request) {
	s.servePageAsset(w, r, "page.png")
}

func (s *Server) servePageAsset(w http.ResponseWriter, r *http.Request, filename string) {
	slug := r.PathValue("slug")
	page := r.PathValue("page")
	path, err := s.surface.ResolvePageAssetPath(slug, page, filename)
	if err != nil {
		writeError(w, err)
		return
	}
	streamAsset(w, r, path)
}

func (s *Server) handleRegionCrop(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	page := r.PathValue("page")
	region := r.PathValue("id")
	path, err := s.surface.ResolveRegionCropPath(slug, page, region)
	if err != nil {
		writeError(w, err)
		return
	}
	streamAsset(w, r, path)
}

func (s *Server) handleWorkspaceImage(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	wsSlug := r.PathValue("ws")
	file := r.PathValue("file")
	path, err := s.surface.ResolveWorkspaceImagePath(slug, wsSlug, file)
	if err != nil {
		writeError(w, err)
		return
	}
	streamAsset(w, r, path)
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	list, err := s.surface.ListWorkspaces(slug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	wsSlug := r.PathValue("ws")
	ws, err := s.surface.GetWorkspace(slug, wsSlug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	var body struct {
		Workspace string `json:"workspace"`
		Title     string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &invalidJSON{err})
		return
	}
	ws, err := s.surface.CreateWorkspace(slug, body.Workspace, body.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleWorkspacePageMutation(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	wsSlug := r.PathValue("ws")

	var body struct {
		Page             string                     `json:"page"`
		Remove           bool                       `json:"remove"`
		SelectPointers   []string                   `json:"select_pointers,omitempty"`
		DeselectPointers []string                   `json:"deselect_pointers,omitempty"`
		Description      *string                    `json:"description,omitempty"`
		CustomHighlight  *workspace.CustomHighlight `json:"custom_highlight,omitempty"`
		ClearHighlights  bool                       `json:"clear_highlights,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &invalidJSON{err})
		return
	}

	if body.Remove {
		if err := s.surface.RemovePage(slug, wsSlug, body.Page); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
		return
	}
	if len(body.SelectPointers) > 0 {
		if err := s.surface.SelectPointers(slug, wsSlug, body.Page, body.SelectPointers); err != nil {
			writeError(w, err)
			return
		}
	}
	if len(body.DeselectPointers) > 0 {
		if err := s.surface.DeselectPointers(slug, wsSlug, body.Page, body.DeselectPointers); err != nil {
			writeError(w, err)
			return
		}
	}
	if body.Description != nil {
		if err := s.surface.AddDescription(slug, wsSlug, body.Page, *body.Description); err != nil {
			writeError(w, err)
			return
		}
	}
	if body.CustomHighlight != nil {
		if err := s.surface.SetCustomHighlight(slug, wsSlug, body.Page, *body.CustomHighlight); err != nil {
			writeError(w, err)
			return
		}
	}
	if body.ClearHighlights {
		if err := s.surface.ClearCustomHighlights(slug, wsSlug, body.Page); err != nil {
			writeError(w, err)
			return
		}
	}
	if body.Page != "" && !body.Remove && len(body.SelectPointers) == 0 && len(body.DeselectPointers) == 0 && body.Description == nil && body.CustomHighlight == nil && !body.ClearHighlights {
		added, err := s.surface.AddPage(slug, wsSlug, body.Page)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"added": added})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleNotesGet(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	notes, err := s.surface.GetProjectNotes(slug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleNotesPost(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	var body struct {
		Category *workspace.NoteCategory `json:"category,omitempty"`
		Note     *workspace.Note         `json:"note,omitempty"`
		UpdateID string                  `json:"update_id,omitempty"`
		Status   string                  `json:"status,omitempty"`
		Pinned   bool                    `json:"pinned,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &invalidJSON{err})
		return
	}
	switch {
	case body.Category != nil:
		if err := s.surface.UpsertNoteCategory(slug, *body.Category); err != nil {
			writeError(w, err)
			return
		}
	case body.Note != nil:
		saved, err := s.surface.AddNote(slug, *body.Note)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
		return
	case body.UpdateID != "":
		if err := s.surface.UpdateNoteState(slug, body.UpdateID, body.Status, body.Pinned); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleScheduleGet(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if r.URL.Query().Get("status_only") == "true" {
		status, err := s.surface.GetScheduleStatus(slug)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}
	items, err := s.surface.ListScheduleItems(slug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleSchedulePost(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	var body struct {
		Item       *workspace.ScheduleItem `json:"item,omitempty"`
		Constraint *struct {
			ActivityID string `json:"activity_id"`
			Title      string `json:"title"`
			Notes      string `json:"notes"`
		} `json:"constraint,omitempty"`
		Close *struct {
			ItemID string `json:"item_id"`
			Status string `json:"status"`
			Reason string `json:"reason"`
		} `json:"close,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &invalidJSON{err})
		return
	}
	switch {
	case body.Item != nil:
		saved, err := s.surface.UpsertScheduleItem(slug, *body.Item)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	case body.Constraint != nil:
		saved, err := s.surface.SetScheduleConstraint(slug, body.Constraint.ActivityID, body.Constraint.Title, body.Constraint.Notes)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	case body.Close != nil:
		saved, err := s.surface.CloseScheduleItem(slug, body.Close.ItemID, body.Close.Status, body.Close.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, &invalidJSON{nil})
	}
}

func (s *Server) handleScheduleTimeline(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	month := r.URL.Query().Get("month")
	includeEmpty := r.URL.Query().Get("include_empty_days") == "true"
	timeline, err := s.surface.GetScheduleTimeline(slug, month, includeEmpty)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregator.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleAwareness serves the same composed snapshot as handleState under
// the system/awareness alias spec §4.G lists separately from command-center
// state; both read the Aggregator's one cached view.
func (s *Server) handleAwareness(w http.ResponseWriter, r *http.Request) {
	s.handleState(w, r)
}

func (s *Server) handleProjectSummary(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	snap, err := s.aggregator.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	for _, p := range snap.Projects {
		if p.Slug == slug {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, &tools.NotFound{Kind_: "project", Token: slug})
}

func (s *Server) handleNodeStatus(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	agent, err := s.registry.FindByProjectSlug(slug)
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := s.heartbeat.Status(agent, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	messages, err := s.conversations.List(slug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// handleConversationSend enforces the chain-of-command guard (spec §4.H)
// before appending to the target project's transcript: the target must be
// registered, not archived, a project-role agent, and the request must
// originate from the command-center UI.
func (s *Server) handleConversationSend(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	var body struct {
		Message string `json:"message"`
		Source  string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &invalidJSON{err})
		return
	}

	var target *fleet.Agent
	if agent, err := s.registry.FindByProjectSlug(slug); err == nil {
		target = &agent
	}
	if err := fleet.GuardConversationSend(target, body.Source); err != nil {
		writeError(w, err)
		return
	}

	msg, err := s.conversations.Append(slug, body.Source, body.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleFleetRegistry(w http.ResponseWriter, r *http.Request) {
	agents, err := s.registry.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	var req actionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &invalidJSON{err})
		return
	}
	result, err := s.dispatcher.Dispatch(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectSlug string             `json:"project_slug"`
		LoopState   string             `json:"loop_state"`
		Summary     string             `json:"summary"`
		Metrics     map[string]float64 `json:"metrics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &invalidJSON{err})
		return
	}
	err := s.heartbeat.Write(body.ProjectSlug, heartbeatFrom(body.LoopState, body.Summary, body.Metrics))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// invalidJSON wraps a body-decode failure as an InvalidArgument.
type invalidJSON struct{ err error }

func (e *invalidJSON) Error() string {
	if e.err == nil {
		return "invalid argument: request body"
	}
	return "invalid request body: " + e.err.Error()
}
func (e *invalidJSON) Kind() tools.Kind { return tools.KindInvalidArgument }
