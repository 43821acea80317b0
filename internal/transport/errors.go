package transport

import (
	"encoding/json"
	"net/http"

	"github.com/antigravity-dev/maestro/internal/fleet"
	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/antigravity-dev/maestro/internal/tools"
)

// errorEnvelope is the normative error response shape (spec §6):
// {error:{kind, message, detail?}}.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusForKind maps the normative error taxonomy to HTTP status.
func statusForKind(kind tools.Kind) int {
	switch kind {
	case tools.KindInvalidArgument, tools.KindUnsupportedAction:
		return http.StatusBadRequest
	case tools.KindNotFound:
		return http.StatusNotFound
	case tools.KindConflict:
		return http.StatusConflict
	case tools.KindCorrupt:
		return http.StatusInternalServerError
	case tools.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// classify assigns a Kind to errors that predate the tool surface's
// taxonomy (fleet's chain-of-command guard, raw lock conflicts) before
// falling back to tools.ClassifyErr for everything else.
func classify(err error) tools.Kind {
	switch err.(type) {
	case *fleet.Forbidden:
		return tools.KindForbidden
	case *fleet.Conflict:
		return tools.KindConflict
	case *fleet.NotFound:
		return tools.KindNotFound
	}
	if err == jsonstore.ErrConflict {
		return tools.KindConflict
	}
	if kind := tools.ClassifyErr(err); kind != "" {
		return kind
	}
	return tools.KindInternal
}

// writeError classifies err and writes the matching envelope + status.
func writeError(w http.ResponseWriter, err error) {
	kind := classify(err)
	writeJSON(w, statusForKind(kind), errorEnvelope{Error: errorBody{
		Kind:    string(kind),
		Message: err.Error(),
	}})
}
