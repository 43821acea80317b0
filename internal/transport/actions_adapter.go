package transport

import (
	"github.com/antigravity-dev/maestro/internal/actions"
	"github.com/antigravity-dev/maestro/internal/directive"
	"github.com/antigravity-dev/maestro/internal/fleet"
)

// actionsRequest is the wire shape of POST /api/command-center/actions;
// it mirrors actions.Request field-for-field but stays local so the
// transport package owns its own JSON contract independent of the
// dispatcher's internal Go types.
type actionsRequest struct {
	Action       string               `json:"action"`
	ProjectSlug  string               `json:"project_slug"`
	AgentID      string               `json:"agent_id"`
	Directive    *directive.Directive `json:"directive,omitempty"`
	DirectiveID  string               `json:"directive_id,omitempty"`
	SourcePath   string               `json:"source_path,omitempty"`
	NewStoreRoot string               `json:"new_store_root,omitempty"`
	ProjectName  string               `json:"project_name,omitempty"`
	Fix          bool                 `json:"fix,omitempty"`
}

func (r actionsRequest) toDomain() actions.Request {
	return actions.Request{
		Action:       actions.Name(r.Action),
		ProjectSlug:  r.ProjectSlug,
		AgentID:      r.AgentID,
		Directive:    r.Directive,
		DirectiveID:  r.DirectiveID,
		SourcePath:   r.SourcePath,
		NewStoreRoot: r.NewStoreRoot,
		ProjectName:  r.ProjectName,
		Fix:          r.Fix,
	}
}

func heartbeatFrom(loopState, summary string, metrics map[string]float64) fleet.Heartbeat {
	state := fleet.LoopState(loopState)
	switch state {
	case fleet.LoopIdle, fleet.LoopComputing, fleet.LoopBlocked:
	default:
		state = fleet.LoopIdle
	}
	return fleet.Heartbeat{LoopState: state, Summary: summary, Metrics: metrics}
}
