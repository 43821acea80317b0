package fleet

// Forbidden is returned by the chain-of-command guard for any rejected
// write.
type Forbidden struct {
	Reason string
}

func (e *Forbidden) Error() string { return "forbidden: " + e.Reason }

// GuardConversationSend enforces the command-send endpoint's
// chain-of-command rule: the target must be registered, not archived,
// a project-role agent, and the request must originate from the
// command-center UI.
func GuardConversationSend(target *Agent, source string) error {
	if target == nil {
		return &Forbidden{Reason: "target is not registered"}
	}
	if target.Archived {
		return &Forbidden{Reason: "target is archived"}
	}
	if target.Role != RoleProject {
		return &Forbidden{Reason: "target is not a project role"}
	}
	if source != "command_center_ui" {
		return &Forbidden{Reason: "source must be command_center_ui"}
	}
	return nil
}

// GuardProjectWrite enforces that the commander role may orchestrate but
// never write directly to a project store; writes must originate from
// that project's own agent_id.
func GuardProjectWrite(writerAgent Agent, targetProjectSlug string) error {
	if writerAgent.Role == RoleCommander {
		return &Forbidden{Reason: "commander cannot write to a project store"}
	}
	if writerAgent.ProjectSlug != targetProjectSlug {
		return &Forbidden{Reason: "agent is not scoped to this project"}
	}
	return nil
}
