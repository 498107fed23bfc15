package models

// AgentResult is one agent's entry in a collaboration result. Exactly one
// of Response or Error is set: invocation failures are isolated per entry
// and never abort the batch.
type AgentResult struct {
	AgentID  string         `json:"agent_id"`
	Role     AgentRole      `json:"role"`
	Response *AgentResponse `json:"response,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Failed reports whether this invocation produced an error entry.
func (r *AgentResult) Failed() bool {
	return r.Error != ""
}

// CollaborationResult aggregates every agent invocation of one turn.
// Results is ordered: the primary's entry first, then supports in
// recommendation order. Completion order is not observable here.
type CollaborationResult struct {
	Success      bool           `json:"success"`
	TaskID       string         `json:"task_id"`
	WorkflowType WorkflowMode   `json:"workflow_type"`
	Results      []AgentResult  `json:"results"`
	FinalContext map[string]any `json:"final_context"`
}

// ParticipatingAgents returns the ordered agent ids of all result entries,
// successful or not.
func (r *CollaborationResult) ParticipatingAgents() []string {
	agents := make([]string, 0, len(r.Results))
	for _, entry := range r.Results {
		agents = append(agents, entry.AgentID)
	}
	return agents
}

// PrimaryResult returns the entry with the primary role, or the last
// entry when no primary is present, or nil for an empty result set.
func (r *CollaborationResult) PrimaryResult() *AgentResult {
	for i := range r.Results {
		if r.Results[i].Role == RolePrimary {
			return &r.Results[i]
		}
	}
	if len(r.Results) == 0 {
		return nil
	}
	return &r.Results[len(r.Results)-1]
}
