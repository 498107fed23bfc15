package models

// CollaborationTask is the executable form of an analysis: which agents
// to run, in what arrangement, against which message. Produced once per
// turn and consumed once by the executor.
type CollaborationTask struct {
	TaskID        string         `json:"task_id"`
	WorkflowType  WorkflowMode   `json:"workflow_type"`
	PrimaryAgent  string         `json:"primary_agent"`
	SupportAgents []string       `json:"support_agents"`
	Message       map[string]any `json:"message"`
	Priority      TaskPriority   `json:"priority"`
	Context       map[string]any `json:"context"`
}
