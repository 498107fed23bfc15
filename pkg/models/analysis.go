package models

// Known agent identifiers. Routing decisions only ever reference these.
const (
	AgentReception = "reception_agent"
	AgentSales     = "sales_agent"
	AgentOrder     = "order_agent"
	AgentKnowledge = "knowledge_agent"
	AgentStyling   = "styling_agent"
)

// KnownAgentIDs lists every routable agent id in a stable order.
var KnownAgentIDs = []string{
	AgentReception,
	AgentSales,
	AgentOrder,
	AgentKnowledge,
	AgentStyling,
}

// IsKnownAgent reports whether id names a registered specialist agent.
func IsKnownAgent(id string) bool {
	switch id {
	case AgentReception, AgentSales, AgentOrder, AgentKnowledge, AgentStyling:
		return true
	default:
		return false
	}
}

// AgentRole is the role an agent plays within one turn.
type AgentRole string

const (
	RolePrimary AgentRole = "primary"
	RoleSupport AgentRole = "support"
)

// WorkflowMode describes how a turn's agents are composed.
type WorkflowMode string

const (
	// WorkflowSingle runs the primary alone.
	WorkflowSingle WorkflowMode = "single"
	// WorkflowParallel runs supports concurrently on the original message.
	WorkflowParallel WorkflowMode = "parallel"
	// WorkflowSequential runs the primary first, then supports on a message
	// derived from the primary's response.
	WorkflowSequential WorkflowMode = "sequential"
	// WorkflowConsultation is a cooperative-parallel variant: the primary
	// leads and supports enrich. Execution semantics equal parallel.
	WorkflowConsultation WorkflowMode = "consultation"
)

// IsValid checks if the workflow mode is valid
func (m WorkflowMode) IsValid() bool {
	switch m {
	case WorkflowSingle, WorkflowParallel, WorkflowSequential, WorkflowConsultation:
		return true
	default:
		return false
	}
}

// TaskPriority is the scheduling priority attached to a collaboration task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityNormal TaskPriority = "normal"
	TaskPriorityHigh   TaskPriority = "high"
)

// RecommendedAgent is one entry of a collaboration recommendation.
type RecommendedAgent struct {
	AgentID  string    `json:"agent_id"`
	Role     AgentRole `json:"role"`
	Priority int       `json:"priority"`
	Parallel bool      `json:"parallel"`
}

// CollaborationAnalysis is the analyzer's routing decision for one turn.
// Invariant: exactly one entry in RecommendedAgents carries RolePrimary.
type CollaborationAnalysis struct {
	RequiresCollaboration bool               `json:"requires_collaboration"`
	Reason                string             `json:"reason"`
	Mode                  WorkflowMode       `json:"collaboration_mode"`
	RecommendedAgents     []RecommendedAgent `json:"recommended_agents"`
	TaskPriority          TaskPriority       `json:"task_priority"`
	FallbackAgent         string             `json:"fallback_agent"`
}

// Primary returns the primary recommendation, or nil if the invariant is
// violated upstream.
func (a *CollaborationAnalysis) Primary() *RecommendedAgent {
	for i := range a.RecommendedAgents {
		if a.RecommendedAgents[i].Role == RolePrimary {
			return &a.RecommendedAgents[i]
		}
	}
	return nil
}

// Supports returns the support recommendations in listing order.
func (a *CollaborationAnalysis) Supports() []RecommendedAgent {
	var supports []RecommendedAgent
	for _, rec := range a.RecommendedAgents {
		if rec.Role == RoleSupport {
			supports = append(supports, rec)
		}
	}
	return supports
}

// HasAgent reports whether id already appears in the recommendation list.
func (a *CollaborationAnalysis) HasAgent(id string) bool {
	for _, rec := range a.RecommendedAgents {
		if rec.AgentID == id {
			return true
		}
	}
	return false
}

// DefaultAnalysis is the safe routing decision used whenever LLM analysis
// fails or produces nothing usable: reception alone, single mode.
func DefaultAnalysis(reason string) *CollaborationAnalysis {
	if reason == "" {
		reason = "fallback"
	}
	return &CollaborationAnalysis{
		RequiresCollaboration: false,
		Reason:                reason,
		Mode:                  WorkflowSingle,
		RecommendedAgents: []RecommendedAgent{
			{AgentID: AgentReception, Role: RolePrimary, Priority: 1},
		},
		TaskPriority:  TaskPriorityNormal,
		FallbackAgent: AgentReception,
	}
}
