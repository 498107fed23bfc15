package models

import "time"

// NextAction tells the dispatcher what the agent expects to happen after
// this turn.
type NextAction string

const (
	NextActionContinue     NextAction = "continue"
	NextActionTransfer     NextAction = "transfer"
	NextActionClarify      NextAction = "clarify"
	NextActionRetry        NextAction = "retry"
	NextActionComplete     NextAction = "complete"
	NextActionHumanHandoff NextAction = "human_handoff"
)

// IsValid checks if the next action is valid
func (a NextAction) IsValid() bool {
	switch a {
	case NextActionContinue, NextActionTransfer, NextActionClarify,
		NextActionRetry, NextActionComplete, NextActionHumanHandoff:
		return true
	default:
		return false
	}
}

// IntentType is a coarse classification of what the user wanted,
// reported by agents for analytics.
type IntentType string

const (
	IntentGreeting          IntentType = "greeting"
	IntentProductInquiry    IntentType = "product_inquiry"
	IntentSalesConsultation IntentType = "sales_consultation"
	IntentOrderInquiry      IntentType = "order_inquiry"
	IntentSizeConsultation  IntentType = "size_consultation"
	IntentStyleAdvice       IntentType = "style_advice"
	IntentComplaint         IntentType = "complaint"
	IntentOther             IntentType = "other"
)

// AgentResponse is the result of one agent invocation, and — after
// fusion — the single user-facing result of a turn.
type AgentResponse struct {
	Content          string         `json:"content"`
	AgentID          string         `json:"agent_id"`
	Confidence       float64        `json:"confidence"`
	NextAction       NextAction     `json:"next_action"`
	SuggestedAgents  []string       `json:"suggested_agents,omitempty"`
	RequiresHuman    bool           `json:"requires_human"`
	IntentType       IntentType     `json:"intent_type,omitempty"`
	EscalationReason string         `json:"escalation_reason,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

// NewAgentResponse creates a response with defaults applied. Confidence is
// clamped to [0, 1]; LLM replies occasionally report values outside the
// range and callers rely on the bound holding.
func NewAgentResponse(agentID, content string, confidence float64) *AgentResponse {
	return &AgentResponse{
		Content:    content,
		AgentID:    agentID,
		Confidence: ClampConfidence(confidence),
		NextAction: NextActionContinue,
		Metadata:   map[string]any{},
		Timestamp:  time.Now(),
	}
}

// ClampConfidence bounds a reported confidence score to [0, 1].
func ClampConfidence(confidence float64) float64 {
	switch {
	case confidence < 0:
		return 0
	case confidence > 1:
		return 1
	}
	return confidence
}

// Serialized returns the flat map representation stored in result
// entries and prompt context.
func (r *AgentResponse) Serialized() map[string]any {
	return map[string]any{
		"content":           r.Content,
		"agent_id":          r.AgentID,
		"confidence":        r.Confidence,
		"next_action":       string(r.NextAction),
		"suggested_agents":  r.SuggestedAgents,
		"requires_human":    r.RequiresHuman,
		"intent_type":       string(r.IntentType),
		"escalation_reason": r.EscalationReason,
		"metadata":          r.Metadata,
		"timestamp":         r.Timestamp.Format(time.RFC3339),
	}
}
