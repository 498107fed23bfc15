package api

import "github.com/wardrobe-labs/concierge/pkg/database"

// ChatResponse is returned by POST /api/chat.
type ChatResponse struct {
	Success          bool           `json:"success"`
	MessageID        string         `json:"message_id"`
	ConversationID   string         `json:"conversation_id"`
	Response         string         `json:"response"`
	AgentID          string         `json:"agent_id"`
	Confidence       float64        `json:"confidence"`
	IntentType       string         `json:"intent_type,omitempty"`
	NextAction       string         `json:"next_action"`
	SuggestedAgents  []string       `json:"suggested_agents,omitempty"`
	RequiresHuman    bool           `json:"requires_human"`
	EscalationReason string         `json:"escalation_reason,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Timestamp        string         `json:"timestamp"`
}

// HealthCheck is one component's health inside HealthResponse.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version"`
	Checks   map[string]HealthCheck `json:"checks"`
	Database *database.HealthStatus `json:"database,omitempty"`
}
