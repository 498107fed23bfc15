package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wardrobe-labs/concierge/pkg/database"
	"github.com/wardrobe-labs/concierge/pkg/models"
	"github.com/wardrobe-labs/concierge/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"

	anonymousCustomerID = "anonymous"
)

// chatHandler handles POST /api/chat: one user message in, one fused
// response out. Dispatch never fails, so the handler only rejects
// malformed requests.
func (s *Server) chatHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messageID := uuid.NewString()
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	customerID := req.CustomerID
	if customerID == "" {
		customerID = anonymousCustomerID
	}

	msg := models.NewMessage(req.Message, customerID, conversationID)
	if t := models.MessageType(req.MessageType); t.IsValid() {
		msg.Type = t
	}
	if p := models.Priority(req.Priority); p.IsValid() {
		msg.Priority = p
	}
	for k, v := range req.Context {
		msg.Metadata[k] = v
	}

	resp := s.dispatcher.ProcessTurn(c.Request.Context(), customerID, msg)

	c.JSON(http.StatusOK, &ChatResponse{
		Success:          true,
		MessageID:        messageID,
		ConversationID:   conversationID,
		Response:         resp.Content,
		AgentID:          resp.AgentID,
		Confidence:       resp.Confidence,
		IntentType:       string(resp.IntentType),
		NextAction:       string(resp.NextAction),
		SuggestedAgents:  resp.SuggestedAgents,
		RequiresHuman:    resp.RequiresHuman,
		EscalationReason: resp.EscalationReason,
		Metadata:         resp.Metadata,
		Timestamp:        resp.Timestamp.Format(time.RFC3339),
	})
}

// statsHandler handles GET /api/stats.
func (s *Server) statsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.dispatcher.Stats())
}

// sessionHandler handles GET /api/sessions/:user_id/:conversation_id.
func (s *Server) sessionHandler(c *gin.Context) {
	userID := c.Param("user_id")
	conversationID := c.Param("conversation_id")

	snapshot, ok := s.dispatcher.SessionInfo(userID, conversationID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// healthHandler handles GET /healthz. Only the process's own components
// are checked; LLM and search backends are excluded so an external outage
// does not get the process restarted.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]HealthCheck{
		"dispatcher": {Status: healthStatusHealthy},
	}
	status := healthStatusHealthy

	var dbHealth *database.HealthStatus
	if s.dbClient != nil {
		health, err := database.Health(reqCtx, s.dbClient.DB())
		dbHealth = health
		if err != nil {
			status = healthStatusUnhealthy
			checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			checks["database"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, &HealthResponse{
		Status:   status,
		Version:  version.GitCommit,
		Checks:   checks,
		Database: dbHealth,
	})
}
