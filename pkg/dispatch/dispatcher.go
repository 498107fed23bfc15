package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/wardrobe-labs/concierge/pkg/agent"
	"github.com/wardrobe-labs/concierge/pkg/config"
	"github.com/wardrobe-labs/concierge/pkg/models"
	"github.com/wardrobe-labs/concierge/pkg/session"
)

// Dispatcher drives one conversation turn end to end: session lookup,
// collaboration analysis, execution, fusion, session and metric updates.
// ProcessTurn never fails; every internal error degrades to a well-formed
// response.
type Dispatcher struct {
	analyzer *Analyzer
	executor *Executor
	fuser    *Fuser
	registry *agent.Registry
	sessions *session.Store
	metrics  *Metrics
	timeouts *config.Timeouts
	logger   *slog.Logger

	// turnObserver, when set, receives a snapshot of the session after
	// every completed turn. Used for best-effort persistence; it runs on
	// its own goroutine and never blocks the turn.
	turnObserver func(session.Snapshot)
}

// NewDispatcher wires the collaboration core together.
func NewDispatcher(completer Completer, registry *agent.Registry, sessions *session.Store, timeouts *config.Timeouts, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeouts == nil {
		timeouts = config.DefaultTimeouts()
	}
	return &Dispatcher{
		analyzer: NewAnalyzer(completer, logger),
		executor: NewExecutor(registry, timeouts.AgentInvocation, logger),
		fuser:    NewFuser(logger),
		registry: registry,
		sessions: sessions,
		metrics:  NewMetrics(),
		timeouts: timeouts,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Metrics exposes the dispatcher's counters.
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Sessions exposes the session store.
func (d *Dispatcher) Sessions() *session.Store {
	return d.sessions
}

// SetTurnObserver registers a callback invoked with the session snapshot
// after each completed turn. Must be called before the first turn.
func (d *Dispatcher) SetTurnObserver(observer func(session.Snapshot)) {
	d.turnObserver = observer
}

// ProcessTurn handles one user message and always returns a well-formed
// response. The turn is bounded by the configured turn timeout; exceeding
// it takes the same fallback path as an internal failure.
func (d *Dispatcher) ProcessTurn(ctx context.Context, userID string, msg *models.Message) *models.AgentResponse {
	start := time.Now()

	if msg == nil || msg.Content == "" || msg.ConversationID == "" {
		resp := models.NewAgentResponse(SystemAgentID, "请告诉我您想咨询的内容。", 0.3)
		resp.NextAction = models.NextActionClarify
		return resp
	}

	turnCtx, cancel := context.WithTimeout(ctx, d.timeouts.Turn)
	defer cancel()

	sess := d.sessions.GetOrCreate(userID, msg.ConversationID)
	sess.BeginTurn()
	defer sess.EndTurn()
	sess.Touch()
	snapshot := sess.ContextSnapshot()

	d.logger.Info("turn started",
		"user_id", userID, "conversation_id", msg.ConversationID, "content_length", len(msg.Content))

	analysis := d.analyzer.Analyze(turnCtx, msg, sess)
	task := BuildTask(analysis, msg, snapshot)

	sess.SetStatus(session.StatusCollaborating)
	result := d.executor.Execute(turnCtx, task, msg)
	response := d.fuser.Fuse(result, sess)

	d.sessions.Update(sess, msg, response, result)
	d.metrics.RecordTurn(result, time.Since(start))

	if d.turnObserver != nil {
		go d.turnObserver(sess.Clone())
	}

	if isError, _ := response.Metadata["error"].(bool); isError {
		response = d.fallbackTurn(ctx, userID, msg, response)
	}

	d.logger.Info("turn completed",
		"user_id", userID, "conversation_id", msg.ConversationID,
		"agent_id", response.AgentID, "workflow", task.WorkflowType,
		"elapsed", time.Since(start))
	return response
}

// fallbackTurn invokes the reception agent directly after a failed turn.
// If even that fails, the hardcoded system response asks for a human.
func (d *Dispatcher) fallbackTurn(ctx context.Context, userID string, msg *models.Message, failed *models.AgentResponse) *models.AgentResponse {
	d.logger.Error("turn failed, attempting reception fallback",
		"user_id", userID, "conversation_id", msg.ConversationID)

	// The fallback gets its own small budget: the turn context may already
	// be past its deadline.
	fallbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeouts.AgentInvocation)
	defer cancel()

	if reception, ok := d.registry.Get(models.AgentReception); ok {
		resp, err := reception.Handle(fallbackCtx, msg, map[string]any{})
		if err == nil && resp != nil {
			return resp
		}
		d.logger.Error("reception fallback failed", "error", err)
	}

	resp := models.NewAgentResponse(SystemAgentID, "抱歉，系统暂时遇到问题，请稍后重试或联系人工客服。", 0.1)
	resp.NextAction = models.NextActionHumanHandoff
	resp.Metadata["error"] = true
	if failedMsg, ok := failed.Metadata["failed_agent"]; ok {
		resp.Metadata["failed_agent"] = failedMsg
	}
	return resp
}

// SessionInfo returns a read-only snapshot for one conversation, or false
// when the session does not exist.
func (d *Dispatcher) SessionInfo(userID, conversationID string) (session.Snapshot, bool) {
	sess, ok := d.sessions.Get(userID, conversationID)
	if !ok {
		return session.Snapshot{}, false
	}
	return sess.Clone(), true
}

// Stats assembles the observability payload: global counters, per-agent
// performance, registered agent descriptions, and health.
func (d *Dispatcher) Stats() map[string]any {
	dispatcherStats := d.metrics.DispatcherStats()
	dispatcherStats["active_sessions"] = d.sessions.Count()
	dispatcherStats["total_agents"] = len(d.registry.IDs())

	agents := make(map[string]any)
	health := make(map[string]any)
	for _, agentID := range d.registry.IDs() {
		impl, ok := d.registry.Get(agentID)
		if !ok {
			continue
		}
		agents[agentID] = map[string]any{
			"agent_id":     agentID,
			"type":         impl.Type(),
			"status":       "running",
			"capabilities": impl.Capabilities(),
			"usage_count":  d.metrics.Usage(agentID),
		}
		health[agentID] = map[string]any{
			"available": true,
			"type":      impl.Type(),
		}
	}

	return map[string]any{
		"dispatcher_stats":    dispatcherStats,
		"collaboration_stats": d.metrics.CollaborationStats(),
		"agents":              agents,
		"agent_health":        health,
	}
}
