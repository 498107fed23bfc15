package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardrobe-labs/concierge/pkg/agent"
	"github.com/wardrobe-labs/concierge/pkg/models"
)

const (
	errAgentNotFound = "agent_not_found"
	errTimeout       = "timeout"
	errCancelled     = "cancelled"
)

// BuildTask turns an analysis into the executable task for this turn.
func BuildTask(analysis *models.CollaborationAnalysis, msg *models.Message, turnContext map[string]any) *models.CollaborationTask {
	primary := models.AgentReception
	if p := analysis.Primary(); p != nil {
		primary = p.AgentID
	}
	var supports []string
	for _, rec := range analysis.Supports() {
		if rec.AgentID != "" {
			supports = append(supports, rec.AgentID)
		}
	}

	mode := analysis.Mode
	if !mode.IsValid() {
		if len(supports) > 0 {
			mode = models.WorkflowParallel
		} else {
			mode = models.WorkflowSingle
		}
	}
	priority := analysis.TaskPriority
	if priority == "" {
		priority = models.TaskPriorityNormal
	}
	if turnContext == nil {
		turnContext = map[string]any{}
	}

	return &models.CollaborationTask{
		TaskID:        "collab-" + uuid.NewString()[:8],
		WorkflowType:  mode,
		PrimaryAgent:  primary,
		SupportAgents: supports,
		Message:       msg.Serialized(),
		Priority:      priority,
		Context:       turnContext,
	}
}

// Executor runs a collaboration task against the registry. Every agent
// failure is isolated into its result entry; Execute itself never fails.
type Executor struct {
	registry *agent.Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewExecutor creates an executor with the given per-invocation timeout.
func NewExecutor(registry *agent.Registry, timeout time.Duration, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{registry: registry, timeout: timeout, logger: logger.With("component", "executor")}
}

// Execute runs the task's agents in the requested arrangement. The result
// list is ordered primary first, then supports in recommendation order,
// regardless of completion order.
func (e *Executor) Execute(ctx context.Context, task *models.CollaborationTask, msg *models.Message) *models.CollaborationResult {
	workflow := task.WorkflowType
	supports := task.SupportAgents

	// A styling-led turn always gets a sales follow-up: upstream rules can
	// still emit parallel for styling, the executor enforces sequential.
	if task.PrimaryAgent == models.AgentStyling && !containsString(supports, models.AgentSales) {
		supports = append(append([]string{}, supports...), models.AgentSales)
		workflow = models.WorkflowSequential
	}

	primaryEntry := e.invoke(ctx, task.PrimaryAgent, models.RolePrimary, msg, task.Context)
	results := []models.AgentResult{primaryEntry}

	if len(supports) > 0 {
		supportMsg := msg
		if workflow == models.WorkflowSequential && !primaryEntry.Failed() {
			supportMsg = deriveMessage(msg, &primaryEntry)
		}
		results = append(results, e.invokeSupports(ctx, supports, supportMsg, task.Context)...)
	}

	finalContext := make(map[string]any, len(task.Context)+2)
	maps.Copy(finalContext, task.Context)
	finalContext["workflow_type"] = string(workflow)
	finalContext["last_collaboration"] = map[string]any{
		"task_id":  task.TaskID,
		"agents":   agentIDsOf(results),
		"workflow": string(workflow),
	}

	// The turn counts as successful when the primary produced a response;
	// support failures alone never fail the collaboration.
	return &models.CollaborationResult{
		Success:      !primaryEntry.Failed(),
		TaskID:       task.TaskID,
		WorkflowType: workflow,
		Results:      results,
		FinalContext: finalContext,
	}
}

// invokeSupports runs every support concurrently and returns their entries
// in recommendation order.
func (e *Executor) invokeSupports(ctx context.Context, supports []string, msg *models.Message, turnContext map[string]any) []models.AgentResult {
	entries := make([]models.AgentResult, len(supports))
	var wg sync.WaitGroup
	for i, agentID := range supports {
		i, agentID := i, agentID
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries[i] = e.invoke(ctx, agentID, models.RoleSupport, msg, turnContext)
		}()
	}
	wg.Wait()
	return entries
}

// invoke calls one agent under the per-invocation timeout and converts any
// failure into an error entry.
func (e *Executor) invoke(ctx context.Context, agentID string, role models.AgentRole, msg *models.Message, turnContext map[string]any) models.AgentResult {
	entry := models.AgentResult{AgentID: agentID, Role: role}

	impl, ok := e.registry.Get(agentID)
	if !ok {
		entry.Error = errAgentNotFound
		e.logger.Warn("agent not registered", "agent_id", agentID)
		return entry
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := impl.Handle(callCtx, msg, turnContext)
	elapsed := time.Since(start)
	if err != nil {
		entry.Error = invocationError(err, callCtx)
		e.logger.Error("agent invocation failed",
			"agent_id", agentID, "role", role, "elapsed", elapsed, "error", err)
		return entry
	}
	if resp == nil {
		entry.Error = "empty_response"
		return entry
	}
	entry.Response = resp
	e.logger.Info("agent invocation completed",
		"agent_id", agentID, "role", role, "elapsed", elapsed, "confidence", resp.Confidence)
	return entry
}

// deriveMessage builds the message a sequential support consumes: the
// primary's content, carrying provenance in metadata.
func deriveMessage(msg *models.Message, primary *models.AgentResult) *models.Message {
	derived := msg.Clone()
	if primary.Response != nil {
		derived.Content = primary.Response.Content
		derived.Metadata["primary_response"] = primary.Response.Serialized()
	}
	derived.Metadata["source_agent"] = primary.AgentID
	derived.Metadata["original_message"] = msg.Serialized()
	return derived
}

func invocationError(err error, callCtx context.Context) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errTimeout
	case errors.Is(err, context.Canceled):
		return errCancelled
	case callCtx.Err() != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return errTimeout
	default:
		return fmt.Sprintf("invocation_failed: %v", err)
	}
}

func agentIDsOf(results []models.AgentResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.AgentID)
	}
	return ids
}

func containsString(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}
