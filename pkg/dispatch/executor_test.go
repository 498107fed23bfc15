package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardrobe-labs/concierge/pkg/agent"
	"github.com/wardrobe-labs/concierge/pkg/models"
)

// stubAgent is a scriptable agent for executor and dispatcher tests.
type stubAgent struct {
	id      string
	delay   time.Duration
	err     error
	respond func(msg *models.Message) *models.AgentResponse
}

func (a *stubAgent) ID() string   { return a.id }
func (a *stubAgent) Type() string { return "stub" }

func (a *stubAgent) Capabilities() []string { return []string{"测试"} }

func (a *stubAgent) Handle(ctx context.Context, msg *models.Message, _ map[string]any) (*models.AgentResponse, error) {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	if a.respond != nil {
		return a.respond(msg), nil
	}
	return models.NewAgentResponse(a.id, "来自"+a.id+"的回复", 0.9), nil
}

func newTestRegistry(t *testing.T, agents ...agent.Agent) *agent.Registry {
	t.Helper()
	reg := agent.NewRegistry()
	for _, a := range agents {
		require.NoError(t, reg.Register(a))
	}
	return reg
}

func parallelTask(primary string, supports ...string) *models.CollaborationTask {
	msg := models.NewMessage("测试消息", "user-1", "conv-1")
	return &models.CollaborationTask{
		TaskID:        "collab-test",
		WorkflowType:  models.WorkflowParallel,
		PrimaryAgent:  primary,
		SupportAgents: supports,
		Message:       msg.Serialized(),
		Priority:      models.TaskPriorityNormal,
		Context:       map[string]any{},
	}
}

func TestExecuteParallelPreservesRecommendationOrder(t *testing.T) {
	// Completion order is knowledge, styling, sales; the result list must
	// still be primary first, then supports in recommendation order.
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentSales, delay: 200 * time.Millisecond},
		&stubAgent{id: models.AgentKnowledge, delay: 10 * time.Millisecond},
		&stubAgent{id: models.AgentStyling, delay: 50 * time.Millisecond},
	)
	exec := NewExecutor(reg, time.Second, nil)

	msg := models.NewMessage("测试消息", "user-1", "conv-1")
	result := exec.Execute(context.Background(), parallelTask(models.AgentSales, models.AgentKnowledge, models.AgentStyling), msg)

	require.True(t, result.Success)
	require.Len(t, result.Results, 3)
	assert.Equal(t, models.AgentSales, result.Results[0].AgentID)
	assert.Equal(t, models.RolePrimary, result.Results[0].Role)
	assert.Equal(t, models.AgentKnowledge, result.Results[1].AgentID)
	assert.Equal(t, models.AgentStyling, result.Results[2].AgentID)
}

func TestExecuteSequentialDerivesSupportMessage(t *testing.T) {
	var salesSaw *models.Message
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentStyling, respond: func(*models.Message) *models.AgentResponse {
			return models.NewAgentResponse(models.AgentStyling, "建议搭配白衬衫和牛仔裤", 0.9)
		}},
		&stubAgent{id: models.AgentSales, respond: func(msg *models.Message) *models.AgentResponse {
			salesSaw = msg
			return models.NewAgentResponse(models.AgentSales, "为您找到相关商品", 0.85)
		}},
	)
	exec := NewExecutor(reg, time.Second, nil)

	msg := models.NewMessage("约会怎么穿", "user-1", "conv-1")
	task := parallelTask(models.AgentStyling, models.AgentSales)
	task.WorkflowType = models.WorkflowSequential
	result := exec.Execute(context.Background(), task, msg)

	require.True(t, result.Success)
	require.NotNil(t, salesSaw)
	assert.Equal(t, "建议搭配白衬衫和牛仔裤", salesSaw.Content)
	assert.Equal(t, models.AgentStyling, salesSaw.Metadata["source_agent"])
	assert.Contains(t, salesSaw.Metadata, "primary_response")
	assert.Contains(t, salesSaw.Metadata, "original_message")
	// The original message is untouched.
	assert.Equal(t, "约会怎么穿", msg.Content)
	assert.NotContains(t, msg.Metadata, "source_agent")
}

func TestExecuteSafetyNetAppendsSalesForStylingPrimary(t *testing.T) {
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentStyling},
		&stubAgent{id: models.AgentSales},
		&stubAgent{id: models.AgentKnowledge},
	)
	exec := NewExecutor(reg, time.Second, nil)

	msg := models.NewMessage("怎么搭配", "user-1", "conv-1")
	task := parallelTask(models.AgentStyling, models.AgentKnowledge)
	result := exec.Execute(context.Background(), task, msg)

	require.True(t, result.Success)
	assert.Equal(t, models.WorkflowSequential, result.WorkflowType)
	assert.Equal(t, []string{models.AgentStyling, models.AgentKnowledge, models.AgentSales},
		result.ParticipatingAgents())
}

func TestExecuteIsolatesSupportFailure(t *testing.T) {
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentSales},
		&stubAgent{id: models.AgentKnowledge, err: errors.New("backend down")},
	)
	exec := NewExecutor(reg, time.Second, nil)

	msg := models.NewMessage("测试消息", "user-1", "conv-1")
	result := exec.Execute(context.Background(), parallelTask(models.AgentSales, models.AgentKnowledge), msg)

	require.True(t, result.Success)
	require.Len(t, result.Results, 2)
	assert.False(t, result.Results[0].Failed())
	assert.True(t, result.Results[1].Failed())
	assert.Contains(t, result.Results[1].Error, "backend down")
}

func TestExecutePrimaryFailureMarksResultUnsuccessful(t *testing.T) {
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentSales, err: errors.New("llm unavailable")},
		&stubAgent{id: models.AgentKnowledge},
	)
	exec := NewExecutor(reg, time.Second, nil)

	msg := models.NewMessage("测试消息", "user-1", "conv-1")
	result := exec.Execute(context.Background(), parallelTask(models.AgentSales, models.AgentKnowledge), msg)

	assert.False(t, result.Success)
	assert.True(t, result.Results[0].Failed())
}

func TestExecuteTimeoutYieldsTimeoutEntry(t *testing.T) {
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentSales, delay: 500 * time.Millisecond},
	)
	exec := NewExecutor(reg, 20*time.Millisecond, nil)

	msg := models.NewMessage("测试消息", "user-1", "conv-1")
	result := exec.Execute(context.Background(), parallelTask(models.AgentSales), msg)

	assert.False(t, result.Success)
	assert.Equal(t, errTimeout, result.Results[0].Error)
}

func TestExecuteCancelledTurnYieldsCancelledEntries(t *testing.T) {
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentSales, delay: time.Second},
	)
	exec := NewExecutor(reg, 5*time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	msg := models.NewMessage("测试消息", "user-1", "conv-1")
	result := exec.Execute(ctx, parallelTask(models.AgentSales), msg)

	assert.Equal(t, errCancelled, result.Results[0].Error)
}

func TestExecuteUnknownAgent(t *testing.T) {
	reg := newTestRegistry(t, &stubAgent{id: models.AgentSales})
	exec := NewExecutor(reg, time.Second, nil)

	msg := models.NewMessage("测试消息", "user-1", "conv-1")
	result := exec.Execute(context.Background(), parallelTask(models.AgentSales, "ghost_agent"), msg)

	require.Len(t, result.Results, 2)
	assert.Equal(t, errAgentNotFound, result.Results[1].Error)
}

func TestBuildTaskDefaults(t *testing.T) {
	msg := models.NewMessage("测试消息", "user-1", "conv-1")
	analysis := &models.CollaborationAnalysis{
		RecommendedAgents: []models.RecommendedAgent{
			{AgentID: models.AgentSales, Role: models.RolePrimary, Priority: 1},
			{AgentID: models.AgentKnowledge, Role: models.RoleSupport, Priority: 2},
		},
	}
	task := BuildTask(analysis, msg, nil)

	assert.NotEmpty(t, task.TaskID)
	assert.Equal(t, models.AgentSales, task.PrimaryAgent)
	assert.Equal(t, []string{models.AgentKnowledge}, task.SupportAgents)
	// Invalid mode with supports present defaults to parallel.
	assert.Equal(t, models.WorkflowParallel, task.WorkflowType)
	assert.Equal(t, models.TaskPriorityNormal, task.Priority)
	assert.NotNil(t, task.Context)
	assert.Equal(t, "测试消息", task.Message["content"])
}
