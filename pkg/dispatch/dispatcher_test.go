package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardrobe-labs/concierge/pkg/config"
	"github.com/wardrobe-labs/concierge/pkg/models"
	"github.com/wardrobe-labs/concierge/pkg/session"
)

func testTimeouts() *config.Timeouts {
	return &config.Timeouts{
		SessionIdle:     24 * time.Hour,
		Turn:            5 * time.Second,
		AgentInvocation: 2 * time.Second,
	}
}

func fullRegistry(t *testing.T) (*Dispatcher, *session.Store) {
	t.Helper()
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentReception},
		&stubAgent{id: models.AgentSales},
		&stubAgent{id: models.AgentOrder},
		&stubAgent{id: models.AgentKnowledge},
		&stubAgent{id: models.AgentStyling},
	)
	store := session.NewStore(nil)
	d := NewDispatcher(&fixedCompleter{content: `{"collaboration_mode": "single", "recommended_agents": [{"agent_id": "reception_agent", "role": "primary"}]}`},
		reg, store, testTimeouts(), nil)
	return d, store
}

func TestProcessTurnUniversalInvariants(t *testing.T) {
	d, store := fullRegistry(t)
	start := time.Now()

	msg := models.NewMessage("我想买一件白色衬衫，预算 300 以内", "user-1", "conv-1")
	resp := d.ProcessTurn(context.Background(), "user-1", msg)

	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.AgentID)
	assert.GreaterOrEqual(t, resp.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Confidence, 1.0)

	sess, ok := store.Get("user-1", "conv-1")
	require.True(t, ok)
	snapshot := sess.Clone()
	assert.False(t, snapshot.LastActive.Before(start))
	// One user record and one agent record per turn.
	assert.Len(t, snapshot.Transcript, 2)
	require.NotEmpty(t, snapshot.CurrentAgents)
	for _, id := range snapshot.CurrentAgents {
		assert.True(t, models.IsKnownAgent(id))
	}

	info, ok := resp.Metadata["collaboration_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, snapshot.CurrentAgents, info["participating_agents"])
}

func TestProcessTurnSalesWithKnowledgeSupport(t *testing.T) {
	d, _ := fullRegistry(t)

	msg := models.NewMessage("我想买一件白色衬衫，预算 300 以内", "user-1", "conv-1")
	resp := d.ProcessTurn(context.Background(), "user-1", msg)

	assert.Equal(t, models.AgentSales, resp.AgentID)
	info := resp.Metadata["collaboration_info"].(map[string]any)
	assert.Equal(t, []string{models.AgentSales, models.AgentKnowledge}, info["participating_agents"])
	supports := info["support_contents"].([]map[string]any)
	require.Len(t, supports, 1)
	assert.Equal(t, models.AgentKnowledge, supports[0]["agent_id"])
}

func TestProcessTurnStylingSequential(t *testing.T) {
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentReception},
		&stubAgent{id: models.AgentStyling, respond: func(*models.Message) *models.AgentResponse {
			return models.NewAgentResponse(models.AgentStyling, "建议简约风白衬衫", 0.9)
		}},
		&stubAgent{id: models.AgentSales, respond: func(msg *models.Message) *models.AgentResponse {
			// Sequential supports see the styling advice, not the user text.
			assert.Equal(t, "建议简约风白衬衫", msg.Content)
			return models.NewAgentResponse(models.AgentSales, "白衬衫商品清单", 0.85)
		}},
		&stubAgent{id: models.AgentKnowledge},
		&stubAgent{id: models.AgentOrder},
	)
	d := NewDispatcher(&fixedCompleter{content: "{}"}, reg, session.NewStore(nil), testTimeouts(), nil)

	msg := models.NewMessage("约会穿什么比较好？", "user-1", "conv-1")
	resp := d.ProcessTurn(context.Background(), "user-1", msg)

	assert.Equal(t, models.AgentStyling, resp.AgentID)
	assert.Contains(t, resp.Content, "建议简约风白衬衫")
	assert.Contains(t, resp.Content, sequentialSalesSeparator+"白衬衫商品清单")
}

func TestProcessTurnSerializesConversationTurns(t *testing.T) {
	// Turns within one conversation run one at a time: concurrent
	// ProcessTurn calls must never reach an agent simultaneously.
	var inFlight, overlapped atomic.Int32
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentReception, respond: func(msg *models.Message) *models.AgentResponse {
			if inFlight.Add(1) > 1 {
				overlapped.Store(1)
			}
			time.Sleep(50 * time.Millisecond)
			inFlight.Add(-1)
			return models.NewAgentResponse(models.AgentReception, "好的，我来帮您", 0.9)
		}},
		&stubAgent{id: models.AgentSales},
		&stubAgent{id: models.AgentOrder},
		&stubAgent{id: models.AgentKnowledge},
		&stubAgent{id: models.AgentStyling},
	)
	d := NewDispatcher(&fixedCompleter{content: "{}"}, reg, session.NewStore(nil), testTimeouts(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := models.NewMessage("在忙吗", "user-1", "conv-1")
			resp := d.ProcessTurn(context.Background(), "user-1", msg)
			assert.NotNil(t, resp)
		}()
	}
	wg.Wait()

	assert.Zero(t, overlapped.Load(), "agent invocations from one conversation overlapped")
}

func TestProcessTurnHandoffAcrossTurns(t *testing.T) {
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentReception, respond: func(*models.Message) *models.AgentResponse {
			resp := models.NewAgentResponse(models.AgentReception, "需要我为您转接销售助手吗？", 0.9)
			resp.NextAction = models.NextActionTransfer
			resp.SuggestedAgents = []string{"sales"}
			return resp
		}},
		&stubAgent{id: models.AgentSales},
		&stubAgent{id: models.AgentOrder},
		&stubAgent{id: models.AgentKnowledge},
		&stubAgent{id: models.AgentStyling},
	)
	store := session.NewStore(nil)
	d := NewDispatcher(&fixedCompleter{content: "{}"}, reg, store, testTimeouts(), nil)

	// Turn N: a neutral message routes to reception, which suggests sales.
	first := d.ProcessTurn(context.Background(), "user-1", models.NewMessage("这是一条普通消息", "user-1", "conv-1"))
	assert.Equal(t, models.AgentReception, first.AgentID)

	sess, ok := store.Get("user-1", "conv-1")
	require.True(t, ok)
	pending, target := sess.Handoff()
	require.True(t, pending)
	assert.Equal(t, models.AgentSales, target)

	// Turn N+1: the affirmative routes straight to the suggested agent.
	second := d.ProcessTurn(context.Background(), "user-1", models.NewMessage("好的", "user-1", "conv-1"))
	assert.Equal(t, models.AgentSales, second.AgentID)

	pending, _ = sess.Handoff()
	assert.False(t, pending)
}

func TestProcessTurnAllAgentsFailing(t *testing.T) {
	boom := errors.New("boom")
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentReception, err: boom},
		&stubAgent{id: models.AgentSales, err: boom},
		&stubAgent{id: models.AgentOrder, err: boom},
		&stubAgent{id: models.AgentKnowledge, err: boom},
		&stubAgent{id: models.AgentStyling, err: boom},
	)
	d := NewDispatcher(&fixedCompleter{content: "{}"}, reg, session.NewStore(nil), testTimeouts(), nil)

	resp := d.ProcessTurn(context.Background(), "user-1", models.NewMessage("帮我推荐商品", "user-1", "conv-1"))

	assert.Equal(t, models.NextActionHumanHandoff, resp.NextAction)
	assert.InDelta(t, 0.1, resp.Confidence, 0.001)
	assert.Equal(t, true, resp.Metadata["error"])
}

func TestProcessTurnPrimaryFailureFallsBackToReception(t *testing.T) {
	reg := newTestRegistry(t,
		&stubAgent{id: models.AgentReception, respond: func(*models.Message) *models.AgentResponse {
			return models.NewAgentResponse(models.AgentReception, "您好，请问有什么可以帮您？", 0.8)
		}},
		&stubAgent{id: models.AgentSales, err: errors.New("llm down")},
		&stubAgent{id: models.AgentOrder},
		&stubAgent{id: models.AgentKnowledge},
		&stubAgent{id: models.AgentStyling},
	)
	d := NewDispatcher(&fixedCompleter{content: "{}"}, reg, session.NewStore(nil), testTimeouts(), nil)

	resp := d.ProcessTurn(context.Background(), "user-1", models.NewMessage("帮我推荐商品", "user-1", "conv-1"))

	assert.Equal(t, models.AgentReception, resp.AgentID)
	assert.Contains(t, resp.Content, "有什么可以帮您")
}

func TestProcessTurnInvalidMessage(t *testing.T) {
	d, _ := fullRegistry(t)

	resp := d.ProcessTurn(context.Background(), "user-1", models.NewMessage("", "user-1", "conv-1"))
	assert.Equal(t, models.NextActionClarify, resp.NextAction)

	resp = d.ProcessTurn(context.Background(), "user-1", nil)
	assert.Equal(t, models.NextActionClarify, resp.NextAction)
}

func TestProcessTurnSweepRecreatesSession(t *testing.T) {
	d, store := fullRegistry(t)

	d.ProcessTurn(context.Background(), "user-1", models.NewMessage("这是一条普通消息", "user-1", "conv-1"))
	sess, ok := store.Get("user-1", "conv-1")
	require.True(t, ok)
	firstStart := sess.Clone().StartTime

	// Age the session past the idle cutoff and sweep.
	sess.LastActive = time.Now().Add(-48 * time.Hour)
	removed := store.Sweep(24 * time.Hour)
	assert.Equal(t, 1, removed)
	_, ok = store.Get("user-1", "conv-1")
	assert.False(t, ok)

	d.ProcessTurn(context.Background(), "user-1", models.NewMessage("这是一条普通消息", "user-1", "conv-1"))
	fresh, ok := store.Get("user-1", "conv-1")
	require.True(t, ok)
	snapshot := fresh.Clone()
	assert.False(t, snapshot.StartTime.Before(firstStart))
	assert.Len(t, snapshot.Transcript, 2)
}

func TestDispatcherStatsShape(t *testing.T) {
	d, _ := fullRegistry(t)
	d.ProcessTurn(context.Background(), "user-1", models.NewMessage("我想买衬衫", "user-1", "conv-1"))

	stats := d.Stats()
	require.Contains(t, stats, "dispatcher_stats")
	require.Contains(t, stats, "collaboration_stats")
	require.Contains(t, stats, "agents")
	require.Contains(t, stats, "agent_health")

	dispatcherStats := stats["dispatcher_stats"].(map[string]any)
	assert.Equal(t, 1, dispatcherStats["total_messages"])
	assert.Equal(t, 1, dispatcherStats["active_sessions"])
	assert.Equal(t, 5, dispatcherStats["total_agents"])

	agents := stats["agents"].(map[string]any)
	require.Contains(t, agents, models.AgentSales)
	sales := agents[models.AgentSales].(map[string]any)
	assert.Equal(t, 1, sales["usage_count"])
}
