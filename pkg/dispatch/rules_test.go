package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardrobe-labs/concierge/pkg/models"
	"github.com/wardrobe-labs/concierge/pkg/session"
)

func newTestSession(t *testing.T, currentAgents ...string) *session.Session {
	t.Helper()
	store := session.NewStore(nil)
	sess := store.GetOrCreate("user-1", "conv-1")
	if len(currentAgents) > 0 {
		result := &models.CollaborationResult{Success: true, Results: nil}
		for _, id := range currentAgents {
			result.Results = append(result.Results, models.AgentResult{
				AgentID: id, Role: models.RoleSupport,
				Response: models.NewAgentResponse(id, "ok", 0.9),
			})
		}
		result.Results[0].Role = models.RolePrimary
		store.Update(sess,
			models.NewMessage("历史消息", "user-1", "conv-1"),
			models.NewAgentResponse(currentAgents[0], "ok", 0.9),
			result)
	}
	return sess
}

func runOverrides(content string, analysis *models.CollaborationAnalysis, sess *session.Session) *models.CollaborationAnalysis {
	return applyOverrides(models.NewMessage(content, "user-1", "conv-1"), analysis, sess)
}

func primaryOf(t *testing.T, analysis *models.CollaborationAnalysis) string {
	t.Helper()
	primary := analysis.Primary()
	require.NotNil(t, primary)
	return primary.AgentID
}

func TestSalesIntentAddsKnowledgeSupport(t *testing.T) {
	// The LLM suggested sales alone; the override keeps sales in front and
	// adds knowledge as parallel support in consultation mode.
	analysis := &models.CollaborationAnalysis{
		Mode: models.WorkflowSingle,
		RecommendedAgents: []models.RecommendedAgent{
			{AgentID: models.AgentSales, Role: models.RolePrimary, Priority: 1},
		},
	}
	got := runOverrides("我想买一件白色衬衫，预算 300 以内", analysis, newTestSession(t))

	assert.Equal(t, models.AgentSales, primaryOf(t, got))
	assert.Equal(t, models.WorkflowConsultation, got.Mode)
	require.Len(t, got.Supports(), 1)
	support := got.Supports()[0]
	assert.Equal(t, models.AgentKnowledge, support.AgentID)
	assert.True(t, support.Parallel)
	assert.Equal(t, models.TaskPriorityHigh, got.TaskPriority)
}

func TestStylingOnlyGoesSequential(t *testing.T) {
	got := runOverrides("约会穿什么比较好？", models.DefaultAnalysis(""), newTestSession(t))

	assert.Equal(t, models.AgentStyling, primaryOf(t, got))
	assert.Equal(t, models.WorkflowSequential, got.Mode)

	supports := got.Supports()
	require.Len(t, supports, 2)
	assert.Equal(t, models.AgentSales, supports[0].AgentID)
	assert.False(t, supports[0].Parallel)
	assert.Equal(t, models.AgentKnowledge, supports[1].AgentID)
	assert.True(t, supports[1].Parallel)
}

func TestStrongOrderIntentBeatsSalesStickiness(t *testing.T) {
	sess := newTestSession(t, models.AgentSales)
	got := runOverrides("我的订单 20231215123456 还没发货", models.DefaultAnalysis(""), sess)

	assert.Equal(t, models.AgentOrder, primaryOf(t, got))
	assert.Equal(t, models.AgentOrder, got.FallbackAgent)
}

func TestOrderIntentBeatsStylingKeywords(t *testing.T) {
	// Order and styling keywords in the same utterance: order wins.
	got := runOverrides("帮我查订单物流，顺便聊聊通勤搭配", models.DefaultAnalysis(""), newTestSession(t))
	assert.Equal(t, models.AgentOrder, primaryOf(t, got))
}

func TestSalesStickinessKeepsSalesPrimary(t *testing.T) {
	sess := newTestSession(t, models.AgentSales)
	got := runOverrides("再看看还有别的吗", models.DefaultAnalysis(""), sess)

	assert.Equal(t, models.AgentSales, primaryOf(t, got))
	assert.Equal(t, models.WorkflowConsultation, got.Mode)
	assert.True(t, got.HasAgent(models.AgentKnowledge))
}

func TestSalesStickinessYieldsToExplicitStylingTransfer(t *testing.T) {
	sess := newTestSession(t, models.AgentSales)
	got := runOverrides("转穿搭，帮我看看怎么搭", models.DefaultAnalysis(""), sess)

	assert.Equal(t, models.AgentStyling, primaryOf(t, got))
	// The safety net still sequences sales behind styling.
	assert.Equal(t, models.WorkflowSequential, got.Mode)
	assert.True(t, got.HasAgent(models.AgentSales))
}

func TestHandoffConfirmationForcesTarget(t *testing.T) {
	sess := newTestSession(t)
	sess.SetHandoff(models.AgentSales)

	got := runOverrides("好的", models.DefaultAnalysis(""), sess)

	assert.Equal(t, models.AgentSales, primaryOf(t, got))
	assert.Equal(t, models.WorkflowConsultation, got.Mode)
	assert.Equal(t, models.TaskPriorityHigh, got.TaskPriority)
	pending, _ := sess.Handoff()
	assert.False(t, pending)
}

func TestHandoffConfirmationBeatsStickiness(t *testing.T) {
	// A prior styling-sequential turn leaves both styling and sales in
	// current_agents. Confirming a pending transfer to the order agent must
	// still route to order: the stickiness rules do not run once the
	// confirmation fires.
	sess := newTestSession(t, models.AgentStyling, models.AgentSales)
	sess.SetHandoff(models.AgentOrder)

	got := runOverrides("好的", models.DefaultAnalysis(""), sess)

	assert.Equal(t, models.AgentOrder, primaryOf(t, got))
	assert.Equal(t, models.AgentOrder, got.FallbackAgent)
	pending, _ := sess.Handoff()
	assert.False(t, pending)
}

func TestExplicitTransferBeatsSalesStickiness(t *testing.T) {
	// "转知识" is not in the sales-stickiness escape list; the transfer rule
	// has to settle the turn before stickiness can pull it back to sales.
	sess := newTestSession(t, models.AgentSales)
	got := runOverrides("转知识", models.DefaultAnalysis(""), sess)

	assert.Equal(t, models.AgentKnowledge, primaryOf(t, got))
}

func TestHandoffNotConfirmedStaysPending(t *testing.T) {
	sess := newTestSession(t)
	sess.SetHandoff(models.AgentKnowledge)

	runOverrides("我再想想别的", models.DefaultAnalysis(""), sess)

	pending, target := sess.Handoff()
	assert.True(t, pending)
	assert.Equal(t, models.AgentKnowledge, target)
}

func TestMixedStylingSalesPrefersSalesOnStrongKeyword(t *testing.T) {
	got := runOverrides("想买一条约会穿的裙子", models.DefaultAnalysis(""), newTestSession(t))

	assert.Equal(t, models.AgentSales, primaryOf(t, got))
	assert.Equal(t, models.WorkflowConsultation, got.Mode)
	assert.True(t, got.HasAgent(models.AgentStyling))
}

func TestMixedStylingSalesWithoutStrongKeywordLeadsStyling(t *testing.T) {
	// "衣服" is a broad sales keyword but not a strong one, so styling leads
	// with a sequential sales follow-up.
	got := runOverrides("通勤场合的衣服怎么搭", models.DefaultAnalysis(""), newTestSession(t))

	assert.Equal(t, models.AgentStyling, primaryOf(t, got))
	assert.Equal(t, models.WorkflowSequential, got.Mode)
	assert.True(t, got.HasAgent(models.AgentSales))
}

func TestStylingStickinessKeepsStylingPrimary(t *testing.T) {
	sess := newTestSession(t, models.AgentStyling, models.AgentSales)
	got := runOverrides("那鞋子呢", models.DefaultAnalysis(""), sess)

	assert.Equal(t, models.AgentStyling, primaryOf(t, got))
	assert.Equal(t, models.WorkflowSequential, got.Mode)
	assert.True(t, got.HasAgent(models.AgentSales))
}

func TestExplicitTransferToKnowledge(t *testing.T) {
	got := runOverrides("转知识，我想了解一下", models.DefaultAnalysis(""), newTestSession(t))

	assert.Equal(t, models.AgentKnowledge, primaryOf(t, got))
	assert.Equal(t, models.WorkflowConsultation, got.Mode)
	assert.Equal(t, models.AgentKnowledge, got.FallbackAgent)
}

func TestSafetyNetAppendsSalesForStylingPrimary(t *testing.T) {
	analysis := &models.CollaborationAnalysis{
		Mode: models.WorkflowParallel,
		RecommendedAgents: []models.RecommendedAgent{
			{AgentID: models.AgentStyling, Role: models.RolePrimary, Priority: 1},
			{AgentID: models.AgentKnowledge, Role: models.RoleSupport, Priority: 2, Parallel: true},
		},
	}
	// No keywords at all: only the safety net applies.
	got := runOverrides("嗯嗯", analysis, newTestSession(t))

	assert.Equal(t, models.WorkflowSequential, got.Mode)
	assert.True(t, got.HasAgent(models.AgentSales))
}

func TestOverridesLeaveNeutralMessageAlone(t *testing.T) {
	got := runOverrides("在忙吗", models.DefaultAnalysis(""), newTestSession(t))
	assert.Equal(t, models.AgentReception, primaryOf(t, got))
	assert.Equal(t, models.WorkflowSingle, got.Mode)
}
