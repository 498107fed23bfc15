package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardrobe-labs/concierge/pkg/models"
)

func successfulResult(entries ...models.AgentResult) *models.CollaborationResult {
	return &models.CollaborationResult{
		Success:      true,
		TaskID:       "collab-test",
		WorkflowType: models.WorkflowConsultation,
		Results:      entries,
		FinalContext: map[string]any{},
	}
}

func okEntry(agentID string, role models.AgentRole, content string) models.AgentResult {
	return models.AgentResult{
		AgentID:  agentID,
		Role:     role,
		Response: models.NewAgentResponse(agentID, content, 0.9),
	}
}

func TestFusePrimaryDrivesResponse(t *testing.T) {
	fuser := NewFuser(nil)
	result := successfulResult(
		okEntry(models.AgentSales, models.RolePrimary, "为您推荐三款衬衫"),
		okEntry(models.AgentKnowledge, models.RoleSupport, "纯棉面料更透气"),
	)

	fused := fuser.Fuse(result, nil)

	assert.Equal(t, models.AgentSales, fused.AgentID)
	assert.Equal(t, "为您推荐三款衬衫", fused.Content)
	assert.InDelta(t, 0.9, fused.Confidence, 0.001)

	info, ok := fused.Metadata["collaboration_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "collab-test", info["task_id"])
	assert.Equal(t, []string{models.AgentSales, models.AgentKnowledge}, info["participating_agents"])

	supports, ok := info["support_contents"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, supports, 1)
	assert.Equal(t, models.AgentKnowledge, supports[0]["agent_id"])
	assert.Equal(t, "纯棉面料更透气", supports[0]["content"])
	// Support content never leaks into the main text outside the
	// styling-sequential special case.
	assert.NotContains(t, fused.Content, "纯棉面料更透气")
}

func TestFuseSequentialStylingAppendsSalesContent(t *testing.T) {
	fuser := NewFuser(nil)
	result := successfulResult(
		okEntry(models.AgentStyling, models.RolePrimary, "建议选择简约风白衬衫"),
		okEntry(models.AgentSales, models.RoleSupport, "1. 白衬衫 经典款式"),
	)
	result.WorkflowType = models.WorkflowSequential

	fused := fuser.Fuse(result, nil)

	assert.Equal(t, models.AgentStyling, fused.AgentID)
	assert.Equal(t, "建议选择简约风白衬衫"+sequentialSalesSeparator+"1. 白衬衫 经典款式", fused.Content)
}

func TestFuseClampsOutOfRangeConfidence(t *testing.T) {
	fuser := NewFuser(nil)
	for _, reported := range []float64{1.5, -0.3} {
		result := successfulResult(models.AgentResult{
			AgentID: models.AgentSales,
			Role:    models.RolePrimary,
			Response: &models.AgentResponse{
				AgentID:    models.AgentSales,
				Content:    "为您推荐三款衬衫",
				Confidence: reported,
				Metadata:   map[string]any{},
			},
		})

		fused := fuser.Fuse(result, nil)

		assert.GreaterOrEqual(t, fused.Confidence, 0.0)
		assert.LessOrEqual(t, fused.Confidence, 1.0)
	}
}

func TestFuseFailedResultReturnsRetry(t *testing.T) {
	fuser := NewFuser(nil)
	result := successfulResult(models.AgentResult{
		AgentID: models.AgentSales, Role: models.RolePrimary, Error: "timeout",
	})
	result.Success = false

	fused := fuser.Fuse(result, nil)

	assert.Equal(t, SystemAgentID, fused.AgentID)
	assert.Equal(t, models.NextActionRetry, fused.NextAction)
	assert.InDelta(t, 0.5, fused.Confidence, 0.001)
	assert.Equal(t, true, fused.Metadata["error"])
	assert.Contains(t, fused.Metadata, "collaboration_result")
}

func TestFuseEmptyResultsAsksToClarify(t *testing.T) {
	fuser := NewFuser(nil)
	fused := fuser.Fuse(successfulResult(), nil)

	assert.Equal(t, models.NextActionClarify, fused.NextAction)
	assert.InDelta(t, 0.3, fused.Confidence, 0.001)
}

func TestFuseRecordsHandoff(t *testing.T) {
	fuser := NewFuser(nil)
	sess := newTestSession(t)

	primary := okEntry(models.AgentReception, models.RolePrimary, "我可以为您转接到销售助手")
	primary.Response.NextAction = models.NextActionTransfer
	primary.Response.SuggestedAgents = []string{"sales"}

	fuser.Fuse(successfulResult(primary), sess)

	pending, target := sess.Handoff()
	assert.True(t, pending)
	assert.Equal(t, models.AgentSales, target)
}

func TestFuseIgnoresUnknownHandoffTarget(t *testing.T) {
	fuser := NewFuser(nil)
	sess := newTestSession(t)

	primary := okEntry(models.AgentReception, models.RolePrimary, "建议人工处理")
	primary.Response.NextAction = models.NextActionTransfer
	primary.Response.SuggestedAgents = []string{"human_supervisor"}

	fuser.Fuse(successfulResult(primary), sess)

	pending, _ := sess.Handoff()
	assert.False(t, pending)
}

func TestFuseIsDeterministic(t *testing.T) {
	fuser := NewFuser(nil)
	result := successfulResult(
		okEntry(models.AgentSales, models.RolePrimary, "为您推荐三款衬衫"),
		okEntry(models.AgentKnowledge, models.RoleSupport, "纯棉面料更透气"),
	)

	first := fuser.Fuse(result, nil)
	second := fuser.Fuse(result, nil)

	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.AgentID, second.AgentID)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.NextAction, second.NextAction)
	assert.Equal(t, first.Metadata["collaboration_info"], second.Metadata["collaboration_info"])
}

func TestNormalizeAgentID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sales", models.AgentSales},
		{"Sales", models.AgentSales},
		{"订单", models.AgentOrder},
		{"穿搭", models.AgentStyling},
		{"knowledge_agent", models.AgentKnowledge},
		{"unknown_specialist", "unknown_specialist"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAgentID(tt.in), tt.in)
	}
}
