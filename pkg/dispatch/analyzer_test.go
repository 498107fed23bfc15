package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardrobe-labs/concierge/pkg/llm"
	"github.com/wardrobe-labs/concierge/pkg/models"
)

// fixedCompleter always answers with the same content.
type fixedCompleter struct {
	content string
	err     error
	calls   int
}

func (c *fixedCompleter) AgentCompletion(context.Context, string, []llm.Message) (*llm.Response, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Content: c.content, Success: true}, nil
}

func neutralMessage() *models.Message {
	// No override keyword matches: the LLM decision passes through as-is.
	return models.NewMessage("这是一条普通消息", "user-1", "conv-1")
}

func TestAnalyzeParsesLLMDecision(t *testing.T) {
	completer := &fixedCompleter{content: `{
		"requires_collaboration": true,
		"reason": "需要知识补充",
		"collaboration_mode": "parallel",
		"recommended_agents": [
			{"agent_id": "knowledge_agent", "role": "primary"},
			{"agent_id": "reception_agent", "role": "support"}
		]
	}`}
	analyzer := NewAnalyzer(completer, nil)

	got := analyzer.Analyze(context.Background(), neutralMessage(), newTestSession(t))

	primary := got.Primary()
	require.NotNil(t, primary)
	assert.Equal(t, models.AgentKnowledge, primary.AgentID)
	assert.Equal(t, 1, primary.Priority)
	require.Len(t, got.Supports(), 1)
	assert.Equal(t, 2, got.Supports()[0].Priority)
	assert.Equal(t, models.WorkflowParallel, got.Mode)
}

func TestAnalyzeIsDeterministicForFixedLLMOutput(t *testing.T) {
	completer := &fixedCompleter{content: `{"collaboration_mode": "single", "recommended_agents": [{"agent_id": "knowledge_agent", "role": "primary"}]}`}
	analyzer := NewAnalyzer(completer, nil)

	first := analyzer.Analyze(context.Background(), neutralMessage(), newTestSession(t))
	second := analyzer.Analyze(context.Background(), neutralMessage(), newTestSession(t))

	assert.Equal(t, first, second)
}

func TestAnalyzeMalformedOutputFallsBack(t *testing.T) {
	completer := &fixedCompleter{content: "我觉得应该让销售来处理这个问题"}
	analyzer := NewAnalyzer(completer, nil)

	got := analyzer.Analyze(context.Background(), neutralMessage(), newTestSession(t))

	primary := got.Primary()
	require.NotNil(t, primary)
	assert.Equal(t, models.AgentReception, primary.AgentID)
	assert.Equal(t, models.WorkflowSingle, got.Mode)
	assert.Equal(t, "fallback", got.Reason)
}

func TestAnalyzeLLMErrorFallsBack(t *testing.T) {
	completer := &fixedCompleter{err: errors.New("provider down")}
	analyzer := NewAnalyzer(completer, nil)

	got := analyzer.Analyze(context.Background(), neutralMessage(), newTestSession(t))

	primary := got.Primary()
	require.NotNil(t, primary)
	assert.Equal(t, models.AgentReception, primary.AgentID)
}

func TestAnalyzeOverridesStillApplyAfterFallback(t *testing.T) {
	// Even with the LLM down, keyword overrides route the turn.
	completer := &fixedCompleter{err: errors.New("provider down")}
	analyzer := NewAnalyzer(completer, nil)

	msg := models.NewMessage("我的订单还没发货", "user-1", "conv-1")
	got := analyzer.Analyze(context.Background(), msg, newTestSession(t))

	primary := got.Primary()
	require.NotNil(t, primary)
	assert.Equal(t, models.AgentOrder, primary.AgentID)
}

func TestNormalizeDropsUnknownAgentsAndExtraPrimaries(t *testing.T) {
	completer := &fixedCompleter{content: `{
		"recommended_agents": [
			{"agent_id": "sales_agent", "role": "primary"},
			{"agent_id": "oracle_agent", "role": "primary"},
			{"agent_id": "knowledge_agent", "role": "primary"}
		]
	}`}
	analyzer := NewAnalyzer(completer, nil)

	got := analyzer.llmAnalysis(context.Background(), neutralMessage(), newTestSession(t))

	require.Len(t, got.RecommendedAgents, 2)
	assert.Equal(t, models.AgentSales, got.Primary().AgentID)
	assert.Equal(t, models.RoleSupport, got.RecommendedAgents[1].Role)
}

func TestNormalizeEmptyListFallsBack(t *testing.T) {
	completer := &fixedCompleter{content: `{"recommended_agents": [{"agent_id": "oracle_agent", "role": "primary"}]}`}
	analyzer := NewAnalyzer(completer, nil)

	got := analyzer.llmAnalysis(context.Background(), neutralMessage(), newTestSession(t))

	assert.Equal(t, models.AgentReception, got.Primary().AgentID)
	assert.Equal(t, "fallback", got.Reason)
}

func TestBoundedJSONTruncatesOversizedContext(t *testing.T) {
	big := strings.Repeat("长上下文", 4096)
	text := boundedJSON(map[string]any{"history": big})

	assert.LessOrEqual(t, len(text), projectionMaxBytes+len(truncationSentinel))
	assert.True(t, strings.HasSuffix(text, truncationSentinel))
	// The cut backs off to a rune boundary: the projection is mostly
	// Chinese text and must stay valid UTF-8 for the prompt.
	assert.True(t, utf8.ValidString(text))
}

func TestBoundedJSONLimitsDepthAndListLength(t *testing.T) {
	deep := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": map[string]any{"e": 1}}}},
	}
	text := boundedJSON(deep)
	// Depth four and below is stringified rather than expanded.
	assert.Contains(t, text, "map[")

	many := make([]any, 80)
	for i := range many {
		many[i] = i
	}
	sanitized := sanitizeForJSON(many, 0).([]any)
	assert.Len(t, sanitized, projectionMaxList)
}
