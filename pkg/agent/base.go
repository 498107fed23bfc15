package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/wardrobe-labs/concierge/pkg/jsonx"
	"github.com/wardrobe-labs/concierge/pkg/llm"
	"github.com/wardrobe-labs/concierge/pkg/models"
)

const (
	// maxMemoryExchanges bounds the per-conversation memory each agent keeps.
	maxMemoryExchanges = 10
	// promptHistoryExchanges is how many recent exchanges go into the prompt.
	promptHistoryExchanges = 3
)

// exchange is one remembered user/assistant round.
type exchange struct {
	User      string
	Assistant string
}

// base carries the machinery shared by every LLM-driven agent: the
// completion client, per-conversation memory, prompt assembly, and
// defensive parsing of the model's JSON contract.
type base struct {
	agentID   string
	agentType string
	completer Completer
	logger    *slog.Logger

	memMu  sync.Mutex
	memory map[string][]exchange
}

func newBase(agentID, agentType string, completer Completer, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		agentID:   agentID,
		agentType: agentType,
		completer: completer,
		logger:    logger.With("agent", agentID),
		memory:    make(map[string][]exchange),
	}
}

func (b *base) ID() string   { return b.agentID }
func (b *base) Type() string { return b.agentType }

// history returns the remembered exchanges for a conversation.
func (b *base) history(conversationID string) []exchange {
	b.memMu.Lock()
	defer b.memMu.Unlock()
	stored := b.memory[conversationID]
	out := make([]exchange, len(stored))
	copy(out, stored)
	return out
}

// remember appends one exchange, keeping at most maxMemoryExchanges.
func (b *base) remember(conversationID, user, assistant string) {
	b.memMu.Lock()
	defer b.memMu.Unlock()
	mem := append(b.memory[conversationID], exchange{User: user, Assistant: assistant})
	if len(mem) > maxMemoryExchanges {
		mem = mem[len(mem)-maxMemoryExchanges:]
	}
	b.memory[conversationID] = mem
}

// buildPrompt assembles the standard prompt: system instruction, recent
// history, turn context, the user message, and the JSON answer contract.
func (b *base) buildPrompt(systemPrompt string, msg *models.Message, turnContext map[string]any) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n## 当前对话上下文：\n")

	if history := b.history(msg.ConversationID); len(history) > 0 {
		sb.WriteString("### 对话历史：\n")
		start := len(history) - promptHistoryExchanges
		if start < 0 {
			start = 0
		}
		for _, ex := range history[start:] {
			fmt.Fprintf(&sb, "用户: %s\n助手: %s\n", ex.User, ex.Assistant)
		}
		sb.WriteString("\n")
	}

	if len(turnContext) > 0 {
		sb.WriteString("### 上下文信息：\n")
		for key, value := range turnContext {
			if value == nil || value == "" {
				continue
			}
			fmt.Fprintf(&sb, "- %s: %v\n", key, value)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## 用户当前消息：\n")
	sb.WriteString(msg.Content)
	sb.WriteString("\n\n## 请求：\n请根据上述信息，以JSON格式返回响应：\n")
	sb.WriteString(`{
  "content": "你的回复内容",
  "confidence": 0.8,
  "next_action": "continue/transfer/complete",
  "suggested_agents": ["如果需要转接，建议的智能体"],
  "requires_human": false
}`)
	return sb.String()
}

// generate sends the prompt and returns the model's raw text. Failures are
// degraded to an apologetic JSON payload so parsing stays uniform.
func (b *base) generate(ctx context.Context, prompt string) string {
	if b.completer == nil {
		return `{"content": "抱歉，当前无法提供智能回复服务。", "confidence": 0.0}`
	}
	resp, err := b.completer.AgentCompletion(ctx, b.agentID, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		b.logger.Error("llm completion failed", "error", err)
		return `{"content": "抱歉，我暂时无法理解您的问题。", "confidence": 0.0}`
	}
	if resp.Content == "" {
		return `{"content": "", "confidence": 0.0}`
	}
	return resp.Content
}

// generateWith is like generate but sends a separate system instruction
// and uses the caller's fallback text on failure.
func (b *base) generateWith(ctx context.Context, system, user, fallback string) string {
	if b.completer == nil {
		return fallback
	}
	resp, err := b.completer.AgentCompletion(ctx, b.agentID, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	})
	if err != nil {
		b.logger.Error("llm completion failed", "error", err)
		return fallback
	}
	if resp.Content == "" {
		return fallback
	}
	return resp.Content
}

// parseResponse extracts the JSON answer contract from raw model output.
// Prose replies without JSON are passed through at reduced confidence.
func (b *base) parseResponse(raw string) *models.AgentResponse {
	fields, ok := jsonx.ExtractObject(raw)
	if !ok {
		return models.NewAgentResponse(b.agentID, strings.ReplaceAll(raw, "**", ""), 0.5)
	}

	content := stringField(fields, "content")
	if content == "" {
		content = raw
	}
	resp := models.NewAgentResponse(b.agentID, strings.ReplaceAll(content, "**", ""), floatField(fields, "confidence", 0.8))
	if action := models.NextAction(stringField(fields, "next_action")); action.IsValid() {
		resp.NextAction = action
	}
	resp.SuggestedAgents = stringListField(fields, "suggested_agents")
	resp.RequiresHuman = boolField(fields, "requires_human")
	if reason := stringField(fields, "escalation_reason"); reason != "" {
		resp.EscalationReason = reason
	}
	if intent := stringField(fields, "intent_type"); intent != "" {
		resp.IntentType = models.IntentType(intent)
	}
	return resp
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func floatField(fields map[string]any, key string, fallback float64) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func boolField(fields map[string]any, key string) bool {
	v, _ := fields[key].(bool)
	return v
}

func stringListField(fields map[string]any, key string) []string {
	raw, ok := fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mapField(fields map[string]any, key string) map[string]any {
	m, _ := fields[key].(map[string]any)
	return m
}
