// Package dispatch is the collaboration core: it decides which agents
// handle a turn, runs them in the chosen arrangement, and fuses their
// outputs into one user-facing response.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wardrobe-labs/concierge/pkg/jsonx"
	"github.com/wardrobe-labs/concierge/pkg/llm"
	"github.com/wardrobe-labs/concierge/pkg/models"
	"github.com/wardrobe-labs/concierge/pkg/session"
)

// Bounds on the session-context projection embedded in the analysis
// prompt. Larger structures are cut down with a sentinel so a bloated
// context can never blow up the prompt.
const (
	projectionMaxDepth = 3
	projectionMaxList  = 50
	projectionMaxBytes = 4096

	truncationSentinel = "\n(上下文过长，已截断)"
)

// Completer is the slice of the LLM service the analyzer needs.
type Completer interface {
	AgentCompletion(ctx context.Context, agentID string, messages []llm.Message) (*llm.Response, error)
}

// Analyzer produces a routing decision for each turn: LLM analysis first,
// then the deterministic override rules. It never fails; every error path
// degrades to the reception-only default.
type Analyzer struct {
	completer Completer
	logger    *slog.Logger
}

// NewAnalyzer creates an analyzer. A nil completer skips LLM analysis and
// relies on the default plus override rules alone.
func NewAnalyzer(completer Completer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{completer: completer, logger: logger.With("component", "analyzer")}
}

// Analyze returns the collaboration decision for one turn.
func (a *Analyzer) Analyze(ctx context.Context, msg *models.Message, sess *session.Session) *models.CollaborationAnalysis {
	analysis := a.llmAnalysis(ctx, msg, sess)
	analysis = applyOverrides(msg, analysis, sess)
	a.repairPrimary(analysis)
	return analysis
}

func (a *Analyzer) llmAnalysis(ctx context.Context, msg *models.Message, sess *session.Session) *models.CollaborationAnalysis {
	if a.completer == nil {
		return models.DefaultAnalysis("llm_unavailable")
	}

	var sessionContext map[string]any
	if sess != nil {
		sessionContext = sess.ContextSnapshot()
	}
	resp, err := a.completer.AgentCompletion(ctx, "collaboration_analyzer", []llm.Message{
		{Role: llm.RoleSystem, Content: "你是负责客户服务协作分析的系统。"},
		{Role: llm.RoleUser, Content: a.analysisPrompt(msg, sessionContext)},
	})
	if err != nil {
		a.logger.Warn("collaboration analysis call failed, using default", "error", err)
		return models.DefaultAnalysis("fallback")
	}

	fields, ok := jsonx.ExtractObject(resp.Content)
	if !ok {
		a.logger.Warn("collaboration analysis returned unparseable output, using default")
		return models.DefaultAnalysis("fallback")
	}
	return a.normalize(fields)
}

func (a *Analyzer) analysisPrompt(msg *models.Message, sessionContext map[string]any) string {
	contextJSON := boundedJSON(map[string]any{
		"message": msg.Serialized(),
		"context": sessionContext,
	})

	var sb strings.Builder
	sb.WriteString("你是客户服务系统中的协作调度器，任务是判断是否需要让多个代理协作，并给出结构化 JSON 建议。\n\n")
	sb.WriteString(`请严格输出如下 JSON 结构：
{
  "requires_collaboration": true|false,
  "reason": "为什么需要或不需要协作",
  "collaboration_mode": "single|parallel|sequential",
  "recommended_agents": [
    { "agent_id": "reception_agent|sales_agent|order_agent|knowledge_agent|styling_agent", "role": "primary|support" }
  ]
}

`)
	fmt.Fprintf(&sb, "上下文：\n%s\n", contextJSON)
	return sb.String()
}

// normalize converts loosely-shaped analysis JSON into a valid
// CollaborationAnalysis: unknown agents dropped, exactly one primary,
// priorities assigned in listing order.
func (a *Analyzer) normalize(fields map[string]any) *models.CollaborationAnalysis {
	requires, _ := fields["requires_collaboration"].(bool)
	reason, _ := fields["reason"].(string)
	mode := models.WorkflowMode(stringValue(fields["collaboration_mode"]))

	var recommended []models.RecommendedAgent
	havePrimary := false
	if rawList, ok := fields["recommended_agents"].([]any); ok {
		for _, raw := range rawList {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			agentID := stringValue(entry["agent_id"])
			if agentID == "" {
				agentID = stringValue(entry["id"])
			}
			if !models.IsKnownAgent(agentID) {
				continue
			}
			role := models.AgentRole(stringValue(entry["role"]))
			if role != models.RolePrimary && role != models.RoleSupport {
				if havePrimary {
					role = models.RoleSupport
				} else {
					role = models.RolePrimary
				}
			}
			if role == models.RolePrimary {
				if havePrimary {
					role = models.RoleSupport
				}
				havePrimary = true
			}
			recommended = append(recommended, models.RecommendedAgent{AgentID: agentID, Role: role})
		}
	}
	if len(recommended) == 0 {
		return models.DefaultAnalysis("fallback")
	}
	if !havePrimary {
		recommended[0].Role = models.RolePrimary
	}
	// Priority 1 for the primary, 2+ for supports in listing order.
	next := 2
	for i := range recommended {
		if recommended[i].Role == models.RolePrimary {
			recommended[i].Priority = 1
			continue
		}
		recommended[i].Priority = next
		next++
	}

	if !mode.IsValid() {
		if len(recommended) > 1 {
			mode = models.WorkflowParallel
		} else {
			mode = models.WorkflowSingle
		}
	}
	if reason == "" {
		reason = "llm_analysis"
	}
	return &models.CollaborationAnalysis{
		RequiresCollaboration: requires || len(recommended) > 1,
		Reason:                reason,
		Mode:                  mode,
		RecommendedAgents:     recommended,
		TaskPriority:          models.TaskPriorityNormal,
		FallbackAgent:         models.AgentReception,
	}
}

// repairPrimary restores the exactly-one-primary invariant should an
// override leave the analysis without one.
func (a *Analyzer) repairPrimary(analysis *models.CollaborationAnalysis) {
	if analysis.Primary() != nil {
		return
	}
	a.logger.Warn("analysis lost its primary agent, inserting reception")
	analysis.RecommendedAgents = append([]models.RecommendedAgent{
		{AgentID: models.AgentReception, Role: models.RolePrimary, Priority: 1},
	}, analysis.RecommendedAgents...)
	if len(analysis.RecommendedAgents) == 1 {
		analysis.Mode = models.WorkflowSingle
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// boundedJSON renders the prompt context with depth, list and byte bounds
// applied, truncating with a sentinel when the rendering is still too big.
func boundedJSON(obj map[string]any) string {
	sanitized := sanitizeForJSON(obj, 0)
	data, err := json.MarshalIndent(sanitized, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", obj)
	}
	text := string(data)
	if len(text) > projectionMaxBytes {
		// Back off to a rune boundary so the cut never splits a multibyte
		// character.
		cut := projectionMaxBytes
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		return text[:cut] + truncationSentinel
	}
	return text
}

func sanitizeForJSON(v any, depth int) any {
	if depth > projectionMaxDepth {
		return fmt.Sprintf("%v", v)
	}
	switch value := v.(type) {
	case nil, string, bool, int, int64, float64:
		return value
	case time.Time:
		return value.Format(time.RFC3339)
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = sanitizeForJSON(item, depth+1)
		}
		return out
	case []any:
		if len(value) > projectionMaxList {
			value = value[:projectionMaxList]
		}
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = sanitizeForJSON(item, depth+1)
		}
		return out
	case []string:
		if len(value) > projectionMaxList {
			value = value[:projectionMaxList]
		}
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}
