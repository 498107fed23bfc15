package dispatch

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/wardrobe-labs/concierge/pkg/models"
	"github.com/wardrobe-labs/concierge/pkg/session"
)

// SystemAgentID marks responses produced by the core itself rather than a
// specialist agent.
const SystemAgentID = "system"

// sequentialSalesSeparator introduces the sales follow-up appended under a
// styling-led sequential turn. This is the only automatic concatenation of
// support content into the main text.
const sequentialSalesSeparator = "\n\n——\n商品推荐（销售智能体）：\n"

// Fuser reduces a collaboration result to the single response the user
// sees, and records handoff intent for the next turn.
type Fuser struct {
	logger *slog.Logger
}

// NewFuser creates a fuser.
func NewFuser(logger *slog.Logger) *Fuser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fuser{logger: logger.With("component", "fuser")}
}

// Fuse selects the primary response, attaches support content and
// collaboration metadata, and updates the session's handoff state.
func (f *Fuser) Fuse(result *models.CollaborationResult, sess *session.Session) *models.AgentResponse {
	if result == nil || !result.Success {
		resp := models.NewAgentResponse(SystemAgentID, "抱歉，处理您的请求时遇到了问题，请稍后重试。", 0.5)
		resp.NextAction = models.NextActionRetry
		resp.Metadata["error"] = true
		if result != nil {
			resp.Metadata["collaboration_result"] = serializeResult(result)
		}
		return resp
	}
	if len(result.Results) == 0 {
		resp := models.NewAgentResponse(SystemAgentID, "抱歉，没有找到合适的处理方式。", 0.3)
		resp.NextAction = models.NextActionClarify
		resp.Metadata["error"] = true
		return resp
	}

	primary := result.PrimaryResult()
	if primary.Failed() || primary.Response == nil {
		f.logger.Error("primary agent failed, returning error response",
			"agent_id", primary.AgentID, "error", primary.Error)
		resp := models.NewAgentResponse(SystemAgentID, "抱歉，处理您的请求时遇到了问题，请稍后重试。", 0.5)
		resp.NextAction = models.NextActionRetry
		resp.Metadata["error"] = true
		resp.Metadata["failed_agent"] = primary.AgentID
		resp.Metadata["collaboration_result"] = serializeResult(result)
		return resp
	}

	base := primary.Response
	content := base.Content
	if content == "" {
		content = "处理完成"
	}

	// Support content rides along in metadata rather than the main text, so
	// the frontend decides what to surface.
	var supportContents []map[string]any
	for i := range result.Results {
		entry := &result.Results[i]
		if entry == primary || entry.Response == nil || entry.Response.Content == "" {
			continue
		}
		supportContents = append(supportContents, map[string]any{
			"agent_id": entry.AgentID,
			"content":  entry.Response.Content,
		})
	}

	if result.WorkflowType == models.WorkflowSequential && primary.AgentID == models.AgentStyling {
		if salesContent := salesSupportContent(result); salesContent != "" {
			content = content + sequentialSalesSeparator + salesContent
		}
	}

	fused := models.NewAgentResponse(primary.AgentID, content, base.Confidence)
	fused.NextAction = base.NextAction
	if fused.NextAction == "" {
		fused.NextAction = models.NextActionContinue
	}
	fused.SuggestedAgents = base.SuggestedAgents
	fused.RequiresHuman = base.RequiresHuman
	fused.IntentType = base.IntentType
	fused.EscalationReason = base.EscalationReason
	for k, v := range base.Metadata {
		fused.Metadata[k] = v
	}
	fused.Metadata["collaboration_info"] = map[string]any{
		"task_id":               result.TaskID,
		"workflow_type":         string(result.WorkflowType),
		"participating_agents":  result.ParticipatingAgents(),
		"collaboration_success": true,
		"support_contents":      supportContents,
	}

	f.recordHandoff(fused, sess)
	return fused
}

// recordHandoff stores a transfer suggestion in the session so the next
// turn's handoff-confirmation rule can honor it.
func (f *Fuser) recordHandoff(resp *models.AgentResponse, sess *session.Session) {
	if sess == nil || resp.NextAction != models.NextActionTransfer || len(resp.SuggestedAgents) == 0 {
		return
	}
	target := NormalizeAgentID(resp.SuggestedAgents[0])
	if !models.IsKnownAgent(target) {
		f.logger.Warn("transfer suggestion does not name a known agent", "suggestion", resp.SuggestedAgents[0])
		return
	}
	sess.SetHandoff(target)
	f.logger.Info("handoff recorded", "target", target)
}

// NormalizeAgentID maps loose agent references (short names, Chinese
// aliases) to canonical agent ids. Unrecognized input passes through.
func NormalizeAgentID(raw string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	switch id {
	case "sales", "销售":
		return models.AgentSales
	case "order", "订单":
		return models.AgentOrder
	case "knowledge", "知识":
		return models.AgentKnowledge
	case "styling", "穿搭":
		return models.AgentStyling
	case "reception", "接待":
		return models.AgentReception
	default:
		return id
	}
}

func salesSupportContent(result *models.CollaborationResult) string {
	for i := range result.Results {
		entry := &result.Results[i]
		if entry.AgentID == models.AgentSales && entry.Response != nil {
			return entry.Response.Content
		}
	}
	return ""
}

// serializeResult flattens a collaboration result for debug metadata.
func serializeResult(result *models.CollaborationResult) map[string]any {
	entries := make([]map[string]any, 0, len(result.Results))
	for _, entry := range result.Results {
		serialized := map[string]any{
			"agent_id": entry.AgentID,
			"role":     string(entry.Role),
		}
		if entry.Error != "" {
			serialized["error"] = entry.Error
		}
		if entry.Response != nil {
			serialized["response"] = entry.Response.Serialized()
		}
		entries = append(entries, serialized)
	}
	return map[string]any{
		"success":       result.Success,
		"task_id":       result.TaskID,
		"workflow_type": fmt.Sprint(result.WorkflowType),
		"results":       entries,
	}
}
