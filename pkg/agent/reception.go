package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wardrobe-labs/concierge/pkg/jsonx"
	"github.com/wardrobe-labs/concierge/pkg/models"
)

// greetingPhrases trigger the canned welcome without an LLM round-trip.
var greetingPhrases = []string{
	"你好", "您好", "hi", "hello", "在吗", "客服", "接待", "接待专员", "你是不是", "你是客服吗",
}

// intentToAgent maps the routing prompt's detected intents to agent IDs.
var intentToAgent = map[string]string{
	"purchase":  models.AgentSales,
	"order":     models.AgentOrder,
	"knowledge": models.AgentKnowledge,
	"styling":   models.AgentStyling,
}

var agentDisplayNames = map[string]string{
	models.AgentSales:     "销售助手",
	models.AgentOrder:     "订单助手",
	models.AgentKnowledge: "知识助手",
	models.AgentStyling:   "穿搭助手",
}

var intentTypeByIntent = map[string]models.IntentType{
	"purchase":  models.IntentSalesConsultation,
	"order":     models.IntentOrderInquiry,
	"knowledge": models.IntentOther,
	"styling":   models.IntentStyleAdvice,
}

// Reception greets users, classifies their intent, and proposes transfers
// to the specialist agents. It is also the dispatcher's fallback target.
type Reception struct {
	base
}

// NewReception creates the reception agent.
func NewReception(completer Completer, logger *slog.Logger) *Reception {
	return &Reception{base: newBase(models.AgentReception, "reception", completer, logger)}
}

func (r *Reception) Capabilities() []string {
	return []string{"用户接待", "意图识别", "智能路由", "需求澄清", "服务引导"}
}

// Handle greets, or classifies the message and proposes a transfer.
func (r *Reception) Handle(ctx context.Context, msg *models.Message, turnContext map[string]any) (*models.AgentResponse, error) {
	if isGreeting(msg.Content) {
		resp := models.NewAgentResponse(r.agentID,
			"您好，我是服装客服接待助手，很高兴为您服务！您可以咨询购买、订单、穿搭或面料知识相关问题。", 0.95)
		resp.IntentType = models.IntentGreeting
		return resp, nil
	}

	raw := r.generate(ctx, r.routingPrompt(msg))
	resp := r.parseRouting(raw, msg)
	r.remember(msg.ConversationID, msg.Content, resp.Content)
	return resp, nil
}

func isGreeting(content string) bool {
	lower := strings.ToLower(content)
	for _, g := range greetingPhrases {
		if strings.Contains(lower, g) {
			return true
		}
	}
	return false
}

func (r *Reception) routingPrompt(msg *models.Message) string {
	var sb strings.Builder
	sb.WriteString("你是一个专业的服装客服接待智能体，负责精确的意图识别和智能路由。\n\n")
	fmt.Fprintf(&sb, "## 当前用户消息：\n%s\n\n", msg.Content)
	sb.WriteString(`## 智能体职责边界（严格分析后选择）：
- **sales_agent**: 仅限购买咨询、产品推荐、价格询问、下单指导、商品选购
- **order_agent**: 仅限订单查询、物流跟踪、订单修改、退换货处理、售后问题
- **knowledge_agent**: 仅限面料知识、保养方法、洗涤指导、材质咨询、产品特性
- **styling_agent**: 仅限穿搭建议、搭配指导、风格推荐、场合着装、形象设计

## 精确路由规则（必须严格遵循）：
1. **购买意图** (sales_agent): 包含"买、购买、想买、多少钱、价格、选购、商品、下单、订购、付款、支付"等关键词
2. **订单意图** (order_agent): 包含"订单、物流、发货、收货、退货、退款、订单号、快递、配送、售后、退换货"等关键词
3. **知识意图** (knowledge_agent): 包含"材质、保养、洗涤、面料、质量、怎么选、什么好、如何清洁、耐用性、成分、特性"等关键词
4. **穿搭意图** (styling_agent): 包含"穿搭、搭配、场合、风格、适合、推荐穿、穿衣、着装、造型、配什么、怎么搭"等关键词

## 严格禁止：
- 不要将所有请求都转给sales_agent
- 不要将知识咨询、穿搭建议或订单问题转给sales_agent

## 输出要求：
请严格按照以下JSON格式输出，不要包含任何其他内容：
{
  "intent": "purchase/order/knowledge/styling/unclear",
  "target_agent": "目标智能体名称",
  "confidence": 0.9,
  "reason": "具体路由理由，说明关键词匹配情况"
}

请严格分析用户消息，基于关键词匹配和语义理解，输出精确的路由决策。`)
	return sb.String()
}

// parseRouting converts the routing JSON into either a transfer proposal or
// a clarifying reply.
func (r *Reception) parseRouting(raw string, msg *models.Message) *models.AgentResponse {
	fields, ok := jsonx.ExtractObject(raw)
	if !ok {
		// The model answered in prose; fall back to the generic contract.
		return r.parseResponse(raw)
	}

	intent := strings.ToLower(stringField(fields, "intent"))
	confidence := floatField(fields, "confidence", 0.8)
	reason := stringField(fields, "reason")

	if agentID, known := intentToAgent[intent]; known {
		routeReason := reason
		if routeReason == "" {
			routeReason = "已识别为明确意图"
		}
		content := fmt.Sprintf("我已理解您的需求（%s）。为更快解决问题，我可以为您转接到%s。需要我现在为您转接吗？",
			routeReason, agentDisplayNames[agentID])

		resp := models.NewAgentResponse(r.agentID, content, confidence)
		resp.NextAction = models.NextActionTransfer
		resp.SuggestedAgents = []string{agentID}
		resp.IntentType = intentTypeByIntent[intent]
		resp.Metadata["route_reason"] = reason
		resp.Metadata["detected_intent"] = intent
		resp.Metadata["detected_target"] = agentID
		return resp
	}

	// Unclear intent: stay with reception and ask what the user needs.
	content := "是的，我是接待专员，可以先和您聊聊，也可以帮您转接到相关专员。" +
		"您更倾向于咨询哪方面：购买选购、订单/物流、穿搭建议，还是面料知识？"
	if isGreeting(msg.Content) {
		content = "您好，我是接待专员，很高兴认识您！" + content
	}
	resp := models.NewAgentResponse(r.agentID, content, confidence)
	resp.IntentType = models.IntentOther
	resp.Metadata["route_reason"] = reason
	resp.Metadata["detected_intent"] = "unclear"
	return resp
}
