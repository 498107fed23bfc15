package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wardrobe-labs/concierge/pkg/jsonx"
	"github.com/wardrobe-labs/concierge/pkg/models"
	"github.com/wardrobe-labs/concierge/pkg/search"
)

const knowledgeSystemPrompt = `你是一个专业的服装知识顾问，精通面料特性、保养方法和材质知识。

## 核心职责（严格限定）：
1. **面料知识** - 介绍各类面料的特性、优缺点和适用场景
2. **保养指导** - 提供衣物洗涤、晾晒、熨烫、收纳的专业建议
3. **材质咨询** - 解答成分、工艺、品质判断相关问题
4. **选择建议** - 基于使用需求给出面料选择建议

## 边界检查规则：
当客户咨询包含以下关键词时，必须转接到相应智能体：
- 订单智能体：订单、快递、物流、发货、收货、配送
- 销售智能体：购买、价格、优惠、推荐、商品咨询、尺码
- 穿搭智能体：搭配、风格、场合、颜色、体型、穿搭

## 专业原则：
- 提供准确、实用的服装知识
- 用通俗易懂的语言解释专业概念
- 结合用户的实际使用场景给出建议
- 遇到非知识相关问题，立即转接到相应智能体`

const knowledgeFallbackText = "我是专业的服装知识顾问，可以为您介绍面料特性、护理方法与材质知识。" +
	"请告诉我您想了解的具体内容（如某种面料的优缺点、洗涤注意事项、收纳保养等），" +
	"我会用通俗易懂的语言给出可操作的建议。"

// productHintKeywords trigger the related-product recommendation phase.
var productHintKeywords = []string{"推荐", "购买", "商品", "哪里买"}

// Knowledge answers fabric, care, and material questions in plain
// language, optionally recommending related products.
type Knowledge struct {
	base
	searcher ProductSearcher
}

// NewKnowledge creates the knowledge agent. searcher may be nil.
func NewKnowledge(completer Completer, searcher ProductSearcher, logger *slog.Logger) *Knowledge {
	return &Knowledge{
		base:     newBase(models.AgentKnowledge, "knowledge", completer, logger),
		searcher: searcher,
	}
}

func (k *Knowledge) Capabilities() []string {
	return []string{
		"服装面料知识介绍", "衣物保养护理指导", "材质特性说明",
		"洗涤护理建议", "服装知识问答", "面料选择建议", "相关商品推荐",
	}
}

// Handle produces a natural-language knowledge answer. When the user also
// asks where to buy, a second pass folds matching products into the reply.
func (k *Knowledge) Handle(ctx context.Context, msg *models.Message, turnContext map[string]any) (*models.AgentResponse, error) {
	raw := k.generateWith(ctx, knowledgeSystemPrompt, k.knowledgePrompt(msg), knowledgeFallbackText)
	content := plainText(raw)

	if k.wantsProducts(msg.Content) && k.searcher != nil && k.searcher.Enabled() {
		result, err := k.searcher.Search(ctx, search.Query{Keyword: msg.Content, PageSize: 6, Sort: search.SortSalesDesc})
		if err != nil {
			k.logger.Warn("knowledge product search failed", "error", err)
		} else if result.Success && len(result.Items) > 0 {
			raw = k.generateWith(ctx, knowledgeSystemPrompt, k.productPrompt(msg, result, content), content)
			content = plainText(raw)
		}
	}

	resp := models.NewAgentResponse(k.agentID, content, 0.8)
	resp.IntentType = models.IntentOther
	resp.Metadata["knowledge_type"] = "general"

	k.remember(msg.ConversationID, msg.Content, resp.Content)
	return resp, nil
}

func (k *Knowledge) wantsProducts(content string) bool {
	for _, kw := range productHintKeywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

func (k *Knowledge) knowledgePrompt(msg *models.Message) string {
	var sb strings.Builder
	sb.WriteString("作为专业的服装知识顾问，请先进行边界检查，再提供清晰、实用的自然语言回答。\n\n")
	sb.WriteString(`## 边界检查（重要）：
请严格检查用户消息是否属于知识智能体的职责范围。如果包含以下内容，必须转接到相应智能体：
- 订单查询、物流信息 → 转接订单智能体
- 购买咨询、价格优惠、推荐具体商品 → 转接销售智能体
- 穿搭建议、风格搭配 → 转接穿搭智能体

`)
	fmt.Fprintf(&sb, "用户问题：%s\n", msg.Content)

	if history := k.history(msg.ConversationID); len(history) > 0 {
		sb.WriteString("\n对话历史：\n")
		start := len(history) - promptHistoryExchanges
		if start < 0 {
			start = 0
		}
		for _, ex := range history[start:] {
			fmt.Fprintf(&sb, "用户: %s\n助手: %s\n", ex.User, ex.Assistant)
		}
	}

	sb.WriteString(`
## 输出要求（务必遵守）：
- 使用纯自然语言，不要输出任何JSON或代码块。
- 结构化但自然：
  1) 简短总结用户意图与边界判断；
  2) 核心知识点（要点式，2-5条）；
  3) 场景化建议（可操作步骤或注意事项，3-6条）；
  4) 若需更多信息，礼貌提出1-2个澄清问题。
- 用通俗易懂的语言解释专业概念，避免过度术语。
- 不进行商品购买建议或价格讨论，涉及购买请明确建议转接销售智能体。`)
	return sb.String()
}

func (k *Knowledge) productPrompt(msg *models.Message, result *search.Result, priorAnswer string) string {
	var sb strings.Builder
	sb.WriteString("## 任务：基于知识建议推荐相关商品\n")
	fmt.Fprintf(&sb, "## 用户问题：%s\n## 之前的知识回答：%s\n\n## 搜索到的相关商品：\n", msg.Content, priorAnswer)

	items := result.Items
	if len(items) > 6 {
		items = items[:6]
	}
	fmt.Fprintf(&sb, "找到 %d 个相关商品\n\n", result.Count)
	for i, p := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p.Title)
		if p.Price > 0 {
			fmt.Fprintf(&sb, "   原价: ¥%.2f\n", p.Price)
		}
		if p.CouponPrice != "" {
			fmt.Fprintf(&sb, "   券后价: ¥%s\n", p.CouponPrice)
		}
		if p.Brand != "" {
			fmt.Fprintf(&sb, "   品牌: %s\n", p.Brand)
		}
		if p.ShopName != "" {
			fmt.Fprintf(&sb, "   店铺: %s\n", p.ShopName)
		}
		if p.Brief != "" {
			fmt.Fprintf(&sb, "   简介: %s\n", p.Brief)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`## 回答要求（务必遵守）：
- 使用纯自然语言，禁止输出JSON或任何代码块。
- 以清晰结构给出：
  1) 简短引导语；
  2) 基于上述商品列表，推荐最相关的2-3件并给出理由；
  3) 选购建议与注意事项（材质/工艺/养护）；
  4) 如涉及购买细节或价格，请建议转接销售智能体。`)
	return sb.String()
}

// plainText strips code fences and bold markers from a model reply that
// should have been plain prose.
func plainText(raw string) string {
	cleaned := jsonx.StripFences(raw)
	return strings.TrimSpace(strings.ReplaceAll(cleaned, "**", ""))
}
