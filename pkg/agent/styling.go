package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wardrobe-labs/concierge/pkg/models"
)

const stylingSystemPrompt = `你是一个专业的服装搭配顾问，拥有丰富的时尚搭配经验和审美能力。

## 核心职责（严格限定）：
1. **个性化穿搭建议** - 根据用户的身材、肤色、风格偏好提供定制化建议
2. **场合着装指导** - 为不同场合（工作、约会、聚会、旅行等）推荐合适的穿搭
3. **风格定位** - 帮助用户找到适合的穿衣风格（简约、甜美、职业、休闲等）
4. **色彩搭配** - 提供专业的色彩搭配建议，考虑肤色和季节因素
5. **身材优化** - 根据身材特点推荐能够扬长避短的服装款式

## 专业原则：
- 以用户的实际情况为出发点，提供实用的搭配建议
- 考虑用户的预算、生活方式和个人喜好
- 提供具体、可操作的搭配方案
- 必要时可以建议用户咨询销售智能体了解具体产品

## 回答风格：
- 专业而亲切，像一个经验丰富的时尚顾问
- 提供具体的搭配建议和理由说明
- 给出多种搭配选择，让用户有选择空间`

const stylingFallbackText = "我是专业的穿搭顾问，可以根据您的身材、场合和风格偏好提供搭配建议。" +
	"请告诉我您想搭配的场合、喜欢的风格或需要搭配的单品，我会给出具体可执行的方案。"

var styleKeywords = []string{
	"休闲", "通勤", "正式", "简约", "极简", "复古", "法式", "韩系", "日系", "街头", "学院风", "商务", "运动",
}

var occasionKeywords = []struct{ keyword, label string }{
	{"上班", "通勤/上班"}, {"职场", "通勤/上班"}, {"约会", "约会"}, {"聚会", "聚会"},
	{"旅行", "旅行"}, {"婚礼", "婚礼"}, {"面试", "面试"}, {"晚宴", "晚宴"},
}

// Styling gives outfit and color advice in plain language. Product lookup
// for the advised garments happens downstream: the executor hands this
// agent's advice to the sales agent in sequential collaborations.
type Styling struct {
	base
}

// NewStyling creates the styling agent.
func NewStyling(completer Completer, logger *slog.Logger) *Styling {
	return &Styling{base: newBase(models.AgentStyling, "styling", completer, logger)}
}

func (st *Styling) Capabilities() []string {
	return []string{
		"个性化穿搭建议", "场合着装指导", "身材分析和优化",
		"色彩搭配建议", "风格定位指导", "服装单品推荐", "整体形象设计",
	}
}

// Handle produces styling advice for the message.
func (st *Styling) Handle(ctx context.Context, msg *models.Message, turnContext map[string]any) (*models.AgentResponse, error) {
	style, occasion := extractStylePreferences(msg.Content)

	raw := st.generateWith(ctx, stylingSystemPrompt, st.stylingPrompt(msg, style, occasion), stylingFallbackText)
	content := plainText(raw)

	resp := models.NewAgentResponse(st.agentID, content, 0.8)
	resp.IntentType = models.IntentStyleAdvice
	resp.Metadata["styling_type"] = "general"
	if occasion != "" {
		resp.Metadata["occasion"] = occasion
	}
	if style != "" {
		resp.Metadata["style_preference"] = style
	}

	st.remember(msg.ConversationID, msg.Content, resp.Content)
	return resp, nil
}

// extractStylePreferences spots style and occasion words in the message,
// used to focus the advice.
func extractStylePreferences(content string) (style, occasion string) {
	lower := strings.ToLower(content)
	for _, s := range styleKeywords {
		if strings.Contains(lower, s) {
			style = s
			break
		}
	}
	for _, o := range occasionKeywords {
		if strings.Contains(lower, o.keyword) {
			occasion = o.label
			break
		}
	}
	return style, occasion
}

func (st *Styling) stylingPrompt(msg *models.Message, style, occasion string) string {
	var sb strings.Builder
	sb.WriteString("作为专业的服装搭配顾问，请分析用户的穿搭需求并提供专业建议。\n\n")
	sb.WriteString(`## 边界检查规则（必须严格遵守）：
- 如果用户咨询包含以下关键词，必须转接到相应智能体：
  订单相关：订单、快递、物流、发货、收货、配送 → 转接订单智能体
  购买相关：购买、价格、优惠、商品咨询、尺码 → 转接销售智能体
  知识相关：面料、材质、洗涤、保养、成分 → 转接知识智能体

`)
	fmt.Fprintf(&sb, "用户需求：%s", msg.Content)
	var prefs []string
	if style != "" {
		prefs = append(prefs, "风格偏好："+style)
	}
	if occasion != "" {
		prefs = append(prefs, "场合："+occasion)
	}
	if len(prefs) > 0 {
		sb.WriteString("\n" + strings.Join(prefs, "；"))
	}
	sb.WriteString("\n")

	if history := st.history(msg.ConversationID); len(history) > 0 {
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
请用自然语言直接给出建议，不要使用代码块或JSON。输出要求：
- 先简短总结穿搭思路（1-2句）
- 给出3-5条可执行的具体建议（分点列出）
- 如涉及场合或风格，明确说明适用场景与理由
- 如有身材或色彩关注点，给出优化建议与配色参考
- 最后一行用一句话邀请用户补充偏好或预算`)
	return sb.String()
}
