package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/wardrobe-labs/concierge/pkg/jsonx"
	"github.com/wardrobe-labs/concierge/pkg/models"
	"github.com/wardrobe-labs/concierge/pkg/search"
)

// Sales funnel stages.
const (
	stageGreeting              = "greeting"
	stageRequirementCollection = "requirement_collection"
	stageProductSearch         = "product_search"
	stageRecommendation        = "recommendation"
	stagePurchaseGuide         = "purchase_guide"
	stageSatisfactionInquiry   = "satisfaction_inquiry"
	stageFollowUp              = "follow_up"
)

// minRequirementRounds gates product search until enough needs are known.
const minRequirementRounds = 2

const salesSystemPrompt = `你是一个专业的服装销售顾问，专注于购买咨询和商品推荐。

## 核心职责（严格限定）：
1. **购买咨询** - 只处理与购买相关的咨询：价格询问、商品选购、下单指导
2. **产品推荐** - 基于客户需求推荐合适的产品
3. **购买引导** - 协助客户完成购买决策流程

## 严格禁止处理的内容：
- 订单查询、物流跟踪、退换货处理 → 转给order_agent
- 面料知识、保养方法、洗涤指导 → 转给knowledge_agent
- 穿搭建议、搭配指导、风格推荐 → 转给styling_agent

## 销售流程（严格执行）：
1. **需求确认** - 确认客户确实有购买意图
2. **需求收集** - 了解具体需求（服装类型、场合、预算、偏好）
3. **产品搜索** - 调用搜索API查找匹配产品
4. **产品推荐** - 展示推荐产品并详细介绍
5. **购买引导** - 协助客户做出购买决策

## 特别注意：
- 只处理明确的购买意图，不要处理其他类型的咨询
- 深度理解客户真实购买需求，不要急于推销
- 基于客户反馈调整推荐策略
- 始终以客户满意为目标`

// defaultClarifyText is used when the model skips ahead without having
// collected any requirements.
const defaultClarifyText = "为了更好地为您推荐，请先告诉我：1) 想要的服装类型或款式；" +
	"2) 使用场合（通勤/约会/旅行等）；3) 预算范围；" +
	"4) 身高体重或常穿尺码；5) 喜好的风格或颜色。"

// stylingItemKeywords are the garment words recognized when parsing a
// styling agent's advice into searchable items.
var stylingItemKeywords = []string{
	"白衬衫", "衬衫", "牛仔裤", "运动鞋", "西装外套", "外套", "西装",
	"尖头鞋", "高跟鞋", "乐福鞋", "短靴", "长靴", "半身裙", "裙子",
	"针织开衫", "开衫", "毛衣", "马甲", "风衣", "大衣", "t恤", "卫衣",
	"珍珠耳环", "耳环", "腰带", "手袋", "包包", "休闲裤", "西裤", "阔腿裤",
}

var strongKnowledgeKeywords = []string{
	"材质", "保养", "洗涤", "面料", "质量", "怎么选", "如何选择", "如何清洁", "清洁",
	"耐用性", "成分", "特性", "护理", "护理方法", "防皱", "防菌", "缩水", "褪色",
}

// salesState tracks the funnel position of one conversation.
type salesState struct {
	Stage             string
	Requirements      map[string]any
	RequirementRounds int
	Interactions      int
	SatisfactionAsked bool
	Satisfaction      string
}

// Sales handles purchase consultations: requirement collection, product
// search, recommendation, and purchase guidance.
type Sales struct {
	base
	searcher ProductSearcher

	stateMu sync.Mutex
	state   map[string]*salesState
}

// NewSales creates the sales agent. searcher may be nil; canned products
// are offered instead of live search results.
func NewSales(completer Completer, searcher ProductSearcher, logger *slog.Logger) *Sales {
	return &Sales{
		base:     newBase(models.AgentSales, "sales", completer, logger),
		searcher: searcher,
		state:    make(map[string]*salesState),
	}
}

func (s *Sales) Capabilities() []string {
	return []string{"需求分析", "产品推荐", "购买咨询", "价格解答", "库存查询"}
}

func (s *Sales) conversationState(conversationID string) *salesState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st, ok := s.state[conversationID]
	if !ok {
		st = &salesState{Stage: stageGreeting, Requirements: make(map[string]any)}
		s.state[conversationID] = st
	}
	return st
}

// Handle runs the sales funnel for one message.
func (s *Sales) Handle(ctx context.Context, msg *models.Message, turnContext map[string]any) (*models.AgentResponse, error) {
	// Sequential collaboration: styling advice handed over for product lookup.
	if sourceAgent(msg, turnContext) == models.AgentStyling {
		return s.handleStylingAdvice(ctx, msg)
	}

	if hasStrongKnowledgeIntent(msg.Content) {
		resp := models.NewAgentResponse(s.agentID,
			"我已识别到您是在咨询面料/保养/洗涤等知识问题，已为您切换到知识智能体，由其提供更专业的解答。", 0.92)
		resp.NextAction = models.NextActionTransfer
		resp.SuggestedAgents = []string{models.AgentKnowledge}
		resp.Metadata["reason"] = "strong_knowledge_intent"
		return resp, nil
	}

	st := s.conversationState(msg.ConversationID)

	// Classify a reply to an earlier satisfaction question before the
	// stage gets overwritten below.
	if st.Stage == stageSatisfactionInquiry {
		st.Satisfaction = classifySatisfaction(msg.Content)
	}

	raw := s.generate(ctx, s.salesPrompt(msg, st, turnContext))
	parsed := s.parseSalesReply(raw, st)

	if parsed.needSearch {
		result := s.searchProducts(ctx, parsed.searchParams)
		if result != nil && result.Success && len(result.Items) > 0 {
			raw = s.generate(ctx, s.productDisplayPrompt(msg, result, st))
			parsed = s.parseSalesReply(raw, st)
		}
	}

	s.applyFollowUps(st, &parsed)
	s.advanceState(st, parsed)

	resp := models.NewAgentResponse(s.agentID, parsed.content, parsed.confidence)
	if parsed.nextAction.IsValid() {
		resp.NextAction = parsed.nextAction
	}
	resp.SuggestedAgents = parsed.suggestedAgents
	resp.RequiresHuman = parsed.requiresHuman
	resp.IntentType = models.IntentSalesConsultation
	resp.Metadata["stage"] = st.Stage

	s.remember(msg.ConversationID, msg.Content, resp.Content)
	return resp, nil
}

func sourceAgent(msg *models.Message, turnContext map[string]any) string {
	if src, ok := msg.Metadata["source_agent"].(string); ok && src != "" {
		return src
	}
	src, _ := turnContext["source_agent"].(string)
	return src
}

func hasStrongKnowledgeIntent(content string) bool {
	if content == "" {
		return false
	}
	hits := 0
	for _, k := range strongKnowledgeKeywords {
		if strings.Contains(content, k) {
			hits++
		}
	}
	if hits >= 2 {
		return true
	}
	return hits >= 1 && (strings.Contains(content, "怎么") ||
		strings.Contains(content, "如何") || strings.Contains(content, "指南"))
}

func classifySatisfaction(content string) string {
	lower := strings.ToLower(content)
	for _, w := range []string{"不满意", "不好", "不喜欢", "不行", "一般", "差点"} {
		if strings.Contains(lower, w) {
			return "negative"
		}
	}
	for _, w := range []string{"满意", "不错", "很好", "喜欢", "可以", "还行"} {
		if strings.Contains(lower, w) {
			return "positive"
		}
	}
	return "neutral"
}

// salesReply is the structured contract parsed from the model output.
type salesReply struct {
	content         string
	confidence      float64
	stage           string
	needSearch      bool
	searchParams    map[string]any
	nextAction      models.NextAction
	suggestedAgents []string
	requiresHuman   bool
	requirements    map[string]any
}

func (s *Sales) salesPrompt(msg *models.Message, st *salesState, turnContext map[string]any) string {
	var sb strings.Builder
	sb.WriteString(salesSystemPrompt)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "## 当前销售阶段：%s\n", st.Stage)
	if len(st.Requirements) > 0 {
		reqJSON, _ := json.Marshal(st.Requirements)
		fmt.Fprintf(&sb, "## 已收集需求：%s\n", reqJSON)
	} else {
		sb.WriteString("## 已收集需求：暂无\n")
		sb.WriteString("## 严格约束：当前尚未收集到具体需求，请只进行需求澄清，不要做任何产品推荐或给出解决方案。\n")
		sb.WriteString("必须提出具体且可回答的澄清问题，覆盖：服装类型/场合/预算/尺码或常穿尺码/风格或颜色偏好。\n")
		sb.WriteString("JSON响应必须设置：\"stage\": \"requirement_collection\", \"need_product_search\": false, \"next_action\": \"continue\"。\n")
		if consultation, _ := turnContext["consultation_mode"].(bool); consultation {
			sb.WriteString("可参考支持智能体提供的信息，但仍需先完成需求澄清，禁止直接给出推荐或方案。\n")
		}
	}

	if st.RequirementRounds < minRequirementRounds {
		fmt.Fprintf(&sb, "## 需求收集进度：已完成 %d/%d 轮需求收集\n", st.RequirementRounds, minRequirementRounds)
		sb.WriteString("## 搜索约束：必须至少完成两轮需求收集后才能进行产品搜索\n")
		sb.WriteString("当前禁止设置 \"need_product_search\": true，必须继续收集更多需求信息\n")
	}

	if st.Stage == stageGreeting && st.Interactions == 0 {
		sb.WriteString("## 特别提示：这是与客户的第一次交互，请先进行自我介绍\n")
		sb.WriteString("自我介绍应包括：专业的服装销售顾问身份、服装推荐与价格咨询专长（不提供穿搭建议）、引导客户说明需求。\n")
	} else if st.Stage == stageRecommendation && st.Interactions >= 3 && !st.SatisfactionAsked {
		sb.WriteString("## 满意度询问提示：您已完成产品推荐，现在可以询问用户对推荐的满意度\n")
		sb.WriteString("JSON响应可以设置：\"stage\": \"satisfaction_inquiry\"\n")
	}

	if history := s.history(msg.ConversationID); len(history) > 0 {
		sb.WriteString("\n### 对话历史：\n")
		start := len(history) - promptHistoryExchanges
		if start < 0 {
			start = 0
		}
		for _, ex := range history[start:] {
			fmt.Fprintf(&sb, "客户: %s\n销售: %s\n", ex.User, ex.Assistant)
		}
	}

	fmt.Fprintf(&sb, "\n## 客户当前消息：\n%s\n\n", msg.Content)
	sb.WriteString(`## 严格职责边界检查（必须执行）：
1. 首先判断消息是否属于销售智能体的职责范围
2. 如果包含订单、物流、面料保养、穿搭搭配、尺码试穿等关键词，必须设置 next_action: "transfer" 并指定正确的智能体

## 响应格式（JSON）：
{
  "content": "你的销售回复（如果转接，请说明转接原因）",
  "confidence": 0.9,
  "stage": "greeting/requirement_collection/product_search/recommendation/purchase_guide/satisfaction_inquiry/follow_up",
  "need_product_search": true/false,
  "search_params": {"keyword": "搜索关键词", "category": "类别", "price_min": 0, "price_max": 1000},
  "requirements_update": {"新收集到的需求信息"},
  "next_action": "continue/transfer",
  "suggested_agents": ["如需转接：order_agent/knowledge_agent/styling_agent"],
  "requires_human": false
}`)
	return sb.String()
}

// parseSalesReply extracts the sales contract and applies the funnel
// guards: no recommendations before requirements exist, no search before
// enough collection rounds.
func (s *Sales) parseSalesReply(raw string, st *salesState) salesReply {
	reply := salesReply{confidence: 0.7, stage: st.Stage, nextAction: models.NextActionContinue}

	fields, ok := jsonx.ExtractObject(raw)
	if !ok {
		reply.content = strings.TrimSpace(raw)
		reply.confidence = 0.6
		return reply
	}

	reply.content = stringField(fields, "content")
	reply.confidence = floatField(fields, "confidence", 0.8)
	if stage := stringField(fields, "stage"); stage != "" {
		reply.stage = stage
	}
	reply.needSearch = boolField(fields, "need_product_search")
	reply.searchParams = mapField(fields, "search_params")
	if action := models.NextAction(stringField(fields, "next_action")); action.IsValid() {
		reply.nextAction = action
	}
	reply.suggestedAgents = stringListField(fields, "suggested_agents")
	reply.requiresHuman = boolField(fields, "requires_human")
	reply.requirements = mapField(fields, "requirements_update")

	noRequirements := len(st.Requirements) == 0 && len(reply.requirements) == 0
	if noRequirements && (reply.stage == stageRecommendation || reply.stage == stageProductSearch) {
		reply.stage = stageRequirementCollection
		reply.needSearch = false
		reply.nextAction = models.NextActionContinue
		if strings.TrimSpace(reply.content) == "" {
			reply.content = defaultClarifyText
		}
	}

	rounds := st.RequirementRounds
	if len(reply.requirements) > 0 {
		rounds++
	}
	if reply.needSearch && rounds < minRequirementRounds {
		s.logger.Info("blocking product search, not enough requirement rounds",
			"rounds", rounds, "required", minRequirementRounds)
		reply.needSearch = false
		reply.stage = stageRequirementCollection
		if reply.content != "" {
			reply.content += "\n\n为了给您更精准的推荐，请再告诉我一些您的偏好：比如喜欢的品牌、材质或者具体的款式要求？"
		}
	}
	return reply
}

// applyFollowUps appends the satisfaction follow-up wording once the user
// has answered the satisfaction question.
func (s *Sales) applyFollowUps(st *salesState, reply *salesReply) {
	if st.Stage != stageSatisfactionInquiry || st.Satisfaction == "" || reply.content == "" {
		return
	}
	switch st.Satisfaction {
	case "positive":
		reply.content += "\n\n很高兴您对推荐满意！需要我为您推荐其他款式或查看更多选项吗？如需穿搭建议，我将为您转接穿搭顾问。"
	case "negative":
		reply.content += "\n\n很抱歉您对推荐不满意。能告诉我具体哪里不满意吗？是款式、价格还是其他方面？我会根据您的反馈重新为您推荐。"
	}
	st.Satisfaction = ""
}

func (s *Sales) advanceState(st *salesState, reply salesReply) {
	if len(reply.requirements) > 0 {
		for k, v := range reply.requirements {
			st.Requirements[k] = v
		}
		st.RequirementRounds++
	}
	if reply.stage != "" {
		st.Stage = reply.stage
	}
	if reply.stage == stageSatisfactionInquiry {
		st.SatisfactionAsked = true
	}
	st.Interactions++
}

// searchProducts runs the query built from the model's search params, or
// serves canned products when no search backend is configured.
func (s *Sales) searchProducts(ctx context.Context, params map[string]any) *search.Result {
	keyword := buildSearchKeyword(params)
	if s.searcher == nil || !s.searcher.Enabled() {
		s.logger.Debug("product search unavailable, serving canned products", "keyword", keyword)
		return mockSearchResult(keyword)
	}

	query := search.Query{Keyword: keyword, PageSize: 6, Sort: search.SortSalesDesc}
	if v, ok := numberParam(params, "price_min"); ok {
		query.PriceMin = &v
	}
	if v, ok := numberParam(params, "price_max"); ok {
		query.PriceMax = &v
	}

	result, err := s.searcher.Search(ctx, query)
	if err != nil {
		s.logger.Warn("product search failed, serving canned products", "keyword", keyword, "error", err)
		return mockSearchResult(keyword)
	}
	return result
}

func buildSearchKeyword(params map[string]any) string {
	var keywords []string
	appendDistinct := func(v string) {
		if v == "" || strings.Contains(strings.Join(keywords, " "), v) {
			return
		}
		keywords = append(keywords, v)
	}
	appendDistinct(stringField(params, "keyword"))
	appendDistinct(stringField(params, "category"))
	appendDistinct(stringField(params, "gender"))
	appendDistinct(stringField(params, "style"))
	if len(keywords) == 0 {
		return "服装"
	}
	return strings.Join(keywords, " ")
}

func numberParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key].(float64)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

func (s *Sales) productDisplayPrompt(msg *models.Message, result *search.Result, st *salesState) string {
	var sb strings.Builder
	sb.WriteString(salesSystemPrompt)
	sb.WriteString("\n\n## 任务：先展示产品信息，再输出销售风格总结\n")
	reqJSON, _ := json.Marshal(st.Requirements)
	fmt.Fprintf(&sb, "## 客户需求：%s\n## 客户消息：%s\n\n", reqJSON, msg.Content)
	sb.WriteString(`## 展示风格（必须严格遵守）：
- 每个字段前使用合适的emoji标识，不使用破折号或列表符号
- 先输出"产品清单（销售展示）"并分条展示商品的关键信息
- 每个商品块之间使用一行分隔符：==========================
- 之后输出"产品特性总结（销售风格）"，像线下导购一样突出优势与优惠
- 严禁在任何输出行首使用 '-' 或 '•' 等符号

## 搜索到的商品：
`)

	items := result.Items
	if len(items) > 6 {
		items = items[:6]
	}
	fmt.Fprintf(&sb, "找到 %d 个相关商品\n\n", result.Count)
	for i, p := range items {
		fmt.Fprintf(&sb, "商品%d：%s\n", i+1, p.Title)
		if p.Price > 0 {
			fmt.Fprintf(&sb, "💰 原价：¥%.2f\n", p.Price)
		}
		if p.CouponPrice != "" {
			fmt.Fprintf(&sb, "💳 券后价：¥%s\n", p.CouponPrice)
		}
		if p.CouponAmount != "" {
			fmt.Fprintf(&sb, "🎁 优惠券：¥%s\n", p.CouponAmount)
		}
		brand := p.Brand
		if brand == "" {
			brand = "未知"
		}
		shop := p.ShopName
		if shop == "" {
			shop = "未知"
		}
		fmt.Fprintf(&sb, "🏷️ 品牌：%s\n🏪 店铺：%s\n", brand, shop)
		if p.Volume != "" {
			fmt.Fprintf(&sb, "📈 销量：%s\n", p.Volume)
		}
		if p.Brief != "" {
			fmt.Fprintf(&sb, "📝 简介：%s\n", p.Brief)
		}
		if p.ItemURL != "" {
			fmt.Fprintf(&sb, "🔗 链接：%s\n", p.ItemURL)
		}
		sb.WriteString("==========================\n")
	}

	sb.WriteString(`
## 写作任务：生成"产品特性总结（销售风格）"
- 用自然口语化的销售话术，针对用户需求总结价格、材质、品质、适用场景等
- 强调价格优势：如果有券后价或优惠券，请明确比较原价与优惠价
- 总结后给出1-2句引导性话术

## 响应格式（JSON，仅返回）：
{
  "content": "先是产品清单，随后是销售风格总结",
  "confidence": 0.9,
  "stage": "recommendation",
  "next_action": "continue"
}`)
	return sb.String()
}

// handleStylingAdvice parses garment items out of a styling agent's advice
// and looks up real products for each one.
func (s *Sales) handleStylingAdvice(ctx context.Context, msg *models.Message) (*models.AgentResponse, error) {
	items := extractStylingItems(msg.Content)
	if len(items) == 0 {
		resp := models.NewAgentResponse(s.agentID,
			"我已收到搭配建议。为便于推荐商品，请告知您更偏好的单品类型，例如：白衬衫/牛仔裤/运动鞋/西装外套等。", 0.75)
		resp.NextAction = models.NextActionClarify
		resp.IntentType = models.IntentSalesConsultation
		resp.Metadata["from_styling"] = true
		resp.Metadata["parsed_items"] = []string{}
		resp.Metadata["source_agent"] = models.AgentStyling
		return resp, nil
	}

	if len(items) > 6 {
		items = items[:6]
	}

	var lines []string
	lines = append(lines, "我已根据穿搭建议为每个单品挑选了真实商品，供你快速查看：")
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, item))

		var products []search.Product
		if s.searcher != nil && s.searcher.Enabled() {
			result, err := s.searcher.Search(ctx, search.Query{Keyword: item, PageSize: 3, Sort: search.SortSalesDesc})
			if err != nil {
				s.logger.Warn("styling follow-up search failed", "item", item, "error", err)
			} else {
				products = result.Items
			}
		} else {
			products = mockSearchResult(item).Items
		}

		if len(products) == 0 {
			lines = append(lines, "   - 暂未检索到合适商品，可尝试调整关键词")
			continue
		}
		lines = append(lines, search.FormatDisplay(products, search.Requirements{SearchKeyword: item, PriceRange: "不限"}))
	}
	lines = append(lines, "如果你对其中某款感兴趣，我可以进一步对比或寻找同类款式。")

	resp := models.NewAgentResponse(s.agentID, strings.Join(lines, "\n"), 0.85)
	resp.IntentType = models.IntentSalesConsultation
	resp.Metadata["from_styling"] = true
	resp.Metadata["parsed_items"] = items
	resp.Metadata["source_agent"] = models.AgentStyling
	return resp, nil
}

// extractStylingItems picks recognizable garment words from advice text,
// preserving mention order without duplicates. When keywords overlap in the
// text ("白衬衫" contains "衬衫") the longer match claims that span; shorter
// keywords only count where they appear on their own.
func extractStylingItems(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	type hit struct {
		keyword  string
		pos, end int
	}
	var hits []hit
	for _, k := range stylingItemKeywords {
		for from := 0; ; {
			idx := strings.Index(lower[from:], k)
			if idx < 0 {
				break
			}
			pos := from + idx
			hits = append(hits, hit{keyword: k, pos: pos, end: pos + len(k)})
			from = pos + len(k)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if li, lj := hits[i].end-hits[i].pos, hits[j].end-hits[j].pos; li != lj {
			return li > lj
		}
		return hits[i].pos < hits[j].pos
	})
	var accepted []hit
	for _, h := range hits {
		overlaps := false
		for _, a := range accepted {
			if h.pos < a.end && a.pos < h.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, h)
		}
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].pos < accepted[j].pos })
	var items []string
	seen := make(map[string]bool)
	for _, h := range accepted {
		if seen[h.keyword] {
			continue
		}
		seen[h.keyword] = true
		items = append(items, h.keyword)
	}
	return items
}

// mockSearchResult provides canned products when no search backend exists.
func mockSearchResult(keyword string) *search.Result {
	items := []search.Product{
		{
			Title: keyword + " - 经典款式", Price: 199, CouponPrice: "179", CouponAmount: "20",
			Brand: "优质品牌", ShopName: "优质品牌旗舰店", Brief: "经典设计，品质保证",
			Volume: "1000+", ItemURL: "https://example.com/product1",
		},
		{
			Title: keyword + " - 时尚新款", Price: 299, CouponPrice: "259", CouponAmount: "40",
			Brand: "时尚品牌", ShopName: "时尚品牌旗舰店", Brief: "时尚设计，潮流首选",
			Volume: "800+", ItemURL: "https://example.com/product2",
		},
		{
			Title: keyword + " - 性价比之选", Price: 99, CouponPrice: "89", CouponAmount: "10",
			Brand: "实惠品牌", ShopName: "实惠品牌专营店", Brief: "性价比高，物超所值",
			Volume: "2000+", ItemURL: "https://example.com/product3",
		},
	}
	return &search.Result{
		Success: true,
		Count:   len(items),
		Items:   items,
		Message: fmt.Sprintf("找到 %d 个相关商品（模拟数据）", len(items)),
		Keyword: keyword,
	}
}
