package dispatch

import (
	"strings"

	"github.com/wardrobe-labs/concierge/pkg/models"
	"github.com/wardrobe-labs/concierge/pkg/session"
)

// Keyword sets driving the deterministic override rules. Matching is done
// on the lowercased utterance with plain substring containment.
var (
	salesKeywords = []string{
		"购买", "买", "下单", "推荐", "价格", "优惠", "折扣", "产品", "商品",
		"衣服", "服装", "上衣", "裤子", "裙子", "外套", "衬衫", "t恤",
	}
	stylingKeywords = []string{
		"搭配", "穿搭", "尺码", "风格", "颜色",
		"休闲", "通勤", "正式", "约会", "运动", "街头", "简约", "复古",
		"法式", "韩系", "日系", "商务", "职场", "上班", "聚会", "旅行",
	}
	orderKeywords = []string{
		"订单", "查询订单", "订单查询", "订单号", "物流", "快递", "发货", "收货", "配送",
		"退货", "退款", "售后", "退换货", "跟踪", "物流查询", "快递查询",
	}
	// Strong sales intent sits closer to a purchase decision than the broad
	// sales set and is what tips mixed styling+sales turns toward sales.
	strongSalesKeywords = []string{
		"购买", "买", "下单", "推荐", "价格", "优惠", "折扣", "促销", "活动", "报价",
	}

	affirmativeKeywords = []string{
		"可以", "好的", "好", "行", "没问题", "是的", "嗯", "ok", "好啊", "没事", "确认",
	}
	transferToSalesKeywords = []string{
		"转销售", "转接销售", "销售智能体", "销售顾问", "找销售", "请销售帮忙",
	}
	transferToOrderKeywords = []string{
		"转订单", "转接订单", "订单智能体", "订单顾问", "找订单", "请订单帮忙", "转到订单智能体",
	}
	transferToKnowledgeKeywords = []string{
		"转知识", "转接知识", "知识智能体", "知识顾问", "找知识", "请知识帮忙", "转到知识智能体",
	}
	transferToStylingKeywords = []string{
		"转穿搭", "转接穿搭", "穿搭智能体", "穿搭顾问", "找穿搭", "请穿搭帮忙", "转到穿搭智能体",
	}
)

func containsAny(content string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(content, k) {
			return true
		}
	}
	return false
}

// overrideRule rewrites the analysis when its trigger condition holds and
// leaves it untouched otherwise, reporting whether it fired. Rules run in
// declaration order; a later rule may refine what an earlier one produced,
// so each rule's guard must spell out the utterance shapes it owns.
// Terminal rules settle the routing outright: once one fires, the intent
// and stickiness rules behind it are skipped for the turn and only the
// sequential safety net still applies.
type overrideRule struct {
	name     string
	terminal bool
	apply    func(content string, analysis *models.CollaborationAnalysis, sess *session.Session) bool
}

// overrideRules is the fixed precedence pipeline applied after LLM
// analysis: handoff confirmation, explicit transfer, strong order intent,
// sales stickiness, styling-only, plain sales, mixed styling+sales and
// styling stickiness. The styling→sales sequential safety net runs after
// the pipeline, terminal or not.
var overrideRules = []overrideRule{
	{name: "handoff_confirmation", terminal: true, apply: ruleHandoffConfirmation},
	{name: "explicit_transfer", terminal: true, apply: ruleExplicitTransfer},
	{name: "strong_order_intent", apply: ruleStrongOrderIntent},
	{name: "sales_stickiness", apply: ruleSalesStickiness},
	{name: "styling_only", apply: ruleStylingOnly},
	{name: "sales_intent", apply: ruleSalesIntent},
	{name: "mixed_styling_sales", apply: ruleMixedStylingSales},
	{name: "styling_stickiness", apply: ruleStylingStickiness},
}

// applyOverrides runs the rules in precedence order against the lowercased
// message content, stopping early when a terminal rule fires.
func applyOverrides(msg *models.Message, analysis *models.CollaborationAnalysis, sess *session.Session) *models.CollaborationAnalysis {
	content := strings.ToLower(msg.Content)
	for _, rule := range overrideRules {
		if rule.apply(content, analysis, sess) && rule.terminal {
			break
		}
	}
	ruleStylingSequentialSafetyNet(content, analysis, sess)
	return analysis
}

// ruleHandoffConfirmation forces a previously suggested transfer target as
// primary once the user confirms, then clears the pending handoff.
func ruleHandoffConfirmation(content string, analysis *models.CollaborationAnalysis, sess *session.Session) bool {
	if sess == nil {
		return false
	}
	pending, target := sess.Handoff()
	if !pending || target == "" {
		return false
	}

	confirm := containsAny(content, affirmativeKeywords)
	switch target {
	case models.AgentSales:
		confirm = confirm || containsAny(content, transferToSalesKeywords)
	case models.AgentOrder:
		confirm = confirm || containsAny(content, transferToOrderKeywords)
	case models.AgentKnowledge:
		confirm = confirm || containsAny(content, transferToKnowledgeKeywords)
	case models.AgentStyling:
		confirm = confirm || containsAny(content, transferToStylingKeywords)
	}
	if !confirm {
		return false
	}

	recommended := []models.RecommendedAgent{
		{AgentID: target, Role: models.RolePrimary, Priority: 1},
	}
	for _, rec := range analysis.RecommendedAgents {
		if rec.AgentID == "" || rec.AgentID == target || hasAgentID(recommended, rec.AgentID) {
			continue
		}
		rec.Role = models.RoleSupport
		rec.Parallel = true
		rec.Priority = max(2, rec.Priority)
		recommended = append(recommended, rec)
	}
	analysis.RecommendedAgents = recommended
	analysis.Mode = models.WorkflowConsultation
	analysis.TaskPriority = models.TaskPriorityHigh
	analysis.FallbackAgent = target
	sess.ClearHandoff()
	return true
}

// ruleExplicitTransfer honors direct "转订单/转知识/转穿搭" requests without a
// prior suggestion.
func ruleExplicitTransfer(content string, analysis *models.CollaborationAnalysis, _ *session.Session) bool {
	var target string
	switch {
	case containsAny(content, transferToOrderKeywords):
		target = models.AgentOrder
	case containsAny(content, transferToKnowledgeKeywords):
		target = models.AgentKnowledge
	case containsAny(content, transferToStylingKeywords):
		target = models.AgentStyling
	default:
		return false
	}
	analysis.RecommendedAgents = []models.RecommendedAgent{
		{AgentID: target, Role: models.RolePrimary, Priority: 1},
	}
	analysis.Mode = models.WorkflowConsultation
	analysis.TaskPriority = models.TaskPriorityHigh
	analysis.FallbackAgent = target
	return true
}

// ruleStrongOrderIntent makes the order agent primary whenever the
// utterance carries order/logistics vocabulary, demoting any LLM-suggested
// agents to parallel support.
func ruleStrongOrderIntent(content string, analysis *models.CollaborationAnalysis, _ *session.Session) bool {
	if !containsAny(content, orderKeywords) {
		return false
	}
	recommended := []models.RecommendedAgent{
		{AgentID: models.AgentOrder, Role: models.RolePrimary, Priority: 1},
	}
	for _, rec := range analysis.RecommendedAgents {
		if rec.AgentID == "" || rec.AgentID == models.AgentOrder || hasAgentID(recommended, rec.AgentID) {
			continue
		}
		rec.Role = models.RoleSupport
		rec.Parallel = true
		rec.Priority = max(2, rec.Priority)
		recommended = append(recommended, rec)
	}
	analysis.RecommendedAgents = recommended
	analysis.Mode = models.WorkflowConsultation
	analysis.TaskPriority = models.TaskPriorityHigh
	analysis.FallbackAgent = models.AgentOrder
	return true
}

// ruleSalesStickiness keeps an ongoing sales conversation with the sales
// agent unless the user explicitly asks for styling or shows order intent.
func ruleSalesStickiness(content string, analysis *models.CollaborationAnalysis, sess *session.Session) bool {
	if sess == nil || !sess.HasCurrentAgent(models.AgentSales) {
		return false
	}
	if containsAny(content, transferToStylingKeywords) || containsAny(content, orderKeywords) {
		return false
	}

	prior := analysis.RecommendedAgents
	recommended := []models.RecommendedAgent{
		{AgentID: models.AgentSales, Role: models.RolePrimary, Priority: 1},
	}
	if containsAny(content, stylingKeywords) && !analysis.HasAgent(models.AgentStyling) {
		recommended = append(recommended, models.RecommendedAgent{
			AgentID: models.AgentStyling, Role: models.RoleSupport, Priority: 3, Parallel: true,
		})
	}
	recommended = appendKnowledgeSupport(recommended, prior, 2)
	for _, rec := range prior {
		switch rec.AgentID {
		case "", models.AgentSales, models.AgentStyling, models.AgentKnowledge:
			continue
		}
		if hasAgentID(recommended, rec.AgentID) {
			continue
		}
		rec.Role = models.RoleSupport
		rec.Parallel = true
		rec.Priority = max(3, rec.Priority)
		recommended = append(recommended, rec)
	}
	analysis.RecommendedAgents = recommended
	analysis.Mode = models.WorkflowConsultation
	analysis.TaskPriority = models.TaskPriorityHigh
	analysis.FallbackAgent = models.AgentSales
	return true
}

// ruleStylingOnly routes pure styling questions styling-first with a sales
// follow-up: the sales agent later searches products for the advised items.
func ruleStylingOnly(content string, analysis *models.CollaborationAnalysis, _ *session.Session) bool {
	if !containsAny(content, stylingKeywords) ||
		containsAny(content, salesKeywords) || containsAny(content, orderKeywords) {
		return false
	}
	recommended := []models.RecommendedAgent{
		{AgentID: models.AgentStyling, Role: models.RolePrimary, Priority: 1},
		{AgentID: models.AgentSales, Role: models.RoleSupport, Priority: 2},
	}
	recommended = appendKnowledgeSupport(recommended, analysis.RecommendedAgents, 3)
	analysis.RecommendedAgents = recommended
	analysis.Mode = models.WorkflowSequential
	analysis.TaskPriority = models.TaskPriorityHigh
	analysis.FallbackAgent = models.AgentSales
	return true
}

// ruleSalesIntent defaults sales as primary for purchase-flavored turns
// without order intent.
func ruleSalesIntent(content string, analysis *models.CollaborationAnalysis, _ *session.Session) bool {
	if !containsAny(content, salesKeywords) || containsAny(content, orderKeywords) {
		return false
	}
	prior := analysis.RecommendedAgents
	recommended := []models.RecommendedAgent{
		{AgentID: models.AgentSales, Role: models.RolePrimary, Priority: 1},
	}
	recommended = appendKnowledgeSupport(recommended, prior, 2)
	if containsAny(content, stylingKeywords) && !hasAgentID(recommended, models.AgentStyling) {
		recommended = append(recommended, models.RecommendedAgent{
			AgentID: models.AgentStyling, Role: models.RoleSupport, Priority: 3, Parallel: true,
		})
	}
	for _, rec := range prior {
		if rec.AgentID == "" || rec.AgentID == models.AgentSales || hasAgentID(recommended, rec.AgentID) {
			continue
		}
		rec.Role = models.RoleSupport
		rec.Parallel = true
		rec.Priority = max(3, rec.Priority)
		recommended = append(recommended, rec)
	}
	analysis.RecommendedAgents = recommended
	analysis.Mode = models.WorkflowConsultation
	analysis.TaskPriority = models.TaskPriorityHigh
	analysis.FallbackAgent = models.AgentSales
	return true
}

// ruleMixedStylingSales settles turns carrying both styling and sales
// vocabulary: stickiness or a strong sales keyword keeps sales in front,
// otherwise styling leads with sales as a sequential follow-up.
func ruleMixedStylingSales(content string, analysis *models.CollaborationAnalysis, sess *session.Session) bool {
	if !containsAny(content, stylingKeywords) || !containsAny(content, salesKeywords) ||
		containsAny(content, orderKeywords) {
		return false
	}
	preferSales := containsAny(content, strongSalesKeywords)
	if sess != nil && sess.HasCurrentAgent(models.AgentSales) {
		preferSales = true
	}

	if preferSales {
		analysis.RecommendedAgents = []models.RecommendedAgent{
			{AgentID: models.AgentSales, Role: models.RolePrimary, Priority: 1},
			{AgentID: models.AgentStyling, Role: models.RoleSupport, Priority: 2},
			{AgentID: models.AgentKnowledge, Role: models.RoleSupport, Priority: 3, Parallel: true},
		}
		analysis.Mode = models.WorkflowConsultation
	} else {
		analysis.RecommendedAgents = []models.RecommendedAgent{
			{AgentID: models.AgentStyling, Role: models.RolePrimary, Priority: 1},
			{AgentID: models.AgentSales, Role: models.RoleSupport, Priority: 2},
			{AgentID: models.AgentKnowledge, Role: models.RoleSupport, Priority: 3, Parallel: true},
		}
		analysis.Mode = models.WorkflowSequential
	}
	analysis.TaskPriority = models.TaskPriorityHigh
	analysis.FallbackAgent = models.AgentSales
	return true
}

// ruleStylingStickiness mirrors sales stickiness: an ongoing styling
// conversation stays styling-led with sales sequenced behind it.
func ruleStylingStickiness(content string, analysis *models.CollaborationAnalysis, sess *session.Session) bool {
	if sess == nil || !sess.HasCurrentAgent(models.AgentStyling) {
		return false
	}
	if containsAny(content, salesKeywords) || containsAny(content, orderKeywords) {
		return false
	}

	prior := analysis.RecommendedAgents
	recommended := []models.RecommendedAgent{
		{AgentID: models.AgentStyling, Role: models.RolePrimary, Priority: 1},
	}
	if !hasAgentID(prior, models.AgentSales) {
		recommended = append(recommended, models.RecommendedAgent{
			AgentID: models.AgentSales, Role: models.RoleSupport, Priority: 2,
		})
	}
	for _, rec := range prior {
		switch rec.AgentID {
		case "", models.AgentStyling:
			continue
		}
		if hasAgentID(recommended, rec.AgentID) {
			continue
		}
		rec.Role = models.RoleSupport
		rec.Parallel = rec.AgentID != models.AgentSales
		if rec.AgentID != models.AgentSales {
			rec.Priority = max(3, rec.Priority)
		}
		recommended = append(recommended, rec)
	}
	analysis.RecommendedAgents = recommended
	analysis.Mode = models.WorkflowSequential
	analysis.TaskPriority = models.TaskPriorityHigh
	analysis.FallbackAgent = models.AgentSales
	return true
}

// ruleStylingSequentialSafetyNet guarantees that a styling-led turn always
// ends with a sales follow-up in sequential mode, whatever the earlier
// rules produced.
func ruleStylingSequentialSafetyNet(_ string, analysis *models.CollaborationAnalysis, _ *session.Session) {
	primary := analysis.Primary()
	if primary == nil || primary.AgentID != models.AgentStyling {
		return
	}
	if !analysis.HasAgent(models.AgentSales) {
		analysis.RecommendedAgents = append(analysis.RecommendedAgents, models.RecommendedAgent{
			AgentID: models.AgentSales, Role: models.RoleSupport, Priority: 2,
		})
	}
	analysis.Mode = models.WorkflowSequential
}

func hasAgentID(recs []models.RecommendedAgent, agentID string) bool {
	for _, rec := range recs {
		if rec.AgentID == agentID {
			return true
		}
	}
	return false
}

// appendKnowledgeSupport carries an LLM-suggested knowledge entry over as
// parallel support, or adds a fresh one when the LLM omitted it.
func appendKnowledgeSupport(recommended, prior []models.RecommendedAgent, priority int) []models.RecommendedAgent {
	if hasAgentID(recommended, models.AgentKnowledge) {
		return recommended
	}
	for _, rec := range prior {
		if rec.AgentID == models.AgentKnowledge {
			rec.Role = models.RoleSupport
			rec.Parallel = true
			rec.Priority = max(priority, rec.Priority)
			return append(recommended, rec)
		}
	}
	return append(recommended, models.RecommendedAgent{
		AgentID: models.AgentKnowledge, Role: models.RoleSupport, Priority: priority, Parallel: true,
	})
}
