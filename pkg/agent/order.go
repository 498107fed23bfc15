package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/wardrobe-labs/concierge/pkg/models"
)

const orderSystemPrompt = `你是一个专业的订单管理专员，专门负责订单相关的查询和处理。

## 核心职责（严格限定）：
1. **订单查询** - 帮助客户查询订单状态、详情和物流信息
2. **订单处理** - 协助处理订单修改、取消、退款等操作
3. **物流跟踪** - 提供物流配送状态和预计送达时间
4. **售后服务** - 处理退换货、投诉等售后问题

## 严格禁止处理以下内容（必须转接）：
- 产品咨询、购买咨询、价格优惠 → 转接sales_agent
- 穿搭建议、搭配指导 → 转接styling_agent
- 面料知识、洗涤保养 → 转接knowledge_agent

## 服务流程：
1. **身份确认** - 通过订单号或手机号确认客户身份
2. **需求理解** - 准确理解客户的订单相关需求
3. **信息查询** - 调用订单系统获取准确信息（当前为模拟数据）
4. **问题解决** - 提供解决方案或转接相关部门

## 模拟环境说明：
- 当前运行在演示模式下，订单数据为模拟生成
- 请自然地处理客户请求，就像处理真实订单一样

## 特别注意：
- 保护客户隐私，确认身份后再提供详细信息
- 遇到非订单相关问题，立即转接到相应智能体`

var (
	orderNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`DD[0-9]{8,}`),
		regexp.MustCompile(`TB[0-9]{8,}`),
		regexp.MustCompile(`[0-9]{10,20}`),
		regexp.MustCompile(`[A-Z0-9]{8,20}`),
	}
	phonePattern = regexp.MustCompile(`1[3-9][0-9]{9}`)
)

// OrderInfo is one order as returned by the (mock) order backend.
type OrderInfo struct {
	OrderNumber       string `json:"order_number"`
	Status            string `json:"status"`
	ProductName       string `json:"product_name"`
	ProductDetails    string `json:"product_details"`
	Amount            string `json:"amount"`
	CreateTime        string `json:"create_time"`
	LogisticsInfo     string `json:"logistics_info"`
	Phone             string `json:"phone"`
	DeliveryAddress   string `json:"delivery_address"`
	EstimatedDelivery string `json:"estimated_delivery,omitempty"`
}

// OrderBackend looks up orders. The default implementation fabricates
// plausible demo data.
type OrderBackend interface {
	OrderByNumber(ctx context.Context, orderNumber string) ([]OrderInfo, error)
	OrdersByPhone(ctx context.Context, phone string) ([]OrderInfo, error)
}

// Order handles order status, logistics, and after-sales questions.
type Order struct {
	base
	backend OrderBackend
}

// NewOrder creates the order agent. A nil backend falls back to demo data.
func NewOrder(completer Completer, backend OrderBackend, logger *slog.Logger) *Order {
	if backend == nil {
		backend = mockOrderBackend{}
	}
	return &Order{
		base:    newBase(models.AgentOrder, "order", completer, logger),
		backend: backend,
	}
}

func (o *Order) Capabilities() []string {
	return []string{"订单查询", "物流跟踪", "订单修改", "退换货处理", "售后服务"}
}

// Handle answers the message, looking up the order first when the user
// supplied an order number or phone number.
func (o *Order) Handle(ctx context.Context, msg *models.Message, turnContext map[string]any) (*models.AgentResponse, error) {
	orders := o.lookupOrders(ctx, msg.Content)

	var prompt string
	if len(orders) > 0 {
		prompt = o.orderInfoPrompt(msg, orders)
	} else {
		prompt = o.buildPrompt(orderSystemPrompt, msg, turnContext)
	}

	raw := o.generate(ctx, prompt)
	resp := o.parseResponse(raw)
	resp.IntentType = models.IntentOrderInquiry
	if len(orders) > 0 {
		resp.Metadata["order_numbers"] = orderNumbersOf(orders)
	}

	o.remember(msg.ConversationID, msg.Content, resp.Content)
	return resp, nil
}

func (o *Order) lookupOrders(ctx context.Context, content string) []OrderInfo {
	if number := ExtractOrderNumber(content); number != "" {
		orders, err := o.backend.OrderByNumber(ctx, number)
		if err != nil {
			o.logger.Warn("order lookup by number failed", "order_number", number, "error", err)
			return nil
		}
		return orders
	}
	if phone := ExtractPhoneNumber(content); phone != "" {
		orders, err := o.backend.OrdersByPhone(ctx, phone)
		if err != nil {
			o.logger.Warn("order lookup by phone failed", "error", err)
			return nil
		}
		return orders
	}
	return nil
}

func (o *Order) orderInfoPrompt(msg *models.Message, orders []OrderInfo) string {
	var sb strings.Builder
	sb.WriteString(orderSystemPrompt)
	sb.WriteString("\n\n## 查询到的订单信息：\n")
	for _, order := range orders {
		encoded, _ := json.Marshal(order)
		sb.Write(encoded)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\n## 客户当前消息：\n%s\n\n", msg.Content)
	sb.WriteString(`## 任务：
基于上述订单信息，用友好、专业的语气回答客户的问题。突出订单状态和物流进展，必要时说明后续步骤。

## 响应格式（JSON）：
{
  "content": "你的回复内容",
  "confidence": 0.9,
  "next_action": "continue/transfer/complete",
  "suggested_agents": [],
  "requires_human": false
}`)
	return sb.String()
}

func orderNumbersOf(orders []OrderInfo) []string {
	numbers := make([]string, len(orders))
	for i, o := range orders {
		numbers[i] = o.OrderNumber
	}
	return numbers
}

// ExtractOrderNumber finds the first order-number-shaped token in the
// text. Prefixed formats (DD…, TB…) win over bare digit runs.
func ExtractOrderNumber(text string) string {
	upper := strings.ToUpper(text)
	for _, pattern := range orderNumberPatterns {
		if match := pattern.FindString(upper); match != "" {
			return match
		}
	}
	return ""
}

// ExtractPhoneNumber finds the first Chinese mobile number in the text.
func ExtractPhoneNumber(text string) string {
	return phonePattern.FindString(text)
}

// mockOrderBackend fabricates plausible orders for the demo environment.
type mockOrderBackend struct{}

var (
	mockStatuses = []string{"已下单", "已付款", "已发货", "配送中", "已送达", "已完成"}

	mockProducts = []struct {
		name, price, color, size string
	}{
		{"时尚休闲T恤", "199.00", "白色", "M"},
		{"牛仔裤", "299.00", "蓝色", "L"},
		{"运动鞋", "599.00", "黑色", "42"},
		{"连衣裙", "399.00", "粉色", "S"},
		{"羽绒服", "899.00", "深蓝", "XL"},
	}

	mockLogistics = map[string]string{
		"已下单": "订单已提交，正在处理中",
		"已付款": "付款成功，商品正在准备发货",
		"已发货": "商品已发货，物流单号：SF1234567890",
		"配送中": "您的包裹正在配送中，预计今日送达",
		"已送达": "包裹已送达，感谢您的购买",
		"已完成": "订单已完成，如有问题请联系客服",
	}
)

func (mockOrderBackend) OrderByNumber(_ context.Context, orderNumber string) ([]OrderInfo, error) {
	return []OrderInfo{mockOrder(orderNumber, "")}, nil
}

func (mockOrderBackend) OrdersByPhone(_ context.Context, phone string) ([]OrderInfo, error) {
	return []OrderInfo{mockOrder("", phone)}, nil
}

func mockOrder(orderNumber, phone string) OrderInfo {
	if orderNumber == "" {
		orderNumber = fmt.Sprintf("2023%02d%02d%04d", rand.Intn(12)+1, rand.Intn(28)+1, rand.Intn(9000)+1000)
	}
	if phone == "" {
		phone = fmt.Sprintf("138%08d", rand.Intn(100000000))
	}

	product := mockProducts[rand.Intn(len(mockProducts))]
	status := mockStatuses[rand.Intn(len(mockStatuses))]
	orderTime := time.Now().AddDate(0, 0, -(rand.Intn(30) + 1))

	info := OrderInfo{
		OrderNumber:     orderNumber,
		Status:          status,
		ProductName:     product.name,
		ProductDetails:  product.color + " " + product.size,
		Amount:          product.price,
		CreateTime:      orderTime.Format("2006-01-02 15:04:05"),
		LogisticsInfo:   mockLogistics[status],
		Phone:           phone,
		DeliveryAddress: "北京市朝阳区xxx街道xxx号",
	}
	if status == "已发货" || status == "配送中" {
		info.EstimatedDelivery = time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	}
	return info
}
