package search

import (
	"fmt"
	"strings"
)

const maxDisplayItems = 5

// FormatDisplay renders products as a chat-ready listing. At most five
// items are shown, with a trailing hint when more matched.
func FormatDisplay(products []Product, req Requirements) string {
	if len(products) == 0 {
		return "抱歉，没有找到符合条件的商品。"
	}

	keyword := req.SearchKeyword
	if keyword == "" {
		keyword = "商品"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "为您找到 %d 款%s", len(products), keyword)
	if req.PriceRange != "" && req.PriceRange != "不限" {
		fmt.Fprintf(&b, "（预算%s）", req.PriceRange)
	}
	b.WriteString("：\n\n")

	for i, p := range products {
		if i >= maxDisplayItems {
			break
		}
		fmt.Fprintf(&b, "🛍️ 商品 %d\n", i+1)
		title := p.Title
		if title == "" {
			title = "未知"
		}
		fmt.Fprintf(&b, "📝 商品名称: %s\n", title)
		if p.Brief != "" {
			fmt.Fprintf(&b, "📋 商品简介: %s\n", p.Brief)
		}
		if p.Price > 0 {
			fmt.Fprintf(&b, "💰 原价: ¥%.2f\n", p.Price)
		} else {
			b.WriteString("💰 原价: ¥未知\n")
		}
		coupon := p.CouponPrice
		if coupon == "" {
			coupon = "未知"
		}
		fmt.Fprintf(&b, "💸 券后价: ¥%s\n", coupon)
		if p.CouponAmount != "" {
			fmt.Fprintf(&b, "🎫 优惠券: %s元券\n", p.CouponAmount)
		}
		if p.CouponInfo != "" {
			fmt.Fprintf(&b, "🎟️ 优惠信息: %s\n", p.CouponInfo)
		}
		shop := p.ShopName
		if shop == "" {
			shop = "未知店铺"
		}
		shopType := "淘宝"
		if p.Mall {
			shopType = "天猫"
		}
		fmt.Fprintf(&b, "🏪 店铺: %s (%s)\n", shop, shopType)
		if p.ShopRating != "" {
			fmt.Fprintf(&b, "⭐ 店铺评分: %s\n", p.ShopRating)
		}
		if p.Location != "" {
			fmt.Fprintf(&b, "📍 发货地: %s\n", p.Location)
		}
		if p.Volume != "" {
			fmt.Fprintf(&b, "📊 销量: %s 件\n", p.Volume)
		}
		if p.CommentCount != "" {
			fmt.Fprintf(&b, "💬 评论数: %s\n", p.CommentCount)
		}
		if p.ItemURL != "" {
			fmt.Fprintf(&b, "🔗 商品链接: %s\n", p.ItemURL)
		}
		b.WriteString("\n" + strings.Repeat("=", 50) + "\n\n")
	}

	if len(products) > maxDisplayItems {
		fmt.Fprintf(&b, "还有 %d 款商品，如需查看更多请告诉我！", len(products)-maxDisplayItems)
	}
	return b.String()
}
