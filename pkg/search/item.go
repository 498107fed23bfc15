package search

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// flexString tolerates upstream fields that arrive as either JSON strings
// or numbers depending on the item.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// apiItem mirrors one raw item from the upstream search API.
type apiItem struct {
	TaoTitle     string     `json:"tao_title"`
	Title        string     `json:"title"`
	Brief        string     `json:"jianjie"`
	Price        flexString `json:"price"`
	Size         flexString `json:"size"`
	CouponPrice  flexString `json:"quanhou_jiage"`
	CouponAmount flexString `json:"coupon_info_money"`
	CouponInfo   string     `json:"coupon_info"`
	BrandName    string     `json:"pinpai_name"`
	UserType     flexString `json:"user_type"`
	ShopRating   flexString `json:"shop_dsr"`
	Nick         string     `json:"nick"`
	ShopTitle    string     `json:"shop_title"`
	Location     string     `json:"provcity"`
	Volume       flexString `json:"volume"`
	CommentCount flexString `json:"commentCount"`
	ItemURL      string     `json:"item_url"`
	ItemID       flexString `json:"tao_id"`
	PictureURL   string     `json:"pict_url"`
	CategoryName string     `json:"category_name"`
}

func (it apiItem) displayTitle() string {
	if it.TaoTitle != "" {
		return it.TaoTitle
	}
	return it.Title
}

// searchableText is the haystack used for gender classification.
func (it apiItem) searchableText() string {
	return strings.ToLower(strings.Join([]string{
		it.TaoTitle, it.Title, it.CategoryName, it.ShopTitle, it.Nick, it.Brief,
	}, " "))
}

// normalize converts a raw item into the exported Product shape.
func (it apiItem) normalize() Product {
	raw := string(it.Price)
	if raw == "" {
		raw = string(it.Size)
	}
	price, _ := strconv.ParseFloat(raw, 64)

	brand := it.BrandName
	if brand == "" && strings.Contains(it.Nick, "旗舰店") {
		brand = strings.TrimSpace(strings.NewReplacer("旗舰店", "", "官方", "").Replace(it.Nick))
	}

	title := it.displayTitle()
	searchURL := ""
	if title != "" {
		// Affiliate item links expire; a title search link stays valid.
		searchURL = "https://s.taobao.com/search?q=" + url.QueryEscape(title)
	}

	return Product{
		Title:        title,
		Brief:        it.Brief,
		Brand:        brand,
		Price:        price,
		CouponPrice:  string(it.CouponPrice),
		CouponAmount: string(it.CouponAmount),
		CouponInfo:   it.CouponInfo,
		ShopName:     it.Nick,
		ShopTitle:    it.ShopTitle,
		ShopRating:   string(it.ShopRating),
		Mall:         string(it.UserType) == "1",
		Location:     it.Location,
		Volume:       string(it.Volume),
		CommentCount: string(it.CommentCount),
		ItemURL:      it.ItemURL,
		SearchURL:    searchURL,
		PictureURL:   it.PictureURL,
		ItemID:       string(it.ItemID),
		CategoryName: it.CategoryName,
	}
}
