// Package search provides the product catalog lookup used by the sales
// agent. It wraps an upstream affiliate search API with keyword expansion,
// price and gender filtering, and display formatting, and degrades to an
// empty-but-friendly result when the upstream is unconfigured or down.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wardrobe-labs/concierge/pkg/config"
)

const (
	// SortSalesDesc orders results by total sales, best sellers first.
	SortSalesDesc = "total_sales_des"

	defaultPageSize = 10
	maxRetries      = 2
)

// Query describes one product search.
type Query struct {
	Keyword  string
	Page     int
	PageSize int
	Sort     string

	// PriceMin and PriceMax bound the coupon-adjusted price when non-nil.
	PriceMin *float64
	PriceMax *float64
}

// Result is the outcome of a search. Success is true even when no items
// matched so that callers render a friendly message instead of an error.
type Result struct {
	Success bool      `json:"success"`
	Count   int       `json:"count"`
	Items   []Product `json:"items"`
	Message string    `json:"message"`

	// Keyword is the strategy keyword that actually produced the items,
	// which may differ from the query keyword after expansion.
	Keyword string `json:"search_keyword"`
}

// Product is a normalized catalog item.
type Product struct {
	Title        string  `json:"title"`
	Brief        string  `json:"brief,omitempty"`
	Brand        string  `json:"brand,omitempty"`
	Price        float64 `json:"price,omitempty"`
	CouponPrice  string  `json:"coupon_price,omitempty"`
	CouponAmount string  `json:"coupon_amount,omitempty"`
	CouponInfo   string  `json:"coupon_info,omitempty"`
	ShopName     string  `json:"shop_name,omitempty"`
	ShopTitle    string  `json:"shop_title,omitempty"`
	ShopRating   string  `json:"shop_rating,omitempty"`
	Mall         bool    `json:"mall,omitempty"`
	Location     string  `json:"location,omitempty"`
	Volume       string  `json:"volume,omitempty"`
	CommentCount string  `json:"comment_count,omitempty"`
	ItemURL      string  `json:"item_url,omitempty"`
	SearchURL    string  `json:"search_url,omitempty"`
	PictureURL   string  `json:"picture_url,omitempty"`
	ItemID       string  `json:"item_id,omitempty"`
	CategoryName string  `json:"category_name,omitempty"`
}

// Client talks to the upstream product search API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a search client from configuration. An empty base URL
// yields a client in stub mode that always returns an empty result.
func NewClient(cfg config.SearchConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "product_search"),
	}
}

// Enabled reports whether an upstream endpoint is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Search runs the query against the upstream API. It tries the raw keyword
// first, then an expanded variant, then a simplified one, and returns the
// first strategy that yields items. It never returns a hard failure for
// "no results": callers always get a renderable Result.
func (c *Client) Search(ctx context.Context, q Query) (*Result, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}
	if q.Sort == "" {
		q.Sort = SortSalesDesc
	}

	if !c.Enabled() {
		c.logger.Debug("product search not configured, returning empty result", "keyword", q.Keyword)
		return emptyResult(q.Keyword), nil
	}

	strategies := []string{q.Keyword, ExpandKeyword(q.Keyword), SimplifyKeyword(q.Keyword)}
	seen := make(map[string]bool, len(strategies))
	for _, kw := range strategies {
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true

		items, err := c.fetch(ctx, kw, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("search strategy failed", "keyword", kw, "error", err)
			continue
		}
		if len(items) == 0 {
			c.logger.Debug("search strategy returned no items", "keyword", kw)
			continue
		}

		items = filterByPrice(items, q.PriceMin, q.PriceMax)
		if gender := DetectGender(kw); gender != GenderUnknown {
			before := len(items)
			items = filterByGender(items, gender)
			c.logger.Debug("applied gender filter", "gender", gender, "before", before, "after", len(items))
		}
		if len(items) == 0 {
			continue
		}

		products := make([]Product, 0, len(items))
		for _, it := range items {
			products = append(products, it.normalize())
		}
		return &Result{
			Success: true,
			Count:   len(products),
			Items:   products,
			Message: fmt.Sprintf("找到 %d 个相关商品", len(products)),
			Keyword: kw,
		}, nil
	}

	c.logger.Info("all search strategies exhausted", "keyword", q.Keyword)
	return emptyResult(q.Keyword), nil
}

func emptyResult(keyword string) *Result {
	return &Result{
		Success: true,
		Count:   0,
		Items:   []Product{},
		Message: fmt.Sprintf("暂时没有找到与%q相关的商品，建议尝试其他关键词", keyword),
		Keyword: keyword,
	}
}

// apiResponse is the upstream envelope. Status 200 carries items, 301 means
// the keyword matched nothing.
type apiResponse struct {
	Status  int       `json:"status"`
	Content []apiItem `json:"content"`
}

func (c *Client) fetch(ctx context.Context, keyword string, q Query) ([]apiItem, error) {
	params := url.Values{}
	params.Set("appkey", c.apiKey)
	params.Set("q", keyword)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("page_size", strconv.Itoa(q.PageSize))
	params.Set("sort", q.Sort)
	if q.PriceMin != nil {
		params.Set("price_min", strconv.FormatFloat(*q.PriceMin, 'f', -1, 64))
	}
	if q.PriceMax != nil {
		params.Set("price_max", strconv.FormatFloat(*q.PriceMax, 'f', -1, 64))
	}

	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("building search request: %w", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("search request failed: %w", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("search API returned status %d", resp.StatusCode)
			continue
		}

		var envelope apiResponse
		err = json.NewDecoder(resp.Body).Decode(&envelope)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("decoding search response: %w", err)
			continue
		}
		switch envelope.Status {
		case http.StatusOK:
			return envelope.Content, nil
		case http.StatusMovedPermanently:
			// Upstream convention for "no results".
			return nil, nil
		default:
			lastErr = fmt.Errorf("search API status %d", envelope.Status)
		}
	}
	return nil, lastErr
}

func filterByPrice(items []apiItem, min, max *float64) []apiItem {
	if min == nil && max == nil {
		return items
	}
	kept := make([]apiItem, 0, len(items))
	for _, it := range items {
		price, err := strconv.ParseFloat(string(it.CouponPrice), 64)
		if err != nil {
			continue
		}
		if min != nil && price < *min {
			continue
		}
		if max != nil && price > *max {
			continue
		}
		kept = append(kept, it)
	}
	return kept
}
