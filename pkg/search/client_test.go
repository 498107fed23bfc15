package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardrobe-labs/concierge/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.SearchConfig{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		TimeoutSeconds: 2,
	}, nil)
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, items []map[string]any) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"content": items,
	})
	require.NoError(t, err)
}

func TestSearchReturnsItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("appkey"))
		assert.Equal(t, "衬衫", r.URL.Query().Get("q"))
		writeEnvelope(t, w, 200, []map[string]any{
			{"tao_title": "纯棉衬衫", "quanhou_jiage": "89.00", "nick": "某某旗舰店", "user_type": 1},
		})
	})

	result, err := client.Search(context.Background(), Query{Keyword: "衬衫"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "衬衫", result.Keyword)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "纯棉衬衫", result.Items[0].Title)
	assert.Equal(t, "89.00", result.Items[0].CouponPrice)
	assert.True(t, result.Items[0].Mall)
	assert.Equal(t, "某某", result.Items[0].Brand)
	assert.Contains(t, result.Items[0].SearchURL, "s.taobao.com/search")
}

func TestSearchFallsBackToExpandedKeyword(t *testing.T) {
	var queries []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		queries = append(queries, q)
		if q == "衬衫" {
			// Upstream "no results" status.
			writeEnvelope(t, w, 301, nil)
			return
		}
		writeEnvelope(t, w, 200, []map[string]any{
			{"tao_title": "白衬衫", "quanhou_jiage": "59.00"},
		})
	})

	result, err := client.Search(context.Background(), Query{Keyword: "衬衫"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "衬衫 衬衣 shirt", result.Keyword)
	require.GreaterOrEqual(t, len(queries), 2)
	assert.Equal(t, "衬衫", queries[0])
}

func TestSearchAllStrategiesEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 301, nil)
	})

	result, err := client.Search(context.Background(), Query{Keyword: "不存在的东西"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Count)
	assert.Empty(t, result.Items)
	assert.Contains(t, result.Message, "不存在的东西")
}

func TestSearchRetriesOnServerError(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeEnvelope(t, w, 200, []map[string]any{
			{"tao_title": "卫衣", "quanhou_jiage": "120"},
		})
	})

	result, err := client.Search(context.Background(), Query{Keyword: "卫衣"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, 2, attempts)
}

func TestSearchPriceFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 200, []map[string]any{
			{"tao_title": "便宜衬衫", "quanhou_jiage": "39.00"},
			{"tao_title": "合适衬衫", "quanhou_jiage": "89.00"},
			{"tao_title": "昂贵衬衫", "quanhou_jiage": "399.00"},
			{"tao_title": "没价衬衫"},
		})
	})

	min, max := 50.0, 200.0
	result, err := client.Search(context.Background(), Query{Keyword: "衬衫", PriceMin: &min, PriceMax: &max})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "合适衬衫", result.Items[0].Title)
}

func TestSearchGenderFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 200, []map[string]any{
			{"tao_title": "男士商务衬衫", "quanhou_jiage": "99"},
			{"tao_title": "女士雪纺衬衫", "quanhou_jiage": "79"},
		})
	})

	result, err := client.Search(context.Background(), Query{Keyword: "男士衬衫"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "男士商务衬衫", result.Items[0].Title)
}

func TestSearchUnconfiguredStub(t *testing.T) {
	client := NewClient(config.SearchConfig{}, nil)
	assert.False(t, client.Enabled())

	result, err := client.Search(context.Background(), Query{Keyword: "衬衫"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Count)
}

func TestSearchContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 200, nil)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Search(ctx, Query{Keyword: "衬衫"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFlexStringAcceptsNumbers(t *testing.T) {
	var item apiItem
	err := json.Unmarshal([]byte(`{"quanhou_jiage": 89.5, "volume": "1200", "user_type": 1}`), &item)
	require.NoError(t, err)
	assert.Equal(t, "89.5", string(item.CouponPrice))
	assert.Equal(t, "1200", string(item.Volume))
	assert.Equal(t, "1", string(item.UserType))
}
