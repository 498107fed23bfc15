package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandKeyword(t *testing.T) {
	tests := []struct {
		name     string
		keyword  string
		expected string
	}{
		{
			name:     "category synonym",
			keyword:  "衬衫",
			expected: "衬衫 衬衣 shirt",
		},
		{
			name:     "color prefix expansion",
			keyword:  "红毛衣",
			expected: "红色 red毛衣 sweater",
		},
		{
			name:     "empty keyword",
			keyword:  "",
			expected: "",
		},
		{
			name:     "no known terms passes through",
			keyword:  "礼盒",
			expected: "礼盒",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandKeyword(tt.keyword))
		})
	}
}

func TestSimplifyKeyword(t *testing.T) {
	tests := []struct {
		name     string
		keyword  string
		expected string
	}{
		{
			name:     "strips filler and keeps category",
			keyword:  "有点好看的衬衫呢",
			expected: "衬衫",
		},
		{
			name:     "compound category wins over substring",
			keyword:  "夏天的连衣裙",
			expected: "连衣裙",
		},
		{
			name:     "no category returns cleaned text",
			keyword:  "很好看的礼盒",
			expected: "看礼盒",
		},
		{
			name:     "empty keyword",
			keyword:  "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SimplifyKeyword(tt.keyword))
		})
	}
}

func TestDetectGender(t *testing.T) {
	tests := []struct {
		name     string
		keyword  string
		expected Gender
	}{
		{"male marker", "男士衬衫", GenderMale},
		{"female marker", "女装连衣裙", GenderFemale},
		{"both markers is ambiguous", "男女同款卫衣", GenderUnknown},
		{"no marker", "蓝色牛仔裤", GenderUnknown},
		{"empty", "", GenderUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectGender(tt.keyword))
		})
	}
}

func TestFilterByGender(t *testing.T) {
	items := []apiItem{
		{TaoTitle: "男士商务衬衫"},
		{TaoTitle: "女士雪纺衬衫"},
		{TaoTitle: "情侣款卫衣"},
		{TaoTitle: "纯棉衬衫"},
	}

	male := filterByGender(items, GenderMale)
	titles := make([]string, 0, len(male))
	for _, it := range male {
		titles = append(titles, it.TaoTitle)
	}
	assert.Equal(t, []string{"男士商务衬衫", "情侣款卫衣", "纯棉衬衫"}, titles)

	female := filterByGender(items, GenderFemale)
	titles = titles[:0]
	for _, it := range female {
		titles = append(titles, it.TaoTitle)
	}
	assert.Equal(t, []string{"女士雪纺衬衫", "情侣款卫衣", "纯棉衬衫"}, titles)

	assert.Len(t, filterByGender(items, GenderUnknown), 4)
}

func TestBuildKeyword(t *testing.T) {
	tests := []struct {
		name     string
		req      Requirements
		expected string
	}{
		{
			name: "specific item from raw wording beats classified type",
			req: Requirements{
				Gender:        "男",
				ClothingType:  "上衣",
				SearchKeyword: "想买件牛仔裤",
			},
			expected: "男 牛仔裤",
		},
		{
			name: "falls back to clothing type",
			req: Requirements{
				Gender:       "女",
				ClothingType: "风衣",
			},
			expected: "女 风衣",
		},
		{
			name: "generic clothing type is skipped",
			req: Requirements{
				ClothingType:  "服装",
				SearchKeyword: "平平无奇",
			},
			expected: "平平无奇",
		},
		{
			name: "brand and style appended",
			req: Requirements{
				ClothingType:    "卫衣",
				BrandPreference: "优衣库",
				StylePreference: "简约",
			},
			expected: "卫衣 优衣库 简约",
		},
		{
			name: "no preference brand ignored",
			req: Requirements{
				ClothingType:    "卫衣",
				BrandPreference: "无偏好",
			},
			expected: "卫衣",
		},
		{
			name:     "nothing extracted",
			req:      Requirements{},
			expected: "商品",
		},
		{
			name: "long raw keyword truncated",
			req: Requirements{
				SearchKeyword: "这是一个非常非常长的用户搜索请求",
			},
			expected: "这是一个非常非常长的",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildKeyword(tt.req))
		})
	}
}
