package search

import (
	"sort"
	"strings"
)

// Gender is the shopper gender inferred from a search keyword.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

// categoryExpansion maps a clothing category to synonyms that widen recall
// on the upstream fuzzy search.
var categoryExpansion = map[string]string{
	"衬衫":     "衬衫 衬衣 shirt",
	"裤子":     "裤子 长裤 pants",
	"裙子":     "裙子 连衣裙 dress skirt",
	"外套":     "外套 夹克 jacket coat",
	"鞋子":     "鞋子 鞋 shoes",
	"包":      "包 包包 bag",
	"帽子":     "帽子 hat cap",
	"手表":     "手表 腕表 watch",
	"眼镜":     "眼镜 glasses",
	"项链":     "项链 necklace",
	"耳环":     "耳环 earrings",
	"戒指":     "戒指 ring",
	"手链":     "手链 bracelet",
	"围巾":     "围巾 scarf",
	"手套":     "手套 gloves",
	"袜子":     "袜子 socks",
	"内衣":     "内衣 underwear",
	"睡衣":     "睡衣 pajamas",
	"运动服":    "运动服 sportswear",
	"牛仔裤":    "牛仔裤 jeans",
	"t恤":     "t恤 t-shirt tshirt",
	"毛衣":     "毛衣 sweater",
	"西装":     "西装 suit",
	"连衣裙":    "连衣裙 dress",
	"短裤":     "短裤 shorts",
	"背心":     "背心 vest",
	"风衣":     "风衣 trench coat",
	"羽绒服":    "羽绒服 down jacket",
	"卫衣":     "卫衣 hoodie",
	"polo衫":  "polo衫 polo shirt",
	"马甲":     "马甲 vest waistcoat",
}

var colorExpansion = map[string]string{
	"红":  "红色 red",
	"蓝":  "蓝色 blue",
	"绿":  "绿色 green",
	"黄":  "黄色 yellow",
	"黑":  "黑色 black",
	"白":  "白色 white",
	"灰":  "灰色 gray grey",
	"粉":  "粉色 pink",
	"紫":  "紫色 purple",
	"橙":  "橙色 orange",
	"棕":  "棕色 brown",
	"米":  "米色 beige",
	"卡其": "卡其色 khaki",
	"藏青": "藏青色 navy",
}

var sizeExpansion = map[string]string{
	"xs":   "XS 加小号",
	"s":    "S 小号",
	"m":    "M 中号",
	"l":    "L 大号",
	"xl":   "XL 加大号",
	"xxl":  "XXL 特大号",
	"xxxl": "XXXL 超大号",
}

// fillerWords are conversational particles stripped when simplifying.
var fillerWords = []string{
	"的", "了", "吧", "呢", "啊", "哦", "嗯", "好", "很",
	"非常", "特别", "比较", "有点", "一点", "一些",
}

// coreCategories are tried longest-first so "连衣裙" wins over "裙子"
// when both appear.
var coreCategories = []string{
	"连衣裙", "牛仔裤", "运动服", "羽绒服", "polo衫",
	"衬衫", "裤子", "裙子", "外套", "鞋子", "帽子", "手表", "眼镜",
	"项链", "耳环", "戒指", "手链", "围巾", "手套", "袜子", "内衣",
	"睡衣", "t恤", "毛衣", "西装", "短裤", "背心", "风衣", "卫衣",
	"马甲", "包",
}

var maleMarkers = []string{"男士", "男生", "男性", "男装", "男款", "男"}
var femaleMarkers = []string{"女士", "女生", "女性", "女装", "女款", "女"}
var unisexMarkers = []string{"中性", "男女同款", "情侣", "通用", "unisex", "男女"}

// ExpandKeyword widens a keyword with category, color, and size synonyms.
// Category and color keys are replaced longest-first so that "连衣裙" wins
// over "裙子"; size codes only match whole tokens, otherwise the "s" in an
// injected "shirt" would itself get expanded.
func ExpandKeyword(keyword string) string {
	if keyword == "" {
		return ""
	}
	expanded := strings.ToLower(keyword)
	for _, table := range []map[string]string{categoryExpansion, colorExpansion} {
		for _, original := range keysLongestFirst(table) {
			expanded = strings.ReplaceAll(expanded, original, table[original])
		}
	}

	tokens := strings.Fields(expanded)
	for i, tok := range tokens {
		if terms, ok := sizeExpansion[tok]; ok {
			tokens[i] = terms
		}
	}
	return strings.TrimSpace(strings.Join(tokens, " "))
}

func keysLongestFirst(table map[string]string) []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := len([]rune(keys[i])), len([]rune(keys[j]))
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// SimplifyKeyword strips conversational filler and, when possible, reduces
// the keyword to a single core clothing category.
func SimplifyKeyword(keyword string) string {
	if keyword == "" {
		return ""
	}
	simplified := strings.ToLower(keyword)
	for _, w := range fillerWords {
		simplified = strings.ReplaceAll(simplified, w, "")
	}
	for _, category := range coreCategories {
		if strings.Contains(simplified, category) {
			return category
		}
	}
	return strings.TrimSpace(simplified)
}

// DetectGender infers the shopper gender from a keyword, or GenderUnknown
// when the keyword mentions both or neither.
func DetectGender(keyword string) Gender {
	if keyword == "" {
		return GenderUnknown
	}
	k := strings.ToLower(keyword)
	hasMale := containsAny(k, maleMarkers)
	hasFemale := containsAny(k, femaleMarkers)
	switch {
	case hasMale && !hasFemale:
		return GenderMale
	case hasFemale && !hasMale:
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// filterByGender keeps items matching the target gender plus unisex items.
// Rather than requiring a positive marker, it drops items carrying the
// opposite gender's markers, since many listings omit gender entirely.
func filterByGender(items []apiItem, target Gender) []apiItem {
	if target == GenderUnknown {
		return items
	}
	exclude := femaleMarkers
	if target == GenderFemale {
		exclude = maleMarkers
	}
	kept := make([]apiItem, 0, len(items))
	for _, it := range items {
		text := it.searchableText()
		if containsAny(text, unisexMarkers) {
			kept = append(kept, it)
			continue
		}
		if containsAny(text, exclude) {
			continue
		}
		kept = append(kept, it)
	}
	return kept
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// Requirements captures the structured shopping needs the sales agent
// extracts from a conversation.
type Requirements struct {
	Gender          string `json:"gender,omitempty"`
	ClothingType    string `json:"clothing_type,omitempty"`
	SearchKeyword   string `json:"search_keyword,omitempty"`
	BrandPreference string `json:"brand_preference,omitempty"`
	StylePreference string `json:"style_preference,omitempty"`
	PriceRange      string `json:"price_range,omitempty"`
}

// itemPatterns maps a canonical product type to the phrases that signal it
// in a raw user message.
var itemPatterns = []struct {
	itemType string
	patterns []string
}{
	{"t恤", []string{"t恤", "tshirt", "t-shirt"}},
	{"外套", []string{"外套", "夹克", "jacket"}},
	{"连衣裙", []string{"连衣裙", "裙子"}},
	{"衬衫", []string{"衬衫", "shirt"}},
	{"毛衣", []string{"毛衣", "sweater"}},
	{"牛仔裤", []string{"牛仔裤", "jeans"}},
	{"运动鞋", []string{"运动鞋", "sneaker"}},
	{"皮鞋", []string{"皮鞋", "leather shoes"}},
}

// BuildKeyword assembles a search keyword from structured requirements,
// preferring concrete product types found in the user's own wording over
// the coarser classified clothing type.
func BuildKeyword(req Requirements) string {
	var keywords []string

	if req.Gender != "" {
		keywords = append(keywords, req.Gender)
	}

	original := strings.ToLower(req.SearchKeyword)
	var specific []string
	for _, entry := range itemPatterns {
		for _, p := range entry.patterns {
			if strings.Contains(original, p) {
				specific = append(specific, entry.itemType)
				break
			}
		}
	}

	if len(specific) > 0 {
		keywords = append(keywords, specific...)
	} else if req.ClothingType != "" && req.ClothingType != "服装" {
		keywords = append(keywords, req.ClothingType)
	}

	if req.BrandPreference != "" && req.BrandPreference != "无偏好" {
		keywords = append(keywords, req.BrandPreference)
	}
	if req.StylePreference != "" {
		keywords = append(keywords, req.StylePreference)
	}

	if len(keywords) == 0 {
		if req.SearchKeyword != "" {
			keywords = append(keywords, truncateRunes(req.SearchKeyword, 10))
		} else {
			return "商品"
		}
	}
	return strings.Join(keywords, " ")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
