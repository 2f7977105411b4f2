package recommendation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lewisedginton/present_ponder/internal/gift"
)

const (
	PricePlaceholder    = "Price varies"
	CategoryPlaceholder = "Gift"
)

// Item is one raw recommendation as returned by the service. Field names vary between calls.
type Item map[string]any

// Response is the POST /recommend success body.
type Response struct {
	Recommendations []Item `json:"recommendations"`
	ProfileID       string `json:"profile_id,omitempty"`
}

// extractor yields a value for an output field, or false to defer to the next one.
type extractor func(Item) (string, bool)

var (
	nameChain        = []extractor{field("product")}
	descriptionChain = []extractor{field("explanation")}
	priceChain       = []extractor{field("product_cost"), constant(PricePlaceholder)}
	categoryChain    = []extractor{field("category"), field("type"), constant(CategoryPlaceholder)}
	linkChain        = []extractor{field("product_url"), storeLink}
)

func first(item Item, chain []extractor) string {
	for _, ex := range chain {
		if v, ok := ex(item); ok {
			return v
		}
	}
	return ""
}

// field reads a non-blank scalar. Numbers are accepted since costs sometimes arrive unquoted.
func field(key string) extractor {
	return func(item Item) (string, bool) {
		switch v := item[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
		return "", false
	}
}

func constant(value string) extractor {
	return func(Item) (string, bool) { return value, true }
}

// storeLink accepts a store that is already an absolute URL, or becomes one with an https:// prefix.
func storeLink(item Item) (string, bool) {
	store, ok := item["store"].(string)
	if !ok {
		return "", false
	}
	store = strings.TrimSpace(store)
	if store == "" || strings.ContainsAny(store, " \t\n") {
		return "", false
	}
	if isAbsoluteURL(store) {
		return store, true
	}
	if candidate := "https://" + store; isAbsoluteURL(candidate) {
		return candidate, true
	}
	return "", false
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// NormalizeResponse maps raw items to recommendations with ids "<contextID>-<index>".
func NormalizeResponse(items []Item, contextID string) []gift.Recommendation {
	out := make([]gift.Recommendation, 0, len(items))
	for idx, item := range items {
		out = append(out, gift.Recommendation{
			ID:          fmt.Sprintf("%s-%d", contextID, idx),
			Name:        first(item, nameChain),
			Description: first(item, descriptionChain),
			Price:       first(item, priceChain),
			Category:    first(item, categoryChain),
			Link:        first(item, linkChain),
		})
	}
	return out
}
