package parser

import "strings"

// Strategy selects the selector set used to pull listings out of a page.
type Strategy string

const (
	// StrategyGeneric probes broad "product card" hints and falls back to
	// scanning anchors. Works, roughly, on most store-front search pages.
	StrategyGeneric Strategy = "generic"
	// StrategyJumia is tuned for Jumia catalog pages.
	StrategyJumia Strategy = "jumia"
	// StrategyCarrefour is tuned for Carrefour search pages.
	StrategyCarrefour Strategy = "carrefour"
)

// ParseStrategy maps a retailer config tag to a Strategy. Unknown tags get
// the generic strategy, matching the best-effort extraction policy.
func ParseStrategy(tag string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(tag))) {
	case StrategyJumia:
		return StrategyJumia
	case StrategyCarrefour:
		return StrategyCarrefour
	default:
		return StrategyGeneric
	}
}

// strategySpec is a declarative selector table for one strategy. Each list is
// tried in priority order until a selector yields data, so tolerance to
// markup drift lives here as data rather than branching code.
type strategySpec struct {
	containers []string
	titles     []string
	prices     []string
	maxCards   int
}

var strategySpecs = map[Strategy]strategySpec{
	StrategyGeneric: {
		containers: []string{".product", ".item", ".product-card", ".list-item", "article"},
		titles:     []string{"h2", "h3", ".title", ".name", ".product-name"},
		prices:     []string{".price", ".product-price", ".prc", ".amount"},
		maxCards:   80,
	},
	StrategyJumia: {
		containers: []string{"article", ".sku"},
		titles:     []string{"h3", ".name"},
		prices:     []string{".prc", ".price"},
		maxCards:   60,
	},
	StrategyCarrefour: {
		containers: []string{".product-item", ".product"},
		titles:     []string{".product-title", "h2"},
		prices:     []string{".sales-price", ".price"},
		maxCards:   60,
	},
}

// maxAnchors bounds the anchor-scan fallback on pathological pages.
const maxAnchors = 120

// maxTitleLen bounds titles taken from free container text.
const maxTitleLen = 120
