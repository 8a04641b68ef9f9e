// Package aggregate turns stored listings into ranked per-item demand
// heuristics over a trailing time window.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kmuchiri/pricewatch/match"
	"github.com/kmuchiri/pricewatch/models"
)

// Weights holds the scoring policy. The defaults are the operating point of
// the original heuristics; each formula's weights sum to 1 so both scores
// stay in [0,1].
type Weights struct {
	FastListingCount float64
	FastStockout     float64
	FastVolatility   float64

	DemandListingCount float64
	DemandVolatility   float64
}

// DefaultWeights returns the standard scoring policy.
func DefaultWeights() Weights {
	return Weights{
		FastListingCount:   0.45,
		FastStockout:       0.35,
		FastVolatility:     0.20,
		DemandListingCount: 0.60,
		DemandVolatility:   0.40,
	}
}

// Engine computes ranked aggregate rows. It holds no mutable state between
// calls: every aggregation is a full, idempotent recompute over the snapshot
// it is handed.
type Engine struct {
	matcher *match.Matcher
	weights Weights

	// listingSaturation is the listing count treated as maximal signal.
	listingSaturation float64
	// volatilitySaturation is the price spread treated as maximal signal.
	volatilitySaturation float64
	// stockoutTerms are matched case-insensitively as substrings of the
	// availability text.
	stockoutTerms []string

	now func() time.Time
}

// Option adjusts engine policy.
type Option func(*Engine)

// WithWeights overrides the scoring weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithStockoutTerms overrides the out-of-stock indicator substrings.
func WithStockoutTerms(terms []string) Option {
	return func(e *Engine) { e.stockoutTerms = append([]string(nil), terms...) }
}

// WithClock overrides the window reference clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine that resolves group identity via matcher.
func NewEngine(matcher *match.Matcher, opts ...Option) *Engine {
	e := &Engine{
		matcher:              matcher,
		weights:              DefaultWeights(),
		listingSaturation:    20,
		volatilitySaturation: 0.2,
		stockoutTerms:        []string{"out", "sold"},
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type group struct {
	key      string
	listings []models.Listing
}

// Aggregate filters listings to the trailing window, resolves each to a
// canonical group, computes per-group statistics and returns rows ranked by
// fast-selling score descending. Ties keep first-seen group order. Empty or
// fully filtered input yields an empty result, not an error; only a negative
// window is rejected.
func (e *Engine) Aggregate(listings []models.Listing, windowDays int) ([]models.AggregateRow, error) {
	if windowDays < 0 {
		return nil, fmt.Errorf("window days must not be negative, got %d", windowDays)
	}

	cutoff := e.now().UTC().AddDate(0, 0, -windowDays)

	groups := make(map[string]int)
	var ordered []group
	for _, l := range listings {
		if l.ScrapedAt.Before(cutoff) {
			continue
		}
		if l.Price == nil {
			continue
		}
		key, _ := e.matcher.GroupKey(l.Title)
		idx, ok := groups[key]
		if !ok {
			idx = len(ordered)
			groups[key] = idx
			ordered = append(ordered, group{key: key})
		}
		ordered[idx].listings = append(ordered[idx].listings, l)
	}

	rows := make([]models.AggregateRow, 0, len(ordered))
	for _, g := range ordered {
		rows = append(rows, e.score(g))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].FastSellingScore > rows[j].FastSellingScore
	})
	return rows, nil
}

func (e *Engine) score(g group) models.AggregateRow {
	n := len(g.listings)
	var sum float64
	min, max := *g.listings[0].Price, *g.listings[0].Price
	stockouts := 0
	for _, l := range g.listings {
		p := *l.Price
		sum += p
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
		if e.isStockout(l.Availability) {
			stockouts++
		}
	}

	avg := sum / float64(n)
	volatility := 0.0
	if avg != 0 {
		volatility = (max - min) / avg
	}
	stockoutFrac := float64(stockouts) / float64(n)

	countScore := saturate(float64(n) / e.listingSaturation)
	volScore := saturate(volatility / e.volatilitySaturation)
	fast := e.weights.FastListingCount*countScore +
		e.weights.FastStockout*stockoutFrac +
		e.weights.FastVolatility*volScore
	demand := e.weights.DemandListingCount*countScore +
		e.weights.DemandVolatility*volScore

	// Rounding is presentation only; nothing downstream consumes these.
	return models.AggregateRow{
		Name:             g.key,
		NListings:        n,
		AvgPrice:         round(avg, 2),
		MinPrice:         round(min, 2),
		MaxPrice:         round(max, 2),
		Volatility:       round(volatility, 3),
		StockoutFrac:     round(stockoutFrac, 3),
		FastSellingScore: round(fast, 3),
		HighDemandScore:  round(demand, 3),
	}
}

func (e *Engine) isStockout(availability string) bool {
	if availability == "" {
		return false
	}
	lower := strings.ToLower(availability)
	for _, term := range e.stockoutTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func saturate(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
