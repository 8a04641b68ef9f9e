// Package models defines data structures shared across the price monitor.
package models

import "time"

// Listing is one scraped price fact from a retailer search page. Rows are
// immutable once written; time-window filtering happens at read time.
type Listing struct {
	Retailer     string    `csv:"retailer" json:"retailer"`
	Title        string    `csv:"title" json:"title"`
	Price        *float64  `csv:"price" json:"price,omitempty"`
	Availability string    `csv:"availability" json:"availability"`
	ScrapedAt    time.Time `csv:"scraped_at" json:"scraped_at"`
	URL          string    `csv:"url" json:"url"`
}

// CanonicalItem is one curated catalog entry that listings are reconciled
// against.
type CanonicalItem struct {
	SKU           string `csv:"sku" json:"sku"`
	CanonicalName string `csv:"canonical_name" json:"canonical_name"`
}

// RetailerConfig describes one retailer search endpoint. SearchURL contains a
// single {q} substitution point for the query term; Parser selects the
// extraction strategy.
type RetailerConfig struct {
	Name      string `yaml:"name" json:"name"`
	SearchURL string `yaml:"search_url" json:"search_url"`
	Parser    string `yaml:"parser" json:"parser"`
}

// AggregateRow is one ranked output row of the aggregation engine. Prices are
// rounded to 2 decimal places and ratios/scores to 3 as a presentation step.
type AggregateRow struct {
	Name             string  `json:"name"`
	NListings        int     `json:"n_listings"`
	AvgPrice         float64 `json:"avg_price"`
	MinPrice         float64 `json:"min_price"`
	MaxPrice         float64 `json:"max_price"`
	Volatility       float64 `json:"volatility"`
	StockoutFrac     float64 `json:"stockout_frac"`
	FastSellingScore float64 `json:"fast_selling_score"`
	HighDemandScore  float64 `json:"high_demand_score"`
}

// RunResult holds the overall result of one scrape run.
type RunResult struct {
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int
	ListingCount int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
}

// Duration reports the wall-clock span of the run.
func (r *RunResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
