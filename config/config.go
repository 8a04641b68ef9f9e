// Package config holds runtime configuration for the price monitor.
package config

import (
	"fmt"
	"time"
)

// Config holds monitor configuration.
type Config struct {
	DBPath      string
	CatalogPath string
	// RetailersPath optionally points at a yaml retailer list; empty keeps
	// the built-in table.
	RetailersPath string

	ListenAddr  string
	MetricsAddr string

	Parallelism int
	Delay       time.Duration
	RandomDelay time.Duration
	Timeout     time.Duration
	UserAgent   string
	// RespectRobotsTxt makes the collector honour robots.txt directives.
	RespectRobotsTxt bool

	// MaxQueries bounds how many catalog names a scheduled run searches for.
	MaxQueries int
	// WindowDays is the default aggregation window for API calls that do not
	// specify one.
	WindowDays int
	// MatchThreshold is the minimum fuzzy-match confidence (0-100).
	MatchThreshold int

	// CronSpec schedules background scrape runs; empty disables them.
	CronSpec string

	// ExportFile, when set, mirrors every stored listing into a CSV or JSONL
	// export alongside the database.
	ExportFile string

	Verbose bool
}

// DefaultConfig returns conservative defaults for the stock retailer set.
func DefaultConfig() *Config {
	return &Config{
		DBPath:         "prices.db",
		CatalogPath:    "sku_master.csv",
		ListenAddr:     ":5000",
		MetricsAddr:    "",
		Parallelism:    4,
		Delay:          800 * time.Millisecond,
		RandomDelay:    200 * time.Millisecond,
		Timeout:        18 * time.Second,
		UserAgent:      "Mozilla/5.0 (compatible; PriceWatch/1.0; +https://example.com)",
		MaxQueries:     12,
		WindowDays:     30,
		MatchThreshold: 70,
		CronSpec:       "",
		Verbose:        false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog path cannot be empty")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.MaxQueries <= 0 {
		return fmt.Errorf("max queries must be positive")
	}
	if c.WindowDays < 0 {
		return fmt.Errorf("window days cannot be negative")
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 100 {
		return fmt.Errorf("match threshold must be between 0 and 100")
	}
	return nil
}
