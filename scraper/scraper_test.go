package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/kmuchiri/pricewatch/config"
	"github.com/kmuchiri/pricewatch/models"
	"github.com/kmuchiri/pricewatch/pipeline"
)

type collectingWriter struct {
	mu       sync.Mutex
	listings []*models.Listing
}

func (cw *collectingWriter) Write(listings []*models.Listing) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.listings = append(cw.listings, listings...)
	return nil
}

func (cw *collectingWriter) Close() error    { return nil }
func (cw *collectingWriter) Validate() error { return nil }

func (cw *collectingWriter) Count() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return len(cw.listings)
}

func (cw *collectingWriter) All() []*models.Listing {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	out := make([]*models.Listing, len(cw.listings))
	copy(out, cw.listings)
	return out
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Parallelism = 2
	cfg.Delay = 0
	cfg.RandomDelay = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

func searchPage(n int) string {
	page := "<html><body>"
	for i := 1; i <= n; i++ {
		page += fmt.Sprintf(`
			<div class="product">
				<h2>Cement 50kg Brand %d</h2>
				<span class="price">KSh %d,250</span>
				<a href="/items/%d">View</a>
			</div>`, i, i, i)
	}
	return page + "</body></html>"
}

func TestScraperRunFeedsPipeline(t *testing.T) {
	retailers := []models.RetailerConfig{
		{Name: "AlphaMart", SearchURL: "http://alpha.test/search?q={q}", Parser: "generic"},
		{Name: "BetaMart", SearchURL: "http://beta.test/s?query={q}", Parser: "generic"},
	}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://alpha.test/search?q=cement+50kg",
		httpmock.NewStringResponder(200, searchPage(3)))
	transport.RegisterResponder("GET", "http://beta.test/s?query=cement+50kg",
		httpmock.NewStringResponder(200, searchPage(2)))

	s, err := NewScraper(testConfig(), retailers, nil)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.WithTransport(transport)

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(writer)
	p.Start(2)

	result, err := s.Run(context.Background(), []string{"cement 50kg"}, p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}

	if got := writer.Count(); got != 5 {
		t.Fatalf("listings=%d, want 5 (requests=%d errors=%d failed=%v)",
			got, result.RequestCount, result.ErrorCount, result.FailedURLs)
	}
	if result.RequestCount != 2 {
		t.Errorf("requests = %d, want 2", result.RequestCount)
	}
	if result.ListingCount != 5 {
		t.Errorf("result listing count = %d, want 5", result.ListingCount)
	}

	byRetailer := map[string]int{}
	for _, l := range writer.All() {
		byRetailer[l.Retailer]++
		if l.ScrapedAt.IsZero() {
			t.Error("listings must be stamped with scrape time")
		}
		if l.Price == nil {
			t.Errorf("listing %q lost its price", l.Title)
		}
	}
	if byRetailer["AlphaMart"] != 3 || byRetailer["BetaMart"] != 2 {
		t.Errorf("per-retailer counts = %v", byRetailer)
	}
}

func TestScraperFailedPairYieldsNothing(t *testing.T) {
	retailers := []models.RetailerConfig{
		{Name: "AlphaMart", SearchURL: "http://alpha.test/search?q={q}", Parser: "generic"},
		{Name: "DownMart", SearchURL: "http://down.test/search?q={q}", Parser: "generic"},
	}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://alpha.test/search?q=hammer",
		httpmock.NewStringResponder(200, searchPage(2)))
	transport.RegisterResponder("GET", "http://down.test/search?q=hammer",
		httpmock.NewStringResponder(http.StatusForbidden, ""))

	s, err := NewScraper(testConfig(), retailers, nil)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.WithTransport(transport)

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(writer)
	p.Start(1)

	result, err := s.Run(context.Background(), []string{"hammer"}, p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}

	if got := writer.Count(); got != 2 {
		t.Errorf("listings=%d, want the healthy retailer's 2", got)
	}
	if result.ErrorCount != 1 {
		t.Errorf("errors = %d, want 1", result.ErrorCount)
	}
	if result.ErrorsByType["forbidden"] != 1 {
		t.Errorf("errors by type = %v, want forbidden:1", result.ErrorsByType)
	}
	if len(result.FailedURLs) != 1 {
		t.Errorf("failed urls = %v", result.FailedURLs)
	}
}

func TestScraperEmptyPageIsNotAnError(t *testing.T) {
	retailers := []models.RetailerConfig{
		{Name: "AlphaMart", SearchURL: "http://alpha.test/search?q={q}", Parser: "generic"},
	}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://alpha.test/search?q=unicorn",
		httpmock.NewStringResponder(200, "<html><body><p>No results</p></body></html>"))

	s, err := NewScraper(testConfig(), retailers, nil)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.WithTransport(transport)

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(writer)
	p.Start(1)

	result, err := s.Run(context.Background(), []string{"unicorn"}, p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}

	if writer.Count() != 0 {
		t.Errorf("listings = %d, want 0", writer.Count())
	}
	if result.ErrorCount != 0 {
		t.Errorf("empty page counted as error: %v", result.ErrorsByType)
	}
}

func TestNewScraperRejectsBadRetailers(t *testing.T) {
	tests := []struct {
		name      string
		retailers []models.RetailerConfig
	}{
		{"empty table", nil},
		{"missing placeholder", []models.RetailerConfig{
			{Name: "X", SearchURL: "http://x.test/search", Parser: "generic"},
		}},
		{"no host", []models.RetailerConfig{
			{Name: "X", SearchURL: "/search?q={q}", Parser: "generic"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewScraper(testConfig(), tt.retailers, nil); err == nil {
				t.Error("want error")
			}
		})
	}
}

func TestBuildSearchURL(t *testing.T) {
	tests := []struct {
		template string
		query    string
		want     string
	}{
		{"http://x.test/search?q={q}", "cement 50kg", "http://x.test/search?q=cement+50kg"},
		{"http://x.test/s?query={q}&sort=price", "drill 18v", "http://x.test/s?query=drill+18v&sort=price"},
		{"http://x.test/search?q={q}", "a&b", "http://x.test/search?q=a%26b"},
	}
	for _, tt := range tests {
		if got := BuildSearchURL(tt.template, tt.query); got != tt.want {
			t.Errorf("BuildSearchURL(%q, %q) = %q, want %q", tt.template, tt.query, got, tt.want)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err, tt.statusCode)
			if got.Label != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got.Label, tt.expected)
			}
			if got.Err == nil {
				t.Fatal("classified error must wrap a cause")
			}
		})
	}
}
