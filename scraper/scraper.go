// Package scraper orchestrates search-page fetches across retailers and
// feeds extracted listings into the write pipeline.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/kmuchiri/pricewatch/config"
	"github.com/kmuchiri/pricewatch/models"
	"github.com/kmuchiri/pricewatch/parser"
	"github.com/kmuchiri/pricewatch/pipeline"
)

const (
	ctxRetailer = "retailer"
	ctxStrategy = "strategy"
	ctxStart    = "start"
)

// Scraper wraps the colly collector that visits retailer search pages. Each
// (retailer, query) pair is one independent fetch: a failed or empty page
// costs that pair its listings and nothing else.
type Scraper struct {
	cfg       *config.Config
	retailers []models.RetailerConfig
	collector *colly.Collector
	Metrics   *Metrics

	requestCount int64
	listingCount int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewScraper builds a scraper for the given retailer table. A scraper is
// cheap and lives for one run; pass a shared Metrics to accumulate counters
// across runs, or nil for a fresh registry.
func NewScraper(cfg *config.Config, retailers []models.RetailerConfig, m *Metrics) (*Scraper, error) {
	if err := config.ValidateRetailers(retailers); err != nil {
		return nil, err
	}
	if m == nil {
		m = NewMetrics()
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	// One limit rule per retailer host: bounded concurrency plus a minimum
	// spacing between requests to the same site.
	for _, r := range retailers {
		host, err := searchHost(r.SearchURL)
		if err != nil {
			return nil, fmt.Errorf("retailer %s: %w", r.Name, err)
		}
		if err := collector.Limit(&colly.LimitRule{
			DomainGlob:  host,
			Parallelism: cfg.Parallelism,
			Delay:       cfg.Delay,
			RandomDelay: cfg.RandomDelay,
		}); err != nil {
			return nil, fmt.Errorf("configure rate limits for %s: %w", r.Name, err)
		}
	}

	return &Scraper{
		cfg:          cfg,
		retailers:    append([]models.RetailerConfig(nil), retailers...),
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      m,
	}, nil
}

// Run fetches every (retailer, query) pair, streams extracted listings into
// p, and reports run statistics. Fetch failures are absorbed per pair and
// never returned as an error.
func (s *Scraper) Run(ctx context.Context, queries []string, p *pipeline.Pipeline) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.configureHandlers(p)

	start := time.Now()
	for _, query := range queries {
		for _, retailer := range s.retailers {
			if ctx.Err() != nil {
				break
			}
			target := BuildSearchURL(retailer.SearchURL, query)

			reqCtx := colly.NewContext()
			reqCtx.Put(ctxRetailer, retailer.Name)
			reqCtx.Put(ctxStrategy, string(parser.ParseStrategy(retailer.Parser)))
			if err := s.collector.Request(http.MethodGet, target, nil, reqCtx, nil); err != nil {
				s.recordError("request", target)
				slog.Debug("issue request failed",
					slog.String("url", target),
					slog.Any("error", err),
				)
			}
		}
	}

	s.collector.Wait()

	return &models.RunResult{
		StartTime:    start,
		EndTime:      time.Now(),
		RequestCount: int(atomic.LoadInt64(&s.requestCount)),
		ListingCount: int(atomic.LoadInt64(&s.listingCount)),
		ErrorCount:   int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:   s.snapshotFailedURLs(),
		ErrorsByType: s.snapshotErrors(),
	}, nil
}

func (s *Scraper) configureHandlers(p *pipeline.Pipeline) {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put(ctxStart, time.Now())
			atomic.AddInt64(&s.requestCount, 1)
			s.Metrics.IncRequest("started")
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}

			retailer := r.Ctx.Get(ctxRetailer)
			strategy := parser.Strategy(r.Ctx.Get(ctxStrategy))
			pageURL := r.Request.URL.String()

			extracted := parser.Extract(string(r.Body), pageURL, strategy)
			if len(extracted) == 0 {
				s.Metrics.IncEmptyResult()
				slog.Debug("no listings extracted",
					slog.String("retailer", retailer),
					slog.String("url", pageURL),
				)
				return
			}

			now := time.Now().UTC()
			batch := make([]*models.Listing, 0, len(extracted))
			for i := range extracted {
				l := extracted[i]
				l.Retailer = retailer
				l.ScrapedAt = now
				batch = append(batch, &l)
			}

			atomic.AddInt64(&s.listingCount, int64(len(batch)))
			s.Metrics.AddListings(retailer, len(batch))
			if err := p.Process(batch); err != nil && err != pipeline.ErrPipelineClosed {
				slog.Error("pipeline process error", slog.Any("error", err))
			}
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			statusCode := 0
			pageURL := ""
			if r != nil {
				statusCode = r.StatusCode
				if r.Request != nil && r.Request.URL != nil {
					pageURL = r.Request.URL.String()
				}
			}

			classified := classifyError(err, statusCode)
			s.recordError(classified.Label, pageURL)
			slog.Warn("fetch failed, pair yields no listings",
				slog.String("url", pageURL),
				slog.String("category", classified.Label),
				slog.Any("error", err),
			)
		})
	})
}

func (s *Scraper) recordError(label, pageURL string) {
	atomic.AddInt64(&s.errorCount, 1)
	s.Metrics.IncError(label)

	s.mu.Lock()
	s.errorsByType[label]++
	if pageURL != "" {
		s.failedURLs = append(s.failedURLs, pageURL)
	}
	s.mu.Unlock()
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

// WithTransport swaps the HTTP transport, used by tests to stub responses.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// BuildSearchURL substitutes the escaped query into a retailer search
// template.
func BuildSearchURL(template, query string) string {
	return strings.Replace(template, "{q}", url.QueryEscape(query), 1)
}

func searchHost(template string) (string, error) {
	parsed, err := url.Parse(strings.Replace(template, "{q}", "", 1))
	if err != nil {
		return "", fmt.Errorf("parse search url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("search url %q has no host", template)
	}
	return parsed.Host, nil
}
