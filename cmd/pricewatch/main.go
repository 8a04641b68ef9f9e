package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kmuchiri/pricewatch/aggregate"
	"github.com/kmuchiri/pricewatch/api"
	"github.com/kmuchiri/pricewatch/catalog"
	"github.com/kmuchiri/pricewatch/config"
	"github.com/kmuchiri/pricewatch/match"
	"github.com/kmuchiri/pricewatch/models"
	"github.com/kmuchiri/pricewatch/pipeline"
	"github.com/kmuchiri/pricewatch/scheduler"
	"github.com/kmuchiri/pricewatch/scraper"
	"github.com/kmuchiri/pricewatch/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	defaultCfg := config.DefaultConfig()
	dbDefault := stringDefault("PRICEWATCH_DB", defaultCfg.DBPath)
	catalogDefault := stringDefault("PRICEWATCH_CATALOG", defaultCfg.CatalogPath)
	listenDefault := stringDefault("PRICEWATCH_LISTEN", defaultCfg.ListenAddr)
	metricsDefault := stringDefault("PRICEWATCH_METRICS_ADDR", defaultCfg.MetricsAddr)
	cronDefault := stringDefault("PRICEWATCH_CRON", defaultCfg.CronSpec)
	parallelDefault := intDefault("PRICEWATCH_PARALLEL", defaultCfg.Parallelism)
	windowDefault := intDefault("PRICEWATCH_WINDOW_DAYS", defaultCfg.WindowDays)

	dbPath := flag.String("db", dbDefault, "SQLite database path")
	catalogPath := flag.String("catalog", catalogDefault, "SKU master CSV path")
	retailersPath := flag.String("retailers", "", "Optional yaml retailer list (built-in table when empty)")
	listenAddr := flag.String("listen", listenDefault, "API listen address")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090; empty disables)")
	parallelism := flag.Int("parallel", parallelDefault, "Concurrent fetches per retailer")
	delayMs := flag.Int("delay", int(defaultCfg.Delay/time.Millisecond), "Politeness delay between requests to one retailer (milliseconds)")
	randomDelayMs := flag.Int("random-delay", int(defaultCfg.RandomDelay/time.Millisecond), "Random jitter added to delay (milliseconds)")
	timeoutSec := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "Fetch timeout (seconds)")
	windowDays := flag.Int("window", windowDefault, "Default aggregation window (days)")
	threshold := flag.Int("match-threshold", defaultCfg.MatchThreshold, "Minimum fuzzy-match confidence (0-100)")
	maxQueries := flag.Int("max-queries", defaultCfg.MaxQueries, "Catalog names searched per scrape run")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	cronSpec := flag.String("cron", cronDefault, "Cron spec for background scrape runs (empty disables)")
	exportFile := flag.String("export", "", "Mirror stored listings into a .csv or .json export file")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.DBPath = *dbPath
	cfg.CatalogPath = *catalogPath
	cfg.RetailersPath = *retailersPath
	cfg.ListenAddr = *listenAddr
	cfg.MetricsAddr = *metricsAddr
	cfg.Parallelism = *parallelism
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
	cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	cfg.RespectRobotsTxt = *respectRobots
	cfg.WindowDays = *windowDays
	cfg.MatchThreshold = *threshold
	cfg.MaxQueries = *maxQueries
	cfg.CronSpec = *cronSpec
	cfg.ExportFile = *exportFile
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	retailers := config.DefaultRetailers()
	if cfg.RetailersPath != "" {
		loaded, err := config.LoadRetailers(cfg.RetailersPath)
		if err != nil {
			slog.Error("loading retailers", slog.Any("error", err))
			os.Exit(1)
		}
		retailers = loaded
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("opening store", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	vocabulary, err := bootstrapCatalog(cfg, st)
	if err != nil {
		slog.Error("loading catalog", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("catalog loaded", slog.Int("canonical_names", len(vocabulary)))

	matcher := match.New(vocabulary, match.WithThreshold(cfg.MatchThreshold))
	engine := aggregate.NewEngine(matcher)
	scrapeMetrics := scraper.NewMetrics()

	runScrape := func(ctx context.Context) (int, error) {
		return scrapeOnce(ctx, cfg, retailers, vocabulary, st, scrapeMetrics)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(scrapeMetrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	var sched *scheduler.Scheduler
	if cfg.CronSpec != "" {
		sched = scheduler.New(func() (int, error) {
			return runScrape(context.Background())
		})
		if err := sched.Start(cfg.CronSpec); err != nil {
			slog.Error("starting scheduler", slog.Any("error", err))
			os.Exit(1)
		}
	}

	server := api.NewServer(cfg.ListenAddr, st, engine, runScrape, cfg.WindowDays)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		slog.Error("api server failed", slog.Any("error", err))
		os.Exit(1)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining")
	}

	if sched != nil {
		sched.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown failed", slog.Any("error", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

// bootstrapCatalog seeds sku_master.csv on first run, loads it, mirrors it
// into the sku_map table and returns the matching vocabulary in stable
// (sku) order.
func bootstrapCatalog(cfg *config.Config, st *store.Store) ([]string, error) {
	if err := catalog.WriteTemplate(cfg.CatalogPath); err != nil {
		return nil, err
	}
	items, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.UpsertCatalog(ctx, items); err != nil {
		return nil, err
	}
	stored, err := st.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Vocabulary(stored), nil
}

// scrapeOnce runs one full (retailer, query) sweep and reports how many
// listings reached the store.
func scrapeOnce(ctx context.Context, cfg *config.Config, retailers []models.RetailerConfig, vocabulary []string, st *store.Store, m *scraper.Metrics) (int, error) {
	queries := vocabulary
	if len(queries) > cfg.MaxQueries {
		queries = queries[:cfg.MaxQueries]
	}
	if len(queries) == 0 {
		return 0, fmt.Errorf("no catalog names to search for")
	}

	writer, err := buildWriter(ctx, cfg, st)
	if err != nil {
		return 0, err
	}

	s, err := scraper.NewScraper(cfg, retailers, m)
	if err != nil {
		writer.Close()
		return 0, err
	}

	p := pipeline.NewPipeline(writer)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result, err := s.Run(ctx, queries, p)
	if err != nil {
		p.Close()
		writer.Close()
		return 0, err
	}
	if err := p.Close(); err != nil {
		writer.Close()
		return 0, err
	}
	if err := writer.Close(); err != nil {
		return 0, err
	}

	saved := 0
	if processed, ok := p.GetMetrics()["processed_listings"].(int64); ok {
		saved = int(processed)
	}
	slog.Info("scrape run finished",
		slog.Int("requests", result.RequestCount),
		slog.Int("extracted", result.ListingCount),
		slog.Int("saved", saved),
		slog.Int("errors", result.ErrorCount),
		slog.Duration("duration", result.Duration()),
	)
	if len(result.ErrorsByType) > 0 {
		slog.Debug("fetch errors by type", slog.Any("errors", result.ErrorsByType))
	}
	return saved, nil
}

func buildWriter(ctx context.Context, cfg *config.Config, st *store.Store) (pipeline.OutputWriter, error) {
	storeWriter := pipeline.NewStoreWriter(ctx, st)
	if cfg.ExportFile == "" {
		return storeWriter, nil
	}

	var export pipeline.OutputWriter
	var err error
	switch {
	case strings.HasSuffix(cfg.ExportFile, ".json"):
		export, err = pipeline.NewJSONWriter(cfg.ExportFile)
	case strings.HasSuffix(cfg.ExportFile, ".csv"):
		export, err = pipeline.NewCSVWriter(cfg.ExportFile)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", cfg.ExportFile)
	}
	if err != nil {
		return nil, err
	}
	return pipeline.NewDualWriter(storeWriter, export), nil
}

func stringDefault(key, fallback string) string {
	if value, ok := config.EnvString(key); ok {
		return value
	}
	return fallback
}

func intDefault(key string, fallback int) int {
	value, ok, err := config.EnvInt(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s: %v\n", key, err)
		os.Exit(1)
	}
	if !ok {
		return fallback
	}
	return value
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
