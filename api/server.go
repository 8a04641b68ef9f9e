// Package api exposes the monitor over HTTP: ranked aggregates, scrape
// triggers and a minimal dashboard.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/kmuchiri/pricewatch/aggregate"
	"github.com/kmuchiri/pricewatch/store"
)

// ScrapeFunc starts one scrape run and reports how many listings it saved.
type ScrapeFunc func(ctx context.Context) (int, error)

// Server wires the HTTP layer over the store and aggregation engine.
type Server struct {
	store      *store.Store
	engine     *aggregate.Engine
	scrape     ScrapeFunc
	windowDays int

	httpServer *http.Server
	scraping   chan struct{}
}

// NewServer builds the API server. windowDays is the default aggregation
// window for requests that do not pass ?days.
func NewServer(addr string, st *store.Store, engine *aggregate.Engine, scrape ScrapeFunc, windowDays int) *Server {
	s := &Server{
		store:      st,
		engine:     engine,
		scrape:     scrape,
		windowDays: windowDays,
		scraping:   make(chan struct{}, 1),
	}

	router := mux.NewRouter()
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/aggregates", s.handleAggregates).Methods(http.MethodGet)
	router.HandleFunc("/api/fast-selling", s.handleFastSelling).Methods(http.MethodGet)

	// Scrape runs hammer every retailer; one request per second is plenty.
	limiter := tollbooth.NewLimiter(1, nil)
	router.Handle("/api/scrape",
		tollbooth.LimitHandler(limiter, http.HandlerFunc(s.handleScrape)),
	).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      cors.Default().Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Start serves until Shutdown or a listener failure.
func (s *Server) Start() error {
	slog.Info("api listening", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
