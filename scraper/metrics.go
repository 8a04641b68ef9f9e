package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ListingsTotal     *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	EmptyResultsTotal prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_requests_total",
			Help: "Total search-page requests issued, by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricewatch_request_duration_seconds",
			Help:    "Latency of retailer search-page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	listings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_listings_extracted_total",
			Help: "Total listings extracted, by retailer.",
		},
		[]string{"retailer"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_fetch_errors_total",
			Help: "Total fetch errors by type.",
		},
		[]string{"error_type"},
	)
	emptyResults := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_empty_results_total",
			Help: "Search pages that yielded zero listings.",
		},
	)

	registry.MustRegister(requests, requestDuration, listings, errorsTotal, emptyResults)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ListingsTotal:     listings,
		ErrorsTotal:       errorsTotal,
		EmptyResultsTotal: emptyResults,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddListings counts extracted listings for a retailer.
func (m *Metrics) AddListings(retailer string, n int) {
	if m == nil {
		return
	}
	m.ListingsTotal.WithLabelValues(retailer).Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncEmptyResult counts a search page with no extractable listings.
func (m *Metrics) IncEmptyResult() {
	if m == nil {
		return
	}
	m.EmptyResultsTotal.Inc()
}
