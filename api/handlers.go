package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kmuchiri/pricewatch/models"
)

// fastSellingLimit caps the /api/fast-selling response.
const fastSellingLimit = 30

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.aggregateRows(w, r, s.windowDays)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleFastSelling(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.aggregateRows(w, r, 14)
	if !ok {
		return
	}
	if len(rows) > fastSellingLimit {
		rows = rows[:fastSellingLimit]
	}
	writeJSON(w, http.StatusOK, rows)
}

// aggregateRows resolves the window, reads the snapshot and ranks it. A
// false return means the response has already been written.
func (s *Server) aggregateRows(w http.ResponseWriter, r *http.Request, defaultDays int) ([]models.AggregateRow, bool) {
	days := defaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return nil, false
		}
		days = parsed
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	listings, err := s.store.ListingsSince(r.Context(), cutoff)
	if err != nil {
		slog.Error("read listings failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to read listings")
		return nil, false
	}

	rows, err := s.engine.Aggregate(listings, days)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if rows == nil {
		rows = []models.AggregateRow{}
	}
	return rows, true
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	select {
	case s.scraping <- struct{}{}:
	default:
		writeError(w, http.StatusConflict, "a scrape run is already in progress")
		return
	}

	go func() {
		defer func() { <-s.scraping }()
		saved, err := s.scrape(context.Background())
		if err != nil {
			slog.Error("scrape run failed", slog.Any("error", err))
			return
		}
		slog.Info("scrape run complete", slog.Int("listings_saved", saved))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scrape started"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(indexHTML))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>PriceWatch</title>
<style>
body { font-family: sans-serif; margin: 2rem; background: #f7f7f7; }
table { border-collapse: collapse; width: 100%; background: #fff; }
th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; }
th { background: #eee; }
</style>
</head>
<body>
<h3>PriceWatch</h3>
<p>Top items by fast-selling score. Edit sku_master.csv to map your SKUs.</p>
<div id="table-area">Loading…</div>
<script>
async function loadData() {
  const res = await fetch('/api/aggregates');
  const data = await res.json();
  const area = document.getElementById('table-area');
  if (!data.length) { area.innerHTML = '<p>No data yet. POST /api/scrape to run one.</p>'; return; }
  let html = '<table><thead><tr><th>#</th><th>Item</th><th>Listings</th><th>Avg KES</th><th>Min</th><th>Max</th><th>FastSell</th><th>HighDemand</th></tr></thead><tbody>';
  data.slice(0, 100).forEach((r, i) => {
    html += '<tr><td>' + (i + 1) + '</td><td>' + r.name + '</td><td>' + r.n_listings +
      '</td><td>' + r.avg_price + '</td><td>' + r.min_price + '</td><td>' + r.max_price +
      '</td><td>' + r.fast_selling_score + '</td><td>' + r.high_demand_score + '</td></tr>';
  });
  html += '</tbody></table>';
  area.innerHTML = html;
}
loadData();
</script>
</body>
</html>
`
