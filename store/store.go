// Package store persists scraped listings and the canonical SKU table in an
// embedded sqlite database. The listings log is append-only: the rest of the
// system filters by time at read time and never mutates rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kmuchiri/pricewatch/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS raw_listings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	retailer TEXT NOT NULL,
	title TEXT NOT NULL,
	price REAL,
	availability TEXT NOT NULL DEFAULT '',
	scraped_at TEXT NOT NULL,
	url TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_raw_listings_scraped_at ON raw_listings(scraped_at);
CREATE TABLE IF NOT EXISTS sku_map (
	sku TEXT PRIMARY KEY,
	canonical_name TEXT NOT NULL
);
`

// timeFormat is RFC3339 with a fixed-width fraction. RFC3339Nano trims
// trailing zeros, which breaks lexicographic comparison on the text column.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps the sqlite handle. A single *sql.DB serialises concurrent
// writers, so appends are safe from multiple goroutines.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite allows one writer; a second connection would fail with
	// SQLITE_BUSY instead of queueing.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendListings inserts listings in one transaction. Timestamps are stored
// as UTC RFC3339 text.
func (s *Store) AppendListings(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO raw_listings (retailer, title, price, availability, scraped_at, url)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, l := range listings {
		var price any
		if l.Price != nil {
			price = *l.Price
		}
		scrapedAt := l.ScrapedAt
		if scrapedAt.IsZero() {
			scrapedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			l.Retailer, l.Title, price, l.Availability,
			scrapedAt.UTC().Format(timeFormat), l.URL,
		); err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// ListingsSince returns listings scraped at or after cutoff, oldest first.
// This is the aggregation read path; it never loads rows outside the window.
func (s *Store) ListingsSince(ctx context.Context, cutoff time.Time) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT retailer, title, price, availability, scraped_at, url
		FROM raw_listings
		WHERE scraped_at >= ?
		ORDER BY id`,
		cutoff.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		var price sql.NullFloat64
		var scrapedAt string
		if err := rows.Scan(&l.Retailer, &l.Title, &price, &l.Availability, &scrapedAt, &l.URL); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		if price.Valid {
			v := price.Float64
			l.Price = &v
		}
		ts, err := time.Parse(time.RFC3339Nano, scrapedAt)
		if err != nil {
			return nil, fmt.Errorf("parse scraped_at %q: %w", scrapedAt, err)
		}
		l.ScrapedAt = ts
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

// ListingCount reports the total number of stored listings.
func (s *Store) ListingCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

// UpsertCatalog inserts catalog entries, keeping existing names for known
// SKUs.
func (s *Store) UpsertCatalog(ctx context.Context, items []models.CanonicalItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO sku_map (sku, canonical_name) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare catalog upsert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item.SKU, item.CanonicalName); err != nil {
			return fmt.Errorf("upsert sku %s: %w", item.SKU, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog upsert: %w", err)
	}
	return nil
}

// Catalog returns all canonical items ordered by sku, so the derived
// vocabulary order is stable across calls.
func (s *Store) Catalog(ctx context.Context) ([]models.CanonicalItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sku, canonical_name FROM sku_map ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var items []models.CanonicalItem
	for rows.Next() {
		var item models.CanonicalItem
		if err := rows.Scan(&item.SKU, &item.CanonicalName); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	return items, nil
}

// Ping verifies the handle is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
