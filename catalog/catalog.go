// Package catalog loads the curated SKU master file that scraped listings
// are reconciled against.
package catalog

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/kmuchiri/pricewatch/models"
)

// templateItems seed a fresh installation so the monitor produces output
// before anyone curates a catalog.
var templateItems = []models.CanonicalItem{
	{SKU: "SKU001", CanonicalName: "Cement 50kg - Dangote"},
	{SKU: "SKU002", CanonicalName: "Cement 50kg - Twiga"},
	{SKU: "SKU003", CanonicalName: "White Emulsion Paint 5L - Crown"},
	{SKU: "SKU004", CanonicalName: "Cordless Drill - 18V"},
	{SKU: "SKU005", CanonicalName: "Hammer 1kg - Fiberglass handle"},
}

// WriteTemplate creates a starter sku_master.csv at path if none exists.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat catalog file: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create catalog file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"sku", "canonical_name"}); err != nil {
		return fmt.Errorf("write catalog header: %w", err)
	}
	for _, item := range templateItems {
		if err := w.Write([]string{item.SKU, item.CanonicalName}); err != nil {
			return fmt.Errorf("write catalog row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush catalog file: %w", err)
	}
	return nil
}

// Load reads catalog entries from a sku,canonical_name CSV in file order.
func Load(path string) ([]models.CanonicalItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var items []models.CanonicalItem
	for i, record := range records {
		if i == 0 && record[0] == "sku" {
			continue
		}
		if len(record) < 2 || record[0] == "" {
			return nil, fmt.Errorf("catalog row %d: want sku,canonical_name", i+1)
		}
		items = append(items, models.CanonicalItem{SKU: record[0], CanonicalName: record[1]})
	}
	return items, nil
}

// Vocabulary derives the matching vocabulary from catalog entries: distinct
// canonical names in first-seen order. Order matters to the matcher's
// tie-break, so this must be deterministic for a given file.
func Vocabulary(items []models.CanonicalItem) []string {
	seen := make(map[string]struct{}, len(items))
	names := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.CanonicalName]; ok {
			continue
		}
		seen[item.CanonicalName] = struct{}{}
		names = append(names, item.CanonicalName)
	}
	return names
}
