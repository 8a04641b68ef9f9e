package pipeline

import (
	"fmt"
	"sync"

	"github.com/kmuchiri/pricewatch/models"
)

// DualWriter fans each batch out to two sinks, typically the sqlite store
// plus a CSV or JSONL export.
type DualWriter struct {
	primary   OutputWriter
	secondary OutputWriter
	mu        sync.Mutex
}

// NewDualWriter combines two sinks into one.
func NewDualWriter(primary, secondary OutputWriter) *DualWriter {
	return &DualWriter{primary: primary, secondary: secondary}
}

// Write writes listings to both sinks; the first failure wins.
func (dw *DualWriter) Write(listings []*models.Listing) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.primary.Write(listings); err != nil {
		return fmt.Errorf("primary write failed: %w", err)
	}
	if err := dw.secondary.Write(listings); err != nil {
		return fmt.Errorf("secondary write failed: %w", err)
	}
	return nil
}

// Close closes both writers.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	if err := dw.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary close failed: %w", err))
	}
	if err := dw.secondary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("secondary close failed: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors: %v", errs)
	}
	return nil
}

// Validate validates both sinks.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.primary.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("primary validation failed: %w", err))
	}
	if err := dw.secondary.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("secondary validation failed: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}
