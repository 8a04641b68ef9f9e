// Package parser turns raw retailer HTML into candidate listings and
// normalizes the text fields they carry.
package parser

import (
	"strconv"
	"strings"
)

// NormalizePrice converts raw currency text ("KSh 1,250.50") to a numeric
// value. Everything except digits and the decimal point is discarded, which
// drops currency symbols, thousands separators and signs; ranged or negative
// prices are intentionally unsupported. The second return is false when no
// value could be recovered.
func NormalizePrice(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	filtered := b.String()
	if filtered == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(filtered, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// NormalizeText trims and collapses internal whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate bounds s to max characters.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
