// Package match reconciles free-text listing titles against the canonical
// catalog vocabulary using approximate string similarity.
package match

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultThreshold is the minimum confidence for accepting a match. Too low
// merges distinct products, too high fragments one product across many
// unmatched buckets; 70 is the operating point.
const DefaultThreshold = 70

const defaultCacheSize = 4096

// Result is the outcome of matching one title. When Matched is false the
// listing belongs to an unmatched bucket keyed by its own raw title, so
// repeated scrapes of an uncataloged product still group together.
type Result struct {
	Name       string `json:"matched_name,omitempty"`
	Confidence int    `json:"confidence"`
	Matched    bool   `json:"matched"`
}

// Scorer rates the similarity of a title and a vocabulary entry on a 0-100
// scale.
type Scorer func(title, name string) int

// Matcher finds the best canonical name for a title. Vocabulary order is
// significant: exact score ties resolve to the earliest entry, so callers
// should supply the vocabulary in a stable order (catalog file order).
type Matcher struct {
	vocabulary []string
	threshold  int
	scorer     Scorer
	cache      *lru.Cache[string, Result]
}

// Option adjusts matcher behaviour.
type Option func(*Matcher)

// WithThreshold overrides the acceptance threshold.
func WithThreshold(threshold int) Option {
	return func(m *Matcher) { m.threshold = threshold }
}

// WithScorer swaps the similarity scorer.
func WithScorer(scorer Scorer) Option {
	return func(m *Matcher) { m.scorer = scorer }
}

// New builds a matcher over the given vocabulary.
func New(vocabulary []string, opts ...Option) *Matcher {
	m := &Matcher{
		vocabulary: append([]string(nil), vocabulary...),
		threshold:  DefaultThreshold,
		scorer:     TokenSortRatio,
	}
	for _, opt := range opts {
		opt(m)
	}
	// Aggregation re-sees identical titles across retailers and runs, so
	// cache full results per title.
	m.cache, _ = lru.New[string, Result](defaultCacheSize)
	return m
}

// Match returns the best-scoring vocabulary entry for title, accepted only at
// or above the threshold.
func (m *Matcher) Match(title string) Result {
	if res, ok := m.cache.Get(title); ok {
		return res
	}

	best := Result{}
	for _, name := range m.vocabulary {
		if score := m.scorer(title, name); score > best.Confidence {
			best.Confidence = score
			best.Name = name
		}
	}
	if best.Confidence >= m.threshold && best.Name != "" {
		best.Matched = true
	} else {
		best.Name = ""
	}

	m.cache.Add(title, best)
	return best
}

// GroupKey resolves the aggregation bucket for a title: the canonical name on
// a match, the raw title otherwise.
func (m *Matcher) GroupKey(title string) (string, Result) {
	res := m.Match(title)
	if res.Matched {
		return res.Name, res
	}
	return title, res
}

var levenshtein = metrics.NewLevenshtein()

// TokenSortRatio scores two strings 0-100, insensitive to word order: both
// sides are lowercased, stripped of non-alphanumerics, token-sorted and then
// compared with a normalized Levenshtein similarity.
func TokenSortRatio(a, b string) int {
	na, nb := tokenSort(a), tokenSort(b)
	if na == "" || nb == "" {
		return 0
	}
	return int(math.Round(strutil.Similarity(na, nb, levenshtein) * 100))
}

func tokenSort(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	tokens := strings.Fields(mapped)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
