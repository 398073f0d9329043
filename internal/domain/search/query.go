// Package search defines the query and result value types for the relevance
// search strategy.
package search

import (
	"fmt"
	"strings"
)

// Mode selects the query strategy.
type Mode string

const (
	// ModeBasic is a single prefix-range query on the primary name field.
	ModeBasic Mode = "basic"
	// ModeAdvanced tokenizes the input and scores candidates across weighted fields.
	ModeAdvanced Mode = "advanced"
)

// maxTerms caps how many tokens an advanced query uses.
const maxTerms = 5

// advancedLengthThreshold promotes long single-term queries to advanced mode.
const advancedLengthThreshold = 12

// DefaultFieldWeights ranks the primary name field highest, location fields
// below it, and free-text tags lowest.
var DefaultFieldWeights = map[string]float64{
	"name":  1.0,
	"city":  0.8,
	"state": 0.6,
	"tags":  0.4,
}

// Query is a normalized search request. Produced fresh per call, never persisted.
type Query struct {
	raw        string
	terms      []string
	weights    map[string]float64
	regionHint string
	limit      int
}

// New normalizes and creates a Query. The input is lower-cased and split on
// whitespace into at most 5 terms. weights may be nil for the defaults.
func New(input string, weights map[string]float64, regionHint string, limit int) (Query, error) {
	if limit <= 0 {
		return Query{}, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if weights == nil {
		weights = DefaultFieldWeights
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	terms := strings.Fields(normalized)
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}

	return Query{
		raw:        normalized,
		terms:      terms,
		weights:    weights,
		regionHint: strings.TrimSpace(regionHint),
		limit:      limit,
	}, nil
}

// Raw returns the normalized full query string.
func (q *Query) Raw() string { return q.raw }

// Terms returns the normalized term set.
func (q *Query) Terms() []string { return q.terms }

// FieldWeights returns the per-field score multipliers.
func (q *Query) FieldWeights() map[string]float64 { return q.weights }

// RegionHint returns the caller-supplied jurisdiction code, if any.
func (q *Query) RegionHint() string { return q.regionHint }

// Limit returns the maximum number of results.
func (q *Query) Limit() int { return q.limit }

// TooShort reports whether the normalized query is below the minimum length.
// Short queries return empty results, not errors.
func (q *Query) TooShort(minLength int) bool {
	return len(q.raw) < minLength
}

// Mode returns ModeAdvanced for multi-term queries and long single terms,
// ModeBasic otherwise.
func (q *Query) Mode() Mode {
	if len(q.terms) > 1 {
		return ModeAdvanced
	}
	if len(q.terms) == 1 && len(q.terms[0]) > advancedLengthThreshold {
		return ModeAdvanced
	}
	return ModeBasic
}

// CacheKey derives a deterministic cache key from the normalized term set,
// region hint, and limit.
func (q *Query) CacheKey() string {
	return fmt.Sprintf("search:%s:%s:%d", strings.Join(q.terms, "+"), q.regionHint, q.limit)
}
