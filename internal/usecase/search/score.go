package search

import (
	"strings"

	"github.com/meridian-cloud/docgate/internal/domain/document"
)

// Per-match score contributions. An exact field match dominates, prefix
// matches rank above bare substring hits, and a length-ratio bonus favors
// terms that cover more of the field value.
const (
	exactBonus       = 100.0
	prefixBonus      = 50.0
	containsBonus    = 25.0
	lengthRatioScale = 10.0
)

// termScore rates one term against one field value. Zero means no match.
func termScore(term, value string) float64 {
	if term == "" || value == "" {
		return 0
	}
	value = strings.ToLower(value)

	var score float64
	switch {
	case value == term:
		score = exactBonus
	case strings.HasPrefix(value, term):
		score = prefixBonus
	case strings.Contains(value, term):
		score = containsBonus
	default:
		return 0
	}
	return score + float64(len(term))/float64(len(value))*lengthRatioScale
}

// fieldScore rates all terms against a field, handling both scalar and
// array-valued fields. Array fields score each element and keep the best
// per term.
func fieldScore(terms []string, doc *document.Document, field string) float64 {
	values := doc.Strings(field)
	if values == nil {
		if s := doc.String(field); s != "" {
			values = []string{s}
		}
	}
	if len(values) == 0 {
		return 0
	}

	var total float64
	for _, term := range terms {
		var best float64
		for _, value := range values {
			if s := termScore(term, value); s > best {
				best = s
			}
		}
		total += best
	}
	return total
}

// documentScore sums weighted field scores across the query's fields.
func documentScore(terms []string, doc *document.Document, weights map[string]float64) float64 {
	var total float64
	for field, weight := range weights {
		if s := fieldScore(terms, doc, field); s > 0 {
			total += s * weight
		}
	}
	return total
}
