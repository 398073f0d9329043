package search

import "github.com/meridian-cloud/docgate/internal/domain/document"

// ScoredResult pairs a document with its relevance score. Transient: exists
// only for the duration of ranking and sorting.
type ScoredResult struct {
	doc   document.Document
	score float64
}

// NewScoredResult creates a scored search hit.
func NewScoredResult(doc document.Document, score float64) ScoredResult {
	return ScoredResult{doc: doc, score: score}
}

// Document returns the matched document.
func (r *ScoredResult) Document() document.Document { return r.doc }

// Score returns the relevance score.
func (r *ScoredResult) Score() float64 { return r.score }
