package search

import (
	"context"

	"github.com/meridian-cloud/docgate/internal/domain/document"
	"github.com/meridian-cloud/docgate/internal/resilience"
)

// ResilientRepository runs every scan under the retry policy, with one
// circuit breaker per scanned partition. The engine's degradation policy
// stays above this layer: a scan that exhausts its retries surfaces as a
// plain error for the engine to downgrade on.
type ResilientRepository struct {
	repo Repository
	exec *resilience.Executor
}

// NewResilientRepository wraps repo with executor-backed scans.
func NewResilientRepository(repo Repository, exec *resilience.Executor) *ResilientRepository {
	return &ResilientRepository{repo: repo, exec: exec}
}

func (r *ResilientRepository) PrefixScan(ctx context.Context, collection, field, term string, limit int) ([]document.Document, error) {
	return resilience.Do(ctx, r.exec, collection, func(ctx context.Context) ([]document.Document, error) {
		return r.repo.PrefixScan(ctx, collection, field, term, limit)
	})
}

func (r *ResilientRepository) TagScan(ctx context.Context, collection, field, term string, limit int) ([]document.Document, error) {
	return resilience.Do(ctx, r.exec, collection, func(ctx context.Context) ([]document.Document, error) {
		return r.repo.TagScan(ctx, collection, field, term, limit)
	})
}
