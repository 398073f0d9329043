package sharding

import (
	"context"
	"time"

	"github.com/meridian-cloud/docgate/internal/domain/document"
	domsearch "github.com/meridian-cloud/docgate/internal/domain/search"
)

// DocumentStore is the storage contract for routing and migration.
type DocumentStore interface {
	List(ctx context.Context, collection string, filter document.ListFilter, cursor string, limit int) ([]document.Document, string, error)
	Upsert(ctx context.Context, collection string, doc document.Document) (bool, error)
	UpsertMulti(ctx context.Context, collection string, docs []document.Document) error
	Count(ctx context.Context, collection string) (int, error)
}

// Searcher runs a relevance query against one physical collection.
// Cross-region search fans this out over the candidate partitions.
type Searcher interface {
	Search(ctx context.Context, collection, input string, limit int) ([]domsearch.ScoredResult, error)
}

// ReportStore persists migration reports.
type ReportStore interface {
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
