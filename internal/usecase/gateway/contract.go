package gateway

import (
	"context"
	"time"

	"github.com/meridian-cloud/docgate/internal/db"
	"github.com/meridian-cloud/docgate/internal/domain/document"
	domsearch "github.com/meridian-cloud/docgate/internal/domain/search"
	"github.com/meridian-cloud/docgate/internal/usecase/search"
	"github.com/meridian-cloud/docgate/internal/usecase/sharding"
)

// Documents is the storage contract for document operations.
type Documents interface {
	Get(ctx context.Context, collection, id string) (document.Document, error)
	Upsert(ctx context.Context, collection string, doc document.Document) (bool, error)
	UpsertMulti(ctx context.Context, collection string, docs []document.Document) error
	List(ctx context.Context, collection string, filter document.ListFilter, cursor string, limit int) ([]document.Document, string, error)
	Delete(ctx context.Context, collection, id string) error
	Count(ctx context.Context, collection string) (int, error)
}

// Router resolves jurisdictions to physical partitions and owns the
// cross-region search and migration flows.
type Router interface {
	Route(collection, jurisdiction string) string
	CrossRegionSearch(ctx context.Context, collection, input, jurisdiction string, limit int) ([]domsearch.ScoredResult, error)
	Migrate(ctx context.Context, collection string, dryRun bool) (*sharding.Report, error)
	Snapshot() sharding.Stats
}

// SearchEngine ranks documents against free-text queries.
type SearchEngine interface {
	Search(ctx context.Context, collection, input string, limit int) ([]domsearch.ScoredResult, error)
	Snapshot() search.Stats
}

// ResultCache fronts document reads.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Remove(ctx context.Context, key string)
}

// TxRunner executes multi-document atomic transactions.
type TxRunner interface {
	Txn(ctx context.Context, watch []string, fn func(tx db.Tx) error) error
}
