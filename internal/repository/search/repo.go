// Package search adapts the store's native query interface to the
// field-scoped scans the relevance engine is built from.
package search

import (
	"context"
	"fmt"

	"github.com/meridian-cloud/docgate/internal/db"
	"github.com/meridian-cloud/docgate/internal/db/redis"
	domdoc "github.com/meridian-cloud/docgate/internal/domain/document"
	repodoc "github.com/meridian-cloud/docgate/internal/repository/document"
)

// store is the consumer interface for search scans.
type store interface {
	SearchList(ctx context.Context, index, query, sortBy string, offset, limit int, fields []string) (*db.SearchResult, error)
}

// Repo runs field-scoped prefix and tag-membership scans.
type Repo struct {
	store store
	keys  repodoc.Keys
}

// New creates a search repository sharing the document key scheme.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keys: repodoc.Keys{Prefix: keyPrefix}}
}

// PrefixScan returns documents whose text field starts with term,
// ordered by that field so ties later break on store order.
func (r *Repo) PrefixScan(ctx context.Context, collection, field, term string, limit int) ([]domdoc.Document, error) {
	query := redis.PrefixQuery(field, term)
	return r.scan(ctx, collection, query, field, limit)
}

// TagScan returns documents whose tag-array field contains a value
// starting with term.
func (r *Repo) TagScan(ctx context.Context, collection, field, term string, limit int) ([]domdoc.Document, error) {
	query := redis.TagPrefixQuery(field, term)
	return r.scan(ctx, collection, query, "", limit)
}

func (r *Repo) scan(ctx context.Context, collection, query, sortBy string, limit int) ([]domdoc.Document, error) {
	result, err := r.store.SearchList(ctx, r.keys.Index(collection), query, sortBy, 0, limit, []string{"$"})
	if err != nil {
		return nil, fmt.Errorf("scan %s %q: %w", collection, query, err)
	}
	if result == nil {
		return nil, nil
	}
	docs := make([]domdoc.Document, 0, len(result.Entries))
	for _, entry := range result.Entries {
		docs = append(docs, repodoc.EntryToDocument(r.keys, collection, entry))
	}
	return docs, nil
}
