// Package document adapts the backing store's JSON and query interfaces
// to domain documents. Collections may be physical partitions
// ("providers#northeast"); the repository treats partition names as
// opaque collection names.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/meridian-cloud/docgate/internal/db"
	"github.com/meridian-cloud/docgate/internal/db/redis"
	"github.com/meridian-cloud/docgate/internal/domain"
	domdoc "github.com/meridian-cloud/docgate/internal/domain/document"
)

// store is the consumer interface for document operations.
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SearchList(ctx context.Context, index, query, sortBy string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements document storage on top of the store facade.
type Repo struct {
	store  store
	keys   Keys
	fields []string
}

// New creates a document repository. keyPrefix namespaces every key and
// index, e.g. "docgate:".
func New(s store, keyPrefix string) *Repo {
	return &Repo{
		store:  s,
		keys:   Keys{Prefix: keyPrefix},
		fields: []string{"$"},
	}
}

// Keys exposes the key scheme so callers composing raw store operations
// (transactions, migrations) address the same records.
func (r *Repo) Keys() Keys { return r.keys }

// Upsert creates or updates a document. Returns true when created.
func (r *Repo) Upsert(ctx context.Context, collection string, doc domdoc.Document) (bool, error) {
	key := r.keys.Doc(collection, doc.ID())
	data, err := json.Marshal(doc.Fields())
	if err != nil {
		return false, fmt.Errorf("marshal document: %w", err)
	}

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return false, fmt.Errorf("json.set %s: %w", key, err)
	}
	return !exists, nil
}

// UpsertMulti writes a batch of documents to one collection in a single
// pipelined round trip.
func (r *Repo) UpsertMulti(ctx context.Context, collection string, docs []domdoc.Document) error {
	items := make([]db.JSONSetItem, 0, len(docs))
	for i := range docs {
		data, err := json.Marshal(docs[i].Fields())
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", docs[i].ID(), err)
		}
		items = append(items, db.JSONSetItem{
			Key:  r.keys.Doc(collection, docs[i].ID()),
			Path: "$",
			Data: data,
		})
	}
	if err := r.store.JSONSetMulti(ctx, items); err != nil {
		return fmt.Errorf("json.set batch: %w", err)
	}
	return nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, collection, id string) (domdoc.Document, error) {
	key := r.keys.Doc(collection, id)
	raw, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, domain.ErrNotFound
		}
		return domdoc.Document{}, fmt.Errorf("json.get %s: %w", key, err)
	}
	return parseJSONGetResult(id, raw)
}

// List returns documents matching filter, with cursor-based pagination.
func (r *Repo) List(ctx context.Context, collection string, filter domdoc.ListFilter, cursor string, limit int) ([]domdoc.Document, string, error) {
	if limit <= 0 {
		limit = 20
	}

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			return nil, "", fmt.Errorf("%w: cursor %q", domain.ErrInvalidQuery, cursor)
		}
		offset = parsed
	}

	// Fetch one extra row to learn whether a next page exists.
	result, err := r.store.SearchList(ctx, r.keys.Index(collection), listQuery(filter), "", offset, limit+1, r.fields)
	if err != nil {
		return nil, "", fmt.Errorf("search list %s: %w", collection, err)
	}
	if result == nil || len(result.Entries) == 0 {
		return nil, "", nil
	}

	docs := make([]domdoc.Document, 0, limit)
	for i, entry := range result.Entries {
		if i >= limit {
			break
		}
		docs = append(docs, EntryToDocument(r.keys, collection, entry))
	}

	var next string
	if len(result.Entries) > limit {
		next = strconv.Itoa(offset + limit)
	}
	return docs, next, nil
}

// listQuery renders filter as an FT query; a zero filter scans everything.
func listQuery(filter domdoc.ListFilter) string {
	var clauses []string
	if filter.Tag != "" {
		clauses = append(clauses, redis.TagEqualsQuery(domdoc.FieldTags, filter.Tag))
	}
	if filter.State != "" {
		clauses = append(clauses, redis.TextEqualsQuery(domdoc.FieldState, filter.State))
	}
	return redis.And(clauses...)
}

// Count returns the number of documents in a collection.
func (r *Repo) Count(ctx context.Context, collection string) (int, error) {
	n, err := r.store.SearchCount(ctx, r.keys.Index(collection), "*")
	if err != nil {
		return 0, fmt.Errorf("search count %s: %w", collection, err)
	}
	return n, nil
}

// Delete removes a document.
func (r *Repo) Delete(ctx context.Context, collection, id string) error {
	key := r.keys.Doc(collection, id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a document is present.
func (r *Repo) Exists(ctx context.Context, collection, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, r.keys.Doc(collection, id))
	if err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}
	return ok, nil
}
