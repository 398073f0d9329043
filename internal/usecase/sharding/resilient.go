package sharding

import (
	"context"

	"github.com/meridian-cloud/docgate/internal/domain/document"
	"github.com/meridian-cloud/docgate/internal/resilience"
)

// ResilientStore runs routing and migration store traffic under the
// retry policy, with one circuit breaker per physical partition. A
// migration batch whose target partition is down fails fast instead of
// hammering it.
type ResilientStore struct {
	store DocumentStore
	exec  *resilience.Executor
}

// NewResilientStore wraps store with executor-backed calls.
func NewResilientStore(store DocumentStore, exec *resilience.Executor) *ResilientStore {
	return &ResilientStore{store: store, exec: exec}
}

func (r *ResilientStore) List(ctx context.Context, collection string, filter document.ListFilter, cursor string, limit int) ([]document.Document, string, error) {
	type page struct {
		docs []document.Document
		next string
	}
	p, err := resilience.Do(ctx, r.exec, collection, func(ctx context.Context) (page, error) {
		docs, next, err := r.store.List(ctx, collection, filter, cursor, limit)
		return page{docs: docs, next: next}, err
	})
	if err != nil {
		return nil, "", err
	}
	return p.docs, p.next, nil
}

func (r *ResilientStore) Upsert(ctx context.Context, collection string, doc document.Document) (bool, error) {
	return resilience.Do(ctx, r.exec, collection, func(ctx context.Context) (bool, error) {
		return r.store.Upsert(ctx, collection, doc)
	})
}

func (r *ResilientStore) UpsertMulti(ctx context.Context, collection string, docs []document.Document) error {
	return r.exec.Do(ctx, collection, func(ctx context.Context) error {
		return r.store.UpsertMulti(ctx, collection, docs)
	})
}

func (r *ResilientStore) Count(ctx context.Context, collection string) (int, error) {
	return resilience.Do(ctx, r.exec, collection, func(ctx context.Context) (int, error) {
		return r.store.Count(ctx, collection)
	})
}
