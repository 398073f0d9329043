// Package gateway composes the routing, resilience, search, and caching
// strategies behind one façade. Callers address logical collections and
// jurisdiction codes; the coordinator decides which partition to hit,
// whether the call runs under retry and circuit breaking, and which
// reads come from cache.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-cloud/docgate/internal/cache"
	"github.com/meridian-cloud/docgate/internal/config"
	"github.com/meridian-cloud/docgate/internal/db"
	"github.com/meridian-cloud/docgate/internal/domain"
	"github.com/meridian-cloud/docgate/internal/domain/document"
	domsearch "github.com/meridian-cloud/docgate/internal/domain/search"
	"github.com/meridian-cloud/docgate/internal/resilience"
	"github.com/meridian-cloud/docgate/internal/usecase/search"
	"github.com/meridian-cloud/docgate/internal/usecase/sharding"
)

// docCacheTTL bounds how stale a cached document read may be.
const docCacheTTL = 5 * time.Minute

// Coordinator is the strategy-composed façade over the backing store.
type Coordinator struct {
	docs     Documents
	router   Router
	engine   SearchEngine
	cache    ResultCache
	tx       TxRunner
	executor *resilience.Executor

	resilienceOn bool
	searchOn     bool
	shardingOn   bool
	cacheOn      bool

	logger *zap.Logger
}

// New wires the coordinator. executor, cache, and tx may be nil when the
// corresponding strategy or capability is absent.
func New(
	docs Documents,
	router Router,
	engine SearchEngine,
	cache ResultCache,
	tx TxRunner,
	executor *resilience.Executor,
	cfg config.Config,
	logger *zap.Logger,
) *Coordinator {
	enabled := func(flag *bool) bool { return flag == nil || *flag }
	return &Coordinator{
		docs:         docs,
		router:       router,
		engine:       engine,
		cache:        cache,
		tx:           tx,
		executor:     executor,
		resilienceOn: executor != nil && enabled(cfg.Resilience.Enabled),
		searchOn:     engine != nil && enabled(cfg.Search.Enabled),
		shardingOn:   router != nil && enabled(cfg.Sharding.Enabled),
		cacheOn:      cache != nil && enabled(cfg.Cache.Enabled),
		logger:       logger,
	}
}

// GetDocument reads one document from the partition owning jurisdiction.
func (c *Coordinator) GetDocument(ctx context.Context, collection, jurisdiction, id string) (document.Document, error) {
	target := c.route(collection, jurisdiction)

	if c.cacheOn {
		if raw, ok := c.cache.Get(ctx, docCacheKey(target, id)); ok {
			var fields map[string]any
			if err := json.Unmarshal(raw, &fields); err == nil {
				return document.Reconstruct(id, fields), nil
			}
		}
	}

	doc, err := c.get(ctx, target, id)
	if err != nil {
		return document.Document{}, err
	}

	if c.cacheOn {
		if raw, err := json.Marshal(doc.Fields()); err == nil {
			c.cache.Set(ctx, docCacheKey(target, id), raw, docCacheTTL)
		}
	}
	return doc, nil
}

// PutDocument upserts one document. Returns true when created.
func (c *Coordinator) PutDocument(ctx context.Context, collection, jurisdiction string, doc document.Document) (bool, error) {
	target := c.route(collection, jurisdiction)

	created, err := c.put(ctx, target, doc)
	if err != nil {
		return false, err
	}
	if c.cacheOn {
		c.cache.Remove(ctx, docCacheKey(target, doc.ID()))
	}
	return created, nil
}

// DeleteDocument removes one document.
func (c *Coordinator) DeleteDocument(ctx context.Context, collection, jurisdiction, id string) error {
	target := c.route(collection, jurisdiction)

	err := c.withResilience(ctx, target, func(ctx context.Context) error {
		return c.docs.Delete(ctx, target, id)
	})
	if err != nil {
		return err
	}
	if c.cacheOn {
		c.cache.Remove(ctx, docCacheKey(target, id))
	}
	return nil
}

// ListDocuments pages through the partition owning jurisdiction,
// narrowed by filter when any of its fields are set.
func (c *Coordinator) ListDocuments(ctx context.Context, collection, jurisdiction string, filter document.ListFilter, cursor string, limit int) ([]document.Document, string, error) {
	target := c.route(collection, jurisdiction)

	type page struct {
		docs []document.Document
		next string
	}
	p, err := withResilienceValue(ctx, c, target, func(ctx context.Context) (page, error) {
		docs, next, err := c.docs.List(ctx, target, filter, cursor, limit)
		return page{docs: docs, next: next}, err
	})
	if err != nil {
		return nil, "", err
	}
	return p.docs, p.next, nil
}

// TextSearch runs a relevance query. With sharding active the query may
// fan out across the primary region's neighborhood; otherwise it stays
// on the routed partition.
func (c *Coordinator) TextSearch(ctx context.Context, collection, jurisdiction, input string, limit int, crossRegion bool) ([]domsearch.ScoredResult, error) {
	if !c.searchOn {
		return nil, fmt.Errorf("%w: search strategy disabled", domain.ErrFailedPrecondition)
	}

	if c.shardingOn && crossRegion {
		return c.router.CrossRegionSearch(ctx, collection, input, jurisdiction, limit)
	}

	target := c.route(collection, jurisdiction)
	return c.engine.Search(ctx, target, input, limit)
}

// BatchWrite upserts a batch into the partition owning jurisdiction in
// one pipelined round trip.
func (c *Coordinator) BatchWrite(ctx context.Context, collection, jurisdiction string, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}
	target := c.route(collection, jurisdiction)

	err := c.withResilience(ctx, target, func(ctx context.Context) error {
		return c.docs.UpsertMulti(ctx, target, docs)
	})
	if err != nil {
		return err
	}
	if c.cacheOn {
		for i := range docs {
			c.cache.Remove(ctx, docCacheKey(target, docs[i].ID()))
		}
	}
	return nil
}

// RunTransaction executes fn atomically; watch keys guard against
// concurrent modification. Transactions bypass the retry loop: an
// aborted transaction is the caller's conflict to resolve, and breaking
// the circuit on optimistic-lock churn would be wrong.
func (c *Coordinator) RunTransaction(ctx context.Context, watch []string, fn func(tx db.Tx) error) error {
	if c.tx == nil {
		return fmt.Errorf("%w: transactions unavailable", domain.ErrFailedPrecondition)
	}
	return c.tx.Txn(ctx, watch, fn)
}

// Migrate runs the partition migration for a collection.
func (c *Coordinator) Migrate(ctx context.Context, collection string, dryRun bool) (*sharding.Report, error) {
	if !c.shardingOn {
		return nil, fmt.Errorf("%w: sharding strategy disabled", domain.ErrFailedPrecondition)
	}
	return c.router.Migrate(ctx, collection, dryRun)
}

// CircuitBreakerStatus reports every breaker the executor has seen.
func (c *Coordinator) CircuitBreakerStatus() []resilience.BreakerSnapshot {
	if c.executor == nil {
		return nil
	}
	return c.executor.Snapshots()
}

// SearchStatistics reports cumulative search counters.
func (c *Coordinator) SearchStatistics() search.Stats {
	if c.engine == nil {
		return search.Stats{}
	}
	return c.engine.Snapshot()
}

// ShardingStatistics reports routing table shape and counters.
func (c *Coordinator) ShardingStatistics() sharding.Stats {
	if c.router == nil {
		return sharding.Stats{}
	}
	return c.router.Snapshot()
}

// CacheStatistics reports cache counters when the wired cache exposes them.
func (c *Coordinator) CacheStatistics(ctx context.Context) cache.Stats {
	if s, ok := c.cache.(interface {
		Stats(ctx context.Context) cache.Stats
	}); ok {
		return s.Stats(ctx)
	}
	return cache.Stats{}
}

func (c *Coordinator) route(collection, jurisdiction string) string {
	if !c.shardingOn {
		return collection
	}
	return c.router.Route(collection, jurisdiction)
}

func (c *Coordinator) get(ctx context.Context, target, id string) (document.Document, error) {
	return withResilienceValue(ctx, c, target, func(ctx context.Context) (document.Document, error) {
		return c.docs.Get(ctx, target, id)
	})
}

func (c *Coordinator) put(ctx context.Context, target string, doc document.Document) (bool, error) {
	return withResilienceValue(ctx, c, target, func(ctx context.Context) (bool, error) {
		return c.docs.Upsert(ctx, target, doc)
	})
}

func (c *Coordinator) withResilience(ctx context.Context, target string, op func(context.Context) error) error {
	if !c.resilienceOn {
		return op(ctx)
	}
	return c.executor.Do(ctx, target, op)
}

func withResilienceValue[T any](ctx context.Context, c *Coordinator, target string, op func(context.Context) (T, error)) (T, error) {
	if !c.resilienceOn {
		return op(ctx)
	}
	return resilience.Do(ctx, c.executor, target, op)
}

func docCacheKey(target, id string) string {
	return fmt.Sprintf("doc:%s:%s", target, id)
}
