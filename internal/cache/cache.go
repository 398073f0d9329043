// Package cache implements a two-tier read cache: a bounded in-memory
// LRU map in front of a durable key-value tier. Values past a size
// threshold are gzip-compressed before they reach the durable tier.
// Failures in either tier are absorbed and surfaced as misses.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/meridian-cloud/docgate/internal/config"
)

// ErrNotFound is returned by DurableStore implementations for absent keys.
var ErrNotFound = errors.New("cache: entry not found")

// DurableStore is the persisted second tier.
type DurableStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Trim removes oldest entries until the tier holds at most maxEntries
	// entries and maxBytes bytes. Returns the number removed.
	Trim(ctx context.Context, maxEntries int, maxBytes int64) (int, error)
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	EntryCount int    `json:"entry_count"`
}

// Cache coordinates the memory and durable tiers.
type Cache struct {
	mu      sync.Mutex
	memory  *lruMap
	durable DurableStore

	threshold       int
	durableCapacity int
	durableMaxBytes int64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	lookups *prometheus.CounterVec // labels: tier, result
	logger  *zap.Logger

	stopSweep chan struct{}
	sweepDone chan struct{}
	clock     func() time.Time
}

// New wires the two tiers together and starts the expiry sweeper.
// durable may be nil, in which case the cache is memory-only.
func New(cfg config.CacheConfig, durable DurableStore, lookups *prometheus.CounterVec, logger *zap.Logger) *Cache {
	c := &Cache{
		memory:          newLRUMap(cfg.MemoryCapacity),
		durable:         durable,
		threshold:       cfg.CompressionThreshold,
		durableCapacity: cfg.DurableCapacity,
		durableMaxBytes: cfg.DurableMaxBytes,
		lookups:         lookups,
		logger:          logger,
		stopSweep:       make(chan struct{}),
		sweepDone:       make(chan struct{}),
		clock:           time.Now,
	}
	go c.sweepLoop(cfg.SweepInterval.Std())
	return c
}

// Get returns the cached value for key, or ok=false on miss or expiry.
// A memory miss falls through to the durable tier; a durable hit is
// promoted back into memory with its remaining lifetime.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	now := c.clock()

	c.mu.Lock()
	if e, ok := c.memory.get(key); ok {
		if !e.expired(now) {
			c.mu.Unlock()
			c.hits.Add(1)
			c.count("memory", "hit")
			return e.value, true
		}
		c.memory.remove(key)
	}
	c.mu.Unlock()
	c.count("memory", "miss")

	if c.durable == nil {
		c.misses.Add(1)
		return nil, false
	}

	raw, err := c.durable.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("durable cache read failed", zap.String("key", key), zap.Error(err))
		}
		c.misses.Add(1)
		c.count("durable", "miss")
		return nil, false
	}

	value, createdAt, ttl, err := decodeEntry(raw)
	if err != nil {
		c.logger.Warn("durable cache entry corrupt", zap.String("key", key), zap.Error(err))
		_ = c.durable.Delete(ctx, key)
		c.misses.Add(1)
		c.count("durable", "miss")
		return nil, false
	}

	expiresAt := createdAt.Add(ttl)
	if now.After(expiresAt) {
		_ = c.durable.Delete(ctx, key)
		c.misses.Add(1)
		c.count("durable", "miss")
		return nil, false
	}

	c.hits.Add(1)
	c.count("durable", "hit")
	c.promote(key, value, createdAt, expiresAt)
	return value, true
}

// Set writes key to both tiers with the given lifetime.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	now := c.clock()
	e := &memoryEntry{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}

	c.mu.Lock()
	if evicted := c.memory.put(e); evicted != "" {
		c.evictions.Add(1)
	}
	c.mu.Unlock()

	if c.durable == nil {
		return
	}

	encoded, err := encodeEntry(value, now, ttl, c.threshold)
	if err != nil {
		c.logger.Warn("encode cache entry failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.durable.Set(ctx, key, encoded, ttl); err != nil {
		c.logger.Warn("durable cache write failed", zap.String("key", key), zap.Error(err))
		return
	}

	removed, err := c.durable.Trim(ctx, c.durableCapacity, c.durableMaxBytes)
	if err != nil {
		c.logger.Warn("durable cache trim failed", zap.Error(err))
		return
	}
	if removed > 0 {
		c.evictions.Add(uint64(removed))
	}
}

// Remove deletes key from both tiers.
func (c *Cache) Remove(ctx context.Context, key string) {
	c.mu.Lock()
	c.memory.remove(key)
	c.mu.Unlock()

	if c.durable == nil {
		return
	}
	if err := c.durable.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		c.logger.Warn("durable cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear empties both tiers. Counters are preserved.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.memory.clear()
	c.mu.Unlock()

	if c.durable == nil {
		return
	}
	if err := c.durable.Clear(ctx); err != nil {
		c.logger.Warn("durable cache clear failed", zap.Error(err))
	}
}

// Stats reports cumulative counters and the current entry count across
// both tiers.
func (c *Cache) Stats(ctx context.Context) Stats {
	c.mu.Lock()
	count := c.memory.len()
	c.mu.Unlock()

	if c.durable != nil {
		n, err := c.durable.Len(ctx)
		if err != nil {
			c.logger.Warn("durable cache count failed", zap.Error(err))
		} else {
			count += n
		}
	}

	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		EntryCount: count,
	}
}

// Probe round-trips a sentinel entry through the cache for health checks.
func (c *Cache) Probe(ctx context.Context) error {
	const key = "probe:health"
	c.Set(ctx, key, []byte("ok"), time.Minute)
	if _, ok := c.Get(ctx, key); !ok {
		return errors.New("cache probe readback failed")
	}
	c.Remove(ctx, key)
	return nil
}

// Close stops the sweeper and releases the durable tier.
func (c *Cache) Close() error {
	close(c.stopSweep)
	<-c.sweepDone
	if c.durable == nil {
		return nil
	}
	return c.durable.Close()
}

func (c *Cache) promote(key string, value []byte, createdAt, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if evicted := c.memory.put(&memoryEntry{
		key:       key,
		value:     value,
		createdAt: createdAt,
		expiresAt: expiresAt,
	}); evicted != "" {
		c.evictions.Add(1)
	}
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer close(c.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopSweep:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := c.clock()
	c.mu.Lock()
	removed := c.memory.removeExpired(now)
	c.mu.Unlock()
	if removed > 0 {
		c.logger.Debug("swept expired cache entries", zap.Int("removed", removed))
	}
}

func (c *Cache) count(tier, result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(tier, result).Inc()
	}
}
