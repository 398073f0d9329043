package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-cloud/docgate/internal/config"
)

type fakeDurable struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	setErr  error
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{entries: make(map[string][]byte)}
}

func (f *fakeDurable) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (f *fakeDurable) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = value
	return nil
}

func (f *fakeDurable) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeDurable) Trim(context.Context, int, int64) (int, error) { return 0, nil }

func (f *fakeDurable) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string][]byte)
	return nil
}

func (f *fakeDurable) Len(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries), nil
}

func (f *fakeDurable) Close() error { return nil }

func testConfig() config.CacheConfig {
	return config.CacheConfig{
		MemoryCapacity:       3,
		DurableCapacity:      10,
		DurableMaxBytes:      1 << 20,
		CompressionThreshold: 1 << 10,
		SweepInterval:        config.Duration(time.Hour),
	}
}

func newTestCache(t *testing.T, durable DurableStore) *Cache {
	t.Helper()
	c := New(testConfig(), durable, nil, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(t, newFakeDurable())
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)

	got, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != "v" {
		t.Errorf("got %q, want %q", got, "v")
	}

	if _, ok := c.Get(ctx, "absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestCacheLRUEviction(t *testing.T) {
	durable := newFakeDurable()
	c := newTestCache(t, durable)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	c.Set(ctx, "c", []byte("3"), time.Minute)

	// Touch "a" so "b" becomes least recently used.
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatal("expected hit for a")
	}

	c.Set(ctx, "d", []byte("4"), time.Minute)

	c.mu.Lock()
	_, aInMem := c.memory.peek("a")
	_, bInMem := c.memory.peek("b")
	c.mu.Unlock()

	if !aInMem {
		t.Error("recently used entry was evicted")
	}
	if bInMem {
		t.Error("least recently used entry survived eviction")
	}

	// The evicted entry is still served from the durable tier.
	if got, ok := c.Get(ctx, "b"); !ok || string(got) != "2" {
		t.Errorf("durable fallback: got %q ok=%v", got, ok)
	}

	stats := c.Stats(ctx)
	if stats.Evictions == 0 {
		t.Error("expected eviction counter to advance")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	now := time.Now()
	c.clock = func() time.Time { return now }

	c.Set(ctx, "k", []byte("v"), time.Minute)

	now = now.Add(30 * time.Second)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("entry expired too early")
	}

	now = now.Add(31 * time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestCacheDurableExpiry(t *testing.T) {
	durable := newFakeDurable()
	c := newTestCache(t, durable)
	ctx := context.Background()

	now := time.Now()
	c.clock = func() time.Time { return now }

	c.Set(ctx, "k", []byte("v"), time.Minute)

	// Drop from memory so the next read goes to the durable tier.
	c.mu.Lock()
	c.memory.remove("k")
	c.mu.Unlock()

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected expired durable entry to miss")
	}
	if _, err := durable.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Error("expired durable entry was not deleted")
	}
}

func TestCacheDurablePromotion(t *testing.T) {
	durable := newFakeDurable()
	c := newTestCache(t, durable)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.mu.Lock()
	c.memory.remove("k")
	c.mu.Unlock()

	if got, ok := c.Get(ctx, "k"); !ok || string(got) != "v" {
		t.Fatalf("durable read: got %q ok=%v", got, ok)
	}

	c.mu.Lock()
	_, inMem := c.memory.peek("k")
	c.mu.Unlock()
	if !inMem {
		t.Error("durable hit was not promoted to memory")
	}
}

func TestCacheDurableFailureIsMiss(t *testing.T) {
	durable := newFakeDurable()
	durable.getErr = errors.New("disk on fire")
	c := newTestCache(t, durable)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("durable failure must surface as miss")
	}

	stats := c.Stats(ctx)
	if stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
}

func TestCacheCompressionRoundTrip(t *testing.T) {
	durable := newFakeDurable()
	c := newTestCache(t, durable)
	ctx := context.Background()

	// Compressible payload above the 1 KB threshold.
	large := bytes.Repeat([]byte("regional document payload "), 100)
	c.Set(ctx, "big", large, time.Minute)

	raw, err := durable.Get(ctx, "big")
	if err != nil {
		t.Fatal(err)
	}
	if raw[0]&flagCompressed == 0 {
		t.Error("large entry was not flagged compressed")
	}
	if len(raw) >= len(large) {
		t.Errorf("stored %d bytes for %d byte value, expected compression", len(raw), len(large))
	}

	c.mu.Lock()
	c.memory.remove("big")
	c.mu.Unlock()

	got, ok := c.Get(ctx, "big")
	if !ok {
		t.Fatal("expected hit")
	}
	if !bytes.Equal(got, large) {
		t.Error("round-tripped value differs from original")
	}
}

func TestCacheSmallValueNotCompressed(t *testing.T) {
	durable := newFakeDurable()
	c := newTestCache(t, durable)
	ctx := context.Background()

	c.Set(ctx, "small", []byte("tiny"), time.Minute)

	raw, err := durable.Get(ctx, "small")
	if err != nil {
		t.Fatal(err)
	}
	if raw[0]&flagCompressed != 0 {
		t.Error("small entry was flagged compressed")
	}
}

func TestCacheRemoveAndClear(t *testing.T) {
	durable := newFakeDurable()
	c := newTestCache(t, durable)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)

	c.Remove(ctx, "a")
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("removed entry still present")
	}

	c.Clear(ctx)
	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("cleared entry still present")
	}
	if n, _ := durable.Len(ctx); n != 0 {
		t.Errorf("durable tier holds %d entries after clear", n)
	}
}

func TestCacheStats(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Get(ctx, "k")
	c.Get(ctx, "k")
	c.Get(ctx, "nope")

	stats := c.Stats(ctx)
	if stats.Hits != 2 {
		t.Errorf("hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
	if stats.EntryCount != 1 {
		t.Errorf("entry count = %d, want 1", stats.EntryCount)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	now := time.Now()
	c.clock = func() time.Time { return now }

	c.Set(ctx, "old", []byte("1"), time.Second)
	c.Set(ctx, "fresh", []byte("2"), time.Hour)

	now = now.Add(time.Minute)
	c.sweep()

	c.mu.Lock()
	n := c.memory.len()
	_, freshLeft := c.memory.peek("fresh")
	c.mu.Unlock()

	if n != 1 || !freshLeft {
		t.Errorf("after sweep: %d entries, fresh present = %v", n, freshLeft)
	}
}
