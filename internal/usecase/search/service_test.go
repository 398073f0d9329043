package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-cloud/docgate/internal/config"
	"github.com/meridian-cloud/docgate/internal/domain/document"
)

type fakeRepo struct {
	prefixScan func(ctx context.Context, collection, field, term string, limit int) ([]document.Document, error)
	tagScan    func(ctx context.Context, collection, field, term string, limit int) ([]document.Document, error)
}

func (f *fakeRepo) PrefixScan(ctx context.Context, collection, field, term string, limit int) ([]document.Document, error) {
	return f.prefixScan(ctx, collection, field, term, limit)
}

func (f *fakeRepo) TagScan(ctx context.Context, collection, field, term string, limit int) ([]document.Document, error) {
	if f.tagScan == nil {
		return nil, nil
	}
	return f.tagScan(ctx, collection, field, term, limit)
}

type fakeCache struct {
	entries map[string][]byte
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := f.entries[key]
	return v, ok
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	f.sets++
	f.entries[key] = value
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		MaxResults:     50,
		MinQueryLength: 2,
		CacheTTL:       config.Duration(10 * time.Minute),
	}
}

func doc(t *testing.T, id string, fields map[string]any) document.Document {
	t.Helper()
	d, err := document.New(id, fields)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestSearchShortQueryReturnsEmpty(t *testing.T) {
	repo := &fakeRepo{
		prefixScan: func(context.Context, string, string, string, int) ([]document.Document, error) {
			t.Fatal("store must not be touched for short queries")
			return nil, nil
		},
	}
	svc := New(repo, nil, testSearchConfig(), nil, zap.NewNop())

	results, err := svc.Search(context.Background(), "providers", "x", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for short query", len(results))
	}
	if svc.Snapshot().RejectedShort != 1 {
		t.Error("short rejection not counted")
	}
}

func TestSearchBasicModeSingleTerm(t *testing.T) {
	var scannedField, scannedTerm string
	repo := &fakeRepo{
		prefixScan: func(_ context.Context, _, field, term string, _ int) ([]document.Document, error) {
			scannedField, scannedTerm = field, term
			return []document.Document{
				doc(t, "p1", map[string]any{"name": "local clinic"}),
			}, nil
		},
	}
	svc := New(repo, nil, testSearchConfig(), nil, zap.NewNop())

	results, err := svc.Search(context.Background(), "providers", "Local", 10)
	if err != nil {
		t.Fatal(err)
	}
	if scannedField != "name" || scannedTerm != "local" {
		t.Errorf("scanned %s/%s, want name/local", scannedField, scannedTerm)
	}
	if len(results) != 1 || results[0].Document().ID() != "p1" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Score() <= 0 {
		t.Error("basic result carries no score")
	}
}

// A document whose name is exactly the query phrase must outrank longer
// names containing it, regardless of which scan produced it first.
func TestSearchExactMatchRanksFirst(t *testing.T) {
	exact := doc(t, "exact", map[string]any{"name": "local 123"})
	prefix := doc(t, "prefix", map[string]any{"name": "local 123 extended services"})
	contains := doc(t, "contains", map[string]any{"name": "the local 123 group"})

	repo := &fakeRepo{
		prefixScan: func(_ context.Context, _, field, term string, _ int) ([]document.Document, error) {
			if field != "name" {
				return nil, nil
			}
			switch term {
			case "local":
				// Store order deliberately puts the exact match last.
				return []document.Document{prefix, contains, exact}, nil
			case "123":
				return nil, nil
			}
			return nil, nil
		},
	}
	svc := New(repo, nil, testSearchConfig(), nil, zap.NewNop())

	results, err := svc.Search(context.Background(), "providers", "local 123", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Document().ID() != "exact" {
		t.Errorf("top result = %s, want exact", results[0].Document().ID())
	}
	if results[0].Score() <= results[1].Score() {
		t.Error("exact match does not outscore prefix match")
	}
}

func TestSearchAdvancedModeMultiField(t *testing.T) {
	scans := map[string]int{}
	repo := &fakeRepo{
		prefixScan: func(_ context.Context, _, field, term string, _ int) ([]document.Document, error) {
			scans[field+":"+term]++
			if field == "city" && term == "albany" {
				return []document.Document{
					doc(t, "p2", map[string]any{"name": "riverside care", "city": "albany"}),
				}, nil
			}
			return nil, nil
		},
		tagScan: func(_ context.Context, _, field, term string, _ int) ([]document.Document, error) {
			scans["tag/"+field+":"+term]++
			return nil, nil
		},
	}
	svc := New(repo, nil, testSearchConfig(), nil, zap.NewNop())

	results, err := svc.Search(context.Background(), "providers", "riverside albany", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Document().ID() != "p2" {
		t.Fatalf("results = %+v", results)
	}
	// Text fields scanned per term, tags via tag scan.
	if scans["name:riverside"] == 0 || scans["city:albany"] == 0 {
		t.Errorf("missing field scans: %v", scans)
	}
	if scans["tag/tags:riverside"] == 0 {
		t.Errorf("tags field not scanned via tag scan: %v", scans)
	}
}

func TestSearchAdvancedFailureDegradesToBasic(t *testing.T) {
	var basicScans int
	repo := &fakeRepo{
		prefixScan: func(_ context.Context, _, field, term string, _ int) ([]document.Document, error) {
			if term == "riverside" && basicScans == 0 {
				// First (advanced) pass over the name field fails.
				basicScans++
				return nil, errors.New("index rebuilding")
			}
			return []document.Document{
				doc(t, "p1", map[string]any{"name": "riverside care"}),
			}, nil
		},
	}
	svc := New(repo, nil, testSearchConfig(), nil, zap.NewNop())

	results, err := svc.Search(context.Background(), "providers", "riverside albany", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("degraded search returned %d results", len(results))
	}
	if svc.Snapshot().DegradedBasic != 1 {
		t.Error("degradation not counted")
	}
}

func TestSearchTotalFailureReturnsEmptyNotError(t *testing.T) {
	repo := &fakeRepo{
		prefixScan: func(context.Context, string, string, string, int) ([]document.Document, error) {
			return nil, errors.New("store down")
		},
	}
	svc := New(repo, nil, testSearchConfig(), nil, zap.NewNop())

	results, err := svc.Search(context.Background(), "providers", "riverside albany", 10)
	if err != nil {
		t.Fatalf("degradation leaked an error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from a dead store", len(results))
	}
	if svc.Snapshot().DegradedEmpty != 1 {
		t.Error("empty degradation not counted")
	}
}

func TestSearchCacheHitSkipsStore(t *testing.T) {
	var scans int
	repo := &fakeRepo{
		prefixScan: func(_ context.Context, _, _, _ string, _ int) ([]document.Document, error) {
			scans++
			return []document.Document{
				doc(t, "p1", map[string]any{"name": "local clinic"}),
			}, nil
		},
	}
	cache := newFakeCache()
	svc := New(repo, cache, testSearchConfig(), nil, zap.NewNop())
	ctx := context.Background()

	first, err := svc.Search(ctx, "providers", "local", 10)
	if err != nil {
		t.Fatal(err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", cache.sets)
	}

	scansBefore := scans
	second, err := svc.Search(ctx, "providers", "local", 10)
	if err != nil {
		t.Fatal(err)
	}
	if scans != scansBefore {
		t.Error("cache hit still touched the store")
	}
	if len(second) != len(first) || second[0].Document().ID() != first[0].Document().ID() {
		t.Error("cached page differs from computed page")
	}
	if second[0].Score() != first[0].Score() {
		t.Error("score lost through the cache")
	}
	if svc.Snapshot().CacheHits != 1 {
		t.Error("cache hit not counted")
	}
}

func TestSearchDistinctCollectionsDistinctCacheKeys(t *testing.T) {
	repo := &fakeRepo{
		prefixScan: func(_ context.Context, collection, _, _ string, _ int) ([]document.Document, error) {
			return []document.Document{
				doc(t, "p-"+collection[len(collection)-4:], map[string]any{"name": "local"}),
			}, nil
		},
	}
	cache := newFakeCache()
	svc := New(repo, cache, testSearchConfig(), nil, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.Search(ctx, "providers#west", "local", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Search(ctx, "providers#east", "local", 10); err != nil {
		t.Fatal(err)
	}
	if len(cache.entries) != 2 {
		t.Errorf("cached %d pages, want 2 (one per partition)", len(cache.entries))
	}
}

func TestSearchLimitTruncates(t *testing.T) {
	docs := []document.Document{
		doc(t, "a", map[string]any{"name": "local one"}),
		doc(t, "b", map[string]any{"name": "local two"}),
		doc(t, "c", map[string]any{"name": "local three"}),
	}
	repo := &fakeRepo{
		prefixScan: func(_ context.Context, _, field, _ string, _ int) ([]document.Document, error) {
			if field == "name" {
				return docs, nil
			}
			return nil, nil
		},
	}
	svc := New(repo, nil, testSearchConfig(), nil, zap.NewNop())

	results, err := svc.Search(context.Background(), "providers", "local documents", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want limit 2", len(results))
	}
}

func TestTermScoreOrdering(t *testing.T) {
	exact := termScore("clinic", "clinic")
	prefix := termScore("clin", "clinic")
	contains := termScore("lini", "clinic")
	miss := termScore("xyz", "clinic")

	if !(exact > prefix && prefix > contains && contains > 0) {
		t.Errorf("score ordering broken: exact=%f prefix=%f contains=%f", exact, prefix, contains)
	}
	if miss != 0 {
		t.Errorf("miss scored %f", miss)
	}
}

func TestFieldScoreArrayKeepsBestPerTerm(t *testing.T) {
	d := doc(t, "p1", map[string]any{"tags": []any{"cardiology", "pediatrics"}})

	score := fieldScore([]string{"cardio"}, &d, "tags")
	if score <= 0 {
		t.Error("array field did not match")
	}
	both := fieldScore([]string{"cardio", "pedia"}, &d, "tags")
	if both <= score {
		t.Error("second matching term added nothing")
	}
}
