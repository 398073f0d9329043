package search

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-cloud/docgate/internal/config"
	"github.com/meridian-cloud/docgate/internal/domain"
	"github.com/meridian-cloud/docgate/internal/domain/document"
	"github.com/meridian-cloud/docgate/internal/resilience"
)

func instantExecutor() *resilience.Executor {
	e := resilience.NewExecutor(config.ResilienceConfig{
		MaxRetries:              3,
		InitialRetryDelay:       config.Duration(time.Millisecond),
		MaxRetryDelay:           config.Duration(time.Millisecond),
		JitterFraction:          0,
		CircuitBreakerThreshold: 5,
		CircuitBreakerCooldown:  config.Duration(time.Minute),
	}, nil, nil, nil, zap.NewNop())
	return e
}

func TestResilientRepositoryRetriesScan(t *testing.T) {
	var calls int
	repo := &fakeRepo{
		prefixScan: func(_ context.Context, _, _, _ string, _ int) ([]document.Document, error) {
			calls++
			if calls < 3 {
				return nil, domain.ErrUnavailable
			}
			d := document.Reconstruct("p1", map[string]any{"name": "clinic"})
			return []document.Document{d}, nil
		},
	}
	r := NewResilientRepository(repo, instantExecutor())

	docs, err := r.PrefixScan(context.Background(), "providers#west", "name", "cli", 10)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(docs) != 1 || docs[0].ID() != "p1" {
		t.Errorf("docs = %v", docs)
	}
}

func TestResilientRepositoryBreakerPerPartition(t *testing.T) {
	repo := &fakeRepo{
		tagScan: func(context.Context, string, string, string, int) ([]document.Document, error) {
			return nil, domain.ErrUnavailable
		},
	}
	exec := instantExecutor()
	r := NewResilientRepository(repo, exec)

	// Exhaust the west partition's breaker; east stays closed.
	for i := 0; i < 5; i++ {
		_, _ = r.TagScan(context.Background(), "providers#west", "tags", "urgent", 10)
	}

	var found bool
	for _, snap := range exec.Snapshots() {
		if snap.Target == "providers#west" {
			found = true
			if snap.Status != "open" {
				t.Errorf("west breaker = %s, want open", snap.Status)
			}
		}
	}
	if !found {
		t.Error("no breaker recorded for providers#west")
	}
}
