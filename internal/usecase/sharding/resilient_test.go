package sharding

import (
	"context"
	"errors"
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

func TestResilientStoreRetriesBatchWrite(t *testing.T) {
	var calls int
	docs := &fakeDocs{
		upsertMulti: func(context.Context, string, []document.Document) error {
			calls++
			if calls < 2 {
				return domain.ErrUnavailable
			}
			return nil
		},
	}
	rs := NewResilientStore(docs, instantExecutor())

	d, _ := document.New("p1", map[string]any{"jurisdiction": "NY"})
	if err := rs.UpsertMulti(context.Background(), "providers#northeast", []document.Document{d}); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestResilientStoreListSurfacesPermanentError(t *testing.T) {
	boom := errors.New("Syntax error at offset 3")
	var calls int
	docs := &fakeDocs{
		list: func(context.Context, string, string, int) ([]document.Document, string, error) {
			calls++
			return nil, "", boom
		},
	}
	rs := NewResilientStore(docs, instantExecutor())

	_, _, err := rs.List(context.Background(), "providers", document.ListFilter{}, "", 10)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for a permanent error", calls)
	}
}
