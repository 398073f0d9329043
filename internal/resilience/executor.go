// Package resilience wraps backing-store calls with retry, exponential
// backoff, and per-target circuit breaking. Retryable failures are
// reattempted with jittered delays; permanent failures propagate at once
// but still count against the breaker, since they show the target is
// unhealthy for this caller.
package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/meridian-cloud/docgate/internal/config"
	"github.com/meridian-cloud/docgate/internal/domain"
)

// Executor runs operations under a retry policy with one circuit breaker
// per named target. Targets are created lazily on first use.
type Executor struct {
	maxAttempts    int
	baseDelay      time.Duration
	maxDelay       time.Duration
	jitterFraction float64
	threshold      int
	cooldown       time.Duration

	classify Classifier
	logger   *zap.Logger
	retries  prometheus.Counter
	state    *prometheus.GaugeVec // label: target; 0=closed 1=open 2=half_open

	mu       sync.Mutex
	breakers map[string]*Breaker

	clock func() time.Time
	sleep func(context.Context, time.Duration) error
	randf func() float64
}

// NewExecutor builds an Executor from configuration. retries and state
// may be nil when metrics are not wanted, e.g. in tests.
func NewExecutor(cfg config.ResilienceConfig, classify Classifier, retries prometheus.Counter, state *prometheus.GaugeVec, logger *zap.Logger) *Executor {
	if classify == nil {
		classify = DefaultClassifier
	}
	return &Executor{
		maxAttempts:    cfg.MaxRetries,
		baseDelay:      cfg.InitialRetryDelay.Std(),
		maxDelay:       cfg.MaxRetryDelay.Std(),
		jitterFraction: cfg.JitterFraction,
		threshold:      cfg.CircuitBreakerThreshold,
		cooldown:       cfg.CircuitBreakerCooldown.Std(),
		classify:       classify,
		logger:         logger,
		retries:        retries,
		state:          state,
		breakers:       make(map[string]*Breaker),
		clock:          time.Now,
		sleep:          sleepCtx,
		randf:          rand.Float64,
	}
}

// Do runs op against target under the retry policy and target's breaker.
func (e *Executor) Do(ctx context.Context, target string, op func(context.Context) error) error {
	b := e.breaker(target)

	if err := b.acquire(); err != nil {
		e.observeState(target, b)
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 && b.rejecting() {
			return fmt.Errorf("%w (during retry of %v)", domain.ErrCircuitOpen, lastErr)
		}

		err := op(ctx)
		if err == nil {
			b.success()
			e.observeState(target, b)
			return nil
		}
		lastErr = err

		if e.classify(err) == Permanent {
			b.failure()
			e.observeState(target, b)
			return err
		}

		if attempt == e.maxAttempts {
			break
		}

		delay := e.delayFor(attempt)
		e.logger.Debug("retrying after transient failure",
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if e.retries != nil {
			e.retries.Inc()
		}
		if err := e.sleep(ctx, delay); err != nil {
			b.failure()
			e.observeState(target, b)
			return fmt.Errorf("retry interrupted: %w", err)
		}
	}

	b.failure()
	e.observeState(target, b)
	return lastErr
}

// Do runs op under the executor's policy and returns its value. The
// zero value of T accompanies any error.
func Do[T any](ctx context.Context, e *Executor, target string, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, target, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Snapshots reports every known breaker, ordered by target name.
func (e *Executor) Snapshots() []BreakerSnapshot {
	e.mu.Lock()
	targets := make([]string, 0, len(e.breakers))
	for target := range e.breakers {
		targets = append(targets, target)
	}
	e.mu.Unlock()
	sort.Strings(targets)

	snaps := make([]BreakerSnapshot, 0, len(targets))
	for _, target := range targets {
		snaps = append(snaps, e.breaker(target).snapshot(target))
	}
	return snaps
}

func (e *Executor) breaker(target string) *Breaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[target]
	if !ok {
		b = newBreaker(e.threshold, e.cooldown, e.clock)
		e.breakers[target] = b
	}
	return b
}

// delayFor computes the backoff before the next attempt:
// min(base * 2^(attempt-1), max) scaled by a jitter factor drawn from
// [1-jitterFraction, 1+jitterFraction].
func (e *Executor) delayFor(attempt int) time.Duration {
	backoff := float64(e.baseDelay) * math.Pow(2, float64(attempt-1))
	if capped := float64(e.maxDelay); backoff > capped {
		backoff = capped
	}
	jitter := 1 - e.jitterFraction + 2*e.jitterFraction*e.randf()
	return time.Duration(backoff * jitter)
}

func (e *Executor) observeState(target string, b *Breaker) {
	if e.state == nil {
		return
	}
	b.mu.Lock()
	status := b.status
	b.mu.Unlock()
	e.state.WithLabelValues(target).Set(float64(status))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
