package resilience

import (
	"sync"
	"time"

	"github.com/meridian-cloud/docgate/internal/domain"
)

// BreakerStatus is a circuit breaker's current state.
type BreakerStatus int

const (
	StatusClosed BreakerStatus = iota
	StatusOpen
	StatusHalfOpen
)

func (s BreakerStatus) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusOpen:
		return "open"
	case StatusHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerSnapshot is a point-in-time view of one breaker, suitable for
// the stats endpoint.
type BreakerSnapshot struct {
	Target              string     `json:"target"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
	Threshold           int        `json:"threshold"`
	Cooldown            string     `json:"cooldown"`
}

// Breaker is a per-target circuit breaker. Closed passes calls through;
// Open rejects until the cooldown elapses; HalfOpen admits exactly one
// trial call whose outcome decides the next state.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	clock     func() time.Time

	mu                  sync.Mutex
	status              BreakerStatus
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool
}

func newBreaker(threshold int, cooldown time.Duration, clock func() time.Time) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     clock,
		status:    StatusClosed,
	}
}

// acquire decides whether a call may proceed. An Open breaker past its
// cooldown moves to HalfOpen and admits the caller as the single trial.
func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.status {
	case StatusClosed:
		return nil
	case StatusOpen:
		if b.clock().Sub(b.openedAt) < b.cooldown {
			return domain.ErrCircuitOpen
		}
		b.status = StatusHalfOpen
		b.trialInFlight = true
		return nil
	case StatusHalfOpen:
		if b.trialInFlight {
			return domain.ErrCircuitOpen
		}
		b.trialInFlight = true
		return nil
	default:
		return domain.ErrCircuitOpen
	}
}

// rejecting reports whether the breaker is Open and still cooling down.
// Used between retry attempts so a concurrently opened breaker stops the
// loop without consuming further attempts.
func (b *Breaker) rejecting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status == StatusOpen && b.clock().Sub(b.openedAt) < b.cooldown
}

// success records a completed call. A HalfOpen trial success closes the
// breaker; Closed stays Closed. The failure streak resets either way.
func (b *Breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.trialInFlight = false
	if b.status == StatusHalfOpen {
		b.status = StatusClosed
	}
}

// failure records a failed call. A HalfOpen trial failure reopens the
// breaker and restarts the cooldown; in Closed the streak grows and the
// breaker opens once it reaches the threshold.
func (b *Breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.trialInFlight = false

	switch b.status {
	case StatusHalfOpen:
		b.status = StatusOpen
		b.openedAt = b.clock()
	case StatusClosed:
		if b.consecutiveFailures >= b.threshold {
			b.status = StatusOpen
			b.openedAt = b.clock()
		}
	}
}

func (b *Breaker) snapshot(target string) BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := BreakerSnapshot{
		Target:              target,
		Status:              b.status.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		Threshold:           b.threshold,
		Cooldown:            b.cooldown.String(),
	}
	if b.status != StatusClosed {
		openedAt := b.openedAt
		snap.OpenedAt = &openedAt
	}
	return snap
}
