// Package events delivers lightweight operational events (cache
// evictions, breaker transitions, migration progress) to a background
// consumer without ever blocking the hot path.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is a named occurrence with free-form attributes.
type Event struct {
	Name       string
	At         time.Time
	Attributes map[string]any
}

// Emitter accepts events for asynchronous delivery.
type Emitter interface {
	Emit(name string, attrs map[string]any)
	Close()
}

// LogEmitter writes events to a zap logger from a single background
// goroutine. The buffer is bounded; events are dropped under pressure
// rather than stalling callers. Emit after Close is a no-op.
type LogEmitter struct {
	logger *zap.Logger
	queue  chan Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewLogEmitter starts an emitter with the given buffer size.
func NewLogEmitter(logger *zap.Logger, buffer int) *LogEmitter {
	if buffer <= 0 {
		buffer = 64
	}
	e := &LogEmitter{
		logger: logger,
		queue:  make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go e.drain()
	return e
}

// Emit enqueues an event, dropping it if the buffer is full or the
// emitter is already closed.
func (e *LogEmitter) Emit(name string, attrs map[string]any) {
	ev := Event{Name: name, At: time.Now(), Attributes: attrs}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- ev:
	default:
		// Queue full. Dropping is preferable to blocking a request.
	}
}

// Close flushes buffered events and stops the background goroutine.
// Safe to call more than once.
func (e *LogEmitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	<-e.done
}

func (e *LogEmitter) drain() {
	defer close(e.done)
	for ev := range e.queue {
		fields := make([]zap.Field, 0, len(ev.Attributes)+1)
		fields = append(fields, zap.Time("at", ev.At))
		for k, v := range ev.Attributes {
			fields = append(fields, zap.Any(k, v))
		}
		e.logger.Info(ev.Name, fields...)
	}
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(string, map[string]any) {}
func (NopEmitter) Close()                      {}
