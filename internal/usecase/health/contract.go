package health

import "context"

// StorePinger checks backing-store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// CacheProber checks the cache substrate with a round-trip probe.
type CacheProber interface {
	Probe(ctx context.Context) error
}
