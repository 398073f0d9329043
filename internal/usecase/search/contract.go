package search

import (
	"context"
	"time"

	"github.com/meridian-cloud/docgate/internal/domain/document"
)

// Repository runs field-scoped scans against a collection's index.
type Repository interface {
	// PrefixScan returns documents whose text field starts with term.
	PrefixScan(ctx context.Context, collection, field, term string, limit int) ([]document.Document, error)
	// TagScan returns documents whose tag-array field contains a value
	// starting with term.
	TagScan(ctx context.Context, collection, field, term string, limit int) ([]document.Document, error)
}

// Cache stores serialized result lists. Implementations absorb their own
// failures; a failed read is a miss, a failed write is silent.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}
