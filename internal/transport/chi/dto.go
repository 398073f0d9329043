package chi

import (
	"github.com/meridian-cloud/docgate/internal/cache"
	"github.com/meridian-cloud/docgate/internal/domain/document"
	domsearch "github.com/meridian-cloud/docgate/internal/domain/search"
	"github.com/meridian-cloud/docgate/internal/resilience"
	searchuc "github.com/meridian-cloud/docgate/internal/usecase/search"
	shardinguc "github.com/meridian-cloud/docgate/internal/usecase/sharding"
)

// ErrorCode is a machine-readable error identifier in API responses.
type ErrorCode string

const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeNotFound           ErrorCode = "not_found"
	CodeAlreadyExists      ErrorCode = "already_exists"
	CodePermissionDenied   ErrorCode = "permission_denied"
	CodeFailedPrecondition ErrorCode = "failed_precondition"
	CodeInvalidQuery       ErrorCode = "invalid_query"
	CodeCircuitOpen        ErrorCode = "circuit_open"
	CodeUnavailable        ErrorCode = "unavailable"
	CodeResourceExhausted  ErrorCode = "resource_exhausted"
	CodeDeadlineExceeded   ErrorCode = "deadline_exceeded"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DocumentPayload is the wire form of a document in requests and responses.
type DocumentPayload struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// PutDocumentRequest carries the fields for an upsert.
type PutDocumentRequest struct {
	Fields map[string]any `json:"fields"`
}

// PutDocumentResponse reports the outcome of an upsert.
type PutDocumentResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

// DocumentListResponse is one cursor page of documents.
type DocumentListResponse struct {
	Items      []DocumentPayload `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// SearchRequest is the body of POST /collections/{collection}/search.
type SearchRequest struct {
	Query        string `json:"query"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	CrossRegion  bool   `json:"cross_region,omitempty"`
}

// SearchHit is one scored search result.
type SearchHit struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
	Score  float64        `json:"score"`
}

// SearchResponse carries the ranked hits.
type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}

// BatchWriteRequest upserts several documents in one call.
type BatchWriteRequest struct {
	Jurisdiction string            `json:"jurisdiction,omitempty"`
	Documents    []DocumentPayload `json:"documents"`
}

// BatchWriteResponse reports how many documents were written.
type BatchWriteResponse struct {
	Written int `json:"written"`
}

// MigrateRequest triggers a partition migration.
type MigrateRequest struct {
	DryRun bool `json:"dry_run,omitempty"`
}

// StatsResponse aggregates operational counters for GET /v1/stats.
type StatsResponse struct {
	Breakers []resilience.BreakerSnapshot `json:"breakers"`
	Search   searchuc.Stats               `json:"search"`
	Sharding shardinguc.Stats             `json:"sharding"`
	Cache    cache.Stats                  `json:"cache"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func documentToPayload(doc document.Document) DocumentPayload {
	return DocumentPayload{ID: doc.ID(), Fields: doc.Fields()}
}

func resultsToHits(results []domsearch.ScoredResult) []SearchHit {
	hits := make([]SearchHit, len(results))
	for i := range results {
		doc := results[i].Document()
		hits[i] = SearchHit{
			ID:     doc.ID(),
			Fields: doc.Fields(),
			Score:  results[i].Score(),
		}
	}
	return hits
}
