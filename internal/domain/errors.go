package domain

import "errors"

// Sentinel errors forming the gateway's failure taxonomy. Transient errors are
// retried by the resilience layer; permanent errors propagate immediately.
var (
	// ErrNotFound signals a missing document or collection.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrPermissionDenied signals a rejected credential or rule violation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrFailedPrecondition signals a write against stale or conflicting state.
	ErrFailedPrecondition = errors.New("failed precondition")

	// ErrUnavailable signals the backing store is unreachable.
	ErrUnavailable = errors.New("store unavailable")
	// ErrInternal signals a server-side store failure.
	ErrInternal = errors.New("internal store error")
	// ErrResourceExhausted signals store-side throttling or quota exhaustion.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrDeadlineExceeded signals the caller's deadline budget ran out.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrCircuitOpen signals the breaker rejected the call without reaching the store.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrInvalidQuery signals a malformed query or cursor.
	ErrInvalidQuery = errors.New("invalid query")
)
