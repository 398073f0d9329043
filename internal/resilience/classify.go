package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/meridian-cloud/docgate/internal/db"
	"github.com/meridian-cloud/docgate/internal/domain"
)

// Class partitions errors into those worth retrying and those that are not.
type Class int

const (
	// Permanent errors propagate immediately without further attempts.
	Permanent Class = iota
	// Retryable errors are retried with backoff until attempts run out.
	Retryable
)

// Classifier maps an operation error to its Class.
type Classifier func(error) Class

// transientReplies are server error prefixes meaning the store is alive
// but momentarily unable to serve: dataset loading, a blocking script,
// or a cluster reshuffle.
var transientReplies = []string{"LOADING", "BUSY", "TRYAGAIN", "CLUSTERDOWN", "MASTERDOWN"}

// DefaultClassifier treats the transient half of the domain error taxonomy
// as retryable, along with store-driver failures that are connection-level
// rather than semantic. Unknown errors are permanent: retrying an
// unclassified failure risks duplicating writes.
func DefaultClassifier(err error) Class {
	switch {
	case errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, domain.ErrInternal),
		errors.Is(err, domain.ErrResourceExhausted),
		errors.Is(err, domain.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return Retryable
	}

	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return classifyStoreError(dbErr.Err)
	}
	return Permanent
}

// classifyStoreError decides for raw driver errors that reached the
// executor without a domain mapping. Network failures and busy-server
// replies are transient; anything the server rejected semantically
// (bad query, wrong type) is not.
func classifyStoreError(err error) Class {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Retryable
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, context.DeadlineExceeded) {
		return Retryable
	}

	msg := err.Error()
	for _, prefix := range transientReplies {
		if strings.HasPrefix(msg, prefix) {
			return Retryable
		}
	}
	return Permanent
}
