package gen

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// ErrorKind is the closed taxonomy of stream failure classifications.
type ErrorKind string

const (
	// KindConnectTimeout: no response byte arrived within the connect timeout.
	KindConnectTimeout ErrorKind = "connect-timeout"

	// KindChunkTimeout: the stream went silent longer than the inter-chunk timeout.
	KindChunkTimeout ErrorKind = "chunk-timeout"

	// KindConnectionRefused: the endpoint actively refused the connection.
	KindConnectionRefused ErrorKind = "connection-refused"

	// KindUnauthorized: the endpoint rejected the credential (401/403).
	KindUnauthorized ErrorKind = "unauthorized"

	// KindRateLimited: the endpoint is throttling (429).
	KindRateLimited ErrorKind = "rate-limited"

	// KindServerError: the endpoint returned a 5xx.
	KindServerError ErrorKind = "server-error"

	// KindCancelled: the caller cancelled the session.
	KindCancelled ErrorKind = "cancelled"

	// KindParse: a single frame failed interpretation. Per-frame and
	// non-fatal; never surfaced as a terminal session error.
	KindParse ErrorKind = "parse-error"

	// KindUnknown: anything the classifier could not place.
	KindUnknown ErrorKind = "unknown"
)

// Retryable reports whether the caller may reasonably retry after this kind
// of failure. The client itself never retries; this flag is advisory so the
// caller can decide whether to present a retry affordance.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindConnectTimeout, KindChunkTimeout, KindConnectionRefused,
		KindRateLimited, KindServerError:
		return true
	}
	return false
}

// ClassifiedError is a terminal stream failure mapped into the closed
// taxonomy. It wraps the underlying cause when one exists.
type ClassifiedError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ClassifiedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry this failure.
func (e *ClassifiedError) Retryable() bool {
	return e.Kind.Retryable()
}

// NewError creates a ClassifiedError with a human-readable message.
func NewError(kind ErrorKind, message string) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Message: message}
}

// ClassifyStatus maps a non-success HTTP status code into the taxonomy.
func ClassifyStatus(status int) *ClassifiedError {
	kind := KindUnknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindUnauthorized
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status >= 500:
		kind = KindServerError
	}
	return &ClassifiedError{
		Kind:    kind,
		Message: fmt.Sprintf("endpoint returned status %d", status),
	}
}

// Classify maps a transport-level error into the taxonomy. Already-classified
// errors pass through unchanged so classification happens exactly once.
func Classify(err error) *ClassifiedError {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	kind := KindUnknown
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindConnectTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = KindConnectionRefused
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = KindConnectTimeout
		}
	}

	return &ClassifiedError{Kind: kind, Err: err}
}
