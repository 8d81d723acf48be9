package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrNoMatch is returned when no candidate survives matching
	ErrNoMatch = errors.New("no matching candidate")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrDocumentNotFound is returned when a document store lookup finds nothing
	ErrDocumentNotFound = errors.New("document not found")

	// ErrUpstreamFailure is matched by every *UpstreamError
	ErrUpstreamFailure = errors.New("upstream request failed")

	// ErrStoreUnavailable is returned when the document store cannot be reached
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// UpstreamErrorKind classifies unrecoverable upstream failures.
type UpstreamErrorKind int

const (
	UpstreamRateLimited UpstreamErrorKind = iota + 1
	UpstreamTimeout
	UpstreamNetworkFailure
	UpstreamHTTPStatus
)

func (k UpstreamErrorKind) String() string {
	switch k {
	case UpstreamRateLimited:
		return "rate_limited"
	case UpstreamTimeout:
		return "timeout"
	case UpstreamNetworkFailure:
		return "network_failure"
	case UpstreamHTTPStatus:
		return "http_status"
	default:
		return "unknown"
	}
}

// UpstreamError is returned by the upstream client once its attempt budget
// is spent or a non-retryable status is received.
type UpstreamError struct {
	Kind   UpstreamErrorKind
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream %s", e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is lets callers test for ErrUpstreamFailure without caring about the kind.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamFailure
}

// AsUpstreamError extracts an *UpstreamError from err's chain.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
