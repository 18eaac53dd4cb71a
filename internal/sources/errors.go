package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Failure kinds every source client reports. Callers match them with errors.Is.
var (
	// ErrTimeout covers deadlines, transport failures and 5xx responses.
	ErrTimeout = errors.New("timeout")
	// ErrRateLimited covers 429 and 403 (quota) responses and limiter waits
	// that cannot finish before the deadline.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound covers 404/410 and other 4xx responses rejecting the identifier.
	ErrNotFound = errors.New("not found")
	// ErrMalformedResponse covers bodies that cannot be decoded or lack required data.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrMissingIdentifier is returned before any request when the request
	// lacks the identifier a source needs.
	ErrMissingIdentifier = errors.New("missing identifier")
)

// Error is a classified failure from one source.
type Error struct {
	Source string
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(source string, kind, err error) *Error {
	return &Error{Source: source, Kind: kind, Err: err}
}

// Missing reports an absent identifier for source.
func Missing(source, field string) error {
	return newError(source, ErrMissingIdentifier, errors.New(field))
}

// kindForStatus maps a non-2xx HTTP status to a failure kind.
func kindForStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusForbidden:
		return ErrRateLimited
	case code == http.StatusRequestTimeout, code >= 500:
		return ErrTimeout
	default:
		return ErrNotFound
	}
}

// Outcome labels err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrMissingIdentifier):
		return "missing_identifier"
	default:
		return "error"
	}
}
