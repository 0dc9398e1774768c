package gateway

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a registry call failure for the calling stage.
type ErrorKind string

const (
	// KindTransient covers network timeouts and 5xx responses. Retried with
	// backoff inside the gateway; callers only see it once the retry budget
	// is exhausted.
	KindTransient ErrorKind = "transient"
	// KindRateLimited is the registry's own rate-limit signal. The shared
	// budget is paused for the signalled window before retrying.
	KindRateLimited ErrorKind = "rate_limited"
	// KindNotFound is a 404 for the requested resource. Never retried.
	KindNotFound ErrorKind = "not_found"
	// KindPermanent covers other 4xx responses and malformed payloads.
	// Never retried; fails only the calling job.
	KindPermanent ErrorKind = "permanent"
)

// ApiError is the classified failure surfaced by every gateway call.
// RetryAfter is set only for rate-limit signals that carried a Retry-After
// header.
type ApiError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *ApiError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("registry: %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("registry: %s: %s", e.Kind, e.Message)
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the gateway may retry the call.
func (e *ApiError) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindRateLimited
}

// AsApiError extracts an ApiError from an error chain.
func AsApiError(err error) (*ApiError, bool) {
	var ae *ApiError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsPermanent reports whether err is a non-retryable registry failure.
func IsPermanent(err error) bool {
	if ae, ok := AsApiError(err); ok {
		return !ae.Retryable()
	}
	return false
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 404:
		return KindNotFound
	case status >= 500, status == 408:
		return KindTransient
	default:
		return KindPermanent
	}
}

// classifyNetErr wraps a transport-level error. A request that never produced
// a response is always safe to re-issue against a read-only registry, so
// everything at this level is transient.
func classifyNetErr(err error) *ApiError {
	return &ApiError{Kind: KindTransient, Message: err.Error(), Err: err}
}
