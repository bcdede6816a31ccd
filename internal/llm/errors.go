package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// FailureKind classifies a capability failure for the recovery manager.
type FailureKind string

const (
	// FailureTransient covers timeouts and server-side errors worth retrying.
	FailureTransient FailureKind = "transient"
	// FailureRateLimited covers explicit provider rate limiting.
	FailureRateLimited FailureKind = "rate_limited"
	// FailureUnrecoverable covers refusals, auth failures, and malformed
	// output that survived retries.
	FailureUnrecoverable FailureKind = "unrecoverable"
)

// ErrMalformedOutput indicates the model returned output that could not be
// parsed into the expected structure.
var ErrMalformedOutput = errors.New("malformed model output")

// CallError is a typed failure from a provider call. The recovery manager
// classifies failures through Kind.
type CallError struct {
	// Provider is the provider that failed.
	Provider string
	// Model is the model the call targeted.
	Model string
	// StatusCode is the HTTP status, or 0 for transport-level failures.
	StatusCode int
	// RetryAfter is the provider's retry hint, if one was given.
	RetryAfter time.Duration
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s call failed (model %s, status %d): %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s call failed (model %s): %v", e.Provider, e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *CallError) Unwrap() error {
	return e.Err
}

// Kind classifies the failure.
func (e *CallError) Kind() FailureKind {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return FailureRateLimited
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode >= 500,
		e.StatusCode == 0 && errors.Is(e.Err, context.DeadlineExceeded):
		return FailureTransient
	case e.StatusCode == 0:
		// Transport-level failures (connection reset, DNS) are retryable.
		return FailureTransient
	default:
		// 4xx other than 408/429: bad request, auth, refusal.
		return FailureUnrecoverable
	}
}

// wrapCallError converts an SDK error into a CallError, extracting the HTTP
// status and Retry-After hint when present.
func wrapCallError(provider string, model anthropic.Model, err error) *CallError {
	ce := &CallError{
		Provider: provider,
		Model:    string(model),
		Err:      err,
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		ce.StatusCode = apiErr.StatusCode
		if apiErr.Response != nil {
			ce.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("retry-after"))
		}
	}
	return ce
}

// parseRetryAfter parses a Retry-After header value in delta-seconds form.
// HTTP-date form is ignored; callers fall back to their own backoff.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Classify maps any error to a FailureKind. Errors the package did not
// produce default to transient.
func Classify(err error) FailureKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind()
	}
	if errors.Is(err, ErrMalformedOutput) {
		// A fresh call can produce parseable output, so malformed responses
		// are retried. They turn unrecoverable only once the retry budget
		// is spent.
		return FailureTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTransient
	}
	return FailureTransient
}

// RetryHint returns the provider's retry delay hint for the error, or zero.
func RetryHint(err error) time.Duration {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.RetryAfter
	}
	return 0
}
