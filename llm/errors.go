package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies backend failures for routing decisions.
type ErrorKind string

const (
	KindAuth              ErrorKind = "auth"
	KindRateLimit         ErrorKind = "rate_limit"
	KindTimeout           ErrorKind = "timeout"
	KindNetwork           ErrorKind = "network"
	KindMalformedResponse ErrorKind = "malformed_response"
)

// BackendError is the base error type for failures originating at a backend.
type BackendError struct {
	Backend    string
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Backend, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Backend, e.Kind, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Cause }

// Concrete backend error types, one per taxonomy entry.

type AuthError struct{ BackendError }
type RateLimitError struct{ BackendError }
type TimeoutError struct{ BackendError }
type NetworkError struct{ BackendError }
type MalformedResponseError struct{ BackendError }

// AllBackendsExhausted is returned by the Router when every backend in the
// fallback chain has been tried and failed.
type AllBackendsExhausted struct {
	Tried []string
	Last  error
}

func (e *AllBackendsExhausted) Error() string {
	return fmt.Sprintf("all backends exhausted after trying %v: %v", e.Tried, e.Last)
}

func (e *AllBackendsExhausted) Unwrap() error { return e.Last }

func newAuthError(backend, msg string, cause error) error {
	return &AuthError{BackendError{Backend: backend, Kind: KindAuth, Message: msg, Cause: cause}}
}

func newRateLimitError(backend, msg string, cause error) error {
	return &RateLimitError{BackendError{Backend: backend, Kind: KindRateLimit, Message: msg, Cause: cause}}
}

func newTimeoutError(backend, msg string, cause error) error {
	return &TimeoutError{BackendError{Backend: backend, Kind: KindTimeout, Message: msg, Cause: cause}}
}

func newNetworkError(backend, msg string, cause error) error {
	return &NetworkError{BackendError{Backend: backend, Kind: KindNetwork, Message: msg, Cause: cause}}
}

func newMalformedError(backend, msg string, cause error) error {
	return &MalformedResponseError{BackendError{Backend: backend, Kind: KindMalformedResponse, Message: msg, Cause: cause}}
}

// classifyHTTPStatus maps an HTTP status code from a backend into the taxonomy.
func classifyHTTPStatus(backend string, status int, cause error) error {
	msg := fmt.Sprintf("http status %d", status)
	switch {
	case status == 401 || status == 403:
		return &AuthError{BackendError{Backend: backend, Kind: KindAuth, Message: msg, StatusCode: status, Cause: cause}}
	case status == 429:
		return &RateLimitError{BackendError{Backend: backend, Kind: KindRateLimit, Message: msg, StatusCode: status, Cause: cause}}
	case status == 408 || status == 504:
		return &TimeoutError{BackendError{Backend: backend, Kind: KindTimeout, Message: msg, StatusCode: status, Cause: cause}}
	case status >= 500:
		return &NetworkError{BackendError{Backend: backend, Kind: KindNetwork, Message: msg, StatusCode: status, Cause: cause}}
	default:
		return &MalformedResponseError{BackendError{Backend: backend, Kind: KindMalformedResponse, Message: msg, StatusCode: status, Cause: cause}}
	}
}

// classifyTransportErr maps non-HTTP failures (dial errors, deadline
// expiry, cancellation) into the taxonomy.
func classifyTransportErr(backend string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newTimeoutError(backend, "request deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return err // cancellation is the caller's signal, not a backend fault
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return newTimeoutError(backend, "network timeout", err)
		}
		return newNetworkError(backend, "network failure", err)
	}
	return newNetworkError(backend, "transport failure", err)
}

// IsRetryable reports whether the Router may advance the fallback chain after
// this error. Auth failures are terminal: retrying elsewhere with the same
// misconfiguration wastes the chain, and retrying the same backend is
// pointless.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch err.(type) {
	case *AuthError:
		return false
	case *RateLimitError, *TimeoutError, *NetworkError, *MalformedResponseError:
		return true
	case *BackendError:
		return err.(*BackendError).Kind != KindAuth
	default:
		// Unknown errors default to retryable so a single odd failure
		// cannot strand the whole chain.
		return true
	}
}
