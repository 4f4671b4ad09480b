package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantType  string
		retryable bool
	}{
		{"unauthorized", 401, "*llm.AuthError", false},
		{"forbidden", 403, "*llm.AuthError", false},
		{"rate limited", 429, "*llm.RateLimitError", true},
		{"request timeout", 408, "*llm.TimeoutError", true},
		{"gateway timeout", 504, "*llm.TimeoutError", true},
		{"server error", 500, "*llm.NetworkError", true},
		{"bad gateway", 502, "*llm.NetworkError", true},
		{"unexpected status", 418, "*llm.MalformedResponseError", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyHTTPStatus("test", tt.status, nil)
			if got := fmt.Sprintf("%T", err); got != tt.wantType {
				t.Errorf("type = %s, want %s", got, tt.wantType)
			}
			if got := IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestClassifyTransportErr(t *testing.T) {
	err := classifyTransportErr("test", context.DeadlineExceeded)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("deadline exceeded should classify as timeout, got %T", err)
	}

	if err := classifyTransportErr("test", context.Canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("cancellation should pass through, got %v", err)
	}
}

func TestIsRetryableUnknownError(t *testing.T) {
	if !IsRetryable(errors.New("mystery")) {
		t.Error("unclassified errors should be retryable")
	}
}

func TestAllBackendsExhausted(t *testing.T) {
	last := newRateLimitError("openai", "too many requests", nil)
	err := &AllBackendsExhausted{Tried: []string{"gh", "openai"}, Last: last}

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Error("exhaustion should unwrap to the last backend error")
	}
	if err.Error() == "" {
		t.Error("expected a message")
	}
}

func TestBackendErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := newNetworkError("ollama", "request failed", cause)
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be reachable through Unwrap")
	}
}
