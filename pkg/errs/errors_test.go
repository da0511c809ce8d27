package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "config",
			err:      ConfigError("tracker not configured"),
			expected: "CONFIG_ERROR: tracker not configured",
		},
		{
			name:     "api",
			err:      APIError(422, `{"message":"Validation Failed"}`),
			expected: "API_ERROR: tracker returned a non-2xx response (status 422)",
		},
		{
			name:     "transport with cause",
			err:      TransportError("failed to send request", errors.New("dial tcp: refused")),
			expected: "TRANSPORT_ERROR: failed to send request - dial tcp: refused",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.err.Error(); got != test.expected {
				t.Errorf("Expected %q, got %q", test.expected, got)
			}
		})
	}
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("submit: %w", TransportError("post failed", cause))

	if !Is(wrapped, ErrTypeTransport) {
		t.Error("Expected wrapped error to match TRANSPORT_ERROR")
	}
	if Is(wrapped, ErrTypeAPI) {
		t.Error("Expected wrapped error not to match API_ERROR")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("Expected Unwrap to expose the cause")
	}
	if TypeOf(wrapped) != ErrTypeTransport {
		t.Errorf("Expected TypeOf TRANSPORT_ERROR, got %q", TypeOf(wrapped))
	}
	if TypeOf(cause) != "" {
		t.Errorf("Expected empty type for untyped error, got %q", TypeOf(cause))
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"transport", TransportError("x", nil), true},
		{"timeout", Timeout("x", nil), true},
		{"server error", APIError(502, ""), true},
		{"rate limited", APIError(429, ""), true},
		{"client error", APIError(401, ""), false},
		{"config", ConfigError("x"), false},
		{"plain", errors.New("x"), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsRetryable(test.err); got != test.retryable {
				t.Errorf("Expected retryable=%v, got %v", test.retryable, got)
			}
		})
	}
}
