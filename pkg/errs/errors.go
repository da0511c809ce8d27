package errs

import (
	"errors"
	"fmt"
)

type ErrType string

const (
	ErrTypeConfig          ErrType = "CONFIG_ERROR"
	ErrTypeSerialization   ErrType = "SERIALIZATION_ERROR"
	ErrTypeTransport       ErrType = "TRANSPORT_ERROR"
	ErrTypeAPI             ErrType = "API_ERROR"
	ErrTypeRecursionGuard  ErrType = "RECURSION_GUARD_TRIPPED"
	ErrTypeCircuitOpen     ErrType = "CIRCUIT_BREAKER_OPEN"
	ErrTypeTimeout         ErrType = "TIMEOUT"
	ErrTypeInvalidArgument ErrType = "INVALID_ARGUMENT"
)

type Error struct {
	Type       ErrType `json:"type"`
	Message    string  `json:"message"`
	StatusCode int     `json:"status_code,omitempty"`
	Body       string  `json:"body,omitempty"`
	Err        error   `json:"error,omitempty"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s - %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same type, so errors.Is(err, &Error{Type: T})
// works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Retryable reports whether repeating the failed operation could succeed.
func (e *Error) Retryable() bool {
	switch e.Type {
	case ErrTypeTransport, ErrTypeTimeout:
		return true
	case ErrTypeAPI:
		return e.StatusCode >= 500 || e.StatusCode == 429
	}
	return false
}

func ConfigError(message string) *Error {
	return &Error{
		Type:    ErrTypeConfig,
		Message: message,
	}
}

func SerializationError(message string, err error) *Error {
	return &Error{
		Type:    ErrTypeSerialization,
		Message: message,
		Err:     err,
	}
}

func TransportError(message string, err error) *Error {
	return &Error{
		Type:    ErrTypeTransport,
		Message: message,
		Err:     err,
	}
}

func APIError(statusCode int, body string) *Error {
	return &Error{
		Type:       ErrTypeAPI,
		Message:    "tracker returned a non-2xx response",
		StatusCode: statusCode,
		Body:       body,
	}
}

func RecursionGuard(count, ceiling int32) *Error {
	return &Error{
		Type:    ErrTypeRecursionGuard,
		Message: fmt.Sprintf("exception count %d exceeds ceiling %d", count, ceiling),
	}
}

func CircuitOpen() *Error {
	return &Error{
		Type:    ErrTypeCircuitOpen,
		Message: "circuit breaker is open",
	}
}

func Timeout(message string, err error) *Error {
	return &Error{
		Type:    ErrTypeTimeout,
		Message: message,
		Err:     err,
	}
}

func InvalidArgument(message string) *Error {
	return &Error{
		Type:    ErrTypeInvalidArgument,
		Message: message,
	}
}

// TypeOf returns the ErrType of the first *Error in err's chain, or "".
func TypeOf(err error) ErrType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// Is reports whether err's chain contains an *Error of the given type.
func Is(err error, t ErrType) bool {
	return errors.Is(err, &Error{Type: t})
}

// IsRetryable reports whether err is a typed error that may succeed on retry.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
