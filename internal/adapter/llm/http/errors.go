package http

import (
	"fmt"
	stdhttp "net/http"
)

// ErrorType categorizes LLM backend failures for retry decisions.
type ErrorType int

const (
	ErrTypeAuthentication ErrorType = iota
	ErrTypeRateLimit
	ErrTypeServiceUnavailable
	ErrTypeInvalidRequest
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeUnknown
)

// String returns a human-readable description of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrTypeAuthentication:
		return "authentication error"
	case ErrTypeRateLimit:
		return "rate limit exceeded"
	case ErrTypeServiceUnavailable:
		return "service unavailable"
	case ErrTypeInvalidRequest:
		return "invalid request"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeModelNotFound:
		return "model not found"
	default:
		return "unknown error"
	}
}

// Error is a typed backend error with enough context to classify it.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	Provider   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s (status: %d)", e.Provider, e.Type.String(), e.Message, e.StatusCode)
}

// Is matches on error type so callers can use errors.Is with sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsRetryable reports whether the failure is transient.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewTimeoutError wraps a transport-level timeout or connection failure.
func NewTimeoutError(provider, message string) *Error {
	return &Error{Type: ErrTypeTimeout, Message: message, Retryable: true, Provider: provider}
}

// FromStatusCode maps an HTTP status to a typed error. Rate limits and
// 5xx responses are retryable; auth and request errors are not. Status
// 529 is Anthropic's overloaded signal.
func FromStatusCode(provider string, statusCode int, message string) *Error {
	err := &Error{Message: message, StatusCode: statusCode, Provider: provider}
	switch statusCode {
	case stdhttp.StatusUnauthorized, stdhttp.StatusForbidden:
		err.Type = ErrTypeAuthentication
	case stdhttp.StatusTooManyRequests:
		err.Type = ErrTypeRateLimit
		err.Retryable = true
	case stdhttp.StatusNotFound:
		err.Type = ErrTypeModelNotFound
	case stdhttp.StatusBadRequest:
		err.Type = ErrTypeInvalidRequest
	case stdhttp.StatusRequestTimeout, stdhttp.StatusGatewayTimeout:
		err.Type = ErrTypeTimeout
		err.Retryable = true
	case stdhttp.StatusInternalServerError, stdhttp.StatusBadGateway, stdhttp.StatusServiceUnavailable, 529:
		err.Type = ErrTypeServiceUnavailable
		err.Retryable = true
	default:
		err.Type = ErrTypeUnknown
	}
	return err
}
