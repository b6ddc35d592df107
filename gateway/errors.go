package gateway

import (
	"errors"
	"fmt"
)

// ErrorType classifies gateway failures for callers that map them to
// transport-level responses.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfig
	ErrorTypeRequest
	ErrorTypeProviderCall
	ErrorTypeCircuitOpen
	ErrorTypeRateLimit
)

// Error is the gateway's error value: a type tag, a message, and the
// wrapped underlying cause when one exists.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.TypeString(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.TypeString(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) TypeString() string {
	switch e.Type {
	case ErrorTypeConfig:
		return "ConfigError"
	case ErrorTypeRequest:
		return "RequestError"
	case ErrorTypeProviderCall:
		return "ProviderCallFailed"
	case ErrorTypeCircuitOpen:
		return "CircuitBreakerOpen"
	case ErrorTypeRateLimit:
		return "RateLimitError"
	default:
		return "UnknownError"
	}
}

func NewError(errType ErrorType, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

func typeOf(err error) ErrorType {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Type
	}
	return ErrorTypeUnknown
}

// IsCircuitOpen reports whether err is a fast-fail from an open breaker.
func IsCircuitOpen(err error) bool {
	return typeOf(err) == ErrorTypeCircuitOpen
}

// IsProviderCallFailed reports whether err is an exhausted-retries failure
// against the generation provider.
func IsProviderCallFailed(err error) bool {
	return typeOf(err) == ErrorTypeProviderCall
}

// IsConfig reports whether err stems from invalid gateway configuration or
// request parameters.
func IsConfig(err error) bool {
	t := typeOf(err)
	return t == ErrorTypeConfig || t == ErrorTypeRequest
}
