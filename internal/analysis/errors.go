package analysis

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindRateLimited Kind = iota + 1
	KindInvalidInput
	KindProvider
	KindUnparseable
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidInput:
		return "invalid_input"
	case KindProvider:
		return "provider_error"
	case KindUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// Error is the only error type Analyze returns. Status is the HTTP status the
// failure maps to.
type Error struct {
	Kind              Kind
	Message           string
	Details           []string
	Status            int
	Retryable         bool
	RetryAfterSeconds int
	Err               error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError unwraps err into an *Error.
func AsError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func rateLimitedError(message string, retryAfter int) *Error {
	return &Error{
		Kind:              KindRateLimited,
		Message:           message,
		Status:            http.StatusTooManyRequests,
		Retryable:         true,
		RetryAfterSeconds: retryAfter,
	}
}

func invalidInputError(details []string) *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Message: "The assessment is incomplete or invalid.",
		Details: details,
		Status:  http.StatusBadRequest,
	}
}

func unparseableError(err error) *Error {
	return &Error{
		Kind:      KindUnparseable,
		Message:   "The AI response could not be read. Please try again.",
		Status:    http.StatusInternalServerError,
		Retryable: true,
		Err:       err,
	}
}
