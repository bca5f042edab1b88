// Package llm wraps the text-completion providers behind a single Completer
// interface and classifies their failures.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Request is a single-turn completion request.
type Request struct {
	System    string
	Prompt    string
	Model     string
	MaxTokens int
}

type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Completer is a black-box text-completion service.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ProviderError is a classified provider failure. Message is safe to show to
// end users; Err carries the underlying error for logs.
type ProviderError struct {
	Provider   string
	Status     int
	Message    string
	Retryable  bool
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AsProviderError unwraps err into a *ProviderError.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether the caller may retry the request later.
func IsRetryable(err error) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Retryable
}

// IsRateLimited reports whether the provider rejected the request with 429.
func IsRateLimited(err error) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Status == http.StatusTooManyRequests
}

// retryableStatus mirrors the usual transient set: rate limiting, request
// timeout and every 5xx.
func retryableStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

func statusMessage(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "The AI service is busy right now. Please try again in a minute."
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "The AI service rejected our credentials."
	case status == http.StatusGatewayTimeout, status == http.StatusRequestTimeout:
		return "The AI service took too long to respond. Please try again."
	case status >= 500:
		return "The AI service is temporarily unavailable. Please try again."
	default:
		return "The AI service could not process this request."
	}
}

// classify builds a ProviderError from a status code. A zero status means the
// request never got an HTTP answer; context expiry is treated as a timeout.
func classify(provider string, status int, err error) *ProviderError {
	if status == 0 {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, context.Canceled):
			return &ProviderError{
				Provider: provider,
				Status:   499,
				Message:  "The request was cancelled.",
				Err:      err,
			}
		default:
			status = http.StatusBadGateway
		}
	}
	return &ProviderError{
		Provider:  provider,
		Status:    status,
		Message:   statusMessage(status),
		Retryable: retryableStatus(status),
		Err:       err,
	}
}

// statusFromText recovers a status from error strings for clients that do not
// expose a typed error.
func statusFromText(msg string) int {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "429"), strings.Contains(lower, "resource_exhausted"), strings.Contains(lower, "quota"):
		return http.StatusTooManyRequests
	case strings.Contains(lower, "503"), strings.Contains(lower, "unavailable"):
		return http.StatusServiceUnavailable
	case strings.Contains(lower, "401"), strings.Contains(lower, "403"), strings.Contains(lower, "api key"):
		return http.StatusUnauthorized
	default:
		return 0
	}
}
