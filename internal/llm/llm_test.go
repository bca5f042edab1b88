package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		err       error
		wantCode  int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, errors.New("429"), 429, true},
		{"server error", http.StatusInternalServerError, errors.New("boom"), 500, true},
		{"overloaded", 529, errors.New("overloaded"), 529, true},
		{"unauthorized", http.StatusUnauthorized, errors.New("bad key"), 401, false},
		{"bad request", http.StatusBadRequest, errors.New("bad"), 400, false},
		{"deadline", 0, fmt.Errorf("post: %w", context.DeadlineExceeded), 504, true},
		{"network", 0, errors.New("connection refused"), 502, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := classify("test", tt.status, tt.err)
			assert.Equal(t, tt.wantCode, pe.Status)
			assert.Equal(t, tt.retryable, pe.Retryable)
			assert.NotEmpty(t, pe.Message)
			assert.ErrorIs(t, pe, tt.err)
		})
	}
}

func TestClassifyCanceledIsNotRetryable(t *testing.T) {
	pe := classify("test", 0, context.Canceled)
	assert.False(t, pe.Retryable)
}

func TestIsRetryableAndRateLimited(t *testing.T) {
	err := fmt.Errorf("analyze: %w", classify("test", 429, errors.New("slow down")))
	assert.True(t, IsRetryable(err))
	assert.True(t, IsRateLimited(err))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestStatusFromText(t *testing.T) {
	assert.Equal(t, 429, statusFromText("googleapi: Error 429: Resource has been exhausted"))
	assert.Equal(t, 429, statusFromText("rpc error: code = RESOURCE_EXHAUSTED"))
	assert.Equal(t, 0, statusFromText("something odd"))
}

func TestOpenAIComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"summary\":\"ok\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}`)
	}))
	defer srv.Close()

	c := NewOpenAI("test-key", srv.URL+"/v1", srv.Client())
	resp, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "hello", MaxTokens: 100})
	require.NoError(t, err)

	assert.Equal(t, `{"summary":"ok"}`, resp.Text)
	assert.Equal(t, int64(12), resp.InputTokens)
	assert.Equal(t, int64(4), resp.OutputTokens)
	assert.Equal(t, DefaultOpenAIModel, got["model"])
	assert.EqualValues(t, 100, got["max_tokens"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestOpenAICompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	c := NewOpenAI("k", srv.URL+"/v1", srv.Client())
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)

	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, ProviderOpenAI, pe.Provider)
	assert.Equal(t, http.StatusServiceUnavailable, pe.Status)
	assert.True(t, pe.Retryable)
}

func TestAnthropicComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"Keep walking."}],
			"stop_reason":"end_turn","usage":{"input_tokens":20,"output_tokens":3}}`)
	}))
	defer srv.Close()

	c := NewAnthropic("test-key", srv.URL+"/", srv.Client())
	resp, err := c.Complete(context.Background(), Request{System: "be kind", Prompt: "hi", Model: "claude-test", MaxTokens: 50})
	require.NoError(t, err)

	assert.Equal(t, "Keep walking.", resp.Text)
	assert.Equal(t, "claude-test", resp.Model)
	assert.Equal(t, int64(20), resp.InputTokens)
	assert.EqualValues(t, 50, got["max_tokens"])
	assert.NotNil(t, got["system"])
}

func TestAnthropicRateLimited(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	c := NewAnthropic("k", srv.URL+"/", srv.Client())
	_, err := c.Complete(context.Background(), Request{Prompt: "hi", MaxTokens: 10})
	require.Error(t, err)

	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, pe.Status)
	assert.True(t, pe.Retryable)
	assert.Equal(t, 30*time.Second, pe.RetryAfter)
	assert.Equal(t, 1, calls, "sdk retries are disabled")
}

func TestAnthropicTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	defer srv.CloseClientConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewAnthropic("k", srv.URL+"/", srv.Client())
	_, err := c.Complete(ctx, Request{Prompt: "hi", MaxTokens: 10})
	require.Error(t, err)

	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusGatewayTimeout, pe.Status)
	assert.True(t, pe.Retryable)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "mystery", APIKey: "k"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Provider: ProviderOpenAI})
	assert.Error(t, err)

	c, err := New(context.Background(), Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, c.Name())
}
