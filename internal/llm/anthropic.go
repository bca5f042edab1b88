package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultAnthropicModel = "claude-sonnet-4-20250514"

type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic builds an Anthropic Messages API client. SDK retries are disabled;
// the caller decides what to do with a retryable error.
func NewAnthropic(apiKey, baseURL string, httpClient *http.Client) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &Anthropic{client: anthropic.NewClient(opts...)}
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

func (a *Anthropic) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.classify(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, classify(ProviderAnthropic, http.StatusBadGateway, fmt.Errorf("no text content in response"))
	}

	return &Response{
		Text:         text.String(),
		Model:        string(msg.Model),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

func (a *Anthropic) classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return classify(ProviderAnthropic, 0, err)
	}
	pe := classify(ProviderAnthropic, apiErr.StatusCode, err)
	if apiErr.Response != nil {
		pe.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
	}
	return pe
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
