package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

type Gemini struct {
	client *genai.Client
}

func NewGemini(ctx context.Context, apiKey, baseURL string) (*Gemini, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithEndpoint(baseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) Close() error { return g.client.Close() }

func (g *Gemini) Complete(ctx context.Context, req Request) (*Response, error) {
	name := req.Model
	if name == "" {
		name = DefaultGeminiModel
	}
	model := g.client.GenerativeModel(name)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, classifyGemini(err)
	}

	text := extractText(resp)
	if text == "" {
		return nil, classify(ProviderGemini, http.StatusBadGateway, fmt.Errorf("empty response from model"))
	}

	out := &Response{Text: text, Model: name}
	if resp.UsageMetadata != nil {
		out.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return sb.String()
}

func classifyGemini(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return classify(ProviderGemini, 0, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classify(ProviderGemini, apiErr.Code, err)
	}
	return classify(ProviderGemini, statusFromText(err.Error()), err)
}
