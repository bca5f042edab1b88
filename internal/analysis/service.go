// Package analysis runs the assessment pipeline: rate limit, validate, prompt,
// call the model, extract and project its JSON answer.
package analysis

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Skufu/ReliefMap/internal/assessment"
	"github.com/Skufu/ReliefMap/internal/knowledge"
	"github.com/Skufu/ReliefMap/internal/llm"
	"github.com/Skufu/ReliefMap/internal/metrics"
	"github.com/Skufu/ReliefMap/internal/prompt"
	"github.com/Skufu/ReliefMap/internal/ratelimit"
)

const (
	DefaultMaxTokens = 4000
	DefaultTimeout   = 45 * time.Second

	// defaultRetryAfter applies when a provider rate-limits without saying for how long.
	defaultRetryAfter = 60

	systemPrompt = "You answer with a single JSON object and nothing else."
)

type Service struct {
	limiter   ratelimit.Checker
	completer llm.Completer
	kb        *knowledge.Base
	model     string
	maxTokens int
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

type Option func(*Service)

func WithModel(model string) Option {
	return func(s *Service) { s.model = model }
}

func WithMaxTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithKnowledge(kb *knowledge.Base) Option {
	return func(s *Service) { s.kb = kb }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(limiter ratelimit.Checker, completer llm.Completer, opts ...Option) *Service {
	s := &Service{
		limiter:   limiter,
		completer: completer,
		kb:        knowledge.Default(),
		maxTokens: DefaultMaxTokens,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs one analysis for clientKey. Every failure is an *Error. A
// rejected request never reaches the provider; a request that fails validation
// has already used its rate-limit slot.
func (s *Service) Analyze(ctx context.Context, req assessment.AnalyzeRequest, clientKey string) (*assessment.AnalysisResult, error) {
	log := s.logger.With(zap.String("client", clientKey))

	decision := s.limiter.Check(ctx, clientKey)
	if !decision.Allowed {
		s.metrics.RateLimited(decision.Window)
		s.metrics.AnalysisOutcome("rate_limited")
		log.Info("analysis rate limited",
			zap.String("window", decision.Window),
			zap.Int("retry_after_seconds", decision.RetryAfterSeconds))
		return nil, rateLimitedError(decision.Message, decision.RetryAfterSeconds)
	}

	if details := assessment.Validate(req); len(details) > 0 {
		s.metrics.AnalysisOutcome("invalid")
		return nil, invalidInputError(details)
	}

	text := prompt.BuildAnalysisPrompt(s.kb, req.SelectedAreaLabels, req.PainPointCount, req.FormData)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.completer.Complete(callCtx, llm.Request{
		System:    systemPrompt,
		Prompt:    text,
		Model:     s.model,
		MaxTokens: s.maxTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveLLM(s.completer.Name(), "error", elapsed)
		s.metrics.AnalysisOutcome("provider_error")
		log.Warn("llm call failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return nil, providerError(err)
	}
	s.metrics.ObserveLLM(s.completer.Name(), "ok", elapsed)

	raw, err := ExtractJSON(resp.Text)
	if err != nil {
		s.metrics.AnalysisOutcome("unparseable")
		log.Warn("llm response had no usable JSON",
			zap.Error(err),
			zap.Int("response_bytes", len(resp.Text)))
		return nil, unparseableError(err)
	}

	result, salvaged := Project(raw)
	if salvaged {
		s.metrics.Salvaged()
		log.Info("analysis salvaged with defaults")
	}
	s.metrics.AnalysisOutcome("ok")
	log.Info("analysis complete",
		zap.String("model", resp.Model),
		zap.Int64("input_tokens", resp.InputTokens),
		zap.Int64("output_tokens", resp.OutputTokens),
		zap.Duration("elapsed", elapsed),
		zap.String("urgency", string(result.Urgency)))
	return &result, nil
}

// providerError maps a completer failure. Provider rate limits keep their 429
// so the client can back off; everything else surfaces as a 500.
func providerError(err error) *Error {
	pe, ok := llm.AsProviderError(err)
	if !ok {
		msg := "The AI service could not complete the analysis."
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindProvider, Message: msg, Status: http.StatusInternalServerError, Retryable: true, Err: err}
		}
		return &Error{Kind: KindProvider, Message: msg, Status: http.StatusInternalServerError, Err: err}
	}

	out := &Error{
		Kind:      KindProvider,
		Message:   pe.Message,
		Status:    http.StatusInternalServerError,
		Retryable: pe.Retryable,
		Err:       err,
	}
	if pe.Status == http.StatusTooManyRequests {
		out.Status = http.StatusTooManyRequests
		out.RetryAfterSeconds = defaultRetryAfter
		if secs := int(pe.RetryAfter / time.Second); secs > 0 {
			out.RetryAfterSeconds = secs
		}
	}
	return out
}
