// Package diary produces short AI commentary on recovery diary entries and, when
// the archive is enabled, records entries and their single follow-up.
package diary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Skufu/ReliefMap/internal/assessment"
	"github.com/Skufu/ReliefMap/internal/llm"
	"github.com/Skufu/ReliefMap/internal/metrics"
	"github.com/Skufu/ReliefMap/internal/prompt"
)

const (
	DefaultMaxTokens = 600
	DefaultTimeout   = 30 * time.Second
)

var ErrEmptyFeedback = errors.New("diary: empty feedback from model")

type FeedbackRequest struct {
	Entry         assessment.DiaryEntry
	Assessment    *assessment.Assessment
	RecentEntries []assessment.DiaryEntry
}

// Service has no rate limiting and no salvage step; its callers treat every
// failure as "no commentary this time".
type Service struct {
	completer llm.Completer
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

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
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

func NewService(completer llm.Completer, opts ...Option) *Service {
	s := &Service{
		completer: completer,
		maxTokens: DefaultMaxTokens,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Feedback returns the model's commentary on req.Entry, trimmed.
func (s *Service) Feedback(ctx context.Context, req FeedbackRequest) (string, error) {
	text := prompt.BuildDiaryPrompt(prompt.DiaryContext{
		Entry:         req.Entry,
		Assessment:    req.Assessment,
		RecentEntries: req.RecentEntries,
	})
	out, err := s.complete(ctx, text)
	if err != nil {
		s.metrics.DiaryFeedback("error")
		s.logger.Warn("diary feedback failed",
			zap.String("entry_type", string(req.Entry.EntryType)),
			zap.Error(err))
		return "", err
	}
	s.metrics.DiaryFeedback("ok")
	return out, nil
}

// FollowUp answers one question about an entry that already has feedback.
func (s *Service) FollowUp(ctx context.Context, entry assessment.DiaryEntry, question string, a *assessment.Assessment) (string, error) {
	out, err := s.complete(ctx, prompt.BuildFollowUpPrompt(entry, question, a))
	if err != nil {
		s.metrics.DiaryFeedback("follow_up_error")
		s.logger.Warn("diary follow-up failed", zap.String("entry_id", entry.ID), zap.Error(err))
		return "", err
	}
	s.metrics.DiaryFeedback("follow_up_ok")
	return out, nil
}

func (s *Service) complete(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.completer.Complete(ctx, llm.Request{
		Prompt:    text,
		Model:     s.model,
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		s.metrics.ObserveLLM(s.completer.Name(), "error", time.Since(start))
		return "", fmt.Errorf("diary completion: %w", err)
	}
	s.metrics.ObserveLLM(s.completer.Name(), "ok", time.Since(start))

	out := strings.TrimSpace(resp.Text)
	if out == "" {
		return "", ErrEmptyFeedback
	}
	return out, nil
}
