package diary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Skufu/ReliefMap/internal/assessment"
)

// historySize is how many earlier entries are handed to the diary prompt.
const historySize = 10

var (
	ErrFollowUpExists = errors.New("diary: entry already has a follow-up")
	ErrNoFeedback     = errors.New("diary: follow-ups need an entry with feedback")
)

// ValidationError carries readable details for a rejected entry.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "invalid diary entry: " + strings.Join(e.Details, "; ")
}

// Store is the slice of the archive the journal needs.
type Store interface {
	GetAssessment(ctx context.Context, id string) (*assessment.Assessment, error)
	ListDiaryEntries(ctx context.Context, assessmentID string, limit int) ([]assessment.DiaryEntry, error)
	SaveDiaryEntry(ctx context.Context, entry assessment.DiaryEntry) error
	GetDiaryEntry(ctx context.Context, id string) (*assessment.DiaryEntry, error)
	// SetFollowUp stores fu only if the entry has none yet and reports whether it did.
	SetFollowUp(ctx context.Context, entryID string, fu assessment.FollowUp) (bool, error)
}

type Journal struct {
	store    Store
	feedback *Service
	now      func() time.Time
	logger   *zap.Logger
}

func NewJournal(store Store, feedback *Service, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{store: store, feedback: feedback, now: time.Now, logger: logger}
}

// Record saves entry, asking for feedback first when wantFeedback is set. A
// feedback failure never prevents the save.
func (j *Journal) Record(ctx context.Context, entry assessment.DiaryEntry, wantFeedback bool) (*assessment.DiaryEntry, error) {
	if details := assessment.Validate(entry); len(details) > 0 {
		return nil, &ValidationError{Details: details}
	}

	a, err := j.store.GetAssessment(ctx, entry.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("load assessment %s: %w", entry.AssessmentID, err)
	}

	entry.ID = uuid.NewString()
	entry.CreatedAt = j.now().UTC()
	entry.AIResponse = nil
	entry.FollowUp = nil

	if wantFeedback && j.feedback != nil {
		recent, err := j.store.ListDiaryEntries(ctx, entry.AssessmentID, historySize)
		if err != nil {
			j.logger.Warn("could not load diary history", zap.Error(err))
		}
		text, err := j.feedback.Feedback(ctx, FeedbackRequest{Entry: entry, Assessment: a, RecentEntries: recent})
		if err == nil {
			entry.AIResponse = &text
		}
	}

	if err := j.store.SaveDiaryEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("save diary entry: %w", err)
	}
	return &entry, nil
}

// FollowUp answers the single follow-up question allowed per entry.
func (j *Journal) FollowUp(ctx context.Context, entryID, question string) (*assessment.DiaryEntry, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &ValidationError{Details: []string{"question is required"}}
	}

	entry, err := j.store.GetDiaryEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("load diary entry %s: %w", entryID, err)
	}
	if entry.FollowUp != nil {
		return nil, ErrFollowUpExists
	}
	if entry.AIResponse == nil {
		return nil, ErrNoFeedback
	}

	a, err := j.store.GetAssessment(ctx, entry.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("load assessment %s: %w", entry.AssessmentID, err)
	}

	answer, err := j.feedback.FollowUp(ctx, *entry, question, a)
	if err != nil {
		return nil, err
	}

	fu := assessment.FollowUp{Question: question, Response: answer, CreatedAt: j.now().UTC()}
	applied, err := j.store.SetFollowUp(ctx, entryID, fu)
	if err != nil {
		return nil, fmt.Errorf("save follow-up: %w", err)
	}
	if !applied {
		return nil, ErrFollowUpExists
	}
	entry.FollowUp = &fu
	return entry, nil
}
