package diary

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/ReliefMap/internal/assessment"
	"github.com/Skufu/ReliefMap/internal/llm"
)

type stubCompleter struct {
	text string
	err  error
	last llm.Request
}

func (s *stubCompleter) Name() string { return "stub" }

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Text: s.text}, nil
}

var errNotFound = errors.New("not found")

type memStore struct {
	mu          sync.Mutex
	assessments map[string]*assessment.Assessment
	entries     map[string]assessment.DiaryEntry
}

func newMemStore() *memStore {
	return &memStore{
		assessments: map[string]*assessment.Assessment{
			"a1": {ID: "a1", SelectedMuscles: []string{"knee_left"}, FormData: assessment.FormData{PainLevel: 6}},
		},
		entries: map[string]assessment.DiaryEntry{},
	}
}

func (m *memStore) GetAssessment(_ context.Context, id string) (*assessment.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assessments[id]
	if !ok {
		return nil, errNotFound
	}
	return a, nil
}

func (m *memStore) ListDiaryEntries(_ context.Context, assessmentID string, _ int) ([]assessment.DiaryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []assessment.DiaryEntry
	for _, e := range m.entries {
		if e.AssessmentID == assessmentID {
			out = append(out, e)
		}
	}
	return assessment.SortEntries(out), nil
}

func (m *memStore) SaveDiaryEntry(_ context.Context, e assessment.DiaryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *memStore) GetDiaryEntry(_ context.Context, id string) (*assessment.DiaryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, errNotFound
	}
	return &e, nil
}

func (m *memStore) SetFollowUp(_ context.Context, id string, fu assessment.FollowUp) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false, errNotFound
	}
	if e.FollowUp != nil {
		return false, nil
	}
	e.FollowUp = &fu
	m.entries[id] = e
	return true, nil
}

func intPtr(v int) *int { return &v }

func TestFeedbackTrimsResponse(t *testing.T) {
	stub := &stubCompleter{text: "\n  Great consistency this week!  \n"}
	svc := NewService(stub, WithModel("m"))

	out, err := svc.Feedback(context.Background(), FeedbackRequest{
		Entry: assessment.DiaryEntry{EntryType: assessment.EntryWorkout, EntryText: "Leg day", PainLevel: intPtr(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Great consistency this week!", out)
	assert.Equal(t, "m", stub.last.Model)
	assert.Contains(t, stub.last.Prompt, "Leg day")
}

func TestFeedbackErrors(t *testing.T) {
	svc := NewService(&stubCompleter{err: &llm.ProviderError{Provider: "stub", Status: 500, Retryable: true}})
	_, err := svc.Feedback(context.Background(), FeedbackRequest{Entry: assessment.DiaryEntry{EntryText: "x"}})
	require.Error(t, err)
	assert.True(t, llm.IsRetryable(err))

	svc = NewService(&stubCompleter{text: "   "})
	_, err = svc.Feedback(context.Background(), FeedbackRequest{Entry: assessment.DiaryEntry{EntryText: "x"}})
	assert.ErrorIs(t, err, ErrEmptyFeedback)
}

func TestRecordSavesWithFeedback(t *testing.T) {
	store := newMemStore()
	j := NewJournal(store, NewService(&stubCompleter{text: "Nice work."}), nil)
	j.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }

	e, err := j.Record(context.Background(), assessment.DiaryEntry{
		AssessmentID: "a1",
		EntryType:    assessment.EntryPain,
		PainLevel:    intPtr(4),
		EntryText:    "Better today",
	}, true)
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), e.CreatedAt)
	require.NotNil(t, e.AIResponse)
	assert.Equal(t, "Nice work.", *e.AIResponse)
	assert.Len(t, store.entries, 1)
}

func TestRecordSavesWhenFeedbackFails(t *testing.T) {
	store := newMemStore()
	j := NewJournal(store, NewService(&stubCompleter{err: errors.New("provider down")}), nil)

	e, err := j.Record(context.Background(), assessment.DiaryEntry{
		AssessmentID: "a1",
		EntryType:    assessment.EntryGeneral,
		EntryText:    "Rest day",
	}, true)
	require.NoError(t, err)
	assert.Nil(t, e.AIResponse)
	assert.Contains(t, store.entries, e.ID)
}

func TestRecordRejectsInvalidEntry(t *testing.T) {
	j := NewJournal(newMemStore(), nil, nil)
	_, err := j.Record(context.Background(), assessment.DiaryEntry{AssessmentID: "a1", EntryType: "mood"}, false)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Details, "entryText is required")
	assert.Contains(t, verr.Details, "entryType must be one of: pain, workout, progression, general")
}

func TestRecordUnknownAssessment(t *testing.T) {
	j := NewJournal(newMemStore(), nil, nil)
	_, err := j.Record(context.Background(), assessment.DiaryEntry{AssessmentID: "nope", EntryType: assessment.EntryPain, EntryText: "x"}, false)
	assert.ErrorIs(t, err, errNotFound)
}

func TestFollowUpOnlyOnce(t *testing.T) {
	store := newMemStore()
	stub := &stubCompleter{text: "Yes, add a little weight each week."}
	j := NewJournal(store, NewService(stub), nil)
	ctx := context.Background()

	e, err := j.Record(ctx, assessment.DiaryEntry{AssessmentID: "a1", EntryType: assessment.EntryWorkout, EntryText: "Squats felt fine"}, true)
	require.NoError(t, err)

	updated, err := j.FollowUp(ctx, e.ID, "Should I add weight?")
	require.NoError(t, err)
	require.NotNil(t, updated.FollowUp)
	assert.Equal(t, "Should I add weight?", updated.FollowUp.Question)
	assert.Equal(t, "Yes, add a little weight each week.", updated.FollowUp.Response)
	assert.Contains(t, stub.last.Prompt, "Should I add weight?")

	_, err = j.FollowUp(ctx, e.ID, "And reps?")
	assert.ErrorIs(t, err, ErrFollowUpExists)
}

func TestFollowUpNeedsFeedback(t *testing.T) {
	store := newMemStore()
	j := NewJournal(store, NewService(&stubCompleter{text: "ok"}), nil)
	ctx := context.Background()

	e, err := j.Record(ctx, assessment.DiaryEntry{AssessmentID: "a1", EntryType: assessment.EntryPain, EntryText: "Sore"}, false)
	require.NoError(t, err)

	_, err = j.FollowUp(ctx, e.ID, "Why?")
	assert.ErrorIs(t, err, ErrNoFeedback)

	_, err = j.FollowUp(ctx, e.ID, "   ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
