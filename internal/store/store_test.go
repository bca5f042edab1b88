package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/ReliefMap/internal/assessment"
)

var (
	assessmentCols = []string{"id", "selected_muscles", "pain_points", "form_data", "analysis", "created_at"}
	entryCols      = []string{"id", "assessment_id", "entry_type", "pain_level", "sentiment", "entry_text", "ai_response", "follow_up", "created_at"}
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock, New(mock)
}

func intPtr(v int) *int { return &v }

func TestMigrateCreatesTables(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS assessments").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS diary_entries").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, repo.Migrate(context.Background()))
}

func TestMigrateStopsOnError(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS assessments").WillReturnError(errors.New("permission denied"))

	err := repo.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestSaveAssessmentStoresDedupedRegions(t *testing.T) {
	mock, repo := newMock(t)
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO assessments").
		WithArgs("a1", []byte(`["leftKnee","lowerBack"]`), []byte(`[]`), pgxmock.AnyArg(), pgxmock.AnyArg(), created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.SaveAssessment(context.Background(), assessment.Assessment{
		ID:              "a1",
		SelectedMuscles: []string{"lowerBack", "leftKnee", "lowerBack"},
		FormData:        assessment.FormData{PainLevel: 4},
		CreatedAt:       created,
	})
	require.NoError(t, err)
}

func TestGetAssessment(t *testing.T) {
	mock, repo := newMock(t)
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(assessmentCols).AddRow(
		"a1",
		[]byte(`["lowerBack"]`),
		[]byte(`[{"x":1,"y":2,"view":"Back","size":8}]`),
		[]byte(`{"painLevel":6,"goals":"Run 5k"}`),
		[]byte(`{"summary":"s","urgency":"low"}`),
		created,
	)
	mock.ExpectQuery("SELECT (.+) FROM assessments WHERE id").WithArgs("a1").WillReturnRows(rows)

	a, err := repo.GetAssessment(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lowerBack"}, a.SelectedMuscles)
	require.Len(t, a.PainPoints, 1)
	assert.Equal(t, assessment.ViewBack, a.PainPoints[0].View)
	assert.Equal(t, 6, a.FormData.PainLevel)
	assert.Equal(t, "Run 5k", a.FormData.Goals)
	require.NotNil(t, a.Analysis)
	assert.Equal(t, assessment.UrgencyLow, a.Analysis.Urgency)
	assert.NotNil(t, a.Analysis.WatchFor)
	assert.Equal(t, created, a.CreatedAt)
}

func TestGetAssessmentNotFound(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM assessments WHERE id").WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(assessmentCols))

	_, err := repo.GetAssessment(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAssessments(t *testing.T) {
	mock, repo := newMock(t)
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(assessmentCols).
		AddRow("a2", []byte(`[]`), []byte(`[]`), []byte(`{"painLevel":3}`), nil, created.Add(time.Hour)).
		AddRow("a1", []byte(`["neck"]`), []byte(`[]`), []byte(`{"painLevel":5}`), nil, created)
	mock.ExpectQuery("SELECT (.+) FROM assessments ORDER BY created_at DESC").WithArgs(20).WillReturnRows(rows)

	list, err := repo.ListAssessments(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)
	assert.Nil(t, list[0].Analysis)
}

func TestDeleteAssessment(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("DELETE FROM assessments").WithArgs("a1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM assessments").WithArgs("a1").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.DeleteAssessment(context.Background(), "a1"))
	assert.ErrorIs(t, repo.DeleteAssessment(context.Background(), "a1"), ErrNotFound)
}

func TestListDiaryEntriesOldestFirst(t *testing.T) {
	mock, repo := newMock(t)
	base := time.Date(2026, 3, 20, 8, 0, 0, 0, time.UTC)
	feedback := "Nice work."
	rows := pgxmock.NewRows(entryCols).
		AddRow("e2", "a1", "pain", intPtr(3), nil, "Better today", &feedback,
			[]byte(`{"question":"q","response":"r","createdAt":"2026-03-21T08:00:00Z"}`), base.Add(24*time.Hour)).
		AddRow("e1", "a1", "workout", nil, intPtr(4), "Walked 2km", nil, nil, base)
	mock.ExpectQuery("SELECT (.+) FROM diary_entries").WithArgs("a1", 10).WillReturnRows(rows)

	entries, err := repo.ListDiaryEntries(context.Background(), "a1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, assessment.EntryWorkout, entries[0].EntryType)
	assert.Nil(t, entries[0].PainLevel)
	assert.Nil(t, entries[0].FollowUp)

	assert.Equal(t, "e2", entries[1].ID)
	require.NotNil(t, entries[1].PainLevel)
	assert.Equal(t, 3, *entries[1].PainLevel)
	require.NotNil(t, entries[1].FollowUp)
	assert.Equal(t, "q", entries[1].FollowUp.Question)
}

func TestGetDiaryEntryNotFound(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM diary_entries WHERE id").WithArgs("nope").
		WillReturnRows(pgxmock.NewRows(entryCols))

	_, err := repo.GetDiaryEntry(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveDiaryEntry(t *testing.T) {
	mock, repo := newMock(t)
	created := time.Date(2026, 3, 20, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO diary_entries").
		WithArgs("e1", "a1", "pain", pgxmock.AnyArg(), pgxmock.AnyArg(), "Sore after stairs", pgxmock.AnyArg(), pgxmock.AnyArg(), created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.SaveDiaryEntry(context.Background(), assessment.DiaryEntry{
		ID:           "e1",
		AssessmentID: "a1",
		EntryType:    assessment.EntryPain,
		PainLevel:    intPtr(5),
		EntryText:    "Sore after stairs",
		CreatedAt:    created,
	})
	require.NoError(t, err)
}

func TestSetFollowUpOnlyOnce(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("UPDATE diary_entries SET follow_up").WithArgs("e1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE diary_entries SET follow_up").WithArgs("e1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	fu := assessment.FollowUp{Question: "Should I rest?", Response: "Keep moving gently."}
	ok, err := repo.SetFollowUp(context.Background(), "e1", fu)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetFollowUp(context.Background(), "e1", fu)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteDiaryEntryNotFound(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("DELETE FROM diary_entries").WithArgs("e9").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.DeleteDiaryEntry(context.Background(), "e9"), ErrNotFound)
}

func TestPing(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectPing().WillReturnError(errors.New("down"))

	assert.Error(t, repo.Ping(context.Background()))
}
