package assessment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestValidateAnalyzeRequest(t *testing.T) {
	valid := AnalyzeRequest{
		SelectedAreaLabels: []string{"Left Knee"},
		FormData:           FormData{PainLevel: 5},
	}
	assert.Empty(t, Validate(&valid))

	t.Run("missing areas", func(t *testing.T) {
		req := valid
		req.SelectedAreaLabels = nil
		details := Validate(&req)
		require.Len(t, details, 1)
		assert.Equal(t, "selectedAreaLabels must contain at least 1 item(s)", details[0])
	})

	t.Run("blank area label", func(t *testing.T) {
		req := valid
		for _, blank := range []string{"", "   ", "\t\n"} {
			req.SelectedAreaLabels = []string{"Left Knee", blank}
			details := Validate(&req)
			require.Len(t, details, 1, "%q", blank)
			assert.Equal(t, "selectedAreaLabels[1] is required", details[0])
		}
	})

	t.Run("pain level out of range", func(t *testing.T) {
		for _, level := range []int{0, 11} {
			req := valid
			req.FormData.PainLevel = level
			details := Validate(&req)
			require.Len(t, details, 1)
			assert.Contains(t, details[0], "formData.painLevel")
		}
	})

	t.Run("concern level optional but bounded", func(t *testing.T) {
		req := valid
		req.FormData.ConcernLevel = intPtr(12)
		assert.Equal(t, []string{"formData.concernLevel must be at most 10"}, Validate(&req))
		req.FormData.ConcernLevel = intPtr(3)
		assert.Empty(t, Validate(&req))
	})
}

func TestValidateDiaryEntry(t *testing.T) {
	entry := DiaryEntry{EntryType: EntryPain, EntryText: "Stiff this morning", PainLevel: intPtr(4), Sentiment: intPtr(3)}
	assert.Empty(t, Validate(&entry))

	entry.EntryType = "mood"
	entry.Sentiment = intPtr(6)
	details := Validate(&entry)
	assert.ElementsMatch(t, []string{
		"entryType must be one of: pain, workout, progression, general",
		"sentiment must be at most 5",
	}, details)
}

func TestParseUrgency(t *testing.T) {
	u, ok := ParseUrgency(" High ")
	assert.True(t, ok)
	assert.Equal(t, UrgencyHigh, u)

	_, ok = ParseUrgency("extreme")
	assert.False(t, ok)
}

func TestAssessmentRegionsIsASet(t *testing.T) {
	a := Assessment{SelectedMuscles: []string{"rightQuad", "leftQuad", "rightQuad", " "}}
	assert.Equal(t, []string{"leftQuad", "rightQuad"}, a.Regions())
}

func TestHasActivityGoals(t *testing.T) {
	assert.False(t, FormData{Activities: []string{" "}}.HasActivityGoals())
	assert.True(t, FormData{Goals: "Run a 5k"}.HasActivityGoals())
}

func TestSortEntries(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []DiaryEntry{
		{ID: "b", CreatedAt: now.Add(time.Hour)},
		{ID: "a", CreatedAt: now},
	}
	sorted := SortEntries(entries)
	assert.Equal(t, "a", sorted[0].ID)
	assert.Equal(t, "b", entries[0].ID, "input must not be reordered")
}

func TestNormalizeEncodesEmptyLists(t *testing.T) {
	r := AnalysisResult{Summary: "s", Avoid: []string{"running"}}
	r.Normalize()

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"watchFor":[]`)
	assert.Contains(t, string(out), `"possibleConditions":[]`)
	assert.Contains(t, string(out), `"avoid":["running"]`)
}
