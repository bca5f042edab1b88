// Package assessment holds the records exchanged between the wizard, the analysis
// pipeline, the diary and the report renderer.
package assessment

import (
	"sort"
	"strings"
	"time"
)

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyModerate Urgency = "moderate"
	UrgencyHigh     Urgency = "high"
)

// ParseUrgency normalizes s and reports whether it is one of the three levels.
func ParseUrgency(s string) (Urgency, bool) {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(s))); u {
	case UrgencyLow, UrgencyModerate, UrgencyHigh:
		return u, true
	default:
		return "", false
	}
}

type View string

const (
	ViewFront View = "Front"
	ViewBack  View = "Back"
)

// PainPoint is a brush mark painted on the diagram, in diagram-space coordinates.
type PainPoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	View View    `json:"view" validate:"oneof=Front Back"`
	Size float64 `json:"size" validate:"gte=0"`
}

type FormData struct {
	PainLevel    int      `json:"painLevel" validate:"min=1,max=10"`
	PainTypes    []string `json:"painTypes,omitempty"`
	Duration     string   `json:"duration,omitempty"`
	Frequency    string   `json:"frequency,omitempty"`
	WorseWith    []string `json:"worseWith,omitempty"`
	BetterWith   []string `json:"betterWith,omitempty"`
	Story        string   `json:"story,omitempty"`
	Triggers     string   `json:"triggers,omitempty"`
	Progress     string   `json:"progress,omitempty"`
	TriedSoFar   string   `json:"triedSoFar,omitempty"`
	Activities   []string `json:"activities,omitempty"`
	Intensity    string   `json:"intensity,omitempty"`
	Goals        string   `json:"goals,omitempty"`
	ConcernLevel *int     `json:"concernLevel,omitempty" validate:"omitempty,min=1,max=10"`
}

// HasActivityGoals reports whether any of activities, intensity or goals is populated.
func (f FormData) HasActivityGoals() bool {
	return len(nonBlank(f.Activities)) > 0 ||
		strings.TrimSpace(f.Intensity) != "" ||
		strings.TrimSpace(f.Goals) != ""
}

type Reassurance struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type Condition struct {
	Name        string `json:"name"`
	Likelihood  string `json:"likelihood"`
	Description string `json:"description"`
}

type Resource struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Why  string `json:"why"`
}

type AnalysisResult struct {
	Summary                     string      `json:"summary"`
	Urgency                     Urgency     `json:"urgency"`
	UnderstandingWhatsHappening string      `json:"understandingWhatsHappening"`
	Reassurance                 Reassurance `json:"reassurance"`
	PossibleConditions          []Condition `json:"possibleConditions"`
	WatchFor                    []string    `json:"watchFor"`
	RecoveryPrinciples          []string    `json:"recoveryPrinciples"`
	Avoid                       []string    `json:"avoid"`
	SafeToTry                   []string    `json:"safeToTry"`
	Timeline                    string      `json:"timeline"`
	Resources                   []Resource  `json:"resources"`
}

// Normalize replaces nil lists with empty ones so they encode as [] rather than null.
func (r *AnalysisResult) Normalize() {
	if r.PossibleConditions == nil {
		r.PossibleConditions = []Condition{}
	}
	for _, list := range []*[]string{&r.WatchFor, &r.RecoveryPrinciples, &r.Avoid, &r.SafeToTry} {
		if *list == nil {
			*list = []string{}
		}
	}
	if r.Resources == nil {
		r.Resources = []Resource{}
	}
}

type Assessment struct {
	ID              string          `json:"id"`
	SelectedMuscles []string        `json:"selectedMuscles"`
	PainPoints      []PainPoint     `json:"painPoints" validate:"dive"`
	FormData        FormData        `json:"formData"`
	Analysis        *AnalysisResult `json:"analysis,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Regions returns the selected region keys as a sorted set.
func (a Assessment) Regions() []string {
	seen := make(map[string]struct{}, len(a.SelectedMuscles))
	out := make([]string, 0, len(a.SelectedMuscles))
	for _, key := range a.SelectedMuscles {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// AnalyzeRequest is the payload the wizard posts once step 4 completes.
type AnalyzeRequest struct {
	SelectedAreaLabels []string `json:"selectedAreaLabels" validate:"min=1,dive,notblank"`
	PainPointCount     int      `json:"painPointCount" validate:"min=0"`
	FormData           FormData `json:"formData"`
}

type EntryType string

const (
	EntryPain        EntryType = "pain"
	EntryWorkout     EntryType = "workout"
	EntryProgression EntryType = "progression"
	EntryGeneral     EntryType = "general"
)

type FollowUp struct {
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
}

type DiaryEntry struct {
	ID           string    `json:"id"`
	AssessmentID string    `json:"assessmentId"`
	EntryType    EntryType `json:"entryType" validate:"required,oneof=pain workout progression general"`
	PainLevel    *int      `json:"painLevel,omitempty" validate:"omitempty,min=1,max=10"`
	Sentiment    *int      `json:"sentiment,omitempty" validate:"omitempty,min=1,max=5"`
	EntryText    string    `json:"entryText" validate:"notblank"`
	AIResponse   *string   `json:"aiResponse,omitempty"`
	FollowUp     *FollowUp `json:"followUp,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SortEntries orders entries chronologically, oldest first.
func SortEntries(entries []DiaryEntry) []DiaryEntry {
	out := append([]DiaryEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

// NonBlank returns the trimmed, non-empty values of a tag list.
func NonBlank(values []string) []string {
	return nonBlank(values)
}
