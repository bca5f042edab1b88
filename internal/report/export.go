package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Skufu/ReliefMap/internal/assessment"
)

const filenamePrefix = "pain-assessment"

// Filename returns the download name for an export made at t, e.g.
// pain-assessment-2026-03-01.pdf.
func Filename(ext string, t time.Time) string {
	return fmt.Sprintf("%s-%s.%s", filenamePrefix, t.Format("2006-01-02"), ext)
}

// RenderJSON produces the JSON export. A non-nil analysis replaces the one
// stored on the assessment.
func RenderJSON(a assessment.Assessment, analysis *assessment.AnalysisResult) ([]byte, error) {
	if analysis != nil {
		a.Analysis = analysis
	}
	if a.Analysis != nil {
		an := *a.Analysis
		an.Normalize()
		a.Analysis = &an
	}
	if a.SelectedMuscles == nil {
		a.SelectedMuscles = []string{}
	}
	if a.PainPoints == nil {
		a.PainPoints = []assessment.PainPoint{}
	}
	out, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return out, nil
}
