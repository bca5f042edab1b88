package prompt

import (
	"fmt"
	"strings"

	"github.com/Skufu/ReliefMap/internal/assessment"
)

type Trend string

const (
	TrendImproving    Trend = "improving"
	TrendWorsening    Trend = "worsening"
	TrendStable       Trend = "stable"
	TrendInsufficient Trend = "insufficient data"
)

const (
	trendWindow    = 10
	trendThreshold = 0.5
	recentEntries  = 5
)

// PainTrend compares the mean of the earlier half of the last ten levels with the
// later half. levels must be in chronological order.
func PainTrend(levels []int) Trend {
	if len(levels) > trendWindow {
		levels = levels[len(levels)-trendWindow:]
	}
	if len(levels) < 2 {
		return TrendInsufficient
	}
	half := len(levels) / 2
	delta := mean(levels[half:]) - mean(levels[:half])

	// Tolerance keeps exact half-point differences on the threshold.
	const eps = 1e-9
	switch {
	case delta <= -trendThreshold+eps:
		return TrendImproving
	case delta >= trendThreshold-eps:
		return TrendWorsening
	default:
		return TrendStable
	}
}

func mean(vs []int) float64 {
	sum := 0
	for _, v := range vs {
		sum += v
	}
	return float64(sum) / float64(len(vs))
}

// PainLevels returns the recorded pain levels of entries in chronological order,
// skipping entries without one.
func PainLevels(entries []assessment.DiaryEntry) []int {
	var out []int
	for _, e := range assessment.SortEntries(entries) {
		if e.PainLevel != nil {
			out = append(out, *e.PainLevel)
		}
	}
	return out
}

// DiaryContext is everything the diary prompt draws on. Assessment may be nil for
// entries that are not linked to a stored assessment.
type DiaryContext struct {
	Entry         assessment.DiaryEntry
	Assessment    *assessment.Assessment
	RecentEntries []assessment.DiaryEntry
}

const diaryPersona = `You are a supportive recovery coach reading someone's pain and training diary.
Reply in 2-4 short sentences of plain prose. No lists, no headings, no JSON.
Be specific to what they wrote, encouraging without being dismissive, and practical.`

const boundaryInstructions = `BOUNDARIES:
- If the entry expresses emotional distress, respond with kindness and keep the focus on their
  physical recovery; gently suggest talking to someone they trust or a professional if it sounds heavy.
- Do not recommend, adjust or comment on medication doses and do not diagnose; suggest asking
  their doctor or physiotherapist instead.
- If they describe new, severe or unusual symptoms (numbness, weakness, loss of bladder or bowel
  control, fever, night pain, pain after a fall), clearly advise prompt medical attention first.`

// BuildDiaryPrompt composes the commentary prompt for a new diary entry.
func BuildDiaryPrompt(dc DiaryContext) string {
	var b strings.Builder
	b.WriteString(diaryPersona)
	b.WriteString("\n\n")

	writeAssessmentContext(&b, dc.Assessment)

	history := assessment.SortEntries(dc.RecentEntries)
	levels := PainLevels(history)
	if dc.Entry.PainLevel != nil {
		levels = append(levels, *dc.Entry.PainLevel)
	}
	fmt.Fprintf(&b, "PAIN TREND: %s", PainTrend(levels))
	if len(levels) > 0 {
		fmt.Fprintf(&b, " (latest levels: %s)", joinInts(tail(levels, trendWindow)))
	}
	b.WriteString("\n\n")

	if len(history) > recentEntries {
		history = history[len(history)-recentEntries:]
	}
	if len(history) > 0 {
		b.WriteString("RECENT ENTRIES (oldest first):\n")
		for _, e := range history {
			b.WriteString("- ")
			b.WriteString(describeEntry(e))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("NEW ENTRY:\n")
	b.WriteString(describeEntry(dc.Entry))
	b.WriteString("\n\n")
	b.WriteString(boundaryInstructions)
	b.WriteString("\n")
	return b.String()
}

// BuildFollowUpPrompt answers a single follow-up question about an entry and the
// feedback it already received.
func BuildFollowUpPrompt(entry assessment.DiaryEntry, question string, a *assessment.Assessment) string {
	var b strings.Builder
	b.WriteString(diaryPersona)
	b.WriteString("\n\n")
	writeAssessmentContext(&b, a)

	b.WriteString("DIARY ENTRY:\n")
	b.WriteString(describeEntry(entry))
	b.WriteString("\n")
	if entry.AIResponse != nil && strings.TrimSpace(*entry.AIResponse) != "" {
		fmt.Fprintf(&b, "YOUR EARLIER REPLY:\n%s\n", strings.TrimSpace(*entry.AIResponse))
	}
	fmt.Fprintf(&b, "\nTHEIR FOLLOW-UP QUESTION:\n<user_narrative field=\"question\">\n%s\n</user_narrative>\n\n",
		strings.TrimSpace(question))
	b.WriteString("Answer the question directly. This is their only follow-up, so make it complete.\n\n")
	b.WriteString(boundaryInstructions)
	b.WriteString("\n")
	return b.String()
}

func writeAssessmentContext(b *strings.Builder, a *assessment.Assessment) {
	if a == nil {
		return
	}
	b.WriteString("THEIR ASSESSMENT:\n")
	if regions := a.Regions(); len(regions) > 0 {
		fmt.Fprintf(b, "Areas: %s\n", strings.Join(regions, ", "))
	}
	fmt.Fprintf(b, "Initial pain level: %d/10\n", a.FormData.PainLevel)
	writeList(b, "Activities", a.FormData.Activities)
	writeField(b, "Goals", a.FormData.Goals)
	if a.Analysis != nil {
		writeField(b, "Summary", a.Analysis.Summary)
		if a.Analysis.Urgency != "" {
			fmt.Fprintf(b, "Urgency: %s\n", a.Analysis.Urgency)
		}
		if len(a.Analysis.RecoveryPrinciples) > 0 {
			writeList(b, "Recovery principles", a.Analysis.RecoveryPrinciples)
		}
	}
	b.WriteString("\n")
}

func describeEntry(e assessment.DiaryEntry) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.EntryType))
	if !e.CreatedAt.IsZero() {
		parts = append(parts, e.CreatedAt.UTC().Format("2006-01-02"))
	}
	if e.PainLevel != nil {
		parts = append(parts, fmt.Sprintf("pain %d/10", *e.PainLevel))
	}
	if e.Sentiment != nil {
		parts = append(parts, fmt.Sprintf("mood %d/5", *e.Sentiment))
	}
	return strings.Join(parts, " ") + ": " + strings.TrimSpace(e.EntryText)
}

func tail(vs []int, n int) []int {
	if len(vs) > n {
		return vs[len(vs)-n:]
	}
	return vs
}

func joinInts(vs []int) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = fmt.Sprint(v)
	}
	return strings.Join(s, ", ")
}
