package analysis

import (
	"strings"

	"github.com/Skufu/ReliefMap/internal/assessment"
	"github.com/Skufu/ReliefMap/internal/knowledge"
	"github.com/Skufu/ReliefMap/internal/prompt"
)

// Rule engine used when the model is unavailable. It only knows the knowledge
// tables and a few symptom patterns.

type rule struct {
	ID       string
	Severity string // HIGH|MEDIUM|LOW
	Match    ruleMatch
	Result   assessment.Condition
}

type ruleMatch struct {
	Region      string   // knowledge region name, empty for any
	PainTypes   []string // any substring in the reported pain types
	WorseWith   []string // any substring in the aggravating factors
	ChronicOnly bool
}

var (
	nerveSymptoms = []string{"numb", "tingl", "pins", "shooting", "radiat", "electric", "burning"}
	redFlags      = []string{"night", "rest", "fever", "weight loss", "bladder", "bowel", "weakness"}
	chronicTerms  = []string{"3-6 months", "6+ months", "more than 3 months", "over a year", "chronic", "years"}

	ruleDB = []rule{
		{ID: "back+nerve", Severity: "MEDIUM", Match: ruleMatch{Region: "back", PainTypes: nerveSymptoms},
			Result: assessment.Condition{Name: "Nerve root irritation (sciatica)", Likelihood: "possible", Description: "An irritated nerve near the spine can send pain, tingling or numbness down the leg. Most cases settle with time and staying gently active."}},
		{ID: "back", Severity: "LOW", Match: ruleMatch{Region: "back"},
			Result: assessment.Condition{Name: "Non-specific back pain", Likelihood: "common", Description: "Sensitised muscles, joints and ligaments of the back. This is the most common kind of back pain and is rarely linked to serious damage."}},
		{ID: "neck", Severity: "LOW", Match: ruleMatch{Region: "neck"},
			Result: assessment.Condition{Name: "Mechanical neck pain", Likelihood: "common", Description: "Stiffness and sensitivity of the neck muscles and joints, often linked to posture, stress or sleep."}},
		{ID: "shoulder", Severity: "LOW", Match: ruleMatch{Region: "shoulder"},
			Result: assessment.Condition{Name: "Rotator cuff related shoulder pain", Likelihood: "common", Description: "The tendons around the shoulder become irritated by more load than they are used to. They respond well to graded strengthening."}},
		{ID: "elbow", Severity: "LOW", Match: ruleMatch{Region: "elbow_wrist", WorseWith: []string{"grip", "lift", "typing", "carry"}},
			Result: assessment.Condition{Name: "Forearm tendinopathy (e.g. tennis elbow)", Likelihood: "possible", Description: "Tendons near the elbow or wrist can become painful with repeated gripping. They adapt slowly to progressive loading."}},
		{ID: "hip", Severity: "LOW", Match: ruleMatch{Region: "hip"},
			Result: assessment.Condition{Name: "Gluteal tendinopathy or hip muscle strain", Likelihood: "possible", Description: "Tendons and muscles on the outside of the hip can become sensitive, especially with side-lying or stairs."}},
		{ID: "knee+stairs", Severity: "LOW", Match: ruleMatch{Region: "knee", WorseWith: []string{"stairs", "squat", "sitting", "downhill", "kneel"}},
			Result: assessment.Condition{Name: "Patellofemoral pain", Likelihood: "common", Description: "Pain around or behind the kneecap that flares with stairs, squatting or long sitting. It responds well to hip and thigh strengthening."}},
		{ID: "knee", Severity: "LOW", Match: ruleMatch{Region: "knee"},
			Result: assessment.Condition{Name: "Knee overload", Likelihood: "possible", Description: "The knee is reacting to a change in activity. Adjusting load usually settles it."}},
		{ID: "ankle", Severity: "LOW", Match: ruleMatch{Region: "ankle_foot"},
			Result: assessment.Condition{Name: "Achilles or plantar fascia irritation", Likelihood: "possible", Description: "Tendons and tissues of the foot and ankle often flare after a jump in walking or running."}},
		{ID: "core", Severity: "LOW", Match: ruleMatch{Region: "core"},
			Result: assessment.Condition{Name: "Abdominal or chest wall strain", Likelihood: "possible", Description: "Muscles of the trunk can be strained by lifting, twisting or coughing and usually recover over a few weeks."}},
		{ID: "persistent", Severity: "MEDIUM", Match: ruleMatch{ChronicOnly: true},
			Result: assessment.Condition{Name: "Persistent pain sensitivity", Likelihood: "possible", Description: "When pain lasts for months the nervous system can stay on high alert even after tissues have healed."}},
		{ID: "strain", Severity: "LOW", Match: ruleMatch{},
			Result: assessment.Condition{Name: "Muscle strain or overload", Likelihood: "common", Description: "Muscles and tendons that have done more than they are used to often ache for a while before settling."}},
	}
)

const maxFallbackConditions = 3

var severityWeight = map[string]int{
	"HIGH":   40,
	"MEDIUM": 20,
	"LOW":    10,
}

// Fallback builds a rule-based analysis. It is deterministic and never calls
// the model.
func Fallback(kb *knowledge.Base, req assessment.AnalyzeRequest) assessment.AnalysisResult {
	form := req.FormData
	painTypes := normalizeList(form.PainTypes)
	worseWith := normalizeList(form.WorseWith)
	chronic := hasToken([]string{strings.ToLower(form.Duration)}, chronicTerms)

	regions := map[string]bool{}
	for _, r := range kb.RegionsForAreas(req.SelectedAreaLabels) {
		regions[r.Name] = true
	}

	conditions := []assessment.Condition{}
	severity := "LOW"
	seen := map[string]bool{}
	matchedRegion := map[string]bool{}
	for _, r := range ruleDB {
		if len(conditions) == maxFallbackConditions {
			break
		}
		if !r.matches(regions, painTypes, worseWith, chronic) {
			continue
		}
		// One condition per region keeps the list varied.
		if r.Match.Region != "" && matchedRegion[r.Match.Region] {
			continue
		}
		if seen[r.Result.Name] {
			continue
		}
		seen[r.Result.Name] = true
		if r.Match.Region != "" {
			matchedRegion[r.Match.Region] = true
		}
		conditions = append(conditions, r.Result)
		if severityWeight[r.Severity] > severityWeight[severity] {
			severity = r.Severity
		}
	}

	urgency := prompt.UrgencyHint(form.PainLevel)
	if severity != "LOW" && urgency == assessment.UrgencyLow {
		urgency = assessment.UrgencyModerate
	}
	watchFor := []string{
		"Pain that keeps getting worse despite rest and activity changes",
		"Numbness, tingling or weakness that is spreading",
		"Pain with fever, unexplained weight loss or after a significant fall",
	}
	if hasToken(painTypes, nerveSymptoms) {
		watchFor = append(watchFor, "Loss of bladder or bowel control, or numbness around the groin (seek urgent care)")
		if urgency == assessment.UrgencyLow {
			urgency = assessment.UrgencyModerate
		}
	}
	if hasToken(worseWith, redFlags) {
		watchFor = append(watchFor, "Pain that is constant at night or does not ease with any position")
		if urgency == assessment.UrgencyLow {
			urgency = assessment.UrgencyModerate
		}
	}

	resources := []assessment.Resource{}
	for _, e := range kb.ExpertsForAreas(req.SelectedAreaLabels) {
		if e.Resource.Name != "" {
			resources = append(resources, e.Resource)
		}
	}
	resources = append(resources, kb.GeneralResources()...)

	principles := kb.PrinciplesForAreas(req.SelectedAreaLabels)
	if len(principles) == 0 {
		principles = []string{
			"Pain does not always mean damage; sensitivity often outlasts healing.",
			"Stay gently active within comfortable limits.",
			"Increase activity gradually rather than all at once.",
		}
	}

	return assessment.AnalysisResult{
		Summary:                     fallbackSummary(req.SelectedAreaLabels, form.PainLevel),
		Urgency:                     urgency,
		UnderstandingWhatsHappening: "Pain is your nervous system's way of protecting an area it thinks needs care. The strength of the pain does not always match the amount of tissue damage, and most muscle and joint pain improves as the area is gradually loaded again.",
		Reassurance: assessment.Reassurance{
			Title:   prompt.ReassuranceTitle(urgency),
			Message: DefaultReassurance.Message,
		},
		PossibleConditions: conditions,
		WatchFor:           watchFor,
		RecoveryPrinciples: principles,
		Avoid: []string{
			"Complete rest for more than a day or two",
			"Pushing through sharp pain that lingers into the next day",
		},
		SafeToTry: []string{
			"Gentle walking or movement within a comfortable range",
			"Heat or ice, whichever feels better",
			"Short, frequent position changes through the day",
		},
		Timeline:  fallbackTimeline(chronic),
		Resources: resources,
	}
}

func (r rule) matches(regions map[string]bool, painTypes, worseWith []string, chronic bool) bool {
	m := r.Match
	if m.Region != "" && !regions[m.Region] {
		return false
	}
	if len(m.PainTypes) > 0 && !hasToken(painTypes, m.PainTypes) {
		return false
	}
	if len(m.WorseWith) > 0 && !hasToken(worseWith, m.WorseWith) {
		return false
	}
	return !m.ChronicOnly || chronic
}

func fallbackSummary(labels []string, level int) string {
	areas := strings.Join(labels, ", ")
	switch prompt.UrgencyHint(level) {
	case assessment.UrgencyHigh:
		return "You are dealing with significant pain in your " + areas + ". That is hard, and it makes sense to take it seriously. Below is some general guidance while you arrange a proper assessment."
	case assessment.UrgencyModerate:
		return "You have noticeable pain in your " + areas + ". Pain like this is common and usually improves with the right approach."
	default:
		return "You have mild pain in your " + areas + ". This kind of pain usually settles well with simple self-care."
	}
}

func fallbackTimeline(chronic bool) string {
	if chronic {
		return "Pain that has lasted for months usually improves gradually over 6-12 weeks of consistent, graded activity. A physiotherapist can help you plan this."
	}
	return "Most recent muscle and joint pain improves noticeably within 2-6 weeks. " + DefaultTimeline
}

func normalizeList(values []string) []string {
	out := []string{}
	for _, v := range values {
		if t := strings.ToLower(strings.TrimSpace(v)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func hasToken(tokens []string, class []string) bool {
	for _, t := range tokens {
		for _, c := range class {
			if strings.Contains(t, c) {
				return true
			}
		}
	}
	return false
}
