// Package prompt assembles the natural-language prompts sent to the LLM. Every
// builder is a pure function of its inputs: no clock, no randomness, no map order.
package prompt

import (
	"fmt"
	"strings"

	"github.com/Skufu/ReliefMap/internal/assessment"
	"github.com/Skufu/ReliefMap/internal/knowledge"
)

// UrgencyHint buckets a 1-10 pain score.
func UrgencyHint(painLevel int) assessment.Urgency {
	switch {
	case painLevel >= 7:
		return assessment.UrgencyHigh
	case painLevel >= 4:
		return assessment.UrgencyModerate
	default:
		return assessment.UrgencyLow
	}
}

// ReassuranceTitle is the heading the model must use for the reassurance section.
func ReassuranceTitle(u assessment.Urgency) string {
	switch u {
	case assessment.UrgencyHigh:
		return "A Silver Lining"
	case assessment.UrgencyModerate:
		return "Reason for Optimism"
	default:
		return "Good News"
	}
}

const persona = `You are a warm, knowledgeable movement and pain educator. You help people make sense of
musculoskeletal pain they have mapped on a body diagram. You are not a doctor and you do not
diagnose; you explain what commonly causes pain like this, what tends to help, and when to
seek professional care. Write in plain language at roughly an 8th-grade reading level.`

const empathyGuidelines = `WRITING GUIDELINES:
- Acknowledge the person's experience before explaining anything ("That sounds frustrating...").
- Use "you" and "your"; speak to one person, never to "patients".
- Prefer possibilities over certainties: "often", "commonly", "may".
- Never catastrophize. Avoid words like "degeneration", "damage" or "wear and tear" unless essential.
- Reference their own words from the narrative sections when it helps them feel heard.
- Keep every list item short and actionable.`

const painScience = `PAIN SCIENCE FRAMING:
- Pain is a protective output of the nervous system, not a direct measure of tissue damage.
- Hurt does not always equal harm; sensitivity can stay high after tissues have healed.
- Sleep, stress, confidence and activity levels all influence how much something hurts.
- Most musculoskeletal pain improves with time, graded activity and reassurance.`

// BuildAnalysisPrompt composes the full analysis prompt in a fixed section order.
func BuildAnalysisPrompt(kb *knowledge.Base, labels []string, painPointCount int, form assessment.FormData) string {
	var b strings.Builder

	b.WriteString(persona)
	b.WriteString("\n\n")
	b.WriteString(empathyGuidelines)
	b.WriteString("\n\n")
	b.WriteString(painScience)
	b.WriteString("\n\n")

	if block := expertBlock(kb, labels); block != "" {
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString(resourcesBlock(kb))
	b.WriteString("\n")
	b.WriteString(formBlock(labels, painPointCount, form))
	b.WriteString("\n")
	b.WriteString(closingInstructions(UrgencyHint(form.PainLevel)))

	return b.String()
}

func expertBlock(kb *knowledge.Base, labels []string) string {
	experts := kb.ExpertsForAreas(labels)
	principles := kb.PrinciplesForAreas(labels)
	if len(experts) == 0 && len(principles) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("EXPERT KNOWLEDGE FOR THE AFFECTED AREAS:\n")
	for _, e := range experts {
		fmt.Fprintf(&b, "- %s (%s): %s\n", e.Name, e.Credentials, e.Focus)
		if e.Resource.Name != "" {
			fmt.Fprintf(&b, "  Recommended resource: %s [%s] - %s\n", e.Resource.Name, e.Resource.Type, e.Resource.Why)
		}
	}
	if len(principles) > 0 {
		b.WriteString("Key recovery principles:\n")
		for _, p := range principles {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	return b.String()
}

func resourcesBlock(kb *knowledge.Base) string {
	var b strings.Builder
	b.WriteString("RESOURCES YOU MAY RECOMMEND:\n")
	for _, r := range kb.GeneralResources() {
		fmt.Fprintf(&b, "- %s [%s] - %s\n", r.Name, r.Type, r.Why)
	}
	b.WriteString("Prefer the expert resources above when they fit the affected areas. Do not invent URLs.\n")
	return b.String()
}

func formBlock(labels []string, painPointCount int, f assessment.FormData) string {
	var b strings.Builder
	b.WriteString("USER'S ASSESSMENT:\n")
	fmt.Fprintf(&b, "Affected areas: %s\n", strings.Join(labels, ", "))
	if painPointCount > 0 {
		fmt.Fprintf(&b, "Additional painted pain spots: %d\n", painPointCount)
	}
	fmt.Fprintf(&b, "Pain level: %d/10\n", f.PainLevel)
	writeList(&b, "Type of pain", f.PainTypes)
	writeField(&b, "Duration", f.Duration)
	writeField(&b, "Frequency", f.Frequency)
	writeList(&b, "Worse with", f.WorseWith)
	writeList(&b, "Better with", f.BetterWith)
	writeList(&b, "Activities", f.Activities)
	writeField(&b, "Training intensity", f.Intensity)
	writeField(&b, "Goals", f.Goals)
	if f.ConcernLevel != nil {
		fmt.Fprintf(&b, "Concern level: %d/10\n", *f.ConcernLevel)
	}

	narratives := []struct{ field, label, text string }{
		{"story", "Their story", f.Story},
		{"triggers", "What seems to trigger it", f.Triggers},
		{"progress", "How it has changed", f.Progress},
		{"triedSoFar", "What they have tried so far", f.TriedSoFar},
	}
	for _, n := range narratives {
		text := strings.TrimSpace(n.text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s (in their own words):\n<user_narrative field=%q>\n%s\n</user_narrative>\n", n.label, n.field, text)
	}
	return b.String()
}

func closingInstructions(hint assessment.Urgency) string {
	var b strings.Builder
	b.WriteString("INSTRUCTIONS:\n")
	fmt.Fprintf(&b, "- Based on the reported pain level, use urgency %q unless the narrative clearly indicates otherwise.\n", hint)
	fmt.Fprintf(&b, "- Title the reassurance section exactly %q.\n", ReassuranceTitle(hint))
	b.WriteString("- Include 2-4 possible conditions, most likely first, each with a likelihood of \"common\", \"possible\" or \"less likely\".\n")
	b.WriteString("- In watchFor, list red-flag symptoms that warrant prompt medical attention.\n")
	b.WriteString("- Pick resources from the lists above.\n")
	b.WriteString("- Respond with ONLY a JSON object, no markdown, in exactly this shape:\n")
	b.WriteString(responseShape)
	return b.String()
}

const responseShape = `{
  "summary": "2-3 sentence empathetic overview",
  "urgency": "low" | "moderate" | "high",
  "understandingWhatsHappening": "plain-language explanation of what is likely going on",
  "reassurance": {"title": "...", "message": "..."},
  "possibleConditions": [{"name": "...", "likelihood": "...", "description": "..."}],
  "watchFor": ["..."],
  "recoveryPrinciples": ["..."],
  "avoid": ["..."],
  "safeToTry": ["..."],
  "timeline": "typical recovery timeline",
  "resources": [{"name": "...", "type": "book" | "video" | "website" | "research", "why": "..."}]
}
`

func writeField(b *strings.Builder, label, value string) {
	if v := strings.TrimSpace(value); v != "" {
		fmt.Fprintf(b, "%s: %s\n", label, v)
	}
}

func writeList(b *strings.Builder, label string, values []string) {
	if vs := assessment.NonBlank(values); len(vs) > 0 {
		fmt.Fprintf(b, "%s: %s\n", label, strings.Join(vs, ", "))
	}
}
