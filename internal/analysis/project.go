package analysis

import (
	"strings"

	"github.com/Skufu/ReliefMap/internal/assessment"
)

// Defaults used when the model omits a field or returns it with the wrong type.
const (
	DefaultSummary  = "Based on what you shared, here is an overview of what may be going on and what tends to help."
	DefaultTimeline = "Recovery time varies from person to person. If your pain is not improving within a few weeks, please consult a healthcare professional."
	DefaultUrgency  = assessment.UrgencyModerate
)

var DefaultReassurance = assessment.Reassurance{
	Title:   "Reason for Optimism",
	Message: "Most muscle and joint pain improves with time, sensible activity and patience. Your body is very good at healing.",
}

// Project maps an untrusted decoded object onto AnalysisResult. Each field is
// taken only if present and well-typed, otherwise it gets its default and the
// result is reported as salvaged. It never fails.
func Project(raw map[string]any) (assessment.AnalysisResult, bool) {
	p := projector{raw: raw}
	res := assessment.AnalysisResult{
		Summary:                     p.text("summary", DefaultSummary),
		Urgency:                     p.urgency(),
		UnderstandingWhatsHappening: p.text("understandingWhatsHappening", ""),
		Reassurance:                 p.reassurance(),
		PossibleConditions:          p.conditions(),
		WatchFor:                    p.strings("watchFor"),
		RecoveryPrinciples:          p.strings("recoveryPrinciples"),
		Avoid:                       p.strings("avoid"),
		SafeToTry:                   p.strings("safeToTry"),
		Timeline:                    p.text("timeline", DefaultTimeline),
		Resources:                   p.resources(),
	}
	return res, p.salvaged
}

type projector struct {
	raw      map[string]any
	salvaged bool
}

func (p *projector) text(key, def string) string {
	if s, ok := nonEmptyString(p.raw[key]); ok {
		return s
	}
	p.salvaged = true
	return def
}

func (p *projector) urgency() assessment.Urgency {
	if s, ok := p.raw["urgency"].(string); ok {
		if u, ok := assessment.ParseUrgency(s); ok {
			return u
		}
	}
	p.salvaged = true
	return DefaultUrgency
}

func (p *projector) reassurance() assessment.Reassurance {
	obj, ok := p.raw["reassurance"].(map[string]any)
	if !ok {
		p.salvaged = true
		return DefaultReassurance
	}
	out := DefaultReassurance
	if s, ok := nonEmptyString(obj["title"]); ok {
		out.Title = s
	} else {
		p.salvaged = true
	}
	if s, ok := nonEmptyString(obj["message"]); ok {
		out.Message = s
	} else {
		p.salvaged = true
	}
	return out
}

// list returns the array at key. Missing or mistyped arrays salvage to empty.
func (p *projector) list(key string) []any {
	arr, ok := p.raw[key].([]any)
	if !ok {
		p.salvaged = true
		return nil
	}
	return arr
}

func (p *projector) strings(key string) []string {
	items := p.list(key)
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := nonEmptyString(item)
		if !ok {
			p.salvaged = true
			continue
		}
		out = append(out, s)
	}
	return out
}

func (p *projector) conditions() []assessment.Condition {
	items := p.list("possibleConditions")
	out := make([]assessment.Condition, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			p.salvaged = true
			continue
		}
		name, ok := nonEmptyString(obj["name"])
		if !ok {
			p.salvaged = true
			continue
		}
		out = append(out, assessment.Condition{
			Name:        name,
			Likelihood:  stringOr(obj["likelihood"]),
			Description: stringOr(obj["description"]),
		})
	}
	return out
}

func (p *projector) resources() []assessment.Resource {
	items := p.list("resources")
	out := make([]assessment.Resource, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			p.salvaged = true
			continue
		}
		name, ok := nonEmptyString(obj["name"])
		if !ok {
			p.salvaged = true
			continue
		}
		out = append(out, assessment.Resource{
			Name: name,
			Type: stringOr(obj["type"]),
			Why:  stringOr(obj["why"]),
		})
	}
	return out
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func stringOr(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
