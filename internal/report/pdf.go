// Package report renders assessments as downloadable PDF and JSON documents.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Skufu/ReliefMap/internal/assessment"
)

// DiagramHeight is the height of the body diagram canvas in the units painted
// points are recorded in.
const DiagramHeight = 400.0

const Disclaimer = "This report is for educational purposes only and is not a medical diagnosis. " +
	"It was generated from your own answers and, where shown, an AI model. " +
	"Always consult a qualified healthcare professional about your symptoms. " +
	"If you have severe, sudden or worsening symptoms, seek medical care immediately."

type rgb struct{ r, g, b int }

var (
	urgencyColors = map[assessment.Urgency]rgb{
		assessment.UrgencyLow:      {46, 160, 67},
		assessment.UrgencyModerate: {230, 160, 30},
		assessment.UrgencyHigh:     {210, 50, 50},
	}
	headingColor = rgb{33, 64, 110}
	textColor    = rgb{40, 40, 40}
	mutedColor   = rgb{110, 110, 110}
	cardFill     = rgb{242, 245, 250}
)

// bodyZones groups region keys by substring. The first matching zone wins.
var bodyZones = []struct {
	name     string
	keywords []string
}{
	{"Head & Neck", []string{"head", "neck", "jaw", "face", "trap"}},
	{"Shoulders & Arms", []string{"shoulder", "delt", "bicep", "tricep", "arm", "elbow", "wrist", "hand", "finger"}},
	{"Chest & Core", []string{"chest", "pec", "abs", "abdom", "oblique", "core", "rib"}},
	{"Back", []string{"back", "spine", "lumbar", "lumborum", "quadratus", "thoracic", "erector", "latissimus", "lats", "rhomboid"}},
	{"Hips & Glutes", []string{"hip", "glute", "groin", "adductor", "piriformis"}},
	{"Feet & Ankles", []string{"ankle", "foot", "feet", "heel", "toe", "achilles", "plantar"}},
	{"Legs", []string{"quad", "hamstring", "thigh", "knee", "calf", "calves", "shin", "leg", "itband"}},
}

const otherZone = "Other"

// verticalZones splits the diagram height into coarse bands.
var verticalZones = []struct {
	name  string
	upper float64
}{
	{"head & shoulders", 0.25},
	{"torso", 0.50},
	{"hips & thighs", 0.70},
	{"lower legs & feet", 1.01},
}

type Renderer struct {
	compress bool
}

type Option func(*Renderer)

// WithoutCompression leaves content streams readable; used by tests and debugging.
func WithoutCompression() Option {
	return func(r *Renderer) { r.compress = false }
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{compress: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderPDF renders with the default renderer.
func RenderPDF(a assessment.Assessment, analysis *assessment.AnalysisResult) ([]byte, error) {
	return NewRenderer().Render(a, analysis)
}

// Render lays out the report in a fixed section order. Sections without data
// are left out. The document dates are pinned to a.CreatedAt so the same input
// always yields the same bytes.
func (r *Renderer) Render(a assessment.Assessment, analysis *assessment.AnalysisResult) ([]byte, error) {
	created := a.CreatedAt.UTC()
	if created.IsZero() {
		created = time.Unix(0, 0).UTC()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetTitle("Pain Assessment Report", true)
	pdf.SetCreator("ReliefMap", true)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 20)

	d := &doc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont("Helvetica", "I", 8)
		d.color(mutedColor)
		pdf.CellFormat(0, 6, fmt.Sprintf("ReliefMap pain assessment - page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	d.header(created)
	d.painLocation(a)
	d.painDetails(a.FormData)
	d.activityGoals(a.FormData)
	d.concernLevel(a.FormData)
	if analysis != nil && hasAnalysisContent(*analysis) {
		d.analysis(*analysis)
	}
	d.disclaimer()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type doc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (d *doc) color(c rgb) {
	d.pdf.SetTextColor(c.r, c.g, c.b)
}

func (d *doc) header(created time.Time) {
	d.pdf.SetFont("Helvetica", "B", 20)
	d.color(headingColor)
	d.pdf.CellFormat(0, 10, d.tr("Pain Assessment Report"), "", 1, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
	d.color(mutedColor)
	d.pdf.CellFormat(0, 6, d.tr("Assessment date: "+created.Format("January 2, 2006")), "", 1, "L", false, 0, "")
	d.pdf.Ln(4)
}

func (d *doc) section(title string) {
	d.pdf.Ln(2)
	d.pdf.SetFont("Helvetica", "B", 13)
	d.color(headingColor)
	d.pdf.CellFormat(0, 8, d.tr(title), "B", 1, "L", false, 0, "")
	d.pdf.Ln(2)
}

func (d *doc) subheading(title string) {
	d.pdf.SetFont("Helvetica", "B", 11)
	d.color(textColor)
	d.pdf.CellFormat(0, 6, d.tr(title), "", 1, "L", false, 0, "")
}

func (d *doc) paragraph(text string) {
	d.pdf.SetFont("Helvetica", "", 10)
	d.color(textColor)
	d.pdf.MultiCell(0, 5, d.tr(text), "", "L", false)
	d.pdf.Ln(1)
}

func (d *doc) field(label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	d.pdf.SetFont("Helvetica", "B", 10)
	d.color(textColor)
	d.pdf.CellFormat(42, 5, d.tr(label+":"), "", 0, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.MultiCell(0, 5, d.tr(value), "", "L", false)
}

func (d *doc) bullets(items []string) {
	d.pdf.SetFont("Helvetica", "", 10)
	d.color(textColor)
	for _, item := range items {
		d.pdf.CellFormat(6, 5, d.tr("-"), "", 0, "L", false, 0, "")
		d.pdf.MultiCell(0, 5, d.tr(item), "", "L", false)
	}
	d.pdf.Ln(1)
}

func (d *doc) painLocation(a assessment.Assessment) {
	zones := GroupRegions(a.Regions())
	points := SummarizePoints(a.PainPoints)
	if len(zones) == 0 && len(points) == 0 {
		return
	}

	d.section("Pain Location")
	for _, z := range zones {
		d.field(z.Zone, strings.Join(z.Regions, ", "))
	}
	for _, p := range points {
		d.field(string(p.View)+" view", p.String())
	}
}

func (d *doc) painDetails(f assessment.FormData) {
	d.section("Pain Details")
	d.field("Pain level", fmt.Sprintf("%d/10", f.PainLevel))
	d.field("Type of pain", strings.Join(assessment.NonBlank(f.PainTypes), ", "))
	d.field("Duration", f.Duration)
	d.field("Frequency", f.Frequency)
	d.field("Worse with", strings.Join(assessment.NonBlank(f.WorseWith), ", "))
	d.field("Better with", strings.Join(assessment.NonBlank(f.BetterWith), ", "))
	d.field("Your story", f.Story)
	d.field("Triggers", f.Triggers)
	d.field("Progress", f.Progress)
	d.field("Tried so far", f.TriedSoFar)
}

func (d *doc) activityGoals(f assessment.FormData) {
	if !f.HasActivityGoals() {
		return
	}
	d.section("Activity & Goals")
	d.field("Activities", strings.Join(assessment.NonBlank(f.Activities), ", "))
	d.field("Intensity", f.Intensity)
	d.field("Goals", f.Goals)
}

func (d *doc) concernLevel(f assessment.FormData) {
	if f.ConcernLevel == nil {
		return
	}
	d.section("Concern Level")
	d.field("Concern", fmt.Sprintf("%d/10", *f.ConcernLevel))
}

func (d *doc) analysis(an assessment.AnalysisResult) {
	d.section("Analysis")

	if u, ok := assessment.ParseUrgency(string(an.Urgency)); ok {
		c := urgencyColors[u]
		d.pdf.SetFillColor(c.r, c.g, c.b)
		d.pdf.SetTextColor(255, 255, 255)
		d.pdf.SetFont("Helvetica", "B", 12)
		d.pdf.CellFormat(0, 10, d.tr("Urgency: "+strings.ToUpper(string(u))), "", 1, "C", true, 0, "")
		d.pdf.Ln(3)
	}

	if strings.TrimSpace(an.Summary) != "" {
		d.paragraph(an.Summary)
	}
	if strings.TrimSpace(an.UnderstandingWhatsHappening) != "" {
		d.subheading("Understanding What's Happening")
		d.paragraph(an.UnderstandingWhatsHappening)
	}
	if strings.TrimSpace(an.Reassurance.Message) != "" {
		title := an.Reassurance.Title
		if strings.TrimSpace(title) == "" {
			title = "Reassurance"
		}
		d.subheading(title)
		d.paragraph(an.Reassurance.Message)
	}

	if len(an.PossibleConditions) > 0 {
		d.subheading("Possible Conditions")
		for _, c := range an.PossibleConditions {
			name := c.Name
			if c.Likelihood != "" {
				name += " (" + c.Likelihood + ")"
			}
			d.pdf.SetFont("Helvetica", "B", 10)
			d.color(textColor)
			d.pdf.MultiCell(0, 5, d.tr(name), "", "L", false)
			if c.Description != "" {
				d.paragraph(c.Description)
			}
		}
	}

	lists := []struct {
		title string
		items []string
	}{
		{"Watch For", an.WatchFor},
		{"Recovery Principles", an.RecoveryPrinciples},
		{"What to Avoid", an.Avoid},
		{"Safe to Try", an.SafeToTry},
	}
	for _, l := range lists {
		items := assessment.NonBlank(l.items)
		if len(items) == 0 {
			continue
		}
		d.subheading(l.title)
		d.bullets(items)
	}

	if strings.TrimSpace(an.Timeline) != "" {
		d.subheading("Timeline")
		d.paragraph(an.Timeline)
	}

	if len(an.Resources) > 0 {
		d.subheading("Expert Resources")
		d.pdf.SetFillColor(cardFill.r, cardFill.g, cardFill.b)
		for _, res := range an.Resources {
			text := res.Name
			if res.Type != "" {
				text += " [" + res.Type + "]"
			}
			if res.Why != "" {
				text += "\n" + res.Why
			}
			d.pdf.SetFont("Helvetica", "", 10)
			d.color(textColor)
			d.pdf.MultiCell(0, 5, d.tr(text), "1", "L", true)
			d.pdf.Ln(2)
		}
	}
}

func hasAnalysisContent(an assessment.AnalysisResult) bool {
	if _, ok := assessment.ParseUrgency(string(an.Urgency)); ok {
		return true
	}
	for _, text := range []string{an.Summary, an.UnderstandingWhatsHappening, an.Reassurance.Message, an.Timeline} {
		if strings.TrimSpace(text) != "" {
			return true
		}
	}
	for _, items := range [][]string{an.WatchFor, an.RecoveryPrinciples, an.Avoid, an.SafeToTry} {
		if len(assessment.NonBlank(items)) > 0 {
			return true
		}
	}
	return len(an.PossibleConditions) > 0 || len(an.Resources) > 0
}

func (d *doc) disclaimer() {
	d.pdf.Ln(4)
	d.pdf.SetFont("Helvetica", "I", 8)
	d.color(mutedColor)
	d.pdf.MultiCell(0, 4, d.tr(Disclaimer), "T", "L", false)
}

// ZoneGroup is one coarse body zone with the region keys that fell into it.
type ZoneGroup struct {
	Zone    string
	Regions []string
}

// GroupRegions buckets region keys into body zones in a fixed zone order.
func GroupRegions(keys []string) []ZoneGroup {
	byZone := map[string][]string{}
	for _, key := range keys {
		z := zoneFor(key)
		byZone[z] = append(byZone[z], key)
	}

	var out []ZoneGroup
	for _, z := range bodyZones {
		if regions := byZone[z.name]; len(regions) > 0 {
			out = append(out, ZoneGroup{Zone: z.name, Regions: regions})
		}
	}
	if regions := byZone[otherZone]; len(regions) > 0 {
		out = append(out, ZoneGroup{Zone: otherZone, Regions: regions})
	}
	return out
}

func zoneFor(key string) string {
	k := strings.ToLower(key)
	for _, z := range bodyZones {
		for _, kw := range z.keywords {
			if strings.Contains(k, kw) {
				return z.name
			}
		}
	}
	return otherZone
}

// PointSummary counts painted points on one view of the diagram.
type PointSummary struct {
	View   assessment.View
	Total  int
	ByZone []ZoneCount
}

type ZoneCount struct {
	Zone  string
	Count int
}

func (p PointSummary) String() string {
	parts := make([]string, 0, len(p.ByZone))
	for _, z := range p.ByZone {
		parts = append(parts, fmt.Sprintf("%d %s", z.Count, z.Zone))
	}
	noun := "spots"
	if p.Total == 1 {
		noun = "spot"
	}
	return fmt.Sprintf("%d marked %s (%s)", p.Total, noun, strings.Join(parts, ", "))
}

// SummarizePoints counts points per view and vertical zone, front view first.
func SummarizePoints(points []assessment.PainPoint) []PointSummary {
	var out []PointSummary
	for _, view := range []assessment.View{assessment.ViewFront, assessment.ViewBack} {
		counts := make([]int, len(verticalZones))
		total := 0
		for _, p := range points {
			if p.View != view {
				continue
			}
			counts[verticalZone(p.Y)]++
			total++
		}
		if total == 0 {
			continue
		}
		s := PointSummary{View: view, Total: total}
		for i, c := range counts {
			if c > 0 {
				s.ByZone = append(s.ByZone, ZoneCount{Zone: verticalZones[i].name, Count: c})
			}
		}
		out = append(out, s)
	}
	return out
}

func verticalZone(y float64) int {
	frac := y / DiagramHeight
	for i, z := range verticalZones {
		if frac < z.upper {
			return i
		}
	}
	return len(verticalZones) - 1
}
