// Package knowledge holds the curated expert and recovery-principle tables that
// enrich analysis prompts. The tables are embedded and read-only.
package knowledge

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Skufu/ReliefMap/internal/assessment"
)

// maxPrinciples bounds how many principles reach the prompt.
const maxPrinciples = 5

//go:embed regions.yaml
var regionsYAML []byte

type Expert struct {
	Name        string              `yaml:"name"`
	Credentials string              `yaml:"credentials"`
	Focus       string              `yaml:"focus"`
	Resource    assessment.Resource `yaml:"resource"`
}

type Region struct {
	Name       string   `yaml:"name"`
	Keywords   []string `yaml:"keywords"`
	Exclude    []string `yaml:"exclude"`
	Experts    []Expert `yaml:"experts"`
	Principles []string `yaml:"principles"`
}

type Base struct {
	Regions   []Region              `yaml:"regions"`
	Resources []assessment.Resource `yaml:"general_resources"`
}

var loadDefault = sync.OnceValue(func() *Base {
	b, err := Parse(regionsYAML)
	if err != nil {
		panic(fmt.Sprintf("knowledge: embedded tables: %v", err))
	}
	return b
})

// Default returns the embedded knowledge base.
func Default() *Base {
	return loadDefault()
}

// Parse decodes region tables. Keywords are lower-cased so matching stays
// case-insensitive.
func Parse(data []byte) (*Base, error) {
	var b Base
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	for i := range b.Regions {
		r := &b.Regions[i]
		if r.Name == "" || len(r.Keywords) == 0 {
			return nil, fmt.Errorf("region %d: name and keywords are required", i)
		}
		for j, kw := range r.Keywords {
			r.Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
		for j, kw := range r.Exclude {
			r.Exclude[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	return &b, nil
}

// Matches reports whether label contains one of the region's keywords and none
// of its exclusions.
func (r Region) Matches(label string) bool {
	label = strings.ToLower(label)
	for _, kw := range r.Exclude {
		if kw != "" && strings.Contains(label, kw) {
			return false
		}
	}
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(label, kw) {
			return true
		}
	}
	return false
}

// RegionsForAreas returns every region matched by any label, in first-match order.
func (b *Base) RegionsForAreas(labels []string) []Region {
	seen := make(map[string]bool)
	var out []Region
	for _, label := range labels {
		for _, r := range b.Regions {
			if seen[r.Name] || !r.Matches(label) {
				continue
			}
			seen[r.Name] = true
			out = append(out, r)
		}
	}
	return out
}

// ExpertsForAreas accumulates the experts of every matching region, de-duplicated by
// name. The result is empty, never nil, when nothing matches.
func (b *Base) ExpertsForAreas(labels []string) []Expert {
	seen := make(map[string]bool)
	out := []Expert{}
	for _, r := range b.RegionsForAreas(labels) {
		for _, e := range r.Experts {
			if seen[e.Name] {
				continue
			}
			seen[e.Name] = true
			out = append(out, e)
		}
	}
	return out
}

// PrinciplesForAreas returns at most five distinct principles for the matching regions.
func (b *Base) PrinciplesForAreas(labels []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range b.RegionsForAreas(labels) {
		for _, p := range r.Principles {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) > maxPrinciples {
		out = out[:maxPrinciples]
	}
	return out
}

func (b *Base) GeneralResources() []assessment.Resource {
	return append([]assessment.Resource(nil), b.Resources...)
}
