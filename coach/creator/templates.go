package creator

import (
	"fmt"
	"strings"

	"github.com/fitforge/coachkit/coach"
)

// Template is one selectable entry in the built-in personality or
// methodology catalog.
type Template struct {
	ID      string
	Name    string
	Summary string
}

var personalityTemplates = []Template{
	{ID: "drill_sergeant", Name: "Drill Sergeant", Summary: "direct, demanding, no-excuses tone for users who want accountability"},
	{ID: "supportive_friend", Name: "Supportive Friend", Summary: "warm, encouraging tone that celebrates small wins"},
	{ID: "data_scientist", Name: "Data Scientist", Summary: "analytical, numbers-first tone built around metrics and trends"},
	{ID: "zen_guide", Name: "Zen Guide", Summary: "calm, mindful tone emphasizing sustainability and recovery"},
}

var methodologyTemplates = []Template{
	{ID: "strength_block", Name: "Strength Block Periodization", Summary: "linear strength blocks with progressive overload"},
	{ID: "hiit_conditioning", Name: "HIIT Conditioning", Summary: "interval-driven conditioning for time-constrained users"},
	{ID: "endurance_base", Name: "Endurance Base Building", Summary: "aerobic base volume with polarized intensity"},
	{ID: "functional_mixed", Name: "Functional Mixed Training", Summary: "varied functional movements balancing strength and mobility"},
}

func findTemplate(catalog []Template, id string) (Template, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

func templateChoice(kind coach.TemplateKind, t Template, rationale string) coach.TemplateChoice {
	return coach.TemplateChoice{Kind: kind, TemplateID: t.ID, Name: t.Name, Rationale: rationale}
}

func catalogSummary(catalog []Template) string {
	lines := make([]string, 0, len(catalog))
	for _, t := range catalog {
		lines = append(lines, fmt.Sprintf("%s (%s)", t.ID, t.Summary))
	}
	return strings.Join(lines, "; ")
}

func catalogIDs(catalog []Template) []string {
	ids := make([]string, 0, len(catalog))
	for _, t := range catalog {
		ids = append(ids, t.ID)
	}
	return ids
}
