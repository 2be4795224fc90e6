package tasks

import (
	"strings"

	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

type keywordRule struct {
	keywords []string
	rating   schema.Rating
}

// First match wins.
var heuristicRules = []keywordRule{
	{[]string{"brake", "braking", "abs"}, schema.MustRating(3, 4, 2)},
	{[]string{"steering"}, schema.MustRating(3, 4, 2)},
	{[]string{"airbag", "safety"}, schema.MustRating(3, 1, 3)},
	{[]string{"engine", "powertrain", "transmission"}, schema.MustRating(2, 4, 2)},
	{[]string{"cruise", "adas"}, schema.MustRating(2, 4, 1)},
}

var heuristicDefault = schema.MustRating(2, 3, 2)

// Lists used by the heuristic assessment.
var (
	heuristicHazards         = []string{"Component failure", "Unexpected behavior", "System interference"}
	heuristicFailureModes    = []string{"Hardware malfunction", "Software error", "Environmental factors"}
	heuristicRecommendations = []string{"Implement redundancy", "Add monitoring systems", "Follow ISO 26262 guidelines"}
)

// Lists used when a parsed response omits a section.
var (
	defaultHazards         = []string{"Component malfunction", "Unexpected behavior", "System interference"}
	defaultFailureModes    = []string{"Hardware failure", "Software error", "Communication loss"}
	defaultRecommendations = []string{"Implement redundancy", "Add monitoring", "Follow ISO 26262 guidelines"}
)

// HeuristicRating rates a component from keywords in its name.
func HeuristicRating(component string) schema.Rating {
	name := strings.ToLower(component)
	for _, rule := range heuristicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.rating
			}
		}
	}
	return heuristicDefault
}

// HeuristicAssessment is a complete assessment built without the
// generator.
func HeuristicAssessment(component string) schema.Assessment {
	r := HeuristicRating(component)
	return schema.Assessment{
		Rating:          r,
		ASIL:            asil.Of(r),
		Reasons:         schema.DefaultReasons(r),
		Hazards:         cloneList(heuristicHazards),
		FailureModes:    cloneList(heuristicFailureModes),
		Recommendations: cloneList(heuristicRecommendations),
		Source:          schema.SourceHeuristic,
	}
}

var automotiveKeywords = []string{
	"brake", "braking", "abs", "engine", "motor", "steering", "wheel",
	"airbag", "transmission", "suspension", "chassis", "ecu", "control",
	"cruise", "adaptive", "lane", "collision", "safety", "sensor",
	"vehicle", "automotive", "car", "truck", "automobile",
}

// LooksAutomotive reports whether the text contains a vehicle keyword.
func LooksAutomotive(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range automotiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func cloneList(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
