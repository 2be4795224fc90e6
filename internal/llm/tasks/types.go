package tasks

import (
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

// Rating Task Types

// RatingInput is the input for the rating task.
type RatingInput struct {
	Component string `json:"component"`
	// Details is optional context, such as a catalog description.
	Details string `json:"details,omitempty"`
}

// RatingOutput is the candidate assessment plus how it was obtained.
type RatingOutput struct {
	Assessment schema.Assessment `json:"assessment"`
	// Filled lists dimensions the keyword heuristic supplied because the
	// response lacked a usable level.
	Filled []schema.Dimension `json:"filled,omitempty"`
	// Raw is the generator's response text.
	Raw string `json:"raw,omitempty"`
}

// Automotive Check Types

// AutomotiveVerdict is the answer to "is this a vehicle component?".
type AutomotiveVerdict struct {
	Automotive bool   `json:"automotive"`
	Reason     string `json:"reason"`
	// Fallback is true when the keyword list decided because the
	// generator could not.
	Fallback bool `json:"fallback,omitempty"`
}

// ParsedAnalysis is what ParseAnalysis recovers from a marker-formatted
// response. Nil levels were missing or unusable.
type ParsedAnalysis struct {
	Severity        *schema.Severity
	Exposure        *schema.Exposure
	Controllability *schema.Controllability
	Reasons         schema.Reasons
	Hazards         []string
	FailureModes    []string
	Recommendations []string
}

// Missing lists the dimensions without a parsed level.
func (p *ParsedAnalysis) Missing() []schema.Dimension {
	var out []schema.Dimension
	if p.Severity == nil {
		out = append(out, schema.DimensionSeverity)
	}
	if p.Exposure == nil {
		out = append(out, schema.DimensionExposure)
	}
	if p.Controllability == nil {
		out = append(out, schema.DimensionControllability)
	}
	return out
}
