package schema

import (
	"fmt"
	"strings"
)

// Dimension names one axis of a hazard rating.
type Dimension string

const (
	DimensionSeverity        Dimension = "severity"
	DimensionExposure        Dimension = "exposure"
	DimensionControllability Dimension = "controllability"
)

// Dimensions lists the rating axes in display order.
func Dimensions() []Dimension {
	return []Dimension{DimensionSeverity, DimensionExposure, DimensionControllability}
}

// ParseDimension accepts "severity", "sev" or "s" in any case.
func ParseDimension(v string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "severity", "sev", "s":
		return DimensionSeverity, nil
	case "exposure", "exp", "e":
		return DimensionExposure, nil
	case "controllability", "ctrl", "c":
		return DimensionControllability, nil
	}
	return "", fmt.Errorf("unknown dimension %q", v)
}

// Source records where a rating or record came from.
type Source string

const (
	SourceSeed        Source = "seed"         // Shipped catalog data
	SourceUser        Source = "user"         // Entered through a form or the API
	SourceAI          Source = "ai"           // Fully parsed from the text generator
	SourceAIHeuristic Source = "ai+heuristic" // Parsed with some dimensions filled by keyword rules
	SourceHeuristic   Source = "heuristic"    // Keyword rules only
)

// ValidationLimits defines the constraints for component fields.
const (
	ComponentNameMin        = 1
	ComponentNameMax        = 100
	CategoryNameMin         = 1
	CategoryNameMax         = 60
	ComponentDescriptionMax = 1000
	ReasonMax               = 500
	ListItemMax             = 200
	ListMax                 = 20
)

// DefaultCategory is assigned to user components created without one.
const DefaultCategory = "Custom Components"
