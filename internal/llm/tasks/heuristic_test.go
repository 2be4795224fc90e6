package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

func TestHeuristicRating(t *testing.T) {
	tests := []struct {
		component string
		want      schema.Rating
	}{
		{"Brake Pedal Sensor", schema.MustRating(3, 4, 2)},
		{"ABS Module", schema.MustRating(3, 4, 2)},
		{"Electric Power Steering", schema.MustRating(3, 4, 2)},
		{"Driver Airbag", schema.MustRating(3, 1, 3)},
		{"Safety Belt Pretensioner", schema.MustRating(3, 1, 3)},
		{"Engine Control Unit", schema.MustRating(2, 4, 2)},
		{"Automatic Transmission", schema.MustRating(2, 4, 2)},
		{"Adaptive Cruise Control", schema.MustRating(2, 4, 1)},
		{"Infotainment Display", schema.MustRating(2, 3, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.component, func(t *testing.T) {
			assert.Equal(t, tt.want, HeuristicRating(tt.component))
		})
	}
}

func TestHeuristicAssessment(t *testing.T) {
	a := HeuristicAssessment("Brake System")

	assert.Equal(t, schema.SourceHeuristic, a.Source)
	assert.Equal(t, schema.ASILC, a.ASIL)
	assert.Equal(t, schema.DefaultReasons(a.Rating), a.Reasons)
	assert.Equal(t, []string{"Component failure", "Unexpected behavior", "System interference"}, a.Hazards)
	assert.Len(t, a.FailureModes, 3)
	assert.Len(t, a.Recommendations, 3)

	// Lists are not shared between calls.
	a.Hazards[0] = "changed"
	assert.Equal(t, "Component failure", HeuristicAssessment("Brake System").Hazards[0])
}

func TestLooksAutomotive(t *testing.T) {
	assert.True(t, LooksAutomotive("Rear Wheel Speed Sensor"))
	assert.True(t, LooksAutomotive("TRUCK trailer coupling"))
	assert.False(t, LooksAutomotive("Office coffee machine"))
}
