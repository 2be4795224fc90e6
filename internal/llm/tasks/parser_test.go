package tasks

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

func TestParseAnalysis_Complete(t *testing.T) {
	text := `SEVERITY: S3
SEVERITY_DESC: Loss of braking can be fatal.
EXPOSURE: E4
EXPOSURE_DESC: Used on every drive.
CONTROLLABILITY: C2
CONTROLLABILITY_DESC: Most drivers cannot avoid harm.
HAZARDS:
- Complete loss of braking force
- Unintended braking
FAILURES:
• Hydraulic line rupture
RECOMMENDATIONS:
1. Dual-circuit hydraulic design
2) Pressure monitoring`

	p, err := ParseAnalysis(text)
	require.NoError(t, err)

	require.NotNil(t, p.Severity)
	require.NotNil(t, p.Exposure)
	require.NotNil(t, p.Controllability)
	assert.Equal(t, schema.S3, *p.Severity)
	assert.Equal(t, schema.E4, *p.Exposure)
	assert.Equal(t, schema.C2, *p.Controllability)
	assert.Empty(t, p.Missing())

	assert.Equal(t, "Loss of braking can be fatal.", p.Reasons.Severity)
	assert.Equal(t, "Used on every drive.", p.Reasons.Exposure)
	assert.Equal(t, "Most drivers cannot avoid harm.", p.Reasons.Controllability)
	assert.Equal(t, []string{"Complete loss of braking force", "Unintended braking"}, p.Hazards)
	assert.Equal(t, []string{"Hydraulic line rupture"}, p.FailureModes)
	assert.Equal(t, []string{"Dual-circuit hydraulic design", "Pressure monitoring"}, p.Recommendations)
}

func TestParseAnalysis_Formatting(t *testing.T) {
	text := `## Analysis
**SEVERITY:** S2 - severe injuries
> exposure: 3
- CONTROLLABILITY: C1 (simply controllable)
SEVERITY_DESC: First line
continues here.`

	p, err := ParseAnalysis(text)
	require.NoError(t, err)

	require.NotNil(t, p.Severity)
	assert.Equal(t, schema.S2, *p.Severity)
	require.NotNil(t, p.Exposure)
	assert.Equal(t, schema.E3, *p.Exposure)
	require.NotNil(t, p.Controllability)
	assert.Equal(t, schema.C1, *p.Controllability)
	assert.Equal(t, "First line continues here.", p.Reasons.Severity)
}

func TestParseAnalysis_UnusableLevels(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		check func(t *testing.T, p *ParsedAnalysis)
	}{
		{
			name: "out of range",
			text: "SEVERITY: S5\nEXPOSURE: E9\nCONTROLLABILITY: C4",
			check: func(t *testing.T, p *ParsedAnalysis) {
				assert.Len(t, p.Missing(), 3)
			},
		},
		{
			name: "word instead of level",
			text: "SEVERITY: S1\nEXPOSURE: frequently\nCONTROLLABILITY: C3",
			check: func(t *testing.T, p *ParsedAnalysis) {
				assert.Equal(t, []schema.Dimension{schema.DimensionExposure}, p.Missing())
			},
		},
		{
			name: "wrong dimension prefix",
			text: "SEVERITY: E2\nEXPOSURE: E2\nCONTROLLABILITY: C3",
			check: func(t *testing.T, p *ParsedAnalysis) {
				assert.Equal(t, []schema.Dimension{schema.DimensionSeverity}, p.Missing())
			},
		},
		{
			name: "first value wins",
			text: "SEVERITY: S1\nSEVERITY: S3",
			check: func(t *testing.T, p *ParsedAnalysis) {
				require.NotNil(t, p.Severity)
				assert.Equal(t, schema.S1, *p.Severity)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseAnalysis(tt.text)
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestParseAnalysis_Lists(t *testing.T) {
	text := "HAZARDS: Unintended lane departure; Driver confusion\n* abc\n* Steering torque against driver input"

	p, err := ParseAnalysis(text)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Unintended lane departure",
		"Driver confusion",
		"Steering torque against driver input",
	}, p.Hazards)
	assert.Len(t, p.Missing(), 3)
}

func TestParseAnalysis_ListLimit(t *testing.T) {
	text := "FAILURES:\n"
	for i := 0; i < schema.ListMax+5; i++ {
		text += "- Failure mode entry\n"
	}

	p, err := ParseAnalysis(text)
	require.NoError(t, err)
	assert.Len(t, p.FailureModes, schema.ListMax)
}

func TestParseAnalysis_Unparsable(t *testing.T) {
	_, err := ParseAnalysis("I cannot help with that request.")
	require.Error(t, err)

	var unparsable *UnparsableError
	require.True(t, errors.As(err, &unparsable))
	assert.Contains(t, unparsable.Error(), "no analysis markers")
}

func TestTruncate_RuneBoundary(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"ääää", 3, "ä"},
		{"ääää", 4, "ää"},
		{"a€b", 3, "a"},
		{"€", 2, ""},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.max)
		assert.Equal(t, tt.want, got, "truncate(%q, %d)", tt.in, tt.max)
		assert.True(t, utf8.ValidString(got))
	}
}

func TestUnparsableError_MultiByteExcerpt(t *testing.T) {
	err := &UnparsableError{Response: strings.Repeat("é", 100)}
	msg := err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.Contains(t, msg, "...")
	assert.NotContains(t, msg, `\x`)
}
