package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suduli/AI-ASIL-Analyser/internal/llm"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

const fixturesDir = "../testdata/fixtures"

func TestExecuteRatingTask_FullResponse(t *testing.T) {
	gen, err := llm.LoadFixtureGenerator(fixturesDir, "brake_system_rating")
	require.NoError(t, err)

	out, err := ExecuteRatingTask(context.Background(), gen, RatingInput{Component: "Brake System"})
	require.NoError(t, err)

	a := out.Assessment
	assert.Equal(t, schema.MustRating(3, 4, 2), a.Rating)
	assert.Equal(t, schema.ASILC, a.ASIL)
	assert.Equal(t, schema.SourceAI, a.Source)
	assert.Empty(t, out.Filled)
	assert.Contains(t, a.Reasons.Severity, "fatal collisions")
	assert.Len(t, a.Hazards, 3)
	assert.Equal(t, "Hydraulic line rupture", a.FailureModes[0])
	assert.NotEmpty(t, out.Raw)
}

func TestExecuteRatingTask_PartialResponse(t *testing.T) {
	gen, err := llm.LoadFixtureGenerator(fixturesDir, "lane_keeping_rating_partial")
	require.NoError(t, err)

	out, err := ExecuteRatingTask(context.Background(), gen, RatingInput{Component: "Lane Keeping Assist"})
	require.NoError(t, err)

	a := out.Assessment
	// Exposure comes from the default keyword rule.
	assert.Equal(t, schema.MustRating(3, 3, 2), a.Rating)
	assert.Equal(t, schema.ASILB, a.ASIL)
	assert.Equal(t, schema.SourceAIHeuristic, a.Source)
	assert.Equal(t, []schema.Dimension{schema.DimensionExposure}, out.Filled)

	assert.Equal(t, schema.E3.Description(), a.Reasons.Exposure)
	assert.Equal(t, schema.C2.Description(), a.Reasons.Controllability)
	assert.Contains(t, a.Reasons.Severity, "run-off-road")

	assert.Equal(t, []string{"Unintended lane departure", "Steering torque against driver input"}, a.Hazards)
	assert.Equal(t, []string{"Hardware failure", "Software error", "Communication loss"}, a.FailureModes)
	assert.Equal(t, []string{"Implement redundancy", "Add monitoring", "Follow ISO 26262 guidelines"}, a.Recommendations)
}

func TestExecuteRatingTask_UnparsableUsesHeuristic(t *testing.T) {
	gen := &llm.MockGenerator{Response: "Sorry, I can't rate that."}

	out, err := ExecuteRatingTask(context.Background(), gen, RatingInput{Component: "Steering Column Lock"})
	require.NoError(t, err)

	assert.Equal(t, schema.SourceHeuristic, out.Assessment.Source)
	assert.Equal(t, schema.MustRating(3, 4, 2), out.Assessment.Rating)
	assert.Equal(t, schema.Dimensions(), out.Filled)
}

func TestExecuteRatingTask_GeneratorError(t *testing.T) {
	gen := &llm.MockGenerator{Err: llm.NewAuthError(401, "User not found.")}

	out, err := ExecuteRatingTask(context.Background(), gen, RatingInput{Component: "Brake System"})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, llm.IsType(err, llm.ErrorTypeAuth))
}

func TestExecuteRatingTask_PromptIncludesDetails(t *testing.T) {
	gen := &llm.MockGenerator{Response: "SEVERITY: S1\nEXPOSURE: E1\nCONTROLLABILITY: C1"}

	_, err := ExecuteRatingTask(context.Background(), gen, RatingInput{
		Component: "Seat Heater",
		Details:   "Resistive heating mat in the driver seat",
	})
	require.NoError(t, err)
	require.Equal(t, 1, gen.Calls())
	assert.Contains(t, gen.Prompts()[0], `"Seat Heater"`)
	assert.Contains(t, gen.Prompts()[0], "CONTEXT: Resistive heating mat")
}

func TestExecuteRatingTask_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &llm.MockGenerator{Delay: 1e9, Response: "SEVERITY: S1"}
	_, err := ExecuteRatingTask(ctx, gen, RatingInput{Component: "Brake System"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExecuteRatingTask_EmptyComponent(t *testing.T) {
	gen := &llm.MockGenerator{}
	_, err := ExecuteRatingTask(context.Background(), gen, RatingInput{})
	require.Error(t, err)
	assert.Zero(t, gen.Calls())
}
