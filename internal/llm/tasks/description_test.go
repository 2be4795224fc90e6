package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suduli/AI-ASIL-Analyser/internal/llm"
)

func TestExecuteDescriptionTask_Fixture(t *testing.T) {
	gen, err := llm.LoadFixtureGenerator(fixturesDir, "brake_system_description")
	require.NoError(t, err)

	desc, err := ExecuteDescriptionTask(context.Background(), gen, "Brake System")
	require.NoError(t, err)
	assert.Contains(t, desc, "hydraulic circuit")
}

func TestExecuteDescriptionTask_Normalizes(t *testing.T) {
	gen := &llm.MockGenerator{Response: "1. **Purpose** line\n\n2) Integration line\n- Safety line\n4. Extra line"}

	desc, err := ExecuteDescriptionTask(context.Background(), gen, "Horn")
	require.NoError(t, err)
	assert.Equal(t, "Purpose line\nIntegration line\nSafety line", desc)
}

func TestExecuteDescriptionTask_Empty(t *testing.T) {
	gen := &llm.MockGenerator{Response: "  \n\n"}

	_, err := ExecuteDescriptionTask(context.Background(), gen, "Horn")
	require.Error(t, err)
	assert.True(t, llm.IsType(err, llm.ErrorTypeParse))
}
