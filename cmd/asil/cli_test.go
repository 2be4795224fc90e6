package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

// isolatedEnv points the catalog at a fresh directory with no generator.
func isolatedEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, key := range []string{"ASIL_API_KEY", "OPENROUTER_API_KEY", "ASIL_CATALOG_DSN", "ASIL_USE_GENKIT", "ASIL_AUTO_LEARN"} {
		t.Setenv(key, "")
	}
	t.Setenv("ASIL_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestHelpContainsAllCommands(t *testing.T) {
	var sb strings.Builder
	printUsage(&sb)
	help := sb.String()

	assert.Contains(t, help, "Usage:")
	for _, cmd := range commands {
		assert.Contains(t, help, cmd.name)
		assert.Contains(t, help, cmd.short)
	}
}

func TestLongHelpForKnownCommands(t *testing.T) {
	for _, cmd := range commands {
		t.Run(cmd.name, func(t *testing.T) {
			var sb strings.Builder
			printCommandHelp(&sb, cmd.name)
			assert.Contains(t, sb.String(), cmd.usage)
			assert.NotEmpty(t, cmd.long)
		})
	}

	var sb strings.Builder
	printCommandHelp(&sb, "no-such-command")
	assert.Contains(t, sb.String(), "unknown command")
}

func TestDispatch(t *testing.T) {
	out := captureStdout(t)

	require.NoError(t, dispatch(context.Background(), nil))
	assert.Contains(t, out.String(), "Commands:")

	out.Reset()
	require.NoError(t, dispatch(context.Background(), []string{"help", "matrix"}))
	assert.Contains(t, out.String(), "Usage: asil matrix")

	err := dispatch(context.Background(), []string{"frobnicate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "frobnicate"`)
}

func TestMatrix(t *testing.T) {
	out := captureStdout(t)
	require.NoError(t, dispatch(context.Background(), []string{"matrix"}))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 1+(schema.SeverityMax+1)*(schema.ExposureMax+1))
	assert.Equal(t, []string{"C0", "C1", "C2", "C3"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"S3", "E4", "A", "B", "C", "D"}, strings.Fields(lines[len(lines)-1]))
	assert.Equal(t, []string{"S0", "E0", "QM", "QM", "QM", "QM"}, strings.Fields(lines[1]))
}

func TestCatalogCommands(t *testing.T) {
	isolatedEnv(t)
	out := captureStdout(t)
	ctx := context.Background()

	require.NoError(t, dispatch(ctx, []string{"catalog"}))
	assert.Contains(t, out.String(), "brake_system")
	assert.Contains(t, out.String(), "components")

	out.Reset()
	require.NoError(t, dispatch(ctx, []string{"catalog", "show", "Brake System"}))
	assert.Contains(t, out.String(), "Brake System (brake_system)")
	assert.Contains(t, out.String(), "ASIL D")

	out.Reset()
	require.NoError(t, dispatch(ctx, []string{"catalog", "search", "zzz-nothing"}))
	assert.Contains(t, out.String(), "No matching components")

	out.Reset()
	require.NoError(t, dispatch(ctx, []string{"catalog", "stats"}))
	assert.Contains(t, out.String(), "Highest risk:")

	err := dispatch(ctx, []string{"catalog", "frobnicate"})
	assert.Error(t, err)
}

func TestAddAndDelete(t *testing.T) {
	isolatedEnv(t)
	out := captureStdout(t)
	ctx := context.Background()

	require.NoError(t, dispatch(ctx, []string{"add", "-name", "Rear Wiper Motor", "-category", "Body", "-s", "S1", "-e", "E3", "-c", "C1"}))
	assert.Contains(t, out.String(), "Added Rear Wiper Motor as rear_wiper_motor (S1/E3/C1, ASIL QM)")

	out.Reset()
	require.NoError(t, dispatch(ctx, []string{"catalog", "show", "rear_wiper_motor"}))
	assert.Contains(t, out.String(), "Category: Body")

	err := dispatch(ctx, []string{"add", "-name", "Rear Wiper Motor", "-s", "S1", "-e", "E9", "-c", "C1"})
	assert.ErrorIs(t, err, schema.ErrInvalidRatingRange)

	out.Reset()
	require.NoError(t, dispatch(ctx, []string{"delete", "rear_wiper_motor"}))
	assert.Contains(t, out.String(), "Removed Rear Wiper Motor")

	assert.Error(t, dispatch(ctx, []string{"delete", "rear_wiper_motor"}))
}

func TestCatalogExport(t *testing.T) {
	dir := isolatedEnv(t)
	captureStdout(t)

	path := filepath.Join(dir, "out", "catalog.csv")
	require.NoError(t, dispatch(context.Background(), []string{"catalog", "export", path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,name,category"))
}

func TestAnalyzeWithoutGenerator(t *testing.T) {
	dir := isolatedEnv(t)
	out := captureStdout(t)
	ctx := context.Background()

	require.NoError(t, dispatch(ctx, []string{"analyze", "brake_system"}))
	assert.Contains(t, out.String(), "# ASIL Analysis: Brake System")
	assert.Contains(t, out.String(), "no text generator configured")

	out.Reset()
	require.NoError(t, dispatch(ctx, []string{"analyze", "-o", dir, "-no-check", "Electric Window Lifter"}))
	assert.Contains(t, out.String(), "📄 Wrote "+dir)

	matches, err := filepath.Glob(filepath.Join(dir, "asil-electric_window_lifter-*.md"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	err = dispatch(ctx, []string{"analyze"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage:")
}

func TestCheckKeyWithoutKey(t *testing.T) {
	isolatedEnv(t)
	err := dispatch(context.Background(), []string{"check-key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key configured")
}

func typeText(m tea.Model, text string) tea.Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func pressEnter(m tea.Model) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestFormModel(t *testing.T) {
	var m tea.Model = newFormModel(formFields)
	answers := []string{"Electric Parking Brake", "Braking Systems", "", "S3", "E9"}

	for _, a := range answers {
		if a != "" {
			m = typeText(m, a)
		}
		m, _ = pressEnter(m)
	}
	form := m.(formModel)
	require.Error(t, form.err, "exposure E9 must be rejected")
	assert.Equal(t, 4, form.idx)
	assert.Contains(t, form.View(), "not a valid level")

	form = m.(formModel)
	form.inputs[form.idx].SetValue("E2")
	m, _ = pressEnter(form)
	m = typeText(m, "C3")
	m, cmd := pressEnter(m)
	require.NotNil(t, cmd)

	form = m.(formModel)
	assert.True(t, form.done)
	fields := form.values()
	assert.Equal(t, "Electric Parking Brake", fields.Name)
	assert.Equal(t, "E2", fields.Exposure)

	rec, err := fields.record()
	require.NoError(t, err)
	assert.Equal(t, schema.MustRating(3, 2, 3), rec.Rating)
}

func TestFormModel_Cancel(t *testing.T) {
	var m tea.Model = newFormModel(formFields)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.False(t, m.(formModel).done)
}
