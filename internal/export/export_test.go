package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

func testReport() *schema.AnalysisReport {
	ref := schema.MustRating(3, 4, 3)
	cand := schema.MustRating(3, 4, 2)
	cmp := asil.Compare(ref, cand)
	return &schema.AnalysisReport{
		ID:            "ANL-abc123defg",
		Query:         "brake system",
		Mode:          schema.ModeCatalog,
		ComponentID:   "brake_system",
		ComponentName: "Brake System",
		Category:      "Braking Systems",
		Reference: &schema.Assessment{
			Rating:  ref,
			ASIL:    schema.ASILD,
			Reasons: schema.DefaultReasons(ref),
			Hazards: []string{"Loss of braking"},
			Source:  schema.SourceSeed,
		},
		Candidate: &schema.Assessment{
			Rating:       cand,
			ASIL:         schema.ASILC,
			Reasons:      schema.DefaultReasons(cand),
			FailureModes: []string{"Hydraulic line rupture"},
			Source:       schema.SourceAI,
		},
		CandidateStatus: schema.CandidateAvailable,
		Comparison:      &cmp,
		StartedAt:       time.Date(2025, 10, 2, 9, 14, 0, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Markdown")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	f, err = ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "asil-brake_system-20251002-091400.md", Filename(testReport(), FormatMarkdown))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testReport()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ANL-abc123defg", decoded["id"])
	assert.Equal(t, "available", decoded["candidate_status"])

	cmp := decoded["comparison"].(map[string]interface{})
	assert.Equal(t, "differ", cmp["asil"])
	assert.Equal(t, "match", cmp["severity"])
	assert.Equal(t, "D", cmp["reference_asil"])
}

func TestWriteMarkdown(t *testing.T) {
	report := testReport()
	sev := schema.S2
	report.Overrides.Severity = &sev

	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, report))
	out := buf.String()

	assert.Contains(t, out, "# ASIL Analysis: Brake System")
	assert.Contains(t, out, "Manual overrides: S2")
	assert.Contains(t, out, "| Controllability | C3 | C2 | differ |")
	assert.Contains(t, out, "| ASIL | D | C | differ |")
	assert.Contains(t, out, "## Reference")
	assert.Contains(t, out, "**ASIL D** (S3/E4/C3, source: seed)")
	assert.Contains(t, out, "### Failure modes\n\n- Hydraulic line rupture")
}

func TestWriteMarkdown_UnavailableCandidate(t *testing.T) {
	report := testReport()
	report.Candidate = nil
	report.CandidateStatus = schema.CandidateUnavailable
	report.CandidateError = "timed out"
	cmp := asil.Reconcile(&report.Reference.Rating, nil, schema.Overrides{})
	report.Comparison = &cmp

	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, report))
	out := buf.String()

	assert.Contains(t, out, "| Severity | S3 | n/a | n/a |")
	assert.Contains(t, out, "| ASIL | D | n/a | n/a |")
	assert.Contains(t, out, "Unavailable: timed out")
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, Format("xml"), testReport()))
}

func TestWriteCatalogCSV(t *testing.T) {
	records := []schema.ComponentRecord{
		{
			ID: "brake_system", Name: "Brake System", Category: "Braking Systems",
			Rating: schema.MustRating(3, 4, 3), RecordedASIL: schema.ASILD, Source: schema.SourceSeed,
			Hazards: []string{"Loss of braking", "Lock-up"},
		},
		{
			ID: "radio", Name: "Radio, AM/FM", Category: "Infotainment",
			Rating: schema.MustRating(0, 4, 1), Description: "Tuner \"classic\"",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCatalogCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, catalogHeader, rows[0])
	assert.Equal(t, []string{"S3", "E4", "C3", "D", "D"}, rows[1][3:8])
	assert.Equal(t, "Loss of braking; Lock-up", rows[1][10])
	assert.Equal(t, "Radio, AM/FM", rows[2][1])
	assert.Equal(t, "QM", rows[2][6])
	assert.Equal(t, "Tuner \"classic\"", rows[2][9])
}
