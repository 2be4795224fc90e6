// Package export renders analysis reports and the component catalog for
// use outside the tool.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

// Format selects an export encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
)

// ParseFormat accepts "json", "md" or "markdown".
func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown export format %q (expected json or md)", v)
}

// Write renders report in the given format.
func Write(w io.Writer, format Format, report *schema.AnalysisReport) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, report)
	case FormatMarkdown:
		return WriteMarkdown(w, report)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// Filename suggests a file name for an exported report.
func Filename(report *schema.AnalysisReport, format Format) string {
	return fmt.Sprintf("asil-%s-%s.%s",
		schema.ComponentKey(report.ComponentName),
		report.StartedAt.UTC().Format("20060102-150405"),
		format,
	)
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, report *schema.AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

var catalogHeader = []string{
	"id", "name", "category", "severity", "exposure", "controllability",
	"asil", "recorded_asil", "source", "description",
	"hazards", "failure_modes", "recommendations",
}

// WriteCatalogCSV writes one row per component. ASIL is computed from the
// rating; list fields are joined with "; ".
func WriteCatalogCSV(w io.Writer, records []schema.ComponentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(catalogHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.Name,
			rec.Category,
			rec.Rating.Severity.String(),
			rec.Rating.Exposure.String(),
			rec.Rating.Controllability.String(),
			string(asil.Of(rec.Rating)),
			string(rec.RecordedASIL),
			string(rec.Source),
			rec.Description,
			strings.Join(rec.Hazards, "; "),
			strings.Join(rec.FailureModes, "; "),
			strings.Join(rec.Recommendations, "; "),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
