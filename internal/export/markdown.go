package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

// WriteMarkdown writes a human-readable report.
func WriteMarkdown(w io.Writer, report *schema.AnalysisReport) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# ASIL Analysis: %s\n\n", report.ComponentName)
	fmt.Fprintf(&sb, "- Analysis: `%s`\n", report.ID)
	fmt.Fprintf(&sb, "- Mode: %s\n", report.Mode)
	if report.Category != "" {
		fmt.Fprintf(&sb, "- Category: %s\n", report.Category)
	}
	fmt.Fprintf(&sb, "- Started: %s\n", report.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	if report.SavedAs != "" {
		fmt.Fprintf(&sb, "- Saved as: `%s`\n", report.SavedAs)
	}
	if report.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", report.Description)
	}

	if cmp := report.Comparison; cmp != nil {
		writeComparison(&sb, report, cmp)
	}

	writeAssessment(&sb, "Reference", report.Reference)
	switch report.CandidateStatus {
	case schema.CandidateAvailable:
		writeAssessment(&sb, "Candidate", report.Candidate)
	case schema.CandidatePending:
		sb.WriteString("\n## Candidate\n\nPending.\n")
	case schema.CandidateUnavailable:
		sb.WriteString("\n## Candidate\n\nUnavailable")
		if report.CandidateError != "" {
			fmt.Fprintf(&sb, ": %s", report.CandidateError)
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeComparison(sb *strings.Builder, report *schema.AnalysisReport, cmp *schema.ComparisonResult) {
	sb.WriteString("\n## Comparison\n\n")
	if ov := report.Overrides; !ov.IsEmpty() {
		sb.WriteString("Manual overrides:")
		if ov.Severity != nil {
			fmt.Fprintf(sb, " %s", ov.Severity)
		}
		if ov.Exposure != nil {
			fmt.Fprintf(sb, " %s", ov.Exposure)
		}
		if ov.Controllability != nil {
			fmt.Fprintf(sb, " %s", ov.Controllability)
		}
		sb.WriteString("\n\n")
	}

	sb.WriteString("| | Reference | Candidate | Match |\n|---|---|---|---|\n")
	for _, d := range schema.Dimensions() {
		fmt.Fprintf(sb, "| %s | %s | %s | %s |\n",
			title(string(d)),
			level(cmp.Reference, d),
			level(cmp.Candidate, d),
			cmp.DimensionMatch(d),
		)
	}
	fmt.Fprintf(sb, "| ASIL | %s | %s | %s |\n",
		orNA(string(cmp.ReferenceASIL)),
		orNA(string(cmp.CandidateASIL)),
		cmp.ASIL,
	)
}

func writeAssessment(sb *strings.Builder, heading string, a *schema.Assessment) {
	if a == nil {
		return
	}
	fmt.Fprintf(sb, "\n## %s\n\n", heading)
	fmt.Fprintf(sb, "**ASIL %s** (%s, source: %s)\n\n", a.ASIL, a.Rating, a.Source)
	fmt.Fprintf(sb, "%s\n\n", a.ASIL.Explanation())
	for _, d := range schema.Dimensions() {
		fmt.Fprintf(sb, "- **%s %s**: %s\n", title(string(d)), a.Rating.Level(d), a.Reasons.For(d))
	}
	writeList(sb, "Hazards", a.Hazards)
	writeList(sb, "Failure modes", a.FailureModes)
	writeList(sb, "Recommendations", a.Recommendations)
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n### %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}

func level(r *schema.Rating, d schema.Dimension) string {
	if r == nil {
		return "n/a"
	}
	return r.Level(d)
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
