package tasks

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/suduli/AI-ASIL-Analyser/internal/llm"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

// UnparsableError is returned when a response contains no usable marker.
type UnparsableError struct {
	Response string
}

func (e *UnparsableError) Error() string {
	excerpt := e.Response
	if len(excerpt) > 80 {
		excerpt = truncate(excerpt, 80) + "..."
	}
	return fmt.Sprintf("no analysis markers in response: %q", excerpt)
}

type section int

const (
	sectionNone section = iota
	sectionSeverity
	sectionSeverityDesc
	sectionExposure
	sectionExposureDesc
	sectionControllability
	sectionControllabilityDesc
	sectionHazards
	sectionFailures
	sectionRecommendations
)

var markers = []struct {
	text string
	sec  section
}{
	{llm.MarkerControllabilityDesc, sectionControllabilityDesc},
	{llm.MarkerSeverityDesc, sectionSeverityDesc},
	{llm.MarkerExposureDesc, sectionExposureDesc},
	{llm.MarkerRecommendations, sectionRecommendations},
	{llm.MarkerControllability, sectionControllability},
	{llm.MarkerSeverity, sectionSeverity},
	{llm.MarkerExposure, sectionExposure},
	{llm.MarkerHazards, sectionHazards},
	{llm.MarkerFailures, sectionFailures},
}

var (
	levelToken   = regexp.MustCompile(`(?i)\b([SEC]?)(\d)\b`)
	numberPrefix = regexp.MustCompile(`^\d+[.)]\s+`)
)

// ParseAnalysis extracts levels, reasons and lists from a response in the
// rating prompt's line-marker format. Levels that are absent or out of
// range are left nil.
func ParseAnalysis(text string) (*ParsedAnalysis, error) {
	p := &ParsedAnalysis{}
	current := sectionNone
	seen := false

	for _, raw := range strings.Split(text, "\n") {
		line := cleanLine(raw)
		if line == "" {
			continue
		}

		if sec, value, ok := matchMarker(line); ok {
			seen = true
			current = sec
			p.apply(sec, value, true)
			continue
		}
		p.apply(current, line, false)
	}

	if !seen {
		return nil, &UnparsableError{Response: text}
	}
	return p, nil
}

func (p *ParsedAnalysis) apply(sec section, value string, header bool) {
	switch sec {
	case sectionSeverity:
		if header && p.Severity == nil {
			if v, err := schema.ParseSeverity(levelIn(value, 'S')); err == nil {
				p.Severity = &v
			}
		}
	case sectionExposure:
		if header && p.Exposure == nil {
			if v, err := schema.ParseExposure(levelIn(value, 'E')); err == nil {
				p.Exposure = &v
			}
		}
	case sectionControllability:
		if header && p.Controllability == nil {
			if v, err := schema.ParseControllability(levelIn(value, 'C')); err == nil {
				p.Controllability = &v
			}
		}
	case sectionSeverityDesc:
		p.Reasons.Severity = appendText(p.Reasons.Severity, value)
	case sectionExposureDesc:
		p.Reasons.Exposure = appendText(p.Reasons.Exposure, value)
	case sectionControllabilityDesc:
		p.Reasons.Controllability = appendText(p.Reasons.Controllability, value)
	case sectionHazards:
		p.Hazards = appendItems(p.Hazards, value, header)
	case sectionFailures:
		p.FailureModes = appendItems(p.FailureModes, value, header)
	case sectionRecommendations:
		p.Recommendations = appendItems(p.Recommendations, value, header)
	}
}

func cleanLine(raw string) string {
	line := strings.TrimSpace(raw)
	line = strings.ReplaceAll(line, "**", "")
	line = strings.TrimLeft(line, "#>")
	return strings.TrimSpace(line)
}

func matchMarker(line string) (section, string, bool) {
	line = strings.TrimLeft(line, "-•* \t")
	for _, m := range markers {
		if len(line) >= len(m.text) && strings.EqualFold(line[:len(m.text)], m.text) {
			return m.sec, strings.TrimSpace(line[len(m.text):]), true
		}
	}
	return sectionNone, "", false
}

// levelIn returns the first level token in value, such as "S3" or "3".
// A token carrying another dimension's prefix is skipped.
func levelIn(value string, prefix byte) string {
	for _, m := range levelToken.FindAllStringSubmatch(value, -1) {
		if m[1] == "" || strings.EqualFold(m[1], string(prefix)) {
			return m[2]
		}
	}
	return ""
}

func appendText(existing, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return existing
	}
	if existing == "" {
		return truncate(value, schema.ReasonMax)
	}
	return truncate(existing+" "+value, schema.ReasonMax)
}

// appendItems adds list entries. Inline header text may hold several
// items separated by semicolons.
func appendItems(list []string, value string, header bool) []string {
	parts := []string{value}
	if header {
		parts = strings.Split(value, ";")
	}
	for _, part := range parts {
		item := strings.TrimSpace(part)
		item = strings.TrimLeft(item, "-•* \t")
		item = numberPrefix.ReplaceAllString(item, "")
		item = strings.TrimSpace(item)
		if len(item) <= 3 || len(list) >= schema.ListMax {
			continue
		}
		list = append(list, truncate(item, schema.ListItemMax))
	}
	return list
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}
