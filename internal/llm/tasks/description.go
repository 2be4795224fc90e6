package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suduli/AI-ASIL-Analyser/internal/llm"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

const descriptionLines = 3

// ExecuteDescriptionTask returns a short technical description of the
// component: at most three non-empty lines, numbering and bullets removed.
func ExecuteDescriptionTask(ctx context.Context, gen llm.TextGenerator, component string) (string, error) {
	if component == "" {
		return "", errors.New("component name is required")
	}

	text, err := gen.Generate(ctx, llm.BuildDescriptionPrompt(component))
	if err != nil {
		return "", fmt.Errorf("description generation failed: %w", err)
	}

	desc := normalizeDescription(text)
	if desc == "" {
		return "", llm.NewParseError(text, errors.New("empty description"))
	}
	return desc, nil
}

func normalizeDescription(text string) string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.ReplaceAll(raw, "**", ""))
		line = numberPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(strings.TrimLeft(line, "-•*"))
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == descriptionLines {
			break
		}
	}
	return truncate(strings.Join(lines, "\n"), schema.ComponentDescriptionMax)
}
