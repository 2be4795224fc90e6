package tasks

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/suduli/AI-ASIL-Analyser/internal/llm"
)

const automotiveRetries = 2

// CheckAutomotive asks whether a free-text component belongs to a vehicle.
// When the generator fails or keeps returning invalid JSON, the keyword
// list decides and the verdict is marked as a fallback.
func CheckAutomotive(ctx context.Context, gen llm.TextGenerator, component string) AutomotiveVerdict {
	verdict, err := llm.GenerateStructured[AutomotiveVerdict](
		ctx, gen, llm.BuildAutomotivePrompt(component), automotiveRetries,
		func(v *AutomotiveVerdict) error {
			if strings.TrimSpace(v.Reason) == "" {
				return errors.New("reason must not be empty")
			}
			return nil
		},
	)
	if err == nil {
		verdict.Fallback = false
		return *verdict
	}

	slog.Warn("Automotive check failed, using keyword fallback",
		"component", component,
		"error", err,
	)
	return keywordVerdict(component)
}

func keywordVerdict(component string) AutomotiveVerdict {
	if LooksAutomotive(component) {
		return AutomotiveVerdict{
			Automotive: true,
			Reason:     "Name contains an automotive keyword",
			Fallback:   true,
		}
	}
	return AutomotiveVerdict{
		Automotive: false,
		Reason:     "Name contains no automotive keyword",
		Fallback:   true,
	}
}
