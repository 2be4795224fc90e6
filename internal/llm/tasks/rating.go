package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/internal/llm"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

// ExecuteRatingTask asks the generator for a hazard analysis and turns
// the response into a complete assessment.
//
// Generator errors are returned unchanged so the caller can decide the
// fallback policy. A response without markers becomes a heuristic
// assessment; a response missing some levels is completed from the
// heuristic and marked ai+heuristic.
func ExecuteRatingTask(ctx context.Context, gen llm.TextGenerator, input RatingInput) (*RatingOutput, error) {
	if input.Component == "" {
		return nil, errors.New("component name is required")
	}

	prompt := llm.BuildRatingPrompt(input.Component, input.Details)
	text, err := gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("rating generation failed: %w", err)
	}

	parsed, err := ParseAnalysis(text)
	if err != nil {
		var unparsable *UnparsableError
		if !errors.As(err, &unparsable) {
			return nil, err
		}
		slog.Warn("Rating response had no markers, using heuristic",
			"component", input.Component,
			"response_length", len(text),
		)
		return &RatingOutput{
			Assessment: HeuristicAssessment(input.Component),
			Filled:     schema.Dimensions(),
			Raw:        text,
		}, nil
	}

	return &RatingOutput{
		Assessment: assemble(input.Component, parsed),
		Filled:     parsed.Missing(),
		Raw:        text,
	}, nil
}

func assemble(component string, p *ParsedAnalysis) schema.Assessment {
	rating := HeuristicRating(component)
	source := schema.SourceAI

	if missing := p.Missing(); len(missing) > 0 {
		source = schema.SourceAIHeuristic
		slog.Debug("Filling missing dimensions from heuristic",
			"component", component,
			"missing", missing,
		)
	}
	if p.Severity != nil {
		rating.Severity = *p.Severity
	}
	if p.Exposure != nil {
		rating.Exposure = *p.Exposure
	}
	if p.Controllability != nil {
		rating.Controllability = *p.Controllability
	}

	return schema.Assessment{
		Rating:          rating,
		ASIL:            asil.Of(rating),
		Reasons:         p.Reasons.FillEmpty(rating),
		Hazards:         orDefault(p.Hazards, defaultHazards),
		FailureModes:    orDefault(p.FailureModes, defaultFailureModes),
		Recommendations: orDefault(p.Recommendations, defaultRecommendations),
		Source:          source,
	}
}

func orDefault(list, def []string) []string {
	if len(list) > 0 {
		return list
	}
	return cloneList(def)
}
