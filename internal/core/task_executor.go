package core

import (
	"context"
	"sync"
	"time"

	"github.com/suduli/AI-ASIL-Analyser/internal/llm"
	"github.com/suduli/AI-ASIL-Analyser/internal/llm/tasks"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

// TaskExecutor interface abstracts LLM task execution for testability.
type TaskExecutor interface {
	ExecuteRating(ctx context.Context, input tasks.RatingInput) (*tasks.RatingOutput, error)
	ExecuteDescription(ctx context.Context, component string) (string, error)
	ExecuteAutomotiveCheck(ctx context.Context, component string) tasks.AutomotiveVerdict
}

// RealTaskExecutor runs the analysis tasks against a text generator.
type RealTaskExecutor struct {
	gen llm.TextGenerator
}

// NewRealTaskExecutor creates a TaskExecutor backed by gen.
func NewRealTaskExecutor(gen llm.TextGenerator) *RealTaskExecutor {
	return &RealTaskExecutor{gen: gen}
}

func (e *RealTaskExecutor) ExecuteRating(ctx context.Context, input tasks.RatingInput) (*tasks.RatingOutput, error) {
	return tasks.ExecuteRatingTask(ctx, e.gen, input)
}

func (e *RealTaskExecutor) ExecuteDescription(ctx context.Context, component string) (string, error) {
	return tasks.ExecuteDescriptionTask(ctx, e.gen, component)
}

func (e *RealTaskExecutor) ExecuteAutomotiveCheck(ctx context.Context, component string) tasks.AutomotiveVerdict {
	return tasks.CheckAutomotive(ctx, e.gen, component)
}

// MockTaskExecutor implements TaskExecutor for testing with canned responses.
// It is safe for concurrent use; read the call counters once the analysis
// under test has finished.
type MockTaskExecutor struct {
	RatingOutput      *tasks.RatingOutput
	DescriptionOutput string
	AutomotiveOutput  tasks.AutomotiveVerdict

	RatingError      error
	DescriptionError error

	// RatingDelay blocks ExecuteRating, honouring ctx cancellation.
	RatingDelay time.Duration
	// RatingFunc, when set, replaces the canned rating response.
	RatingFunc func(ctx context.Context, input tasks.RatingInput) (*tasks.RatingOutput, error)
	// AutomotiveFunc, when set, replaces the canned automotive verdict.
	AutomotiveFunc func(ctx context.Context, component string) tasks.AutomotiveVerdict

	mu               sync.Mutex
	RatingCalls      int
	DescriptionCalls int
	AutomotiveCalls  int
	RatingInputs     []tasks.RatingInput
}

// NewMockTaskExecutor creates a mock executor with default successful responses.
func NewMockTaskExecutor() *MockTaskExecutor {
	rating := schema.MustRating(3, 4, 3)
	return &MockTaskExecutor{
		RatingOutput: &tasks.RatingOutput{
			Assessment: schema.Assessment{
				Rating:          rating,
				ASIL:            schema.ASILD,
				Reasons:         schema.DefaultReasons(rating),
				Hazards:         []string{"Complete loss of function"},
				FailureModes:    []string{"Hardware failure"},
				Recommendations: []string{"Implement redundancy"},
				Source:          schema.SourceAI,
			},
		},
		DescriptionOutput: "Mock technical description",
		AutomotiveOutput:  tasks.AutomotiveVerdict{Automotive: true, Reason: "Mock vehicle component"},
	}
}

func (m *MockTaskExecutor) ExecuteRating(ctx context.Context, input tasks.RatingInput) (*tasks.RatingOutput, error) {
	m.mu.Lock()
	m.RatingCalls++
	m.RatingInputs = append(m.RatingInputs, input)
	m.mu.Unlock()

	if m.RatingDelay > 0 {
		timer := time.NewTimer(m.RatingDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if m.RatingFunc != nil {
		return m.RatingFunc(ctx, input)
	}
	if m.RatingError != nil {
		return nil, m.RatingError
	}
	out := *m.RatingOutput
	return &out, nil
}

func (m *MockTaskExecutor) ExecuteDescription(ctx context.Context, component string) (string, error) {
	m.mu.Lock()
	m.DescriptionCalls++
	m.mu.Unlock()

	if m.DescriptionError != nil {
		return "", m.DescriptionError
	}
	return m.DescriptionOutput, nil
}

func (m *MockTaskExecutor) ExecuteAutomotiveCheck(ctx context.Context, component string) tasks.AutomotiveVerdict {
	m.mu.Lock()
	m.AutomotiveCalls++
	m.mu.Unlock()

	if m.AutomotiveFunc != nil {
		return m.AutomotiveFunc(ctx, component)
	}
	return m.AutomotiveOutput
}
