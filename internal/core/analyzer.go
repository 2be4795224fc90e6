package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/internal/catalog"
	"github.com/suduli/AI-ASIL-Analyser/internal/llm/tasks"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

const (
	defaultCandidateTimeout = 30 * time.Second
	learnTimeout            = 10 * time.Second
)

var errNoGenerator = errors.New("no text generator configured")

// AnalysisRequest describes what to analyze. ComponentID wins over Query
// when both name a catalog component; input matching nothing in the
// catalog is analyzed manually under the Query name.
type AnalysisRequest struct {
	ComponentID string           `json:"component_id,omitempty"`
	Query       string           `json:"query,omitempty"`
	Category    string           `json:"category,omitempty"`
	Description string           `json:"description,omitempty"`
	Overrides   schema.Overrides `json:"overrides"`

	// SkipAutomotiveCheck accepts manual input without classifying it.
	SkipAutomotiveCheck bool `json:"skip_automotive_check,omitempty"`
}

// Analyzer runs analyses: a synchronous reference lookup in the catalog and
// an asynchronous candidate rating from the task executor.
type Analyzer struct {
	catalog   *catalog.Catalog
	executor  TaskExecutor
	logger    Logger
	timeout   time.Duration
	autoLearn bool
	now       func() time.Time
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithTimeout bounds the candidate path of each analysis.
func WithTimeout(d time.Duration) AnalyzerOption {
	return func(z *Analyzer) {
		if d > 0 {
			z.timeout = d
		}
	}
}

// WithAutoLearn saves AI-rated manual analyses to the catalog.
func WithAutoLearn(enabled bool) AnalyzerOption {
	return func(z *Analyzer) { z.autoLearn = enabled }
}

// WithLogger sets the logger.
func WithLogger(l Logger) AnalyzerOption {
	return func(z *Analyzer) { z.logger = l }
}

// NewAnalyzer creates an analyzer. A nil executor disables the generator:
// catalog analyses report the candidate unavailable and manual analyses
// fall back to the keyword heuristic.
func NewAnalyzer(cat *catalog.Catalog, executor TaskExecutor, opts ...AnalyzerOption) *Analyzer {
	z := &Analyzer{
		catalog:  cat,
		executor: executor,
		logger:   DefaultLogger(),
		timeout:  defaultCandidateTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

// Catalog returns the catalog analyses are reconciled against.
func (z *Analyzer) Catalog() *catalog.Catalog {
	return z.catalog
}

// Start begins an analysis and returns once the reference side is known.
// The candidate path keeps running after ctx ends, bounded by the
// analyzer timeout; call Cancel on the result to stop it.
func (z *Analyzer) Start(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	return z.start(ctx, req, "")
}

type candidateJob struct {
	name     string
	details  string
	describe bool
}

func (z *Analyzer) start(ctx context.Context, req AnalysisRequest, sessionID string) (*Analysis, error) {
	if err := req.Overrides.Validate(); err != nil {
		return nil, &ValidationError{Field: "overrides", Message: err.Error(), Err: err}
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = strings.TrimSpace(req.ComponentID)
	}
	if query == "" {
		return nil, &ValidationError{Field: "query", Message: "component id or name is required"}
	}

	id, err := schema.NewAnalysisID()
	if err != nil {
		return nil, fmt.Errorf("generate analysis id: %w", err)
	}

	report := &schema.AnalysisReport{
		ID:              id,
		SessionID:       sessionID,
		Query:           query,
		Overrides:       req.Overrides,
		CandidateStatus: schema.CandidatePending,
		StartedAt:       z.now().UTC(),
	}
	job := candidateJob{name: query}

	if rec, ok := z.resolve(req); ok {
		report.Mode = schema.ModeCatalog
		report.ComponentID = rec.ID
		report.ComponentName = rec.Name
		report.Category = rec.Category
		report.Description = rec.Description
		report.Reference = referenceAssessment(rec)
		job.name = rec.Name
		job.details = rec.Description
	} else {
		if len(query) > schema.ComponentNameMax {
			return nil, &ValidationError{
				Field:   "query",
				Message: fmt.Sprintf("component name must be at most %d characters", schema.ComponentNameMax),
			}
		}
		if !req.SkipAutomotiveCheck {
			if verdict := z.checkAutomotive(ctx, query); !verdict.Automotive {
				return nil, &NotAutomotiveError{Component: query, Reason: verdict.Reason}
			}
		}
		report.Mode = schema.ModeManual
		report.ComponentName = query
		report.Category = strings.TrimSpace(req.Category)
		report.Description = strings.TrimSpace(req.Description)
		job.details = report.Description
		job.describe = report.Description == ""
	}

	cmp := compareReport(report)
	report.Comparison = &cmp

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), z.timeout)
	a := &Analysis{
		id:     id,
		done:   make(chan struct{}),
		cancel: cancel,
		log:    z.logger.With("analysis_id", id),
		report: report,
	}

	a.log.Info("Analysis started",
		"mode", report.Mode,
		"component", report.ComponentName,
	)
	go z.run(cctx, a, job)
	return a, nil
}

func (z *Analyzer) resolve(req AnalysisRequest) (schema.ComponentRecord, bool) {
	if id := strings.TrimSpace(req.ComponentID); id != "" {
		rec, err := z.catalog.Get(id)
		if err == nil {
			return rec, true
		}
		z.logger.Debug("Component id not in catalog", "component_id", id, "error", err)
	}
	if q := strings.TrimSpace(req.Query); q != "" {
		if rec, err := z.catalog.FindByName(q); err == nil {
			return rec, true
		}
	}
	return schema.ComponentRecord{}, false
}

func (z *Analyzer) checkAutomotive(ctx context.Context, name string) tasks.AutomotiveVerdict {
	if z.executor == nil {
		return tasks.AutomotiveVerdict{
			Automotive: tasks.LooksAutomotive(name),
			Reason:     "Keyword check",
			Fallback:   true,
		}
	}
	cctx, cancel := context.WithTimeout(ctx, z.timeout)
	defer cancel()
	return z.executor.ExecuteAutomotiveCheck(cctx, name)
}

func (z *Analyzer) run(ctx context.Context, a *Analysis, job candidateJob) {
	defer close(a.done)
	defer a.cancel()

	out, desc, err := z.candidate(ctx, job)
	if z.finish(a, out, desc, err) {
		z.learn(a)
	}
}

// candidate runs the rating task, and the description task for manual
// input without a description, concurrently. Description failures are
// logged and ignored.
func (z *Analyzer) candidate(ctx context.Context, job candidateJob) (*tasks.RatingOutput, string, error) {
	if z.executor == nil {
		return nil, "", errNoGenerator
	}

	var (
		out  *tasks.RatingOutput
		desc string
	)
	g, gctx := errgroup.WithContext(ctx)
	if job.describe {
		g.Go(func() error {
			d, err := z.executor.ExecuteDescription(gctx, job.name)
			if err != nil {
				z.logger.Warn("Description task failed", "component", job.name, "error", err)
				return nil
			}
			desc = d
			return nil
		})
	}
	g.Go(func() error {
		o, err := z.executor.ExecuteRating(gctx, tasks.RatingInput{Component: job.name, Details: job.details})
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, desc, err
	}
	return out, desc, nil
}

// finish records the candidate outcome and reports whether the result
// should be learned.
func (z *Analyzer) finish(a *Analysis, out *tasks.RatingOutput, desc string, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := a.report
	completed := z.now().UTC()
	r.CompletedAt = &completed

	if a.supersededBy != nil {
		r.CandidateStatus = schema.CandidateUnavailable
		r.CandidateError = a.supersededBy.Error()
		a.recomputeLocked()
		a.log.Debug("Discarded superseded result")
		return false
	}

	if desc != "" && r.Description == "" {
		r.Description = desc
	}

	switch {
	case err == nil:
		cand := out.Assessment
		cand.ASIL = asil.Of(cand.Rating)
		r.Candidate = &cand
		r.CandidateStatus = schema.CandidateAvailable
	case r.Reference != nil:
		unavailable := &CandidateUnavailableError{Component: r.ComponentName, Err: err}
		r.CandidateStatus = schema.CandidateUnavailable
		r.CandidateError = unavailable.Error()
		a.log.Warn("Candidate unavailable, showing reference only", "error", err)
	default:
		unavailable := &CandidateUnavailableError{Component: r.ComponentName, Err: err}
		h := tasks.HeuristicAssessment(r.ComponentName)
		r.Candidate = &h
		r.CandidateStatus = schema.CandidateAvailable
		r.CandidateError = unavailable.Error()
		a.log.Warn("Candidate unavailable, using keyword heuristic", "error", err)
	}
	a.recomputeLocked()

	a.log.Info("Analysis finished",
		"candidate_status", r.CandidateStatus,
		"comparison_asil", r.Comparison.ASIL,
	)

	return z.autoLearn && r.Mode == schema.ModeManual && r.Candidate != nil &&
		(r.Candidate.Source == schema.SourceAI || r.Candidate.Source == schema.SourceAIHeuristic)
}

func (z *Analyzer) learn(a *Analysis) {
	ctx, cancel := context.WithTimeout(context.Background(), learnTimeout)
	defer cancel()

	rec, created, err := z.Save(ctx, a)
	if err != nil {
		a.log.Warn("Auto-learn failed", "error", err)
		return
	}
	if created {
		a.log.Info("Auto-learned component", "component_id", rec.ID)
	}
}

// Adopt makes the candidate rating, with overrides applied, the catalog
// reference of an analysed catalog component.
func (z *Analyzer) Adopt(ctx context.Context, a *Analysis) (schema.ComponentRecord, error) {
	rep := a.Report()
	if rep.Mode != schema.ModeCatalog {
		return schema.ComponentRecord{}, &ValidationError{Message: "only catalog components can adopt a rating; use save for manual analyses"}
	}
	if rep.CandidateStatus != schema.CandidateAvailable || rep.Candidate == nil {
		return schema.ComponentRecord{}, &ValidationError{Message: "no candidate rating to adopt"}
	}

	rating := rep.Overrides.Apply(rep.Candidate.Rating)
	rec, err := z.catalog.AdoptRating(ctx, rep.ComponentID, rating, rep.Candidate.Reasons, rep.ID)
	if err != nil {
		return schema.ComponentRecord{}, err
	}

	a.mu.Lock()
	a.report.Reference = referenceAssessment(rec)
	a.recomputeLocked()
	a.mu.Unlock()
	return rec, nil
}

// Save stores a finished analysis as a catalog component. It returns the
// existing record and false when an identical component is catalogued.
func (z *Analyzer) Save(ctx context.Context, a *Analysis) (schema.ComponentRecord, bool, error) {
	rep := a.Report()
	if !rep.Done() {
		return schema.ComponentRecord{}, false, &ValidationError{Message: "analysis is still running"}
	}

	rec, created, err := z.catalog.SaveAnalysis(ctx, rep)
	if err != nil {
		return schema.ComponentRecord{}, false, err
	}

	a.mu.Lock()
	a.report.SavedAs = rec.ID
	a.mu.Unlock()
	return rec, created, nil
}

func referenceAssessment(rec schema.ComponentRecord) *schema.Assessment {
	source := rec.Source
	if source == "" {
		source = schema.SourceSeed
	}
	return &schema.Assessment{
		Rating:          rec.Rating,
		ASIL:            asil.Of(rec.Rating),
		Reasons:         rec.Reasons.FillEmpty(rec.Rating),
		Hazards:         append([]string(nil), rec.Hazards...),
		FailureModes:    append([]string(nil), rec.FailureModes...),
		Recommendations: append([]string(nil), rec.Recommendations...),
		Source:          source,
	}
}
