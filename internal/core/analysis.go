package core

import (
	"context"
	"sync"

	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

// Analysis is one running or finished analysis. The reference side is
// available as soon as Start returns; the candidate side lands when Done
// is closed.
type Analysis struct {
	id     string
	done   chan struct{}
	cancel context.CancelFunc
	log    Logger

	mu           sync.Mutex
	report       *schema.AnalysisReport
	supersededBy *SupersededError
}

// ID returns the analysis id.
func (a *Analysis) ID() string {
	return a.id
}

// Report returns a snapshot of the current state.
func (a *Analysis) Report() *schema.AnalysisReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.report.Clone()
}

// Done is closed once the candidate path has settled.
func (a *Analysis) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the candidate path settles or ctx ends.
func (a *Analysis) Wait(ctx context.Context) (*schema.AnalysisReport, error) {
	select {
	case <-a.done:
		return a.Report(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel stops the candidate path. A cancelled analysis settles like a
// failed one.
func (a *Analysis) Cancel() {
	a.cancel()
}

// SetOverride overrides one dimension on both sides and recomputes the
// comparison.
func (a *Analysis) SetOverride(d schema.Dimension, level string) (*schema.AnalysisReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ov := a.report.Overrides
	if err := ov.Set(d, level); err != nil {
		return nil, &ValidationError{Field: string(d), Message: err.Error(), Err: err}
	}
	a.report.Overrides = ov
	a.recomputeLocked()
	return a.report.Clone(), nil
}

// SetOverrides replaces every override at once.
func (a *Analysis) SetOverrides(ov schema.Overrides) (*schema.AnalysisReport, error) {
	if err := ov.Validate(); err != nil {
		return nil, &ValidationError{Field: "overrides", Message: err.Error(), Err: err}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Overrides = ov
	a.recomputeLocked()
	return a.report.Clone(), nil
}

// ClearOverrides drops every manual override.
func (a *Analysis) ClearOverrides() *schema.AnalysisReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Overrides = schema.Overrides{}
	a.recomputeLocked()
	return a.report.Clone()
}

// supersede discards any result that has not landed yet.
func (a *Analysis) supersede(by string) {
	a.mu.Lock()
	if a.report.CandidateStatus == schema.CandidatePending {
		a.supersededBy = &SupersededError{AnalysisID: a.id, SupersededBy: by}
	}
	a.mu.Unlock()
	a.cancel()
}

func (a *Analysis) recomputeLocked() {
	cmp := compareReport(a.report)
	a.report.Comparison = &cmp
}

func compareReport(r *schema.AnalysisReport) schema.ComparisonResult {
	var ref, cand *schema.Rating
	if r.Reference != nil {
		v := r.Reference.Rating
		ref = &v
	}
	if r.CandidateStatus == schema.CandidateAvailable && r.Candidate != nil {
		v := r.Candidate.Rating
		cand = &v
	}
	return asil.Reconcile(ref, cand, r.Overrides)
}
