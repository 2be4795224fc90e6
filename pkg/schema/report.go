package schema

import "time"

// CandidateStatus tracks the asynchronous candidate path of an analysis.
type CandidateStatus string

const (
	CandidatePending     CandidateStatus = "pending"
	CandidateAvailable   CandidateStatus = "available"
	CandidateUnavailable CandidateStatus = "unavailable"
)

// AnalysisMode tells whether the reference came from the catalog.
type AnalysisMode string

const (
	ModeCatalog AnalysisMode = "catalog"
	ModeManual  AnalysisMode = "manual"
)

// Assessment is one side of an analysis: a rating with its supporting text.
type Assessment struct {
	Rating          Rating   `json:"rating" yaml:"rating"`
	ASIL            ASIL     `json:"asil" yaml:"asil"`
	Reasons         Reasons  `json:"reasons" yaml:"reasons"`
	Hazards         []string `json:"hazards,omitempty" yaml:"hazards,omitempty"`
	FailureModes    []string `json:"failure_modes,omitempty" yaml:"failure_modes,omitempty"`
	Recommendations []string `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	Source          Source   `json:"source" yaml:"source"`
}

// AnalysisReport is the complete, serialisable result of one analysis.
type AnalysisReport struct {
	ID              string            `json:"id"`
	SessionID       string            `json:"session_id,omitempty"`
	Query           string            `json:"query"`
	Mode            AnalysisMode      `json:"mode"`
	ComponentID     string            `json:"component_id,omitempty"`
	ComponentName   string            `json:"component_name"`
	Category        string            `json:"category,omitempty"`
	Description     string            `json:"description,omitempty"`
	Reference       *Assessment       `json:"reference,omitempty"`
	Candidate       *Assessment       `json:"candidate,omitempty"`
	CandidateStatus CandidateStatus   `json:"candidate_status"`
	CandidateError  string            `json:"candidate_error,omitempty"`
	Overrides       Overrides         `json:"overrides"`
	Comparison      *ComparisonResult `json:"comparison,omitempty"`
	SavedAs         string            `json:"saved_as,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// Primary returns the assessment shown as the headline result: the
// reference when there is one, otherwise the candidate.
func (r *AnalysisReport) Primary() *Assessment {
	if r.Reference != nil {
		return r.Reference
	}
	if r.CandidateStatus == CandidateAvailable {
		return r.Candidate
	}
	return nil
}

// Done reports whether the candidate path has settled.
func (r *AnalysisReport) Done() bool {
	return r.CandidateStatus != CandidatePending
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *AnalysisReport) Clone() *AnalysisReport {
	if r == nil {
		return nil
	}
	c := *r
	c.Reference = r.Reference.clone()
	c.Candidate = r.Candidate.clone()
	c.Overrides = r.Overrides.clone()
	if r.Comparison != nil {
		cmp := *r.Comparison
		cmp.Differences = append([]Difference(nil), r.Comparison.Differences...)
		if cmp.Reference != nil {
			ref := *cmp.Reference
			cmp.Reference = &ref
		}
		if cmp.Candidate != nil {
			cand := *cmp.Candidate
			cmp.Candidate = &cand
		}
		if cmp.Overrides != nil {
			ov := cmp.Overrides.clone()
			cmp.Overrides = &ov
		}
		c.Comparison = &cmp
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (a *Assessment) clone() *Assessment {
	if a == nil {
		return nil
	}
	c := *a
	c.Hazards = cloneStrings(a.Hazards)
	c.FailureModes = cloneStrings(a.FailureModes)
	c.Recommendations = cloneStrings(a.Recommendations)
	return &c
}

func (o Overrides) clone() Overrides {
	var c Overrides
	if o.Severity != nil {
		v := *o.Severity
		c.Severity = &v
	}
	if o.Exposure != nil {
		v := *o.Exposure
		c.Exposure = &v
	}
	if o.Controllability != nil {
		v := *o.Controllability
		c.Controllability = &v
	}
	return c
}
