package schema

import "fmt"

// Match is the outcome of comparing one field across reference and candidate.
type Match string

const (
	MatchYes           Match = "match"
	MatchNo            Match = "differ"
	MatchNotApplicable Match = "n/a"
)

// Difference is a dimension on which reference and candidate disagree.
type Difference struct {
	Dimension Dimension `json:"dimension"`
	Reference string    `json:"reference"`
	Candidate string    `json:"candidate"`
}

// ComparisonResult is the reconciliation of a reference and a candidate
// rating. It is recomputed for every analysis and never persisted.
type ComparisonResult struct {
	Reference       *Rating      `json:"reference,omitempty"`
	Candidate       *Rating      `json:"candidate,omitempty"`
	ReferenceASIL   ASIL         `json:"reference_asil,omitempty"`
	CandidateASIL   ASIL         `json:"candidate_asil,omitempty"`
	Severity        Match        `json:"severity"`
	Exposure        Match        `json:"exposure"`
	Controllability Match        `json:"controllability"`
	ASIL            Match        `json:"asil"`
	Differences     []Difference `json:"differences,omitempty"`
	Overrides       *Overrides   `json:"overrides,omitempty"`
}

// DimensionMatch returns the match state of one dimension.
func (r ComparisonResult) DimensionMatch(d Dimension) Match {
	switch d {
	case DimensionSeverity:
		return r.Severity
	case DimensionExposure:
		return r.Exposure
	case DimensionControllability:
		return r.Controllability
	}
	return MatchNotApplicable
}

// Mismatched lists the dimensions reported as differing.
func (r ComparisonResult) Mismatched() []Dimension {
	var out []Dimension
	for _, d := range Dimensions() {
		if r.DimensionMatch(d) == MatchNo {
			out = append(out, d)
		}
	}
	return out
}

// FullMatch reports agreement on every dimension and on the ASIL.
func (r ComparisonResult) FullMatch() bool {
	return r.Severity == MatchYes && r.Exposure == MatchYes &&
		r.Controllability == MatchYes && r.ASIL == MatchYes
}

// Comparable reports whether both sides were present.
func (r ComparisonResult) Comparable() bool {
	return r.ASIL != MatchNotApplicable
}

// Overrides are operator-chosen levels applied to both sides of a comparison.
// A nil field leaves that dimension untouched.
type Overrides struct {
	Severity        *Severity        `json:"severity,omitempty" yaml:"severity,omitempty"`
	Exposure        *Exposure        `json:"exposure,omitempty" yaml:"exposure,omitempty"`
	Controllability *Controllability `json:"controllability,omitempty" yaml:"controllability,omitempty"`
}

// IsEmpty reports whether no dimension is overridden.
func (o Overrides) IsEmpty() bool {
	return o.Severity == nil && o.Exposure == nil && o.Controllability == nil
}

// Validate checks every set override is within range.
func (o Overrides) Validate() error {
	r := Rating{}
	if o.Severity != nil {
		r.Severity = *o.Severity
	}
	if o.Exposure != nil {
		r.Exposure = *o.Exposure
	}
	if o.Controllability != nil {
		r.Controllability = *o.Controllability
	}
	return r.Validate()
}

// Apply returns r with the overridden dimensions replaced.
func (o Overrides) Apply(r Rating) Rating {
	if o.Severity != nil {
		r.Severity = *o.Severity
	}
	if o.Exposure != nil {
		r.Exposure = *o.Exposure
	}
	if o.Controllability != nil {
		r.Controllability = *o.Controllability
	}
	return r
}

// Set overrides one dimension from a level label such as "S3".
func (o *Overrides) Set(d Dimension, level string) error {
	switch d {
	case DimensionSeverity:
		v, err := ParseSeverity(level)
		if err != nil {
			return err
		}
		o.Severity = &v
	case DimensionExposure:
		v, err := ParseExposure(level)
		if err != nil {
			return err
		}
		o.Exposure = &v
	case DimensionControllability:
		v, err := ParseControllability(level)
		if err != nil {
			return err
		}
		o.Controllability = &v
	default:
		return fmt.Errorf("unknown dimension %q", d)
	}
	return nil
}
