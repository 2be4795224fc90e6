package schema

import "time"

// Reasons holds the justification text for each rating dimension.
type Reasons struct {
	Severity        string `json:"severity" yaml:"severity"`
	Exposure        string `json:"exposure" yaml:"exposure"`
	Controllability string `json:"controllability" yaml:"controllability"`
}

// For returns the reason for one dimension.
func (r Reasons) For(d Dimension) string {
	switch d {
	case DimensionSeverity:
		return r.Severity
	case DimensionExposure:
		return r.Exposure
	case DimensionControllability:
		return r.Controllability
	}
	return ""
}

// FillEmpty replaces blank reasons with the level descriptions of rating.
func (r Reasons) FillEmpty(rating Rating) Reasons {
	d := DefaultReasons(rating)
	if r.Severity == "" {
		r.Severity = d.Severity
	}
	if r.Exposure == "" {
		r.Exposure = d.Exposure
	}
	if r.Controllability == "" {
		r.Controllability = d.Controllability
	}
	return r
}

// ComponentRecord is one catalog entry. Only Rating takes part in ASIL
// computation; everything else is carried for display.
type ComponentRecord struct {
	ID              string    `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Category        string    `json:"category" yaml:"category"`
	Description     string    `json:"description,omitempty" yaml:"description,omitempty"`
	Rating          Rating    `json:"rating" yaml:"rating"`
	RecordedASIL    ASIL      `json:"recorded_asil,omitempty" yaml:"recorded_asil,omitempty"`
	Reasons         Reasons   `json:"reasons" yaml:"reasons"`
	Hazards         []string  `json:"hazards,omitempty" yaml:"hazards,omitempty"`
	FailureModes    []string  `json:"failure_modes,omitempty" yaml:"failure_modes,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	Source          Source    `json:"source,omitempty" yaml:"source,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Clone returns a deep copy of the record.
func (c ComponentRecord) Clone() ComponentRecord {
	c.Hazards = cloneStrings(c.Hazards)
	c.FailureModes = cloneStrings(c.FailureModes)
	c.Recommendations = cloneStrings(c.Recommendations)
	return c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
