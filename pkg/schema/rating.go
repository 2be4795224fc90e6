package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Severity is the potential harm to persons if a hazard occurs (S0-S3).
type Severity int

// Exposure is the probability of the operational situation (E0-E4).
type Exposure int

// Controllability is the ability of the driver to avoid harm (C0-C3).
type Controllability int

const (
	S0 Severity = iota
	S1
	S2
	S3
)

const (
	E0 Exposure = iota
	E1
	E2
	E3
	E4
)

const (
	C0 Controllability = iota
	C1
	C2
	C3
)

// Level bounds per dimension.
const (
	SeverityMax        = 3
	ExposureMax        = 4
	ControllabilityMax = 3
)

// ErrInvalidRatingRange is matched by every RatingRangeError.
var ErrInvalidRatingRange = errors.New("invalid rating range")

// RatingRangeError reports a rating level outside its dimension's range.
type RatingRangeError struct {
	Dimension Dimension
	Value     string
	Max       int
}

func (e *RatingRangeError) Error() string {
	prefix := strings.ToUpper(string(e.Dimension)[:1])
	return fmt.Sprintf("%s: %q is not a valid level (expected %s0-%s%d)",
		e.Dimension, e.Value, prefix, prefix, e.Max)
}

// Is lets errors.Is match ErrInvalidRatingRange.
func (e *RatingRangeError) Is(target error) bool {
	return target == ErrInvalidRatingRange
}

func (s Severity) String() string        { return fmt.Sprintf("S%d", int(s)) }
func (e Exposure) String() string        { return fmt.Sprintf("E%d", int(e)) }
func (c Controllability) String() string { return fmt.Sprintf("C%d", int(c)) }

func (s Severity) Valid() bool        { return s >= S0 && s <= SeverityMax }
func (e Exposure) Valid() bool        { return e >= E0 && e <= ExposureMax }
func (c Controllability) Valid() bool { return c >= C0 && c <= ControllabilityMax }

// ParseSeverity accepts "S3", "s3" or "3".
func ParseSeverity(v string) (Severity, error) {
	n, err := parseLevel(v, 'S', SeverityMax)
	if err != nil {
		return 0, &RatingRangeError{Dimension: DimensionSeverity, Value: v, Max: SeverityMax}
	}
	return Severity(n), nil
}

// ParseExposure accepts "E4", "e4" or "4".
func ParseExposure(v string) (Exposure, error) {
	n, err := parseLevel(v, 'E', ExposureMax)
	if err != nil {
		return 0, &RatingRangeError{Dimension: DimensionExposure, Value: v, Max: ExposureMax}
	}
	return Exposure(n), nil
}

// ParseControllability accepts "C2", "c2" or "2".
func ParseControllability(v string) (Controllability, error) {
	n, err := parseLevel(v, 'C', ControllabilityMax)
	if err != nil {
		return 0, &RatingRangeError{Dimension: DimensionControllability, Value: v, Max: ControllabilityMax}
	}
	return Controllability(n), nil
}

func parseLevel(v string, prefix byte, max int) (int, error) {
	v = strings.TrimSpace(v)
	if len(v) > 0 && (v[0] == prefix || v[0] == prefix+('a'-'A')) {
		v = v[1:]
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > max {
		return 0, fmt.Errorf("level %d out of range", n)
	}
	return n, nil
}

// Rating is a (severity, exposure, controllability) triple.
type Rating struct {
	Severity        Severity        `json:"severity" yaml:"severity"`
	Exposure        Exposure        `json:"exposure" yaml:"exposure"`
	Controllability Controllability `json:"controllability" yaml:"controllability"`
}

// NewRating builds a Rating from raw levels, rejecting anything out of range.
func NewRating(s, e, c int) (Rating, error) {
	r := Rating{Severity: Severity(s), Exposure: Exposure(e), Controllability: Controllability(c)}
	if err := r.Validate(); err != nil {
		return Rating{}, err
	}
	return r, nil
}

// MustRating is NewRating for literals known to be valid.
func MustRating(s, e, c int) Rating {
	r, err := NewRating(s, e, c)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRating builds a Rating from level labels such as "S3", "E4", "C2".
func ParseRating(s, e, c string) (Rating, error) {
	sev, err := ParseSeverity(s)
	if err != nil {
		return Rating{}, err
	}
	exp, err := ParseExposure(e)
	if err != nil {
		return Rating{}, err
	}
	ctl, err := ParseControllability(c)
	if err != nil {
		return Rating{}, err
	}
	return Rating{Severity: sev, Exposure: exp, Controllability: ctl}, nil
}

// Validate returns a *RatingRangeError for the first out-of-range dimension.
func (r Rating) Validate() error {
	if !r.Severity.Valid() {
		return &RatingRangeError{Dimension: DimensionSeverity, Value: strconv.Itoa(int(r.Severity)), Max: SeverityMax}
	}
	if !r.Exposure.Valid() {
		return &RatingRangeError{Dimension: DimensionExposure, Value: strconv.Itoa(int(r.Exposure)), Max: ExposureMax}
	}
	if !r.Controllability.Valid() {
		return &RatingRangeError{Dimension: DimensionControllability, Value: strconv.Itoa(int(r.Controllability)), Max: ControllabilityMax}
	}
	return nil
}

// Level returns the label of one dimension, e.g. "E4".
func (r Rating) Level(d Dimension) string {
	switch d {
	case DimensionSeverity:
		return r.Severity.String()
	case DimensionExposure:
		return r.Exposure.String()
	case DimensionControllability:
		return r.Controllability.String()
	}
	return ""
}

func (r Rating) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Severity, r.Exposure, r.Controllability)
}
