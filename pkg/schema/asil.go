package schema

import (
	"fmt"
	"strings"
)

// ASIL is an Automotive Safety Integrity Level, ordered QM < A < B < C < D.
type ASIL string

const (
	ASILQM ASIL = "QM"
	ASILA  ASIL = "A"
	ASILB  ASIL = "B"
	ASILC  ASIL = "C"
	ASILD  ASIL = "D"
)

var asilRank = map[ASIL]int{
	ASILQM: 0,
	ASILA:  1,
	ASILB:  2,
	ASILC:  3,
	ASILD:  4,
}

// ASILs returns every level from least to most stringent.
func ASILs() []ASIL {
	return []ASIL{ASILQM, ASILA, ASILB, ASILC, ASILD}
}

// Rank returns 0 for QM through 4 for D, and -1 for an unknown value.
func (a ASIL) Rank() int {
	if r, ok := asilRank[a]; ok {
		return r
	}
	return -1
}

// Valid reports whether a is one of the five levels.
func (a ASIL) Valid() bool {
	return a.Rank() >= 0
}

// AtLeast reports whether a is as stringent as other.
func (a ASIL) AtLeast(other ASIL) bool {
	return a.Rank() >= other.Rank()
}

// Compare returns -1, 0 or 1 as a is less, equally or more stringent than other.
func (a ASIL) Compare(other ASIL) int {
	switch ra, rb := a.Rank(), other.Rank(); {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}

// Label returns the display form, e.g. "ASIL D" or "QM".
func (a ASIL) Label() string {
	if a == ASILQM || !a.Valid() {
		return string(a)
	}
	return "ASIL " + string(a)
}

// ParseASIL accepts "QM", "D", "asil d" and "ASIL-D".
func ParseASIL(v string) (ASIL, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	s = strings.TrimPrefix(s, "ASIL")
	s = strings.TrimLeft(s, " -_")
	a := ASIL(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown ASIL %q", v)
	}
	return a, nil
}

var asilExplanations = map[ASIL]string{
	ASILQM: "Quality Management - No specific safety requirements beyond quality management measures. Standard automotive development processes apply.",
	ASILA:  "ASIL A - Lowest integrity level. Basic safety requirements and processes needed. Requires systematic approach to development.",
	ASILB:  "ASIL B - Medium-low integrity level. Enhanced safety requirements and verification processes. Structured testing approaches required.",
	ASILC:  "ASIL C - Medium-high integrity level. Comprehensive safety measures and validation processes. Detailed hazard analysis required.",
	ASILD:  "ASIL D - Highest integrity level. Most stringent safety requirements and processes. Extensive verification and validation needed.",
}

// Explanation describes the development rigour the level demands.
func (a ASIL) Explanation() string {
	return asilExplanations[a]
}
