package core

import "fmt"

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// CandidateUnavailableError records why an analysis has no candidate
// rating. The reference result is still usable.
type CandidateUnavailableError struct {
	Component string
	Err       error
}

func (e *CandidateUnavailableError) Error() string {
	return fmt.Sprintf("candidate rating for %s unavailable: %v", e.Component, e.Err)
}

func (e *CandidateUnavailableError) Unwrap() error {
	return e.Err
}

// SupersededError marks the result of an analysis replaced by a newer one
// in the same session.
type SupersededError struct {
	AnalysisID   string
	SupersededBy string
}

func (e *SupersededError) Error() string {
	if e.SupersededBy != "" {
		return fmt.Sprintf("analysis %s superseded by %s", e.AnalysisID, e.SupersededBy)
	}
	return fmt.Sprintf("analysis %s superseded", e.AnalysisID)
}

// NotAutomotiveError rejects manual input that does not describe a
// vehicle component.
type NotAutomotiveError struct {
	Component string
	Reason    string
}

func (e *NotAutomotiveError) Error() string {
	return fmt.Sprintf("%q is not an automotive component: %s", e.Component, e.Reason)
}
