package schema

import "time"

// ChangelogEvent is the interface for all catalog changelog event types.
type ChangelogEvent interface {
	EventType() string
	EventID() string
	Timestamp() time.Time
}

// ComponentAdded records a new catalog entry.
type ComponentAdded struct {
	EventID_   string          `json:"event_id" yaml:"event_id"`
	Component  ComponentRecord `json:"component" yaml:"component"`
	Timestamp_ time.Time       `json:"timestamp" yaml:"timestamp"`
}

func (e *ComponentAdded) EventType() string    { return "ComponentAdded" }
func (e *ComponentAdded) EventID() string      { return e.EventID_ }
func (e *ComponentAdded) Timestamp() time.Time { return e.Timestamp_ }

// ComponentUpdated records an edit, keeping both versions.
type ComponentUpdated struct {
	EventID_    string          `json:"event_id" yaml:"event_id"`
	ComponentID string          `json:"component_id" yaml:"component_id"`
	Before      ComponentRecord `json:"before" yaml:"before"`
	After       ComponentRecord `json:"after" yaml:"after"`
	Timestamp_  time.Time       `json:"timestamp" yaml:"timestamp"`
}

func (e *ComponentUpdated) EventType() string    { return "ComponentUpdated" }
func (e *ComponentUpdated) EventID() string      { return e.EventID_ }
func (e *ComponentUpdated) Timestamp() time.Time { return e.Timestamp_ }

// ComponentDeleted records a removal with a snapshot of the removed record.
type ComponentDeleted struct {
	EventID_    string          `json:"event_id" yaml:"event_id"`
	ComponentID string          `json:"component_id" yaml:"component_id"`
	Component   ComponentRecord `json:"component" yaml:"component"` // Snapshot
	Timestamp_  time.Time       `json:"timestamp" yaml:"timestamp"`
}

func (e *ComponentDeleted) EventType() string    { return "ComponentDeleted" }
func (e *ComponentDeleted) EventID() string      { return e.EventID_ }
func (e *ComponentDeleted) Timestamp() time.Time { return e.Timestamp_ }

// RatingAdopted records a candidate rating replacing a component's reference.
type RatingAdopted struct {
	EventID_    string    `json:"event_id" yaml:"event_id"`
	ComponentID string    `json:"component_id" yaml:"component_id"`
	AnalysisID  string    `json:"analysis_id,omitempty" yaml:"analysis_id,omitempty"`
	OldRating   Rating    `json:"old_rating" yaml:"old_rating"`
	NewRating   Rating    `json:"new_rating" yaml:"new_rating"`
	Reasons     Reasons   `json:"reasons" yaml:"reasons"`
	Timestamp_  time.Time `json:"timestamp" yaml:"timestamp"`
}

func (e *RatingAdopted) EventType() string    { return "RatingAdopted" }
func (e *RatingAdopted) EventID() string      { return e.EventID_ }
func (e *RatingAdopted) Timestamp() time.Time { return e.Timestamp_ }
