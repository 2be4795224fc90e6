package repository

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

// ReplayEvents applies changelog events to records in timestamp order and
// returns the resulting record set ordered by id. records is not modified.
func ReplayEvents(records []schema.ComponentRecord, events []schema.ChangelogEvent) ([]schema.ComponentRecord, error) {
	state := make(map[string]schema.ComponentRecord, len(records))
	for _, rec := range records {
		state[rec.ID] = rec.Clone()
	}

	sortedEvents := make([]schema.ChangelogEvent, len(events))
	copy(sortedEvents, events)
	sort.SliceStable(sortedEvents, func(i, j int) bool {
		return sortedEvents[i].Timestamp().Before(sortedEvents[j].Timestamp())
	})

	for _, event := range sortedEvents {
		if err := applyEvent(state, event); err != nil {
			return nil, fmt.Errorf("apply event %s: %w", event.EventID(), err)
		}
	}

	out := make([]schema.ComponentRecord, 0, len(state))
	for _, rec := range state {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func applyEvent(state map[string]schema.ComponentRecord, event schema.ChangelogEvent) error {
	switch e := event.(type) {
	case *schema.ComponentAdded:
		if _, ok := state[e.Component.ID]; ok {
			return fmt.Errorf("component %s already exists", e.Component.ID)
		}
		state[e.Component.ID] = e.Component.Clone()

	case *schema.ComponentUpdated:
		if _, ok := state[e.ComponentID]; !ok {
			return fmt.Errorf("component %s not found", e.ComponentID)
		}
		state[e.ComponentID] = e.After.Clone()

	case *schema.ComponentDeleted:
		if _, ok := state[e.ComponentID]; !ok {
			return fmt.Errorf("component %s not found", e.ComponentID)
		}
		delete(state, e.ComponentID)

	case *schema.RatingAdopted:
		rec, ok := state[e.ComponentID]
		if !ok {
			return fmt.Errorf("component %s not found", e.ComponentID)
		}
		rec.Rating = e.NewRating
		rec.Reasons = e.Reasons
		rec.RecordedASIL = asil.Of(e.NewRating)
		rec.UpdatedAt = e.Timestamp_
		state[e.ComponentID] = rec

	default:
		return fmt.Errorf("unknown event type: %T", event)
	}
	return nil
}

// ReplayEventsFromMaps converts raw changelog entries to typed events and
// replays them over records.
func ReplayEventsFromMaps(records []schema.ComponentRecord, eventMaps []map[string]interface{}) ([]schema.ComponentRecord, error) {
	events, err := eventsFromMaps(eventMaps)
	if err != nil {
		return nil, err
	}
	return ReplayEvents(records, events)
}

func eventsFromMaps(eventMaps []map[string]interface{}) ([]schema.ChangelogEvent, error) {
	events := make([]schema.ChangelogEvent, 0, len(eventMaps))
	for _, eventMap := range eventMaps {
		event, err := mapToEvent(eventMap)
		if err != nil {
			return nil, fmt.Errorf("convert event map: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

// eventToMap flattens an event into the changelog entry layout: the common
// event_type, event_id and timestamp keys plus the type's own fields.
func eventToMap(event schema.ChangelogEvent) (map[string]interface{}, error) {
	eventMap := make(map[string]interface{})
	eventMap["event_type"] = event.EventType()
	eventMap["event_id"] = event.EventID()
	eventMap["timestamp"] = event.Timestamp()

	switch e := event.(type) {
	case *schema.ComponentAdded:
		eventMap["component"] = e.Component
	case *schema.ComponentUpdated:
		eventMap["component_id"] = e.ComponentID
		eventMap["before"] = e.Before
		eventMap["after"] = e.After
	case *schema.ComponentDeleted:
		eventMap["component_id"] = e.ComponentID
		eventMap["component"] = e.Component
	case *schema.RatingAdopted:
		eventMap["component_id"] = e.ComponentID
		if e.AnalysisID != "" {
			eventMap["analysis_id"] = e.AnalysisID
		}
		eventMap["old_rating"] = e.OldRating
		eventMap["new_rating"] = e.NewRating
		eventMap["reasons"] = e.Reasons
	default:
		return nil, fmt.Errorf("unknown event type: %T", event)
	}

	return eventMap, nil
}

// mapToEvent converts a changelog entry back to a typed ChangelogEvent.
func mapToEvent(eventMap map[string]interface{}) (schema.ChangelogEvent, error) {
	eventType, ok := eventMap["event_type"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid event_type")
	}

	eventID, _ := eventMap["event_id"].(string)
	timestamp, _ := eventMap["timestamp"].(time.Time)
	componentID, _ := eventMap["component_id"].(string)

	switch eventType {
	case "ComponentAdded":
		var comp schema.ComponentRecord
		if err := decodeField(eventMap["component"], &comp); err != nil {
			return nil, fmt.Errorf("parse component: %w", err)
		}
		return &schema.ComponentAdded{
			EventID_:   eventID,
			Component:  comp,
			Timestamp_: timestamp,
		}, nil

	case "ComponentUpdated":
		var before, after schema.ComponentRecord
		if err := decodeField(eventMap["before"], &before); err != nil {
			return nil, fmt.Errorf("parse before: %w", err)
		}
		if err := decodeField(eventMap["after"], &after); err != nil {
			return nil, fmt.Errorf("parse after: %w", err)
		}
		return &schema.ComponentUpdated{
			EventID_:    eventID,
			ComponentID: componentID,
			Before:      before,
			After:       after,
			Timestamp_:  timestamp,
		}, nil

	case "ComponentDeleted":
		var comp schema.ComponentRecord
		if err := decodeField(eventMap["component"], &comp); err != nil {
			return nil, fmt.Errorf("parse component snapshot: %w", err)
		}
		return &schema.ComponentDeleted{
			EventID_:    eventID,
			ComponentID: componentID,
			Component:   comp,
			Timestamp_:  timestamp,
		}, nil

	case "RatingAdopted":
		analysisID, _ := eventMap["analysis_id"].(string)
		var oldRating, newRating schema.Rating
		if err := decodeField(eventMap["old_rating"], &oldRating); err != nil {
			return nil, fmt.Errorf("parse old_rating: %w", err)
		}
		if err := decodeField(eventMap["new_rating"], &newRating); err != nil {
			return nil, fmt.Errorf("parse new_rating: %w", err)
		}
		var reasons schema.Reasons
		if raw, ok := eventMap["reasons"]; ok {
			if err := decodeField(raw, &reasons); err != nil {
				return nil, fmt.Errorf("parse reasons: %w", err)
			}
		}
		return &schema.RatingAdopted{
			EventID_:    eventID,
			ComponentID: componentID,
			AnalysisID:  analysisID,
			OldRating:   oldRating,
			NewRating:   newRating,
			Reasons:     reasons,
			Timestamp_:  timestamp,
		}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// decodeField decodes a generic YAML value into a typed struct by
// re-encoding it.
func decodeField(data interface{}, out interface{}) error {
	if _, ok := data.(map[string]interface{}); !ok {
		return fmt.Errorf("expected a map, got %T", data)
	}
	raw, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}
