package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

const sqlitePrefix = "sqlite:"

type componentRow struct {
	ID                    string `gorm:"primaryKey;size:100"`
	Name                  string `gorm:"size:100;not null;index"`
	Category              string `gorm:"size:60;not null;index"`
	Description           string `gorm:"type:text"`
	Severity              int    `gorm:"not null"`
	Exposure              int    `gorm:"not null"`
	Controllability       int    `gorm:"not null"`
	ASIL                  string `gorm:"column:asil;size:2;index"`
	RecordedASIL          string `gorm:"column:recorded_asil;size:2"`
	SeverityReason        string `gorm:"type:text"`
	ExposureReason        string `gorm:"type:text"`
	ControllabilityReason string `gorm:"type:text"`
	Hazards               datatypes.JSON
	FailureModes          datatypes.JSON
	Recommendations       datatypes.JSON
	Source                string `gorm:"size:20"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (componentRow) TableName() string { return "asil_components" }

type eventRow struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"`
	EventID     string         `gorm:"size:20;uniqueIndex"`
	EventType   string         `gorm:"size:40;index"`
	ComponentID string         `gorm:"size:100;index"`
	Payload     datatypes.JSON `gorm:"not null"`
	OccurredAt  time.Time      `gorm:"index"`
}

func (eventRow) TableName() string { return "asil_component_events" }

// catalogMeta marks the catalog as initialised, so an emptied catalog is
// told apart from one never written.
type catalogMeta struct {
	ID        uint `gorm:"primaryKey"`
	Version   int
	UpdatedAt time.Time
}

func (catalogMeta) TableName() string { return "asil_catalog_meta" }

// SQLStore keeps the catalog in a relational database through gorm.
// Postgres and SQLite are supported.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQL connects to dsn and migrates the catalog tables. A dsn starting
// with "sqlite:" opens the SQLite file that follows; anything else is
// handed to the Postgres driver.
func OpenSQL(ctx context.Context, dsn string) (*SQLStore, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	const maxAttempts = 5
	var db *gorm.DB
	for i := 1; i <= maxAttempts; i++ {
		db, err = gorm.Open(dialector, cfg)
		if err == nil {
			break
		}
		slog.Warn("Failed to connect to catalog database", "attempt", i, "max_attempts", maxAttempts, "error", err)
		if i == maxAttempts {
			return nil, fmt.Errorf("connect to catalog database: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i) * 500 * time.Millisecond):
		}
	}

	if err := db.WithContext(ctx).AutoMigrate(&componentRow{}, &eventRow{}, &catalogMeta{}); err != nil {
		return nil, fmt.Errorf("migrate catalog tables: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	switch {
	case dsn == "":
		return nil, errors.New("empty catalog DSN")
	case strings.HasPrefix(dsn, sqlitePrefix):
		path := strings.TrimPrefix(dsn, sqlitePrefix)
		if path == "" {
			return nil, errors.New("sqlite DSN has no path")
		}
		return sqlite.Open(path), nil
	default:
		return postgres.Open(dsn), nil
	}
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load implements catalog.Store.
func (s *SQLStore) Load(ctx context.Context) ([]schema.ComponentRecord, bool, error) {
	db := s.db.WithContext(ctx)

	var meta catalogMeta
	if err := db.Limit(1).Find(&meta).Error; err != nil {
		return nil, false, fmt.Errorf("read catalog meta: %w", err)
	}
	if meta.ID == 0 {
		return nil, false, nil
	}

	var rows []componentRow
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return nil, false, fmt.Errorf("read components: %w", err)
	}

	records := make([]schema.ComponentRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, false, fmt.Errorf("decode component %s: %w", row.ID, err)
		}
		records = append(records, rec)
	}
	return records, true, nil
}

// Save implements catalog.Store. The component table is rewritten and the
// events appended in one transaction.
func (s *SQLStore) Save(ctx context.Context, records []schema.ComponentRecord, events []schema.ChangelogEvent) error {
	rows := make([]componentRow, 0, len(records))
	for _, rec := range records {
		row, err := newComponentRow(rec)
		if err != nil {
			return fmt.Errorf("encode component %s: %w", rec.ID, err)
		}
		rows = append(rows, row)
	}

	evRows := make([]eventRow, 0, len(events))
	for _, event := range events {
		row, err := newEventRow(event)
		if err != nil {
			return err
		}
		evRows = append(evRows, row)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&componentRow{}).Error; err != nil {
			return fmt.Errorf("clear components: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("insert components: %w", err)
			}
		}
		if len(evRows) > 0 {
			if err := tx.Create(&evRows).Error; err != nil {
				return fmt.Errorf("insert events: %w", err)
			}
		}
		meta := catalogMeta{ID: 1, Version: formatVersion, UpdatedAt: time.Now().UTC()}
		if err := tx.Save(&meta).Error; err != nil {
			return fmt.Errorf("update catalog meta: %w", err)
		}
		return nil
	})
}

// ReadChangelog returns every stored event in insertion order.
func (s *SQLStore) ReadChangelog(ctx context.Context) ([]schema.ChangelogEvent, error) {
	var rows []eventRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	events := make([]schema.ChangelogEvent, 0, len(rows))
	for _, row := range rows {
		event, err := row.event()
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", row.EventID, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func newComponentRow(rec schema.ComponentRecord) (componentRow, error) {
	hazards, err := json.Marshal(nonNil(rec.Hazards))
	if err != nil {
		return componentRow{}, err
	}
	failureModes, err := json.Marshal(nonNil(rec.FailureModes))
	if err != nil {
		return componentRow{}, err
	}
	recommendations, err := json.Marshal(nonNil(rec.Recommendations))
	if err != nil {
		return componentRow{}, err
	}

	return componentRow{
		ID:                    rec.ID,
		Name:                  rec.Name,
		Category:              rec.Category,
		Description:           rec.Description,
		Severity:              int(rec.Rating.Severity),
		Exposure:              int(rec.Rating.Exposure),
		Controllability:       int(rec.Rating.Controllability),
		ASIL:                  string(asil.Of(rec.Rating)),
		RecordedASIL:          string(rec.RecordedASIL),
		SeverityReason:        rec.Reasons.Severity,
		ExposureReason:        rec.Reasons.Exposure,
		ControllabilityReason: rec.Reasons.Controllability,
		Hazards:               datatypes.JSON(hazards),
		FailureModes:          datatypes.JSON(failureModes),
		Recommendations:       datatypes.JSON(recommendations),
		Source:                string(rec.Source),
		CreatedAt:             rec.CreatedAt,
		UpdatedAt:             rec.UpdatedAt,
	}, nil
}

func (row componentRow) record() (schema.ComponentRecord, error) {
	rec := schema.ComponentRecord{
		ID:          row.ID,
		Name:        row.Name,
		Category:    row.Category,
		Description: row.Description,
		Rating: schema.Rating{
			Severity:        schema.Severity(row.Severity),
			Exposure:        schema.Exposure(row.Exposure),
			Controllability: schema.Controllability(row.Controllability),
		},
		RecordedASIL: schema.ASIL(row.RecordedASIL),
		Reasons: schema.Reasons{
			Severity:        row.SeverityReason,
			Exposure:        row.ExposureReason,
			Controllability: row.ControllabilityReason,
		},
		Source:    schema.Source(row.Source),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	var err error
	if rec.Hazards, err = decodeList(row.Hazards); err != nil {
		return rec, err
	}
	if rec.FailureModes, err = decodeList(row.FailureModes); err != nil {
		return rec, err
	}
	if rec.Recommendations, err = decodeList(row.Recommendations); err != nil {
		return rec, err
	}
	return rec, nil
}

func newEventRow(event schema.ChangelogEvent) (eventRow, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return eventRow{}, fmt.Errorf("encode event %s: %w", event.EventID(), err)
	}

	var componentID string
	switch e := event.(type) {
	case *schema.ComponentAdded:
		componentID = e.Component.ID
	case *schema.ComponentUpdated:
		componentID = e.ComponentID
	case *schema.ComponentDeleted:
		componentID = e.ComponentID
	case *schema.RatingAdopted:
		componentID = e.ComponentID
	default:
		return eventRow{}, fmt.Errorf("unknown event type: %T", event)
	}

	return eventRow{
		EventID:     event.EventID(),
		EventType:   event.EventType(),
		ComponentID: componentID,
		Payload:     datatypes.JSON(payload),
		OccurredAt:  event.Timestamp(),
	}, nil
}

func (row eventRow) event() (schema.ChangelogEvent, error) {
	var event schema.ChangelogEvent
	switch row.EventType {
	case "ComponentAdded":
		event = &schema.ComponentAdded{}
	case "ComponentUpdated":
		event = &schema.ComponentUpdated{}
	case "ComponentDeleted":
		event = &schema.ComponentDeleted{}
	case "RatingAdopted":
		event = &schema.RatingAdopted{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", row.EventType)
	}
	if err := json.Unmarshal(row.Payload, event); err != nil {
		return nil, err
	}
	return event, nil
}

func decodeList(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
