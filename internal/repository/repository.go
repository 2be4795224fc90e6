package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

const (
	catalogDir    = "catalog"
	catalogFile   = "catalog/catalog.yaml"
	changelogFile = "catalog/changelog.yaml"

	formatVersion = 1

	lockRetryInterval = 50 * time.Millisecond
)

// catalogDocument is the on-disk layout of catalog.yaml.
type catalogDocument struct {
	Version    int                      `yaml:"version"`
	UpdatedAt  time.Time                `yaml:"updated_at"`
	Components []schema.ComponentRecord `yaml:"components"`
}

// changelogDocument is the on-disk layout of changelog.yaml.
type changelogDocument struct {
	Version int                      `yaml:"version"`
	Events  []map[string]interface{} `yaml:"events"`
}

// Repository stores the catalog as YAML files under a data directory:
//
//	<dir>/catalog/catalog.yaml    current records
//	<dir>/catalog/changelog.yaml  append-only event log
//
// Every Save rewrites both files in one copy-on-write transaction.
type Repository struct {
	baseDir  string
	lock     *FileLock
	baseline func() ([]schema.ComponentRecord, error)
}

// Option configures a Repository.
type Option func(*Repository)

// WithLock guards writes with a flock next to the data directory, so a CLI
// and a server sharing a directory do not interleave transactions.
func WithLock(owner string) Option {
	return func(r *Repository) {
		r.lock = NewFileLock(r.baseDir+".lock", owner)
	}
}

// WithBaseline sets the records the changelog is replayed over when
// catalog.yaml is missing.
func WithBaseline(fn func() ([]schema.ComponentRecord, error)) Option {
	return func(r *Repository) {
		r.baseline = fn
	}
}

// NewRepository creates a new repository rooted at baseDir.
func NewRepository(baseDir string, opts ...Option) *Repository {
	r := &Repository{baseDir: baseDir}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BaseDir returns the data directory.
func (r *Repository) BaseDir() string {
	return r.baseDir
}

// Load reads catalog.yaml. When only the changelog survives, the records
// are rebuilt by replaying it over the baseline. found is false when
// neither file exists.
func (r *Repository) Load(ctx context.Context) ([]schema.ComponentRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(filepath.Join(r.baseDir, catalogFile))
	if err == nil {
		var doc catalogDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, false, fmt.Errorf("parse catalog: %w", err)
		}
		if doc.Version > formatVersion {
			return nil, false, fmt.Errorf("catalog format version %d is newer than supported version %d", doc.Version, formatVersion)
		}
		if doc.Components == nil {
			doc.Components = []schema.ComponentRecord{}
		}
		return doc.Components, true, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("read catalog: %w", err)
	}

	changelog, found, err := r.readChangelog()
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	var base []schema.ComponentRecord
	if r.baseline != nil {
		if base, err = r.baseline(); err != nil {
			return nil, false, fmt.Errorf("load baseline: %w", err)
		}
	}

	slog.Warn("catalog.yaml missing, rebuilding from changelog", "dir", r.baseDir, "events", len(changelog.Events))
	records, err := ReplayEventsFromMaps(base, changelog.Events)
	if err != nil {
		return nil, false, fmt.Errorf("replay changelog: %w", err)
	}
	return records, true, nil
}

// Save writes records and appends events in a single transaction.
func (r *Repository) Save(ctx context.Context, records []schema.ComponentRecord, events []schema.ChangelogEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if r.lock != nil {
		if err := r.lock.AcquireContext(ctx, lockRetryInterval); err != nil {
			return err
		}
		defer func() {
			if err := r.lock.Release(); err != nil {
				slog.Warn("Failed to release catalog lock", "error", err)
			}
		}()
	}

	tx := NewCopyOnWriteTx(r.baseDir, catalogDir)
	if err := tx.Begin(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := r.writeInTx(tx, records, events); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("Rollback failed", "error", rbErr)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Debug("Catalog saved", "dir", r.baseDir, "components", len(records), "events", len(events))
	return nil
}

func (r *Repository) writeInTx(tx *CopyOnWriteTx, records []schema.ComponentRecord, events []schema.ChangelogEvent) error {
	if records == nil {
		records = []schema.ComponentRecord{}
	}
	if err := tx.WriteYAML(catalogFile, catalogDocument{
		Version:    formatVersion,
		UpdatedAt:  time.Now().UTC(),
		Components: records,
	}); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	if len(events) == 0 {
		return nil
	}

	var changelog changelogDocument
	if _, err := tx.ReadYAML(changelogFile, &changelog); err != nil {
		return fmt.Errorf("read changelog: %w", err)
	}
	changelog.Version = formatVersion

	for _, event := range events {
		eventMap, err := eventToMap(event)
		if err != nil {
			return err
		}
		changelog.Events = append(changelog.Events, eventMap)
	}

	if err := tx.WriteYAML(changelogFile, changelog); err != nil {
		return fmt.Errorf("write changelog: %w", err)
	}
	return nil
}

// ReadChangelog returns every recorded event in file order.
func (r *Repository) ReadChangelog(ctx context.Context) ([]schema.ChangelogEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	changelog, _, err := r.readChangelog()
	if err != nil {
		return nil, err
	}
	return eventsFromMaps(changelog.Events)
}

func (r *Repository) readChangelog() (changelogDocument, bool, error) {
	var changelog changelogDocument
	data, err := os.ReadFile(filepath.Join(r.baseDir, changelogFile))
	if err != nil {
		if os.IsNotExist(err) {
			return changelog, false, nil
		}
		return changelog, false, fmt.Errorf("read changelog: %w", err)
	}
	if err := yaml.Unmarshal(data, &changelog); err != nil {
		return changelog, false, fmt.Errorf("parse changelog: %w", err)
	}
	return changelog, true, nil
}
