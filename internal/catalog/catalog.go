// Package catalog holds the reference components whose ratings an analysis
// is reconciled against.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

var (
	// ErrComponentNotFound is returned when no record matches an id or name.
	ErrComponentNotFound = errors.New("component not found")

	// ErrComponentExists is returned when adding a record under a taken id.
	ErrComponentExists = errors.New("component already exists")
)

// Store persists the catalog. Save receives the full record set after a
// mutation together with the events describing it.
type Store interface {
	Load(ctx context.Context) (records []schema.ComponentRecord, found bool, err error)
	Save(ctx context.Context, records []schema.ComponentRecord, events []schema.ChangelogEvent) error
}

// Catalog is an in-memory component index, safe for concurrent use.
// Mutations are written through to the Store before they become visible.
type Catalog struct {
	mu         sync.RWMutex
	components map[string]schema.ComponentRecord
	store      Store
	now        func() time.Time
}

// New returns an empty catalog. store may be nil for a memory-only catalog.
func New(store Store) *Catalog {
	return &Catalog{
		components: make(map[string]schema.ComponentRecord),
		store:      store,
		now:        time.Now,
	}
}

// Open loads the catalog from store, falling back to the embedded seed data
// the first time. The seed is written back so later runs read the store.
func Open(ctx context.Context, store Store) (*Catalog, error) {
	c := New(store)
	if store != nil {
		records, found, err := store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		if found {
			if err := c.Replace(records); err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	seed, err := LoadSeed()
	if err != nil {
		return nil, err
	}
	if err := c.Replace(seed); err != nil {
		return nil, err
	}
	if store != nil {
		if err := store.Save(ctx, c.Snapshot(), nil); err != nil {
			return nil, fmt.Errorf("save seed catalog: %w", err)
		}
	}
	return c, nil
}

// Replace swaps the whole record set without persisting it.
func (c *Catalog) Replace(records []schema.ComponentRecord) error {
	next := make(map[string]schema.ComponentRecord, len(records))
	mismatched := 0
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("component %q has no id", rec.Name)
		}
		if _, dup := next[rec.ID]; dup {
			return fmt.Errorf("duplicate component id %q", rec.ID)
		}
		if err := schema.ValidateComponent(&rec); err != nil {
			return fmt.Errorf("component %s: %w", rec.ID, err)
		}
		if computed := asil.Of(rec.Rating); rec.RecordedASIL != "" && rec.RecordedASIL != computed {
			mismatched++
			slog.Debug("recorded ASIL differs from matrix",
				"component", rec.ID,
				"rating", rec.Rating.String(),
				"recorded", rec.RecordedASIL,
				"computed", computed,
			)
		}
		next[rec.ID] = rec.Clone()
	}
	if mismatched > 0 {
		slog.Warn("catalog labels disagree with the rating matrix; computed ASIL is used",
			"components", mismatched,
			"total", len(records),
		)
	}

	c.mu.Lock()
	c.components = next
	c.mu.Unlock()
	return nil
}

// Len returns the number of components.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.components)
}

// Get returns the component with the given id.
func (c *Catalog) Get(id string) (schema.ComponentRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.components[id]
	if !ok {
		return schema.ComponentRecord{}, fmt.Errorf("%w: %s", ErrComponentNotFound, id)
	}
	return rec.Clone(), nil
}

// FindByName resolves a free-text query: an exact id, a case-insensitive
// name, or a name that normalises to an existing id.
func (c *Catalog) FindByName(query string) (schema.ComponentRecord, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return schema.ComponentRecord{}, fmt.Errorf("%w: empty query", ErrComponentNotFound)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if rec, ok := c.components[q]; ok {
		return rec.Clone(), nil
	}
	for _, rec := range c.components {
		if strings.EqualFold(rec.Name, q) {
			return rec.Clone(), nil
		}
	}
	if rec, ok := c.components[schema.ComponentKey(q)]; ok {
		return rec.Clone(), nil
	}
	return schema.ComponentRecord{}, fmt.Errorf("%w: %s", ErrComponentNotFound, q)
}

// List returns every component ordered by category, then name.
func (c *Catalog) List() []schema.ComponentRecord {
	c.mu.RLock()
	out := make([]schema.ComponentRecord, 0, len(c.components))
	for _, rec := range c.components {
		out = append(out, rec.Clone())
	}
	c.mu.RUnlock()

	sortRecords(out)
	return out
}

// Search returns components whose id, name, description or category contains
// query, optionally restricted to one category. Both filters ignore case.
func (c *Catalog) Search(query, category string) []schema.ComponentRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []schema.ComponentRecord
	for _, rec := range c.List() {
		if category != "" && !strings.EqualFold(rec.Category, category) {
			continue
		}
		if q == "" || containsFold(q, rec.ID, rec.Name, rec.Description, rec.Category) {
			out = append(out, rec)
		}
	}
	return out
}

// Categories returns the distinct categories in sorted order.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	seen := make(map[string]bool)
	for _, rec := range c.components {
		seen[rec.Category] = true
	}
	c.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// ByASIL returns the components whose computed ASIL equals level.
func (c *Catalog) ByASIL(level schema.ASIL) []schema.ComponentRecord {
	var out []schema.ComponentRecord
	for _, rec := range c.List() {
		if asil.Of(rec.Rating) == level {
			out = append(out, rec)
		}
	}
	return out
}

// GenerateKey derives an unused id from a component name.
func (c *Catalog) GenerateKey(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generateKeyLocked(name)
}

func (c *Catalog) generateKeyLocked(name string) string {
	return schema.UniqueComponentKey(name, func(k string) bool {
		_, taken := c.components[k]
		return taken
	})
}

// FindMatching returns an existing record with the same name, category and
// rating as rec.
func (c *Catalog) FindMatching(rec schema.ComponentRecord) (schema.ComponentRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findMatchingLocked(rec)
}

func (c *Catalog) findMatchingLocked(rec schema.ComponentRecord) (schema.ComponentRecord, bool) {
	for _, existing := range c.components {
		if strings.EqualFold(existing.Name, rec.Name) &&
			strings.EqualFold(existing.Category, rec.Category) &&
			existing.Rating == rec.Rating {
			return existing.Clone(), true
		}
	}
	return schema.ComponentRecord{}, false
}

// Add stores a new component. An empty id is derived from the name.
func (c *Catalog) Add(ctx context.Context, rec schema.ComponentRecord) (schema.ComponentRecord, error) {
	rec = normalise(rec)
	if err := schema.ValidateComponent(&rec); err != nil {
		return schema.ComponentRecord{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(ctx, rec)
}

func (c *Catalog) addLocked(ctx context.Context, rec schema.ComponentRecord) (schema.ComponentRecord, error) {
	if rec.ID == "" {
		rec.ID = c.generateKeyLocked(rec.Name)
	} else if _, taken := c.components[rec.ID]; taken {
		return schema.ComponentRecord{}, fmt.Errorf("%w: %s", ErrComponentExists, rec.ID)
	}
	now := c.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	event := &schema.ComponentAdded{Component: rec.Clone()}
	if err := c.commitLocked(ctx, event, func(m map[string]schema.ComponentRecord) {
		m[rec.ID] = rec
	}); err != nil {
		return schema.ComponentRecord{}, err
	}
	return rec.Clone(), nil
}

// Update replaces the component with the given id, keeping its creation time.
func (c *Catalog) Update(ctx context.Context, id string, rec schema.ComponentRecord) (schema.ComponentRecord, error) {
	inheritSource := rec.Source == ""
	rec = normalise(rec)
	rec.ID = id
	if err := schema.ValidateComponent(&rec); err != nil {
		return schema.ComponentRecord{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	before, ok := c.components[id]
	if !ok {
		return schema.ComponentRecord{}, fmt.Errorf("%w: %s", ErrComponentNotFound, id)
	}
	rec.CreatedAt = before.CreatedAt
	rec.UpdatedAt = c.now().UTC()
	if inheritSource {
		rec.Source = before.Source
	}

	event := &schema.ComponentUpdated{ComponentID: id, Before: before.Clone(), After: rec.Clone()}
	if err := c.commitLocked(ctx, event, func(m map[string]schema.ComponentRecord) {
		m[id] = rec
	}); err != nil {
		return schema.ComponentRecord{}, err
	}
	return rec.Clone(), nil
}

// Delete removes a component and returns what was removed.
func (c *Catalog) Delete(ctx context.Context, id string) (schema.ComponentRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before, ok := c.components[id]
	if !ok {
		return schema.ComponentRecord{}, fmt.Errorf("%w: %s", ErrComponentNotFound, id)
	}

	event := &schema.ComponentDeleted{ComponentID: id, Component: before.Clone()}
	if err := c.commitLocked(ctx, event, func(m map[string]schema.ComponentRecord) {
		delete(m, id)
	}); err != nil {
		return schema.ComponentRecord{}, err
	}
	return before.Clone(), nil
}

// AdoptRating makes rating the reference rating of component id. Blank
// reasons fall back to the level descriptions.
func (c *Catalog) AdoptRating(ctx context.Context, id string, rating schema.Rating, reasons schema.Reasons, analysisID string) (schema.ComponentRecord, error) {
	if err := rating.Validate(); err != nil {
		return schema.ComponentRecord{}, err
	}
	adopted := asil.Adopt(rating)

	c.mu.Lock()
	defer c.mu.Unlock()

	before, ok := c.components[id]
	if !ok {
		return schema.ComponentRecord{}, fmt.Errorf("%w: %s", ErrComponentNotFound, id)
	}
	after := before.Clone()
	after.Rating = adopted
	after.Reasons = reasons.FillEmpty(adopted)
	after.RecordedASIL = asil.Of(adopted)
	after.UpdatedAt = c.now().UTC()

	event := &schema.RatingAdopted{
		ComponentID: id,
		AnalysisID:  analysisID,
		OldRating:   before.Rating,
		NewRating:   adopted,
		Reasons:     after.Reasons,
	}
	if err := c.commitLocked(ctx, event, func(m map[string]schema.ComponentRecord) {
		m[id] = after
	}); err != nil {
		return schema.ComponentRecord{}, err
	}
	return after.Clone(), nil
}

// SaveAnalysis stores the headline assessment of a finished analysis as a
// new component. It returns the existing record and false when an identical
// component is already catalogued.
func (c *Catalog) SaveAnalysis(ctx context.Context, report *schema.AnalysisReport) (schema.ComponentRecord, bool, error) {
	primary := report.Primary()
	if primary == nil {
		return schema.ComponentRecord{}, false, fmt.Errorf("analysis %s has no rating to save", report.ID)
	}
	rating := report.Overrides.Apply(primary.Rating)
	rec := schema.ComponentRecord{
		Name:            report.ComponentName,
		Category:        report.Category,
		Description:     report.Description,
		Rating:          rating,
		RecordedASIL:    asil.Of(rating),
		Reasons:         primary.Reasons.FillEmpty(rating),
		Hazards:         primary.Hazards,
		FailureModes:    primary.FailureModes,
		Recommendations: primary.Recommendations,
		Source:          primary.Source,
	}
	rec = normalise(rec)
	if err := schema.ValidateComponent(&rec); err != nil {
		return schema.ComponentRecord{}, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.findMatchingLocked(rec); ok {
		return existing, false, nil
	}
	saved, err := c.addLocked(ctx, rec)
	if err != nil {
		return schema.ComponentRecord{}, false, err
	}
	return saved, true, nil
}

// Snapshot returns every record ordered by id, ready for persistence.
func (c *Catalog) Snapshot() []schema.ComponentRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshotOf(c.components)
}

// commitLocked applies mutate to a copy of the index, persists the copy,
// and swaps it in only if persistence succeeded. Caller holds c.mu.
func (c *Catalog) commitLocked(ctx context.Context, event schema.ChangelogEvent, mutate func(map[string]schema.ComponentRecord)) error {
	next := make(map[string]schema.ComponentRecord, len(c.components)+1)
	for k, v := range c.components {
		next[k] = v
	}
	mutate(next)

	if c.store != nil {
		if err := stampEvent(event, c.now().UTC()); err != nil {
			return err
		}
		if err := c.store.Save(ctx, snapshotOf(next), []schema.ChangelogEvent{event}); err != nil {
			return fmt.Errorf("persist %s: %w", event.EventType(), err)
		}
	}
	c.components = next
	return nil
}

func stampEvent(event schema.ChangelogEvent, at time.Time) error {
	id, err := schema.NewEventID()
	if err != nil {
		return fmt.Errorf("generate event id: %w", err)
	}
	switch e := event.(type) {
	case *schema.ComponentAdded:
		e.EventID_, e.Timestamp_ = id, at
	case *schema.ComponentUpdated:
		e.EventID_, e.Timestamp_ = id, at
	case *schema.ComponentDeleted:
		e.EventID_, e.Timestamp_ = id, at
	case *schema.RatingAdopted:
		e.EventID_, e.Timestamp_ = id, at
	default:
		return fmt.Errorf("unknown event type: %T", event)
	}
	return nil
}

func snapshotOf(m map[string]schema.ComponentRecord) []schema.ComponentRecord {
	out := make([]schema.ComponentRecord, 0, len(m))
	for _, rec := range m {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortRecords(recs []schema.ComponentRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Category != recs[j].Category {
			return recs[i].Category < recs[j].Category
		}
		return recs[i].Name < recs[j].Name
	})
}

func normalise(rec schema.ComponentRecord) schema.ComponentRecord {
	rec.Name = strings.TrimSpace(rec.Name)
	rec.Category = strings.TrimSpace(rec.Category)
	if rec.Category == "" {
		rec.Category = schema.DefaultCategory
	}
	if rec.Source == "" {
		rec.Source = schema.SourceUser
	}
	rec.Reasons = rec.Reasons.FillEmpty(rec.Rating)
	return rec.Clone()
}

func containsFold(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
