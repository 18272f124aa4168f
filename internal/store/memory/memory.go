// Package memory implements store.Store in process memory. It backs the
// server when no database is configured and doubles as a fake in tests.
//
// Records are copied on the way in and on the way out, so callers never share
// state with the store.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/store"
)

// Store is an in-memory store.Store.
type Store struct {
	mu   sync.RWMutex
	data *dataset
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

type dataset struct {
	elements      map[string]*model.WorldElement
	direct        map[string]model.DirectRelationshipRecord
	relationships map[string]*model.Relationship
	events        []*model.Event
	nextEventID   int64
}

func newDataset() *dataset {
	return &dataset{
		elements:      make(map[string]*model.WorldElement),
		direct:        make(map[string]model.DirectRelationshipRecord),
		relationships: make(map[string]*model.Relationship),
	}
}

func (d *dataset) clone() *dataset {
	out := &dataset{
		elements:      make(map[string]*model.WorldElement, len(d.elements)),
		direct:        make(map[string]model.DirectRelationshipRecord, len(d.direct)),
		relationships: make(map[string]*model.Relationship, len(d.relationships)),
		events:        slices.Clone(d.events),
		nextEventID:   d.nextEventID,
	}
	for id, el := range d.elements {
		out.elements[id] = copyElement(el)
	}
	for id, rec := range d.direct {
		out.direct[id] = copyDirect(rec)
	}
	for id, rel := range d.relationships {
		out.relationships[id] = copyRelationship(rel)
	}
	return out
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newDataset()}
}

// now is replaced in tests that need distinct timestamps.
var now = func() time.Time { return time.Now().UTC() }

func stampTimes(created, updated *time.Time) {
	t := now()
	if created.IsZero() {
		*created = t
	}
	if updated.IsZero() {
		*updated = *created
	}
}

// CreateElement stores a copy of el.
func (s *Store) CreateElement(_ context.Context, el *model.WorldElement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stampTimes(&el.CreatedAt, &el.UpdatedAt)
	s.data.elements[el.ID] = copyElement(el)
	return nil
}

// GetElement returns a copy of the element or store.ErrNotFound.
func (s *Store) GetElement(_ context.Context, id string) (*model.WorldElement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.data.elements[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyElement(el), nil
}

// ListElements returns the project's elements ordered by creation time.
func (s *Store) ListElements(_ context.Context, projectID string, categories ...model.ElementCategory) ([]*model.WorldElement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.WorldElement
	for _, el := range s.data.elements {
		if el.ProjectID != projectID {
			continue
		}
		if len(categories) > 0 && !slices.Contains(categories, el.Category) {
			continue
		}
		out = append(out, copyElement(el))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateDirectRelationship stores a copy of rec.
func (s *Store) CreateDirectRelationship(_ context.Context, rec *model.DirectRelationshipRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now()
	}
	s.data.direct[rec.ID] = copyDirect(*rec)
	return nil
}

// ListDirectRelationships returns the project's direct records ordered by
// last update.
func (s *Store) ListDirectRelationships(_ context.Context, projectID string) ([]model.DirectRelationshipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.DirectRelationshipRecord
	for _, rec := range s.data.direct {
		if rec.ProjectID == projectID {
			out = append(out, copyDirect(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateRelationship stores a copy of rel.
func (s *Store) CreateRelationship(_ context.Context, rel *model.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stampTimes(&rel.CreatedAt, &rel.UpdatedAt)
	rel.Snapshot = rel.Snapshot.Clone()
	s.data.relationships[rel.ID] = copyRelationship(rel)
	return nil
}

// GetRelationship returns a copy of the relationship or store.ErrNotFound.
func (s *Store) GetRelationship(_ context.Context, id string) (*model.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.data.relationships[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyRelationship(rel), nil
}

// ListRelationships returns relationships ordered by creation time. An empty
// projectID lists every project.
func (s *Store) ListRelationships(_ context.Context, projectID string) ([]*model.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Relationship
	for _, rel := range s.data.relationships {
		if projectID != "" && rel.ProjectID != projectID {
			continue
		}
		out = append(out, copyRelationship(rel))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveRelationship overwrites name, kind and snapshot and stamps UpdatedAt.
func (s *Store) SaveRelationship(_ context.Context, rel *model.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data.relationships[rel.ID]
	if !ok {
		return store.ErrNotFound
	}
	updated := now()
	if !updated.After(cur.UpdatedAt) {
		updated = cur.UpdatedAt.Add(time.Microsecond)
	}
	next := copyRelationship(cur)
	next.Name = rel.Name
	next.Kind = rel.Kind
	next.Snapshot = rel.Snapshot.Clone()
	next.UpdatedAt = updated
	s.data.relationships[rel.ID] = next

	rel.CreatedAt = next.CreatedAt
	rel.UpdatedAt = next.UpdatedAt
	return nil
}

// DeleteRelationship removes a relationship.
func (s *Store) DeleteRelationship(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.relationships[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.data.relationships, id)
	return nil
}

// RecordEvent appends an event and assigns its id.
func (s *Store) RecordEvent(_ context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.nextEventID++
	event.ID = s.data.nextEventID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now()
	}
	e := *event
	e.Payload = slices.Clone(event.Payload)
	s.data.events = append(s.data.events, &e)
	return nil
}

// GetEvents returns a relationship's events in insertion order.
func (s *Store) GetEvents(_ context.Context, relationshipID string) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Event
	for _, e := range s.data.events {
		if e.RelationshipID == relationshipID {
			c := *e
			c.Payload = slices.Clone(e.Payload)
			out = append(out, &c)
		}
	}
	return out, nil
}

// RunInTransaction runs fn against a private copy of the data and publishes
// the copy only if fn succeeds. Transactions are serialized with every other
// write. fn must use tx, not s.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Store{data: s.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func copyElement(el *model.WorldElement) *model.WorldElement {
	c := *el
	return &c
}

func copyDirect(rec model.DirectRelationshipRecord) model.DirectRelationshipRecord {
	rec.A = model.CharacterRef{IDs: slices.Clone(rec.A.IDs), Names: slices.Clone(rec.A.Names)}
	rec.B = model.CharacterRef{IDs: slices.Clone(rec.B.IDs), Names: slices.Clone(rec.B.Names)}
	rec.Scores = maps.Clone(rec.Scores)
	return rec
}

func copyRelationship(rel *model.Relationship) *model.Relationship {
	c := *rel
	c.Snapshot = rel.Snapshot.Clone()
	return &c
}
