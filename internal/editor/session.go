// Package editor binds one relationship diagram to the store and the event
// bus. A Session owns the in-memory diagram; Save is the only place edits
// cross the persistence boundary.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alfredjeanlab/storyweb/internal/diagram"
	"github.com/alfredjeanlab/storyweb/internal/events"
	"github.com/alfredjeanlab/storyweb/internal/idgen"
	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/store"
)

// Session edits one relationship. The diagram returned by Diagram is not
// synchronized: touch it only from the goroutine that also calls Save. When
// several goroutines share a session they must change the diagram through
// Edit; Edit and Save are then safe to call concurrently and saves run one
// after another.
type Session struct {
	store     store.Store
	publisher events.Publisher
	actor     string
	diagOpts  []diagram.Option

	saveMu  sync.Mutex
	mu      sync.Mutex
	rel     model.Relationship
	diagram *diagram.Diagram
}

// Option configures a Session.
type Option func(*Session)

// WithActor records who made the edits in persisted events.
func WithActor(actor string) Option {
	return func(s *Session) { s.actor = actor }
}

// WithDiagramOptions passes options to the underlying diagram.
func WithDiagramOptions(opts ...diagram.Option) Option {
	return func(s *Session) { s.diagOpts = append(s.diagOpts, opts...) }
}

func newSession(st store.Store, pub events.Publisher, rel *model.Relationship, opts []Option) *Session {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	s := &Session{store: st, publisher: pub}
	for _, o := range opts {
		o(s)
	}
	s.adopt(rel)
	return s
}

// Open loads an existing relationship.
func Open(ctx context.Context, st store.Store, pub events.Publisher, id string, opts ...Option) (*Session, error) {
	rel, err := st.GetRelationship(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load relationship %s: %w", id, err)
	}
	return newSession(st, pub, rel, opts), nil
}

// Create persists a new relationship and publishes
// events.TopicRelationshipCreated. An empty ID is generated; an empty Kind
// defaults to a web.
func Create(ctx context.Context, st store.Store, pub events.Publisher, rel *model.Relationship, opts ...Option) (*Session, error) {
	r := *rel
	r.Snapshot = rel.Snapshot.Clone()
	if r.ID == "" {
		id, err := idgen.Generate()
		if err != nil {
			return nil, err
		}
		r.ID = id
	}
	if r.Kind == "" {
		r.Kind = model.KindWeb
	}
	r.Name = strings.TrimSpace(r.Name)
	if err := model.ValidateRelationship(&r); err != nil {
		return nil, err
	}

	s := newSession(st, pub, &r, opts)
	var created *model.Relationship
	err := st.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateRelationship(ctx, &r); err != nil {
			return fmt.Errorf("create relationship: %w", err)
		}
		if err := s.recordEvent(ctx, tx, events.TopicRelationshipCreated, &r); err != nil {
			return err
		}
		got, err := tx.GetRelationship(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("reload relationship: %w", err)
		}
		created = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.adopt(created)
	s.publish(ctx, events.TopicRelationshipCreated, created)
	return s, nil
}

// ID returns the relationship id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rel.ID
}

// Relationship returns the last confirmed relationship. Its snapshot is what
// the store holds, not the unsaved diagram.
func (s *Session) Relationship() model.Relationship {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rel
	r.Snapshot = s.rel.Snapshot.Clone()
	return r
}

// Diagram returns the editable diagram for single-goroutine use.
func (s *Session) Diagram() *diagram.Diagram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diagram
}

// Edit runs fn on the diagram while holding the session lock. An error from
// fn is returned as is; the diagram keeps whatever fn changed.
func (s *Session) Edit(fn func(*diagram.Diagram) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.diagram)
}

// Rename changes the name written by the next Save.
func (s *Session) Rename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rel.Name = strings.TrimSpace(name)
}

// Dirty reports whether the diagram differs from the last confirmed snapshot.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !snapshotsEqual(s.diagram.Snapshot(), s.rel.Snapshot)
}

// Save writes the current diagram. On success the session adopts the
// store-confirmed copy and publishes events.TopicRelationshipUpdated. On
// failure the error is returned and the in-memory diagram is left exactly as
// it was. Concurrent saves are serialized; the last one wins. Edits made while
// the write is in flight stay on the diagram.
func (s *Session) Save(ctx context.Context) (*model.Relationship, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	next := s.rel
	next.Snapshot = s.diagram.Snapshot()
	s.mu.Unlock()

	if err := model.ValidateRelationship(&next); err != nil {
		return nil, err
	}

	var confirmed *model.Relationship
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.SaveRelationship(ctx, &next); err != nil {
			return fmt.Errorf("save relationship %s: %w", next.ID, err)
		}
		if err := s.recordEvent(ctx, tx, events.TopicRelationshipUpdated, &next); err != nil {
			return err
		}
		got, err := tx.GetRelationship(ctx, next.ID)
		if err != nil {
			return fmt.Errorf("reload relationship %s: %w", next.ID, err)
		}
		confirmed = got
		return nil
	})
	if err != nil {
		slog.Warn("editor: save failed", "relationship", next.ID, "error", err)
		return nil, err
	}

	s.mu.Lock()
	if snapshotsEqual(s.diagram.Snapshot(), next.Snapshot) {
		s.adopt(confirmed)
	} else {
		// Edited during the write; keep the newer diagram for the next save.
		s.rel = *confirmed
		s.rel.Snapshot = confirmed.Snapshot.Clone()
	}
	s.mu.Unlock()

	s.publish(ctx, events.TopicRelationshipUpdated, confirmed)
	out := *confirmed
	out.Snapshot = confirmed.Snapshot.Clone()
	return &out, nil
}

// SaveSnapshot replaces the diagram with snap and saves it. If the save
// fails the diagram keeps snap so the caller can retry.
func (s *Session) SaveSnapshot(ctx context.Context, snap model.DiagramSnapshot) (*model.Relationship, error) {
	if err := model.ValidateSnapshot(snap); err != nil {
		return nil, err
	}
	_ = s.Edit(func(d *diagram.Diagram) error {
		d.Load(snap)
		return nil
	})
	return s.Save(ctx)
}

// adopt replaces the confirmed relationship and reloads the diagram from it.
// Callers must hold s.mu once the session is shared.
func (s *Session) adopt(rel *model.Relationship) {
	s.rel = *rel
	s.rel.Snapshot = rel.Snapshot.Clone()
	if s.diagram == nil {
		s.diagram = diagram.FromSnapshot(s.rel.Snapshot, s.diagOpts...)
		return
	}
	s.diagram.Load(s.rel.Snapshot)
}

func (s *Session) recordEvent(ctx context.Context, tx store.Store, topic string, rel *model.Relationship) error {
	payload, err := json.Marshal(events.RelationshipChanged{RelationshipID: rel.ID, ProjectID: rel.ProjectID})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := tx.RecordEvent(ctx, &model.Event{
		Topic:          topic,
		RelationshipID: rel.ID,
		ProjectID:      rel.ProjectID,
		Actor:          s.actor,
		Payload:        payload,
	}); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// publish is best-effort: the change is already durable.
func (s *Session) publish(ctx context.Context, topic string, rel *model.Relationship) {
	ev := events.RelationshipChanged{RelationshipID: rel.ID, ProjectID: rel.ProjectID}
	if err := s.publisher.Publish(ctx, topic, ev); err != nil {
		slog.Warn("editor: failed to publish event", "topic", topic, "relationship", rel.ID, "error", err)
	}
}

// IsNotFound reports whether err means the relationship does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func snapshotsEqual(a, b model.DiagramSnapshot) bool {
	if len(a.Nodes) != len(b.Nodes) || len(a.Connections) != len(b.Connections) {
		return false
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			return false
		}
	}
	for i := range a.Connections {
		if a.Connections[i] != b.Connections[i] {
			return false
		}
	}
	return true
}
