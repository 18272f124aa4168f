package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/alfredjeanlab/storyweb/internal/diagram"
	"github.com/alfredjeanlab/storyweb/internal/editor"
	"github.com/alfredjeanlab/storyweb/internal/events"
	"github.com/alfredjeanlab/storyweb/internal/graphsvc"
	"github.com/alfredjeanlab/storyweb/internal/idgen"
	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/presence"
	"github.com/alfredjeanlab/storyweb/internal/relgraph"
	"github.com/alfredjeanlab/storyweb/internal/render"
	"github.com/alfredjeanlab/storyweb/internal/store"
)

// Server holds the relationship operations shared by the HTTP and gRPC
// transports.
type Server struct {
	store     store.Store
	publisher events.Publisher
	graph     *graphsvc.Service
	sseHub    *sseHub
	validate  *validator.Validate
	presence  *presence.Tracker
}

// New returns a Server backed by the given store. Events are published to p
// and to connected SSE clients.
func New(s store.Store, p events.Publisher) *Server {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	hub := newSSEHub()
	return &Server{
		store:     s,
		publisher: &hubPublisher{next: p, hub: hub},
		graph:     graphsvc.New(s),
		sseHub:    hub,
		validate:  newValidator(),
		presence:  presence.New(),
	}
}

// Presence returns the editor roster fed by creates and saves.
func (s *Server) Presence() *presence.Tracker { return s.presence }

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// isInputError reports whether err was caused by the request rather than the
// server.
func isInputError(err error) bool {
	var ie inputError
	var ve *model.ValidationError
	return errors.As(err, &ie) || errors.As(err, &ve)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// check validates a request struct and turns the first failure into an
// inputError.
func (s *Server) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return inputError(err.Error())
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return inputError(fe.Field() + " is required")
	case "max":
		return inputError(fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
	case "oneof":
		return inputError(fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
	case "uuid":
		return inputError(fe.Field() + " must be a UUID")
	default:
		return inputError(fe.Field() + " is invalid")
	}
}

type createElementInput struct {
	ID          string `json:"id" validate:"omitempty,uuid"`
	Name        string `json:"name" validate:"required,max=200"`
	Category    string `json:"category" validate:"required,max=50"`
	Description string `json:"description"`
}

// ListElements returns a project's world elements, optionally filtered by
// category.
func (s *Server) ListElements(ctx context.Context, projectID string, categories ...model.ElementCategory) ([]*model.WorldElement, error) {
	els, err := s.store.ListElements(ctx, projectID, categories...)
	if err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}
	if els == nil {
		els = []*model.WorldElement{}
	}
	return els, nil
}

// GetElement returns one world element.
func (s *Server) GetElement(ctx context.Context, id string) (*model.WorldElement, error) {
	el, err := s.store.GetElement(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get element %s: %w", id, err)
	}
	return el, nil
}

// CreateElement adds a world element. Missing ids get a random UUID.
func (s *Server) CreateElement(ctx context.Context, projectID string, in createElementInput) (*model.WorldElement, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	el := &model.WorldElement{
		ID:          in.ID,
		ProjectID:   projectID,
		Name:        strings.TrimSpace(in.Name),
		Category:    model.ElementCategory(in.Category),
		Description: in.Description,
	}
	if el.ID == "" {
		el.ID = uuid.NewString()
	}
	if err := model.ValidateElement(el); err != nil {
		return nil, err
	}
	if err := s.store.CreateElement(ctx, el); err != nil {
		return nil, fmt.Errorf("create element: %w", err)
	}
	return el, nil
}

// ListDirectRelationships returns a project's direct relationship records.
func (s *Server) ListDirectRelationships(ctx context.Context, projectID string) ([]model.DirectRelationshipRecord, error) {
	recs, err := s.store.ListDirectRelationships(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list direct relationships: %w", err)
	}
	if recs == nil {
		recs = []model.DirectRelationshipRecord{}
	}
	return recs, nil
}

// CreateDirectRelationship stores a direct record. Both sides must carry at
// least one id or name; resolution against characters happens at read time.
func (s *Server) CreateDirectRelationship(ctx context.Context, projectID string, rec *model.DirectRelationshipRecord) error {
	if rec.A.IsZero() || rec.B.IsZero() {
		return inputError("both characters must be referenced by id or name")
	}
	if rec.Type != "" && !rec.Type.IsValid() {
		return inputError("type is invalid")
	}
	if rec.ID == "" {
		id, err := idgen.NewDirectID()
		if err != nil {
			return err
		}
		rec.ID = id
	}
	rec.ProjectID = projectID
	if err := s.store.CreateDirectRelationship(ctx, rec); err != nil {
		return fmt.Errorf("create direct relationship: %w", err)
	}
	return nil
}

type createRelationshipInput struct {
	Name     string                 `json:"name" validate:"required,max=200"`
	Kind     string                 `json:"kind" validate:"omitempty,oneof=web pair"`
	Snapshot *model.DiagramSnapshot `json:"snapshot"`
}

// ListRelationships returns a project's relationship diagrams.
func (s *Server) ListRelationships(ctx context.Context, projectID string) ([]*model.Relationship, error) {
	rels, err := s.store.ListRelationships(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	if rels == nil {
		rels = []*model.Relationship{}
	}
	return rels, nil
}

// CreateRelationship creates a relationship diagram and publishes
// events.TopicRelationshipCreated.
func (s *Server) CreateRelationship(ctx context.Context, projectID, actor string, in createRelationshipInput) (*model.Relationship, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	rel := &model.Relationship{ProjectID: projectID, Name: in.Name, Kind: model.RelationshipKind(in.Kind)}
	if in.Snapshot != nil {
		rel.Snapshot = *in.Snapshot
	}
	sess, err := editor.Create(ctx, s.store, s.publisher, rel, editor.WithActor(actor))
	if err != nil {
		return nil, err
	}
	out := sess.Relationship()
	s.presence.Record(presence.Activity{
		Actor:          actor,
		RelationshipID: out.ID,
		ProjectID:      out.ProjectID,
		Action:         presence.ActionCreated,
	})
	return &out, nil
}

// GetRelationship returns one relationship diagram.
func (s *Server) GetRelationship(ctx context.Context, id string) (*model.Relationship, error) {
	rel, err := s.store.GetRelationship(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get relationship %s: %w", id, err)
	}
	return rel, nil
}

// SaveSnapshot replaces a relationship's diagram and publishes
// events.TopicRelationshipUpdated.
func (s *Server) SaveSnapshot(ctx context.Context, id, actor string, snap model.DiagramSnapshot) (*model.Relationship, error) {
	sess, err := editor.Open(ctx, s.store, s.publisher, id, editor.WithActor(actor))
	if err != nil {
		return nil, err
	}
	rel, err := sess.SaveSnapshot(ctx, snap)
	if err != nil {
		return nil, err
	}
	s.presence.Record(presence.Activity{
		Actor:          actor,
		RelationshipID: rel.ID,
		ProjectID:      rel.ProjectID,
		Action:         presence.ActionSaved,
	})
	return rel, nil
}

// DeleteRelationship removes a relationship diagram and publishes
// events.TopicRelationshipDeleted. Its recorded events stay in the log.
func (s *Server) DeleteRelationship(ctx context.Context, id, actor string) error {
	rel, err := s.GetRelationship(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRelationship(ctx, id); err != nil {
		return fmt.Errorf("delete relationship %s: %w", id, err)
	}
	ev := events.RelationshipChanged{RelationshipID: rel.ID, ProjectID: rel.ProjectID}
	if err := s.publisher.Publish(ctx, events.TopicRelationshipDeleted, ev); err != nil {
		slog.Warn("server: failed to publish event", "topic", events.TopicRelationshipDeleted, "relationship", id, "error", err)
	}
	slog.Info("relationship deleted", "relationship", id, "project", rel.ProjectID, "actor", actor)
	return nil
}

// Routes computes the connection curves of a relationship diagram.
func (s *Server) Routes(ctx context.Context, id string) ([]diagram.Route, error) {
	rel, err := s.GetRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	return diagram.FromSnapshot(rel.Snapshot).Routes(), nil
}

// RenderRelationship writes a relationship diagram as SVG.
func (s *Server) RenderRelationship(ctx context.Context, id string, w io.Writer) error {
	rel, err := s.GetRelationship(ctx, id)
	if err != nil {
		return err
	}
	return render.Diagram(w, diagram.FromSnapshot(rel.Snapshot))
}

// Graph returns a project's canonical edges.
func (s *Server) Graph(ctx context.Context, projectID string, mostRecent bool) (*graphsvc.Graph, error) {
	return s.graph.Graph(ctx, projectID, mostRecent)
}

// Overview returns a project's circular overview layout.
func (s *Server) Overview(ctx context.Context, projectID string, width, height float64) (relgraph.Layout, error) {
	if !positiveFinite(width) || !positiveFinite(height) {
		return relgraph.Layout{}, inputError("width and height must be positive numbers")
	}
	return s.graph.Overview(ctx, projectID, width, height)
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Matrix returns a project's adjacency matrix.
func (s *Server) Matrix(ctx context.Context, projectID string) (relgraph.Matrix, error) {
	return s.graph.Matrix(ctx, projectID)
}
