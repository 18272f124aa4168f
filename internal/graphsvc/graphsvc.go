// Package graphsvc answers project-level graph questions: the canonical edge
// list, the overview layout and the adjacency matrix. Nothing is cached;
// every call reads the store and recomputes.
package graphsvc

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/relgraph"
	"github.com/alfredjeanlab/storyweb/internal/store"
)

// Service derives graph views from a store.
type Service struct {
	store      store.Store
	categories []model.ElementCategory
}

// Option configures a Service.
type Option func(*Service)

// WithCategories sets which element categories take part in the graph.
// The default is characters only.
func WithCategories(c ...model.ElementCategory) Option {
	return func(s *Service) { s.categories = c }
}

// New returns a Service reading from st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, categories: []model.ElementCategory{model.CategoryCharacter}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Graph is a project's characters and the canonical edges between them.
type Graph struct {
	ProjectID  string                `json:"project_id"`
	Characters []model.CharacterStub `json:"characters"`
	Edges      []model.CanonicalEdge `json:"edges"`
}

// Load reads characters, direct records and diagrams concurrently.
func (s *Service) Load(ctx context.Context, projectID string) (relgraph.Input, error) {
	var (
		in       relgraph.Input
		elements []*model.WorldElement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		elements, err = s.store.ListElements(gctx, projectID, s.categories...)
		if err != nil {
			return fmt.Errorf("list elements: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		in.Direct, err = s.store.ListDirectRelationships(gctx, projectID)
		if err != nil {
			return fmt.Errorf("list direct relationships: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		rels, err := s.store.ListRelationships(gctx, projectID)
		if err != nil {
			return fmt.Errorf("list relationships: %w", err)
		}
		in.Diagrams = make([]model.Relationship, 0, len(rels))
		for _, r := range rels {
			in.Diagrams = append(in.Diagrams, *r)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return relgraph.Input{}, err
	}
	in.Characters = relgraph.Characters(model.Stubs(elements), s.categories...)
	return in, nil
}

// Graph returns the project's canonical edges. With mostRecent set only the
// latest edge per character pair is kept.
func (s *Service) Graph(ctx context.Context, projectID string, mostRecent bool) (*Graph, error) {
	in, err := s.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	edges := relgraph.Extract(in)
	if mostRecent {
		edges = relgraph.MostRecentPerPair(edges)
	}
	return &Graph{ProjectID: projectID, Characters: in.Characters, Edges: edges}, nil
}

// Overview lays the project's characters out on a circle in a width x height
// viewport.
func (s *Service) Overview(ctx context.Context, projectID string, width, height float64) (relgraph.Layout, error) {
	g, err := s.Graph(ctx, projectID, false)
	if err != nil {
		return relgraph.Layout{}, err
	}
	return relgraph.Overview(g.Characters, g.Edges, width, height), nil
}

// Matrix builds the project's adjacency matrix.
func (s *Service) Matrix(ctx context.Context, projectID string) (relgraph.Matrix, error) {
	g, err := s.Graph(ctx, projectID, false)
	if err != nil {
		return relgraph.Matrix{}, err
	}
	return relgraph.BuildMatrix(g.Characters, g.Edges), nil
}
