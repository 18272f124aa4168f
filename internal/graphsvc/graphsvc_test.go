package graphsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/store"
	"github.com/alfredjeanlab/storyweb/internal/store/memory"
)

const (
	uuidA = "11111111-1111-1111-1111-111111111111"
	uuidB = "22222222-2222-2222-2222-222222222222"
	uuidC = "33333333-3333-3333-3333-333333333333"
)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, el := range []*model.WorldElement{
		{ID: uuidA, ProjectID: "p", Name: "Ada", Category: model.CategoryCharacter},
		{ID: uuidB, ProjectID: "p", Name: "Bram", Category: model.CategoryCharacter},
		{ID: uuidC, ProjectID: "p", Name: "Cole", Category: model.CategoryCharacter},
		{ID: "harbor", ProjectID: "p", Name: "Harbor", Category: model.CategoryLocation},
	} {
		el.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := st.CreateElement(ctx, el); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.CreateDirectRelationship(ctx, &model.DirectRelationshipRecord{
		ID: "dr-1", ProjectID: "p",
		A:         model.CharacterRef{Names: []string{"ada"}},
		B:         model.CharacterRef{IDs: []string{uuidB}},
		Type:      model.RelRival,
		UpdatedAt: base,
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateRelationship(ctx, &model.Relationship{
		ID: "rel-1", ProjectID: "p", Name: "Court", Kind: model.KindWeb,
		CreatedAt: base, UpdatedAt: base.Add(time.Hour),
		Snapshot: model.DiagramSnapshot{Connections: []model.DiagramConnection{
			{ID: uuidA + "-" + uuidB + "-1700000000000", Type: model.RelFriend},
			{ID: "cx-2", FromNodeID: uuidB, ToNodeID: uuidC, Type: model.RelFamily},
			{ID: "cx-3", FromNodeID: uuidC, ToNodeID: "harbor"},
		}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateRelationship(ctx, &model.Relationship{
		ID: "rel-2", ProjectID: "p", Name: "Duel", Kind: model.KindPair,
		Snapshot: model.DiagramSnapshot{Connections: []model.DiagramConnection{
			{ID: "cx-9", FromNodeID: uuidA, ToNodeID: uuidC},
		}},
	}); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestGraph(t *testing.T) {
	svc := New(seed(t))
	g, err := svc.Graph(context.Background(), "p", false)
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(g.Characters) != 3 {
		t.Fatalf("characters = %+v, want 3 (locations excluded)", g.Characters)
	}
	// direct A-B, legacy A-B, explicit B-C; location edge and pair diagram dropped
	if len(g.Edges) != 3 {
		t.Fatalf("edges = %+v, want 3", g.Edges)
	}
	if g.Edges[0].Source != model.SourceDirect || g.Edges[0].CharacterAID != uuidA {
		t.Errorf("first edge = %+v", g.Edges[0])
	}
}

func TestGraph_MostRecent(t *testing.T) {
	svc := New(seed(t))
	g, err := svc.Graph(context.Background(), "p", true)
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(g.Edges) != 2 {
		t.Fatalf("edges = %+v, want 2", g.Edges)
	}
	if g.Edges[0].Type != model.RelFriend {
		t.Errorf("A-B edge = %+v, want the newer diagram edge", g.Edges[0])
	}
}

func TestOverviewAndMatrix(t *testing.T) {
	svc := New(seed(t))
	ctx := context.Background()

	l, err := svc.Overview(ctx, "p", 1000, 600)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(l.Nodes) != 3 || l.Radius != 120 {
		t.Errorf("layout = %+v", l)
	}
	if n, _ := l.Node(uuidB); n.Degree != 3 {
		t.Errorf("degree(B) = %d, want 3", n.Degree)
	}

	m, err := svc.Matrix(ctx, "p")
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if m.Size() != 3 || m.At(0, 1) == nil || m.At(0, 1) != m.At(1, 0) {
		t.Fatalf("matrix = %+v", m)
	}
	if m.At(0, 1).Source != model.SourceDirect {
		t.Errorf("first match should win: %+v", m.At(0, 1))
	}
	if m.At(0, 2) != nil {
		t.Error("A-C only exists on a pair diagram")
	}
}

func TestWithCategories(t *testing.T) {
	svc := New(seed(t), WithCategories(model.CategoryCharacter, model.CategoryLocation))
	g, err := svc.Graph(context.Background(), "p", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Characters) != 4 || len(g.Edges) != 4 {
		t.Errorf("got %d characters, %d edges", len(g.Characters), len(g.Edges))
	}
}

type brokenStore struct {
	*memory.Store
}

func (brokenStore) ListDirectRelationships(context.Context, string) ([]model.DirectRelationshipRecord, error) {
	return nil, errors.New("connection reset")
}

func TestLoad_Error(t *testing.T) {
	var st store.Store = brokenStore{memory.New()}
	_, err := New(st).Graph(context.Background(), "p", false)
	if err == nil {
		t.Fatal("expected error")
	}
}
