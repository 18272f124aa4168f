package client

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/server"
	"github.com/alfredjeanlab/storyweb/internal/store/memory"
)

const (
	uuidA = "11111111-1111-1111-1111-111111111111"
	uuidB = "22222222-2222-2222-2222-222222222222"
)

// newGRPCTestClient serves a seeded memory store over an in-memory listener.
func newGRPCTestClient(t *testing.T, serverToken, clientToken string) (*GRPCClient, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	ms := memory.New()
	for _, el := range []*model.WorldElement{
		{ID: uuidA, ProjectID: "p", Name: "Ada", Category: model.CategoryCharacter},
		{ID: uuidB, ProjectID: "p", Name: "Bram", Category: model.CategoryCharacter},
	} {
		if err := ms.CreateElement(ctx, el); err != nil {
			t.Fatal(err)
		}
	}
	if err := ms.CreateRelationship(ctx, &model.Relationship{
		ID: "rel-1", ProjectID: "p", Name: "Court", Kind: model.KindWeb,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
		Snapshot: model.DiagramSnapshot{Connections: []model.DiagramConnection{
			{ID: "cx-1", FromNodeID: uuidA, ToNodeID: uuidB, Type: model.RelAlly},
		}},
	}); err != nil {
		t.Fatal(err)
	}

	gs := server.NewGRPCServer(server.New(ms, nil), serverToken)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", clientToken,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("NewGRPCClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, ms
}

func TestGRPCClient_Reads(t *testing.T) {
	c, _ := newGRPCTestClient(t, "", "")
	ctx := context.Background()

	if s, err := c.Health(ctx); err != nil || s != "ok" {
		t.Fatalf("Health = %q, %v", s, err)
	}

	rel, err := c.GetRelationship(ctx, "rel-1")
	if err != nil {
		t.Fatalf("GetRelationship: %v", err)
	}
	if rel.Name != "Court" || len(rel.Snapshot.Connections) != 1 {
		t.Fatalf("unexpected relationship: %+v", rel)
	}

	g, err := c.GetGraph(ctx, "p", false)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	if len(g.Edges) != 1 || g.Edges[0].Type != model.RelAlly || !g.Edges[0].Connects(uuidA, uuidB) {
		t.Fatalf("unexpected graph: %+v", g)
	}

	l, err := c.GetOverview(ctx, "p", 200, 100)
	if err != nil {
		t.Fatalf("GetOverview: %v", err)
	}
	if l.Width != 200 || l.Height != 100 || len(l.Nodes) != 2 {
		t.Fatalf("unexpected layout: %+v", l)
	}

	m, err := c.GetMatrix(ctx, "p")
	if err != nil {
		t.Fatalf("GetMatrix: %v", err)
	}
	if m.Size() != 2 || m.At(0, 1) == nil {
		t.Fatalf("unexpected matrix: %+v", m)
	}
}

func TestGRPCClient_SaveSnapshot(t *testing.T) {
	c, ms := newGRPCTestClient(t, "secret", "secret")
	c.SetActor("carol")
	ctx := context.Background()

	snap := model.DiagramSnapshot{
		Nodes: []model.DiagramNode{
			{ID: uuidA, Type: model.CategoryCharacter, Name: "Ada", X: 10, Y: 20, Width: 150, Height: 60, Color: "#3b82f6"},
		},
		Connections: []model.DiagramConnection{},
	}
	rel, err := c.SaveSnapshot(ctx, "rel-1", snap)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if len(rel.Snapshot.Nodes) != 1 || rel.Snapshot.Nodes[0].X != 10 {
		t.Fatalf("unexpected snapshot: %+v", rel.Snapshot)
	}

	evs, err := ms.GetEvents(ctx, "rel-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Actor != "carol" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestGRPCClient_Errors(t *testing.T) {
	ctx := context.Background()

	c, _ := newGRPCTestClient(t, "secret", "")
	if _, err := c.GetRelationship(ctx, "rel-1"); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
	// Health stays open without a token.
	if _, err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	c, _ = newGRPCTestClient(t, "", "")
	if _, err := c.GetRelationship(ctx, "missing"); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := c.GetGraph(ctx, "", false); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
