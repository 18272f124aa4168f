// Package client provides transport-agnostic interfaces for the storyweb
// service plus HTTP/JSON and gRPC implementations.
package client

import (
	"context"

	"github.com/alfredjeanlab/storyweb/internal/diagram"
	"github.com/alfredjeanlab/storyweb/internal/graphsvc"
	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/presence"
	"github.com/alfredjeanlab/storyweb/internal/relgraph"
)

// GraphClient is the surface served by both transports: reading and saving
// a diagram and reading the derived project graph.
type GraphClient interface {
	Health(ctx context.Context) (string, error)
	GetRelationship(ctx context.Context, id string) (*model.Relationship, error)
	SaveSnapshot(ctx context.Context, id string, snap model.DiagramSnapshot) (*model.Relationship, error)
	GetGraph(ctx context.Context, projectID string, latest bool) (*graphsvc.Graph, error)
	GetOverview(ctx context.Context, projectID string, width, height float64) (*relgraph.Layout, error)
	GetMatrix(ctx context.Context, projectID string) (*relgraph.Matrix, error)

	// SetActor names the editor recorded on saves.
	SetActor(actor string)
	Close() error
}

// Client is the full storyweb API. It is implemented by HTTPClient.
type Client interface {
	GraphClient

	// World elements
	ListElements(ctx context.Context, projectID string, categories ...string) ([]*model.WorldElement, error)
	GetElement(ctx context.Context, id string) (*model.WorldElement, error)
	CreateElement(ctx context.Context, projectID string, req *CreateElementRequest) (*model.WorldElement, error)

	// Direct relationship records
	ListDirectRelationships(ctx context.Context, projectID string) ([]model.DirectRelationshipRecord, error)
	CreateDirectRelationship(ctx context.Context, projectID string, rec *model.DirectRelationshipRecord) (*model.DirectRelationshipRecord, error)

	// Relationship diagrams
	ListRelationships(ctx context.Context, projectID string) ([]*model.Relationship, error)
	CreateRelationship(ctx context.Context, projectID string, req *CreateRelationshipRequest) (*model.Relationship, error)
	DeleteRelationship(ctx context.Context, id string) error
	GetRoutes(ctx context.Context, id string) ([]diagram.Route, error)
	GetEvents(ctx context.Context, id string) ([]*model.Event, error)

	// SVG renderings
	RenderRelationship(ctx context.Context, id string) ([]byte, error)
	RenderOverview(ctx context.Context, projectID string, width, height float64) ([]byte, error)

	// Presence
	GetEditors(ctx context.Context, id string) ([]presence.Entry, error)
	GetPresence(ctx context.Context, projectID string) ([]presence.Entry, error)

	// StreamEvents follows the server's event stream until ctx ends.
	StreamEvents(ctx context.Context, projectID string, topics ...string) (<-chan StreamEvent, error)
}

// CreateElementRequest holds parameters for creating a world element.
type CreateElementRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

// CreateRelationshipRequest holds parameters for creating a relationship
// diagram. A nil Snapshot starts an empty canvas.
type CreateRelationshipRequest struct {
	Name     string                 `json:"name"`
	Kind     string                 `json:"kind,omitempty"`
	Snapshot *model.DiagramSnapshot `json:"snapshot,omitempty"`
}

// StreamEvent is one server-sent event.
type StreamEvent struct {
	ID    string
	Topic string
	Data  []byte
}
