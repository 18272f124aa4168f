package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/storyweb/internal/model"
)

// ErrNotFound is returned when a lookup or update names a record that does
// not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for world elements, direct
// relationship records and relationship diagrams.
type Store interface {
	// World elements (read contract; writes exist for seeding and tests)
	CreateElement(ctx context.Context, el *model.WorldElement) error
	GetElement(ctx context.Context, id string) (*model.WorldElement, error)
	ListElements(ctx context.Context, projectID string, categories ...model.ElementCategory) ([]*model.WorldElement, error)

	// Direct pairwise relationship records
	CreateDirectRelationship(ctx context.Context, rec *model.DirectRelationshipRecord) error
	ListDirectRelationships(ctx context.Context, projectID string) ([]model.DirectRelationshipRecord, error)

	// Relationship diagrams
	CreateRelationship(ctx context.Context, rel *model.Relationship) error
	GetRelationship(ctx context.Context, id string) (*model.Relationship, error)
	ListRelationships(ctx context.Context, projectID string) ([]*model.Relationship, error) // "" lists every project
	SaveRelationship(ctx context.Context, rel *model.Relationship) error                   // sets rel.UpdatedAt
	DeleteRelationship(ctx context.Context, id string) error

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, relationshipID string) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
