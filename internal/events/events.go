// Package events carries relationship change notifications between the
// editing core and whoever needs to refresh (list views, CLI watchers,
// exporters).
package events

import (
	"context"
)

// Event topic constants
const (
	TopicRelationshipCreated = "storyweb.relationship.created"
	TopicRelationshipUpdated = "storyweb.relationship.updated"
	TopicRelationshipDeleted = "storyweb.relationship.deleted"

	// TopicAll matches every storyweb topic.
	TopicAll = "storyweb.>"
)

// RelationshipChanged is the payload of every relationship topic.
type RelationshipChanged struct {
	RelationshipID string `json:"relationship_id"`
	ProjectID      string `json:"project_id"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
