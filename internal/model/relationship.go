package model

import "time"

// RelationshipKind distinguishes multi-node relationship webs from diagrams
// authored for a single pair.
type RelationshipKind string

const (
	KindWeb  RelationshipKind = "web"
	KindPair RelationshipKind = "pair"
)

// String returns the string representation of the kind.
func (k RelationshipKind) String() string {
	return string(k)
}

// IsValid checks whether the kind is a known value.
func (k RelationshipKind) IsValid() bool {
	switch k {
	case KindWeb, KindPair:
		return true
	}
	return false
}

// Relationship is the persisted entity that owns exactly one diagram.
type Relationship struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"project_id"`
	Name      string           `json:"name"`
	Kind      RelationshipKind `json:"kind"`
	Snapshot  DiagramSnapshot  `json:"snapshot"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// IsWeb reports whether the relationship diagram takes part in graph extraction.
func (r *Relationship) IsWeb() bool {
	return r.Kind == KindWeb
}
