package model

import "time"

// EdgeSource records which persisted representation produced a canonical edge.
type EdgeSource string

const (
	SourceDirect  EdgeSource = "direct"
	SourceDiagram EdgeSource = "diagram"
)

// CanonicalEdge is the normalized, diagram-agnostic relationship fact.
// It is derived on demand and never persisted.
type CanonicalEdge struct {
	ID           string             `json:"id"`
	CharacterAID string             `json:"character_a_id"`
	CharacterBID string             `json:"character_b_id"`
	Type         RelationshipType   `json:"type"`
	Label        string             `json:"label,omitempty"`
	Scores       map[string]float64 `json:"scores,omitempty"`
	Source       EdgeSource         `json:"source"`
	SourceID     string             `json:"source_id"`
	UpdatedAt    time.Time          `json:"updated_at,omitzero"`
}

// Touches reports whether the edge has id as either endpoint.
func (e *CanonicalEdge) Touches(id string) bool {
	return e.CharacterAID == id || e.CharacterBID == id
}

// Connects reports whether the edge joins a and b, in either direction.
func (e *CanonicalEdge) Connects(a, b string) bool {
	return (e.CharacterAID == a && e.CharacterBID == b) ||
		(e.CharacterAID == b && e.CharacterBID == a)
}

// PairKey returns an order-independent key for the edge's character pair.
func (e *CanonicalEdge) PairKey() string {
	if e.CharacterAID < e.CharacterBID {
		return e.CharacterAID + "|" + e.CharacterBID
	}
	return e.CharacterBID + "|" + e.CharacterAID
}
