package model

// Default node dimensions in diagram-local units.
const (
	DefaultNodeWidth  = 150.0
	DefaultNodeHeight = 60.0
)

// RelationshipType tags a connection or a direct relationship.
// Well-known constants are provided below, but relationship types are extensible.
type RelationshipType string

const (
	RelFriend    RelationshipType = "friend"
	RelFamily    RelationshipType = "family"
	RelRomantic  RelationshipType = "romantic"
	RelRival     RelationshipType = "rival"
	RelEnemy     RelationshipType = "enemy"
	RelMentor    RelationshipType = "mentor"
	RelAlly      RelationshipType = "ally"
	RelColleague RelationshipType = "colleague"
	RelNeutral   RelationshipType = "neutral"
	RelOther     RelationshipType = "other"
)

// String returns the string representation of the relationship type.
func (r RelationshipType) String() string {
	return string(r)
}

// IsValid reports whether the type is a non-empty string of at most 50 characters.
func (r RelationshipType) IsValid() bool {
	return len(r) > 0 && len(r) <= 50
}

// DefaultColor returns the stroke color for a connection of this type.
func (r RelationshipType) DefaultColor() string {
	switch r {
	case RelFriend, RelAlly:
		return "#22c55e"
	case RelFamily:
		return "#0ea5e9"
	case RelRomantic:
		return "#ec4899"
	case RelRival:
		return "#f97316"
	case RelEnemy:
		return "#dc2626"
	case RelMentor:
		return "#a855f7"
	case RelColleague:
		return "#14b8a6"
	default:
		return "#64748b"
	}
}

// DiagramNode is a placed reference to a world element inside one diagram.
// Its ID is shared with the referenced element.
type DiagramNode struct {
	ID     string          `json:"id"`
	Type   ElementCategory `json:"type"`
	Name   string          `json:"name"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Width  float64         `json:"width"`
	Height float64         `json:"height"`
	Color  string          `json:"color"`
}

// DiagramConnection is a styled edge between two nodes of the same diagram.
// FromNodeID and ToNodeID are weak references resolved at read time.
type DiagramConnection struct {
	ID              string           `json:"id"`
	FromNodeID      string           `json:"fromNodeId"`
	ToNodeID        string           `json:"toNodeId"`
	Label           string           `json:"label"`
	Type            RelationshipType `json:"type"`
	Color           string           `json:"color"`
	TextColor       string           `json:"textColor,omitempty"`
	HasArrow        bool             `json:"hasArrow"`
	HasReverseArrow bool             `json:"hasReverseArrow,omitempty"`
	StrokeWidth     float64          `json:"strokeWidth,omitempty"`
	StrokeDasharray string           `json:"strokeDasharray,omitempty"`
}

// DiagramSnapshot is the unit of persistence for one relationship diagram.
type DiagramSnapshot struct {
	Nodes       []DiagramNode       `json:"nodes"`
	Connections []DiagramConnection `json:"connections"`
}

// Clone returns a deep copy of the snapshot. Nil slices become empty slices
// so the JSON form is always `[]`, never `null`.
func (s DiagramSnapshot) Clone() DiagramSnapshot {
	out := DiagramSnapshot{
		Nodes:       make([]DiagramNode, len(s.Nodes)),
		Connections: make([]DiagramConnection, len(s.Connections)),
	}
	copy(out.Nodes, s.Nodes)
	copy(out.Connections, s.Connections)
	return out
}

// IsEmpty reports whether the snapshot has neither nodes nor connections.
func (s DiagramSnapshot) IsEmpty() bool {
	return len(s.Nodes) == 0 && len(s.Connections) == 0
}
