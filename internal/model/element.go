package model

import "time"

// ElementCategory classifies a world element.
// Well-known constants are provided below, but categories are extensible.
type ElementCategory string

const (
	CategoryCharacter ElementCategory = "character"
	CategoryLocation  ElementCategory = "location"
	CategoryItem      ElementCategory = "item"
	CategoryFaction   ElementCategory = "faction"
	CategoryEvent     ElementCategory = "event"
	CategoryLore      ElementCategory = "lore"
)

// String returns the string representation of the category.
func (c ElementCategory) String() string {
	return string(c)
}

// IsValid reports whether the category is a non-empty string of at most 50 characters.
func (c ElementCategory) IsValid() bool {
	return len(c) > 0 && len(c) <= 50
}

// IsKnown reports whether the category is one of the well-known constants.
func (c ElementCategory) IsKnown() bool {
	switch c {
	case CategoryCharacter, CategoryLocation, CategoryItem, CategoryFaction, CategoryEvent, CategoryLore:
		return true
	}
	return false
}

// DefaultColor returns the node fill color used when an element of this
// category is placed on a diagram without an explicit color.
func (c ElementCategory) DefaultColor() string {
	switch c {
	case CategoryCharacter:
		return "#3b82f6"
	case CategoryLocation:
		return "#10b981"
	case CategoryItem:
		return "#f59e0b"
	case CategoryFaction:
		return "#8b5cf6"
	case CategoryEvent:
		return "#ef4444"
	case CategoryLore:
		return "#6366f1"
	default:
		return "#6b7280"
	}
}

// WorldElement is a record owned by the external world-element store.
// The relationship core only reads it.
type WorldElement struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Name        string          `json:"name"`
	Category    ElementCategory `json:"category"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Stub projects the element down to the fields the graph core needs.
func (e *WorldElement) Stub() CharacterStub {
	return CharacterStub{ID: e.ID, Name: e.Name, Category: e.Category}
}

// CharacterStub is a read-only projection of a world element.
type CharacterStub struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category ElementCategory `json:"category"`
}

// Stubs projects a slice of elements.
func Stubs(elements []*WorldElement) []CharacterStub {
	out := make([]CharacterStub, 0, len(elements))
	for _, e := range elements {
		out = append(out, e.Stub())
	}
	return out
}
