package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateElement checks a WorldElement for constraint violations.
func ValidateElement(el *WorldElement) error {
	var ve ValidationError

	name := strings.TrimSpace(el.Name)
	if name == "" {
		ve.add("name", "is required")
	} else if len([]rune(name)) > 200 {
		ve.add("name", "must be 200 characters or fewer")
	}
	if strings.TrimSpace(el.ProjectID) == "" {
		ve.add("project_id", "is required")
	}
	if !el.Category.IsValid() {
		ve.add("category", "invalid value %q", el.Category)
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateRelationship checks a Relationship and its snapshot.
func ValidateRelationship(r *Relationship) error {
	var ve ValidationError

	if strings.TrimSpace(r.Name) == "" {
		ve.add("name", "is required")
	}
	if strings.TrimSpace(r.ProjectID) == "" {
		ve.add("project_id", "is required")
	}
	if !r.Kind.IsValid() {
		ve.add("kind", "invalid value %q", r.Kind)
	}
	if err := ValidateSnapshot(r.Snapshot); err != nil {
		if sve, ok := err.(*ValidationError); ok {
			ve.Errors = append(ve.Errors, sve.Errors...)
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateSnapshot checks structural rules of a diagram snapshot: unique node
// and connection ids, positive node sizes, and no self-loops. Connections
// whose endpoints do not resolve are allowed here; they are dangling edges and
// are filtered at read time.
func ValidateSnapshot(s DiagramSnapshot) error {
	var ve ValidationError

	nodeIDs := make(map[string]struct{}, len(s.Nodes))
	for i, n := range s.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		if n.ID == "" {
			ve.add(field+".id", "is required")
			continue
		}
		if _, dup := nodeIDs[n.ID]; dup {
			ve.add(field+".id", "duplicate node id %q", n.ID)
		}
		nodeIDs[n.ID] = struct{}{}
		if n.Width <= 0 || n.Height <= 0 {
			ve.add(field, "width and height must be positive")
		}
	}

	connIDs := make(map[string]struct{}, len(s.Connections))
	for i, c := range s.Connections {
		field := fmt.Sprintf("connections[%d]", i)
		if c.ID == "" {
			ve.add(field+".id", "is required")
			continue
		}
		if _, dup := connIDs[c.ID]; dup {
			ve.add(field+".id", "duplicate connection id %q", c.ID)
		}
		connIDs[c.ID] = struct{}{}
		if c.FromNodeID != "" && c.FromNodeID == c.ToNodeID {
			ve.add(field, "fromNodeId and toNodeId must differ")
		}
		if c.StrokeWidth < 0 {
			ve.add(field+".strokeWidth", "must not be negative")
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
