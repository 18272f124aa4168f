package relgraph

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/storyweb/internal/model"
)

// uuidSegments is the number of '-'-separated groups in a canonical UUID.
const uuidSegments = 5

// ErrLegacyID is returned when a connection id does not carry two encoded
// character ids.
var ErrLegacyID = errors.New("relgraph: not a legacy connection id")

// DecodeLegacyConnectionID recovers the endpoints of a connection authored
// before explicit endpoint fields existed. Such ids are the two character
// UUIDs followed by a timestamp, all joined with '-':
//
//	11111111-1111-1111-1111-111111111111-22222222-2222-2222-2222-222222222222-1700000000000
//
// The id must split into at least ten segments and both reassembled halves
// must parse as UUIDs. The decoded ids are returned in their original
// spelling so that they compare equal to stored character ids.
func DecodeLegacyConnectionID(id string) (string, string, error) {
	parts := strings.Split(id, "-")
	if len(parts) < 2*uuidSegments {
		return "", "", ErrLegacyID
	}
	from := strings.Join(parts[:uuidSegments], "-")
	to := strings.Join(parts[uuidSegments:2*uuidSegments], "-")
	if err := uuid.Validate(from); err != nil {
		return "", "", ErrLegacyID
	}
	if err := uuid.Validate(to); err != nil {
		return "", "", ErrLegacyID
	}
	return from, to, nil
}

// ConnectionEndpoints returns the node ids a connection joins. Explicit
// fields win; when both are empty the legacy id encoding is tried. A
// connection with only one explicit endpoint is unresolvable.
func ConnectionEndpoints(c model.DiagramConnection) (string, string, bool) {
	if c.FromNodeID != "" || c.ToNodeID != "" {
		if c.FromNodeID == "" || c.ToNodeID == "" {
			return "", "", false
		}
		return c.FromNodeID, c.ToNodeID, true
	}
	from, to, err := DecodeLegacyConnectionID(c.ID)
	if err != nil {
		return "", "", false
	}
	return from, to, true
}
