// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// ID prefixes by entity.
const (
	RelationshipPrefix = "rel-"
	ConnectionPrefix   = "cx-"
	DirectPrefix       = "dr-"
)

// DefaultPrefix is prepended by Generate.
var DefaultPrefix = RelationshipPrefix

// Alphabet defines the character set used for the random portion of the ID.
// It excludes '-' so generated ids never look like legacy composite ids.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Generate returns a new unique ID using the default prefix.
func Generate() (string, error) {
	return GenerateWithPrefix(DefaultPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// NewConnectionID returns an id for a diagram connection.
func NewConnectionID() (string, error) {
	return GenerateWithPrefix(ConnectionPrefix)
}

// NewDirectID returns an id for a direct relationship record.
func NewDirectID() (string, error) {
	return GenerateWithPrefix(DirectPrefix)
}
