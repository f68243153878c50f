package vectorstore

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidCollectionName indicates collection name validation failure.
var ErrInvalidCollectionName = errors.New("invalid collection name")

// collectionNamePattern restricts names to a safe filename alphabet, since
// every collection becomes a directory on disk.
var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const maxCollectionNameLength = 100

// ValidateCollectionName checks that a name is usable as a collection
// directory: non-empty, at most 100 characters, and restricted to
// [a-zA-Z0-9_-].
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidCollectionName)
	}
	if len(name) > maxCollectionNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidCollectionName, maxCollectionNameLength)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q (allowed: letters, digits, '-', '_')", ErrInvalidCollectionName, name)
	}
	return nil
}
