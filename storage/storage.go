// Package storage persists the service's artifacts: rendered answer images
// and grading result documents. The interface is deliberately small so a
// different backend can replace the local filesystem one.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a stored object does not exist.
var ErrNotFound = errors.New("object not found")

// Backend stores and retrieves named objects. Keys are slash-separated
// relative paths.
type Backend interface {
	// Save writes an object, creating parent directories as needed.
	Save(ctx context.Context, key string, data []byte) error

	// Load reads an object. Missing objects return ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys matching a glob pattern. Patterns support **
	// for recursive matching.
	List(ctx context.Context, pattern string) ([]string, error)
}
