// Package storage provides pluggable backend interfaces for storage operations.
package storage

import (
	"context"
	"path"
	"strings"

	"github.com/c360/pixelflow/errors"
)

// Store is the pluggable backend interface consumers persist results to.
//
// Keys are slash-separated strings; values are encoded image bytes.
// All implementations must be safe for concurrent use from multiple goroutines.
//
// Implementations:
//   - filestore.Store: a local directory
//   - objectstore.Store: a NATS JetStream ObjectStore bucket
type Store interface {
	// Put stores data at key, replacing any existing value.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the data at key.
	// Returns an error matching errors.ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys starting with prefix, in lexicographic order.
	// An empty prefix lists every key.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at key.
	// Returns nil if the key doesn't exist (idempotent operation).
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by stores holding connections.
type Closer interface {
	Close() error
}

// ValidateKey rejects empty keys, absolute keys and keys escaping their root.
func ValidateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "storage", "ValidateKey", "empty key")
	}
	if strings.HasPrefix(key, "/") {
		return errors.WrapInvalid(errors.ErrInvalidData, "storage", "ValidateKey", "absolute key "+key)
	}
	clean := path.Clean(key)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return errors.WrapInvalid(errors.ErrInvalidData, "storage", "ValidateKey", "key escapes root "+key)
	}
	return nil
}
