// Package cache defines the key/value contract courier uses to share
// credentials between processes. The redis subpackage is the production
// backend; the testing subpackage provides an in-memory double.
package cache

import (
	"context"
	"time"
)

// Cache is a context-aware byte store. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get returns ErrNotFound if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the key. A ttl of 0 stores without expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete is idempotent.
	Delete(ctx context.Context, key string) error

	// Health should be fast and safe to call frequently.
	Health(ctx context.Context) error

	Close() error
}
