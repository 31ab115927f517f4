// Package cache stores rendered previews across runs.
//
// Previews are keyed by a hash of the PostScript document and the render
// settings, so regenerating an unchanged sheet reuses the earlier image
// instead of starting the interpreter.
//
//	c, err := cache.NewFileCache(dir)
//	key := cache.PreviewKey(doc, 150)
//	if png, ok, _ := c.Get(ctx, key); ok {
//	    // reuse
//	}
//
// [NullCache] disables caching.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long a cached preview stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is a byte store with expiring entries.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is a miss,
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero or less never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}
