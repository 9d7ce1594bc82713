package cache

import (
	"context"
	"time"
)

// Cache is the contract for the caching layer. Implementations must be safe
// for concurrent use. The voucher service only ever caches listing data;
// usage counters are read from the database on every validation.
type Cache interface {
	// Get fetches a key and unmarshals it into dest.
	// found=false means cache miss; dest is left untouched.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores a value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes keys from the cache.
	Delete(ctx context.Context, keys ...string) error

	// DeletePattern removes all keys matching a glob pattern.
	DeletePattern(ctx context.Context, pattern string) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}
