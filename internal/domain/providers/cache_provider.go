package providers

import (
	"context"
)

// CacheProvider abstracts the cache used for parsed-query results and other
// short-lived lookups. Values are opaque bytes; callers own serialization.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL in seconds. A TTL of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
}
