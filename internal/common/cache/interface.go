package cache

import (
	"context"
	"time"
)

// Cache is the subset of key/value operations the judge uses.
// Get returns "" and a nil error on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// TryLock sets key only if absent and reports whether it did.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
