package cache

import (
	"context"
	"math/rand/v2"
	"time"
)

// NullCacheValue marks a cached absence so repeated misses skip the source.
const NullCacheValue = "$NULL$"

// Codec converts values to and from their cached string form.
type Codec[T any] struct {
	Encode func(T) (string, error)
	Decode func(string) (T, error)
	// Absent reports a loaded value that stands for "no such record".
	Absent func(T) bool
}

// Expiry holds the lifetimes of cached values and cached absences.
type Expiry struct {
	Hit  time.Duration
	Miss time.Duration
}

// GetWithCached serves key from c, calling load on a miss and caching what it returns.
// Absent values are cached as NullCacheValue for exp.Miss and come back as the zero T.
// Cache failures fall through to load; only load's error is returned.
func GetWithCached[T any](ctx context.Context, c Cache, key string, exp Expiry, codec Codec[T], load func(context.Context) (T, error)) (T, error) {
	var zero T

	if cached, err := c.Get(ctx, key); err == nil && cached != "" {
		if cached == NullCacheValue {
			return zero, nil
		}
		if v, err := codec.Decode(cached); err == nil {
			return v, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return zero, err
	}
	if codec.Absent != nil && codec.Absent(v) {
		if exp.Miss > 0 {
			_ = c.Set(ctx, key, NullCacheValue, exp.Miss)
		}
		return zero, nil
	}
	if encoded, err := codec.Encode(v); err == nil {
		_ = c.Set(ctx, key, encoded, JitterTTL(exp.Hit))
	}
	return v, nil
}

// JitterTTL shortens ttl by up to 10% so entries written together expire apart.
func JitterTTL(ttl time.Duration) time.Duration {
	spread := int64(ttl / 10)
	if spread <= 0 {
		return ttl
	}
	return ttl - time.Duration(rand.Int64N(spread+1))
}
