// Package cache holds the read-through cache used on catalog and order hot paths.
//
// Values are stored as JSON bytes so both backends behave the same and callers
// never share mutable values through the cache. Tag invalidation only reaches
// keys that were registered under the tag when they were set; there is no
// pattern matching over the key space.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	InvalidateTag(ctx context.Context, tag string) error
}

func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var v T
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration, tags ...string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl, tags...)
}

// GetOrSet returns the cached value or computes, stores and returns a fresh one.
// Concurrent misses on one key may each run factory; there is no single-flight.
// Factory errors are returned and never cached; cache errors only cost a recompute.
func GetOrSet[T any](ctx context.Context, c Cache, key string, ttl time.Duration, tags []string, factory func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return factory(ctx)
	}
	l := logging.FromContext(ctx).With("cache_key", key)

	v, ok, err := GetJSON[T](ctx, c, key)
	switch {
	case err != nil:
		l.Warn("cache_get_failed", "error", err)
	case ok:
		l.Debug("cache_hit")
		return v, nil
	default:
		l.Debug("cache_miss")
	}

	v, err = factory(ctx)
	if err != nil {
		return v, err
	}
	if err := SetJSON(ctx, c, key, v, ttl, tags...); err != nil {
		l.Warn("cache_set_failed", "error", err)
	}
	return v, nil
}

// Invalidate drops every given tag, logging rather than failing.
func Invalidate(ctx context.Context, c Cache, tags ...string) {
	if c == nil {
		return
	}
	for _, tag := range tags {
		if err := c.InvalidateTag(ctx, tag); err != nil {
			logging.FromContext(ctx).Warn("cache_invalidate_failed", "tag", tag, "error", err)
		}
	}
}
