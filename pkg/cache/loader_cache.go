// Package cache provides a generic loader cache combining an expiring LRU with
// singleflight to coalesce concurrent loads for the same key.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidSize is returned when the cache is created with a non-positive size.
var ErrInvalidSize = errors.New("cache: size must be positive")

// LoaderCache is a generic cache that loads values on miss via a callback and
// coalesces concurrent loads for the same key using singleflight. Entries expire after
// the configured TTL; a zero TTL keeps them until evicted by size.
// Keys are converted to strings internally via keyToString for LRU and singleflight.
type LoaderCache[K comparable, V any] struct {
	lru         *expirable.LRU[string, V]
	group       singleflight.Group
	keyToString func(K) string
}

// NewLoaderCache creates a loader cache with the given max entries, TTL and key serializer.
func NewLoaderCache[K comparable, V any](maxEntries int, ttl time.Duration, keyToString func(K) string) (*LoaderCache[K, V], error) {
	if maxEntries <= 0 {
		return nil, ErrInvalidSize
	}

	return &LoaderCache[K, V]{
		lru:         expirable.NewLRU[string, V](maxEntries, nil, ttl),
		keyToString: keyToString,
	}, nil
}

// Get returns the value for key, loading it via load on cache miss.
func (c *LoaderCache[K, V]) Get(ctx context.Context, key K, load func(context.Context, K) (V, error)) (V, error) {
	v, _, err := c.GetWithStats(ctx, key, load)

	return v, err
}

// GetWithStats is like Get but also returns whether the value came from cache (hit) or was loaded (miss).
// On miss, only one goroutine runs load for a key; concurrent callers share its result.
func (c *LoaderCache[K, V]) GetWithStats(ctx context.Context, key K, load func(context.Context, K) (V, error)) (V, bool, error) {
	keyStr := c.keyToString(key)
	if v, ok := c.lru.Get(keyStr); ok {
		return v, true, nil
	}

	val, err, _ := c.group.Do(keyStr, func() (any, error) {
		loaded, loadErr := load(ctx, key)
		if loadErr != nil {
			return zero[V](), loadErr
		}

		c.lru.Add(keyStr, loaded)

		return loaded, nil
	})
	if err != nil {
		return zero[V](), false, err
	}

	return val.(V), false, nil
}

// Peek returns the cached value for key without loading or touching recency.
func (c *LoaderCache[K, V]) Peek(key K) (V, bool) {
	return c.lru.Peek(c.keyToString(key))
}

// Add stores a value loaded outside Get, e.g. by a batch call.
func (c *LoaderCache[K, V]) Add(key K, value V) {
	c.lru.Add(c.keyToString(key), value)
}

func zero[V any]() (z V) { return z }

// Invalidate removes the entry for key.
func (c *LoaderCache[K, V]) Invalidate(key K) {
	c.lru.Remove(c.keyToString(key))
}

// InvalidateAll removes all entries.
func (c *LoaderCache[K, V]) InvalidateAll() {
	c.lru.Purge()
}

// Len returns the number of entries in the cache.
func (c *LoaderCache[K, V]) Len() int {
	return c.lru.Len()
}
