// Package cache provides the read-through cache used by the catalog.
package cache

import (
	"fmt"
	"time"

	expirable "github.com/go-pkgz/expirable-cache"
)

// Cache is a bounded key/value store whose entries expire. Implementations
// must be safe for concurrent use; a shared external cache can satisfy it in
// multi-instance deployments.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Purge()
}

// TTLCache is an in-process LRU cache with a fixed time-to-live per entry.
type TTLCache struct {
	store expirable.Cache
}

func NewTTLCache(ttl time.Duration, maxKeys int) (*TTLCache, error) {
	store, err := expirable.NewCache(
		expirable.TTL(ttl),
		expirable.MaxKeys(maxKeys),
		expirable.LRU(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &TTLCache{store: store}, nil
}

func (c *TTLCache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

// Set stores value under the cache-wide TTL.
func (c *TTLCache) Set(key string, value interface{}) {
	c.store.Set(key, value, 0)
}

func (c *TTLCache) Purge() {
	c.store.Purge()
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(string) (interface{}, bool) { return nil, false }
func (Noop) Set(string, interface{})        {}
func (Noop) Purge()                         {}
