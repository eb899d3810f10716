// Package cache is a TTL cache stored in a kvstore namespace. Every entry
// carries its own expiry; reads check it, and Purge sweeps in bulk.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/promptcap/kvstore"
)

// Entry is the stored form of a cached value.
type Entry struct {
	Value  json.RawMessage `json:"value"`
	Expiry int64           `json:"expiry"` // epoch ms
}

func (e Entry) expired(now time.Time) bool {
	return e.Expiry <= now.UnixMilli()
}

// Cache reads and writes Entries in a kvstore.Store.
type Cache struct {
	store kvstore.Store
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets a custom clock function (for testing).
func WithClock(fn func() time.Time) Option {
	return func(c *Cache) { c.now = fn }
}

// New returns a cache over store.
func New(store kvstore.Store, opts ...Option) *Cache {
	c := &Cache{store: store, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get decodes the live value at key into v. Expired entries are removed
// and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string, v any) (bool, error) {
	var e Entry
	ok, err := kvstore.GetJSON(ctx, c.store, key, &e)
	if err != nil || !ok {
		return false, err
	}
	if e.expired(c.now()) {
		if err := c.store.Remove(ctx, key); err != nil {
			return false, fmt.Errorf("cache: remove expired %s: %w", key, err)
		}
		return false, nil
	}
	if err := json.Unmarshal(e.Value, v); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores v at key for ttl.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return kvstore.SetJSON(ctx, c.store, key, Entry{
		Value:  raw,
		Expiry: c.now().Add(ttl).UnixMilli(),
	})
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	return c.store.Remove(ctx, keys...)
}

// Purge removes every expired entry and returns how many were dropped.
// Values that do not decode as an Entry are dropped too.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	all, err := c.store.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("cache: list: %w", err)
	}
	now := c.now()
	var stale []string
	for k, raw := range all {
		var e Entry
		if json.Unmarshal(raw, &e) != nil || e.expired(now) {
			stale = append(stale, k)
		}
	}
	if err := c.store.Remove(ctx, stale...); err != nil {
		return 0, fmt.Errorf("cache: purge: %w", err)
	}
	return len(stale), nil
}

// Clear removes every entry, live or not.
func (c *Cache) Clear(ctx context.Context) error {
	all, err := c.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("cache: list: %w", err)
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	return c.store.Remove(ctx, keys...)
}
