// Package kvstore is the durable namespaced key-value store behind the TTL
// cache and the persisted capture store.
//
// A Backend holds every namespace; callers work through a Namespace, which
// exposes the get(keys | all) / set(items) / remove(keys) contract. Writes
// are last-write-wins per key; there is no cross-key atomicity beyond a
// single Set call.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Backend stores values grouped by namespace.
type Backend interface {
	// Get returns the stored values for keys. A nil or empty keys slice
	// returns every key in the namespace. Missing keys are absent from the map.
	Get(ctx context.Context, ns string, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, ns string, items map[string][]byte) error
	Remove(ctx context.Context, ns string, keys []string) error
	Close() error
}

// Store is the view consumers depend on.
type Store interface {
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	Set(ctx context.Context, items map[string][]byte) error
	Remove(ctx context.Context, keys ...string) error
}

// Namespace scopes a Backend to one name.
type Namespace struct {
	b    Backend
	name string
}

// NewNamespace returns the namespace name of b.
func NewNamespace(b Backend, name string) *Namespace {
	return &Namespace{b: b, name: name}
}

// Name returns the namespace name.
func (n *Namespace) Name() string { return n.name }

// Get returns the values for keys, or the whole namespace when none are given.
func (n *Namespace) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	return n.b.Get(ctx, n.name, keys)
}

// Set writes items.
func (n *Namespace) Set(ctx context.Context, items map[string][]byte) error {
	if len(items) == 0 {
		return nil
	}
	return n.b.Set(ctx, n.name, items)
}

// Remove deletes keys. Unknown keys are ignored.
func (n *Namespace) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return n.b.Remove(ctx, n.name, keys)
}

// GetJSON decodes the value at key into v. It reports false when the key is
// absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	m, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	raw, ok := m[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("kvstore: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kvstore: encode %s: %w", key, err)
	}
	return s.Set(ctx, map[string][]byte{key: raw})
}
