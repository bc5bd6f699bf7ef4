// Package lookup provides refreshable cache-aside tables for reference data
// (settlement models, currency lists). Load-on-first-use with an explicit
// Invalidate, preserving the forced-refresh contract of the configuration
// caches this replaces.
package lookup

import (
	"context"
	"sync"
)

// Table caches values by key, loading misses through the loader. A zero
// table is not usable; construct with New.
type Table[K comparable, V any] struct {
	mu     sync.RWMutex
	values map[K]V
	loader func(ctx context.Context, key K) (V, error)
}

func New[K comparable, V any](loader func(ctx context.Context, key K) (V, error)) *Table[K, V] {
	return &Table[K, V]{
		values: make(map[K]V),
		loader: loader,
	}
}

// Get returns the cached value, loading it on a miss.
func (t *Table[K, V]) Get(ctx context.Context, key K) (V, error) {
	t.mu.RLock()
	v, ok := t.values[key]
	t.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err := t.loader(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}

	t.mu.Lock()
	t.values[key] = v
	t.mu.Unlock()
	return v, nil
}

// Invalidate drops a single key so the next Get reloads it.
func (t *Table[K, V]) Invalidate(key K) {
	t.mu.Lock()
	delete(t.values, key)
	t.mu.Unlock()
}

// Reset drops the whole table.
func (t *Table[K, V]) Reset() {
	t.mu.Lock()
	t.values = make(map[K]V)
	t.mu.Unlock()
}
