// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider implements a generic keyed registry for pluggable backends.
//
// Each subsystem creates a typed Registry. Format handlers are populated by an
// explicit registration function, so a fresh registry can be built in
// isolation for tests. Source backends register themselves from init and are
// enabled with a blank import. Keys are case-insensitive; a leading dot is
// ignored so that ".PDF", "pdf" and "Pdf" resolve to the same entry.
package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is a thread-safe registry of values of type V keyed by a
// normalized name.
type Registry[V any] struct {
	subsystem string
	mu        sync.RWMutex
	entries   map[string]V
}

// NewRegistry creates a new Registry. The subsystem name is used in error
// messages (e.g. "format", "source").
func NewRegistry[V any](subsystem string) *Registry[V] {
	return &Registry[V]{
		subsystem: subsystem,
		entries:   make(map[string]V),
	}
}

// NormalizeKey lower-cases a key and strips surrounding whitespace and a
// single leading dot.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.TrimPrefix(key, ".")
}

// Register adds a named entry. Panics if the key is empty or already
// registered: two entries for one key is a wiring mistake that must surface at
// start-up rather than depend on registration order.
func (r *Registry[V]) Register(key string, v V) {
	k := NormalizeKey(key)
	if k == "" {
		panic(fmt.Sprintf("provider: %s entry registered with empty key", r.subsystem))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[k]; exists {
		panic(fmt.Sprintf("provider: %s entry %q already registered", r.subsystem, k))
	}
	r.entries[k] = v
}

// Replace sets the entry for key, overwriting any previous one. This is the
// explicit last-wins path, used when a caller deliberately swaps a strategy.
func (r *Registry[V]) Replace(key string, v V) {
	k := NormalizeKey(key)
	if k == "" {
		panic(fmt.Sprintf("provider: %s entry registered with empty key", r.subsystem))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[k] = v
}

// Lookup returns the entry registered for key.
func (r *Registry[V]) Lookup(key string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[NormalizeKey(key)]
	return v, ok
}

// Get is like Lookup but returns a descriptive error for unknown keys.
func (r *Registry[V]) Get(key string) (V, error) {
	v, ok := r.Lookup(key)
	if !ok {
		var zero V
		return zero, fmt.Errorf("unknown %s provider: %q (available: %v)", r.subsystem, NormalizeKey(key), r.Keys())
	}
	return v, nil
}

// Has reports whether key is registered.
func (r *Registry[V]) Has(key string) bool {
	_, ok := r.Lookup(key)
	return ok
}

// Keys returns the sorted list of registered keys.
func (r *Registry[V]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered entries.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes every entry. Intended for test isolation only.
func (r *Registry[V]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]V)
}
