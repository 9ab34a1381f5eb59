// Package instanceregistry is a generic id -> instance registry, adapted
// from original_source/libalgo/instance_registry.hpp's InstanceRegistry:
// the original is a singleton template holding every long-lived device
// instance by a unique string id for the process's lifetime. Here it's an
// ordinary generic type (no package-level singleton: Go callers just hold
// a *Registry[T]), and Get returns (T, bool) rather than a possibly-null
// shared_ptr reference.
package instanceregistry

import (
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Registry holds instances of T keyed by a unique string id.
type Registry[T any] struct {
	mu        sync.RWMutex
	instances map[string]T
}

// New constructs an empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{instances: make(map[string]T)}
}

// Create installs a new instance under id. It errors if id is already
// registered — the original's create() is likewise a one-shot
// constructor, not an upsert.
func (r *Registry[T]) Create(id string, instance T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[id]; exists {
		return fmt.Errorf("instanceregistry: id %q already registered", id)
	}
	r.instances[id] = instance
	return nil
}

// Get returns the instance registered under id, and whether it was found.
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.instances[id]
	return v, ok
}

// IDs returns every currently-registered id, sorted for deterministic
// iteration (log output, diagnostics dumps).
func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := maps.Keys(r.instances)
	slices.Sort(ids)
	return ids
}

// Remove deletes the instance registered under id, if any.
func (r *Registry[T]) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, id)
}
