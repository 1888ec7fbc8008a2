// Package registry provides thread-safe, order-preserving storage keyed by reflect.Type.
package registry

import (
	"reflect"
	"sync"
)

// Registry maps service types to values and remembers the order in which
// keys were last written.
// It is safe for concurrent use.
type Registry[V any] struct {
	mu      sync.RWMutex
	entries map[reflect.Type]V
	order   []reflect.Type
}

// New creates an empty Registry.
func New[V any]() *Registry[V] {
	return &Registry[V]{
		entries: make(map[reflect.Type]V),
	}
}

// Put stores value under key, replacing any previous value.
// A replaced key moves to the end of the registration order.
// Returns true if a previous value was replaced.
//
// This method is goroutine-safe.
func (r *Registry[V]) Put(key reflect.Type, value V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.entries[key]
	if replaced {
		r.removeFromOrder(key)
	}

	r.entries[key] = value
	r.order = append(r.order, key)
	return replaced
}

// Get retrieves the value stored under key.
//
// This method is goroutine-safe.
func (r *Registry[V]) Get(key reflect.Type) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, exists := r.entries[key]
	return value, exists
}

// Has checks if a value exists for key.
//
// This method is goroutine-safe.
func (r *Registry[V]) Has(key reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.entries[key]
	return exists
}

// Len returns the number of stored keys.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Values returns the stored values in registration order.
// The returned slice is a copy.
func (r *Registry[V]) Values() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()

	values := make([]V, 0, len(r.order))
	for _, key := range r.order {
		values = append(values, r.entries[key])
	}
	return values
}

// Clear removes every entry.
func (r *Registry[V]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[reflect.Type]V)
	r.order = nil
}

// removeFromOrder drops key from the order slice (must hold mu.Lock).
func (r *Registry[V]) removeFromOrder(key reflect.Type) {
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
