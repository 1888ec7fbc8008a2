package crann

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// strategy names which construction strategy of a binding is authoritative.
type strategy int

const (
	strategyNone strategy = iota
	strategyImplementation
	strategyInstance
	strategyFactory
)

func (s strategy) String() string {
	switch s {
	case strategyImplementation:
		return "implementation"
	case strategyInstance:
		return "instance"
	case strategyFactory:
		return "factory"
	default:
		return "self"
	}
}

// binding is the record stored per key in a container's table.
// The key never changes; the strategy fields change only through the
// builder returned by Register.
type binding struct {
	key reflect.Type

	// mu guards the strategy fields below.
	mu             sync.RWMutex
	lifetime       Lifetime
	kind           strategy
	implementation reflect.Type
	instance       any
	factory        Factory

	// createMu serialises singleton creation for this binding only.
	// creator is the goroutine holding it.
	createMu sync.Mutex
	creator  atomic.Int64
	slotMu   sync.RWMutex
	filled   bool
	value    any
}

// bindingState is a consistent copy of a binding's strategy fields.
type bindingState struct {
	lifetime       Lifetime
	kind           strategy
	implementation reflect.Type
	instance       any
	factory        Factory
}

func newBinding(key reflect.Type) *binding {
	return &binding{key: key, lifetime: Transient}
}

func (b *binding) state() bindingState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return bindingState{
		lifetime:       b.lifetime,
		kind:           b.kind,
		implementation: b.implementation,
		instance:       b.instance,
		factory:        b.factory,
	}
}

func (b *binding) setImplementation(t reflect.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kind = strategyImplementation
	b.implementation = t
	b.instance = nil
	b.factory = nil
	b.clearSlot()
}

func (b *binding) setSelf() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kind = strategyNone
	b.implementation = nil
	b.instance = nil
	b.factory = nil
	b.clearSlot()
}

func (b *binding) setFactory(fn Factory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kind = strategyFactory
	b.factory = fn
	b.implementation = nil
	b.instance = nil
	b.clearSlot()
}

// setInstance fixes the binding to v and fills the singleton slot.
func (b *binding) setInstance(v any) {
	b.mu.Lock()
	b.kind = strategyInstance
	b.instance = v
	b.implementation = nil
	b.factory = nil
	b.lifetime = Singleton
	b.mu.Unlock()

	b.slotMu.Lock()
	b.value = v
	b.filled = true
	b.slotMu.Unlock()
}

// clearSlot empties the singleton slot left by a previous ToInstance.
func (b *binding) clearSlot() {
	b.slotMu.Lock()
	b.value = nil
	b.filled = false
	b.slotMu.Unlock()
}

// setLifetime changes the lifetime unless the binding is instance-fixed.
func (b *binding) setLifetime(l Lifetime) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.kind == strategyInstance {
		if l == Singleton {
			return nil
		}
		return &InvalidBindingError{
			Key:    b.key,
			Reason: "instance bindings are always singleton; cannot change lifetime to " + l.String(),
		}
	}

	b.lifetime = l
	return nil
}

// load returns the singleton value if the slot is filled.
func (b *binding) load() (any, bool) {
	b.slotMu.RLock()
	defer b.slotMu.RUnlock()
	return b.value, b.filled
}

// cached returns the slot value of a singleton binding that is already filled.
func (b *binding) cached() (any, bool) {
	b.mu.RLock()
	singleton := b.lifetime == Singleton
	b.mu.RUnlock()
	if !singleton {
		return nil, false
	}
	return b.load()
}

// singleton returns the slot value, calling create at most once to fill it.
// created reports whether this call produced the value. A call from the
// goroutine gid that is already creating this value returns errReentrant.
//
// This method is goroutine-safe.
func (b *binding) singleton(gid int64, create func() (any, error)) (value any, created bool, err error) {
	// Fast path: slot already filled
	if v, ok := b.load(); ok {
		return v, false, nil
	}

	if gid != 0 && b.creator.Load() == gid {
		return nil, false, errReentrant
	}
	b.createMu.Lock()
	b.creator.Store(gid)
	defer func() {
		b.creator.Store(0)
		b.createMu.Unlock()
	}()

	// Double-check after acquiring the creation lock
	if v, ok := b.load(); ok {
		return v, false, nil
	}

	v, err := create()
	if err != nil {
		return nil, false, err
	}

	b.slotMu.Lock()
	b.value = v
	b.filled = true
	b.slotMu.Unlock()

	return v, true, nil
}

// info returns a read-only snapshot for introspection.
func (b *binding) info() BindingInfo {
	st := b.state()
	_, resolved := b.load()
	return BindingInfo{
		Key:            b.key,
		Lifetime:       st.lifetime,
		Strategy:       st.kind.String(),
		Implementation: st.implementation,
		HasInstance:    st.kind == strategyInstance,
		Resolved:       resolved,
	}
}
