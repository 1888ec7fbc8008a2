package crann

import (
	"fmt"
	"reflect"
)

// BindingInfo is a read-only snapshot of one binding, for inspection tools.
// Changing a BindingInfo has no effect on the container.
type BindingInfo struct {
	Key            reflect.Type
	Lifetime       Lifetime
	Strategy       string // "implementation", "instance", "factory" or "self"
	Implementation reflect.Type
	HasInstance    bool
	Resolved       bool // the singleton slot is filled
}

// String renders the binding for display.
func (i BindingInfo) String() string {
	target := i.Strategy
	if i.Implementation != nil {
		target = i.Implementation.String()
	}
	return fmt.Sprintf("%v -> %s [%s]", i.Key, target, i.Lifetime)
}

// Bindings returns snapshots of the bindings registered directly in c, in
// registration order. Parent bindings are not included.
func (c *Container) Bindings() []BindingInfo {
	records := c.core.bindings.Values()
	infos := make([]BindingInfo, 0, len(records))
	for _, b := range records {
		infos = append(infos, b.info())
	}
	return infos
}

// Binding returns the snapshot of c's own binding for key.
func (c *Container) Binding(key reflect.Type) (BindingInfo, bool) {
	if key == nil {
		return BindingInfo{}, false
	}
	b, ok := c.core.bindings.Get(key)
	if !ok {
		return BindingInfo{}, false
	}
	return b.info(), true
}
