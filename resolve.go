package crann

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Resolve returns a value for key, resolving its dependency graph against c.
//
// Resolution order:
//   - a binding registered in c;
//   - a deferred factory (func() T or func() (T, error)) of a resolvable T;
//   - a binding registered in an ancestor, resolved by that ancestor;
//   - implicit construction of a concrete key (see WithImplicitBinding).
//
// Unregistered concrete types are constructed by c itself, not by its parent,
// so their dependencies see the bindings c shadows.
//
// Resolving a key that the same goroutine is already resolving in c returns
// a *CircularDependencyError, whether the call goes through the container
// handed to a factory, a captured container, or a deferred factory.
//
// Example:
//
//	v, err := c.Resolve(reflect.TypeFor[Logger]())
func (c *Container) Resolve(key reflect.Type) (any, error) {
	if key == nil {
		return nil, &ArgumentError{Reason: "service key cannot be nil"}
	}
	if c.core.isDisposed() {
		return nil, ErrDisposed
	}

	b, local := c.core.bindings.Get(key)
	if local {
		if v, ok := b.cached(); ok {
			return v, nil
		}
	}

	c, end := c.begin()
	defer end()

	if !c.enter(key) {
		return nil, c.cycleError(key)
	}
	defer c.leave(key)
	next := c.push(key)

	if local {
		return next.resolveBinding(b)
	}

	if target, ok := deferredTarget(key); ok && c.CanResolve(target) {
		return c.deferred(key, target), nil
	}

	if c.core.parent != nil && c.core.parent.bound(key) {
		parent := &Container{core: c.core.parent, path: c.path, sess: c.sess}
		return parent.Resolve(key)
	}

	if c.core.opts.implicitBinding && isConcrete(key) {
		v, err := next.construct(key)
		if err != nil {
			return nil, &ResolutionError{Type: key, Context: "could not resolve concrete type", Cause: err}
		}
		return v, nil
	}

	return nil, &ResolutionError{Type: key, Cause: ErrNoBinding}
}

// CanResolve reports whether Resolve could produce a value for key without
// constructing anything. For unregistered concrete types the answer is
// optimistic: constructor parameters are not checked.
func (c *Container) CanResolve(key reflect.Type) bool {
	if key == nil || c.core.isDisposed() {
		return false
	}
	if c.core.bindings.Has(key) {
		return true
	}
	if c.core.parent != nil && (&Container{core: c.core.parent}).CanResolve(key) {
		return true
	}
	if target, ok := deferredTarget(key); ok && c.CanResolve(target) {
		return true
	}
	return c.core.opts.implicitBinding && isConcrete(key)
}

// resolveBinding produces a value from a binding owned by c.
func (c *Container) resolveBinding(b *binding) (any, error) {
	st := b.state()

	if st.lifetime == Transient {
		return c.createInstance(b.key, st)
	}

	v, created, err := b.singleton(c.sess.gid, func() (any, error) {
		return c.createInstance(b.key, st)
	})
	if errors.Is(err, errReentrant) {
		return nil, c.cycleError(b.key)
	}
	if err != nil {
		return nil, err
	}
	if created {
		c.core.track(v)
		c.core.logger.Debug("singleton created", typeField("key", b.key))
	}
	return v, nil
}

// createInstance builds a value for key using the binding's strategy.
func (c *Container) createInstance(key reflect.Type, st bindingState) (any, error) {
	switch st.kind {
	case strategyFactory:
		v, err := st.factory(c)
		if err != nil {
			return nil, &ResolutionError{Type: key, Context: "factory failed", Cause: err}
		}
		if err := checkAssignable(v, key); err != nil {
			return nil, &ResolutionError{Type: key, Context: "factory returned wrong type", Cause: err}
		}
		if err := initialize(v); err != nil {
			return nil, &ResolutionError{Type: key, Cause: err}
		}
		return v, nil

	case strategyImplementation:
		v, err := c.construct(st.implementation)
		if err != nil {
			return nil, &ResolutionError{
				Type:    key,
				Context: fmt.Sprintf("could not construct implementation %v", st.implementation),
				Cause:   err,
			}
		}
		return v, nil

	case strategyInstance:
		return st.instance, nil

	default:
		// Registered without a strategy: bind the key to itself
		if isConcrete(key) {
			v, err := c.construct(key)
			if err != nil {
				return nil, &ResolutionError{Type: key, Context: "could not construct self-bound type", Cause: err}
			}
			return v, nil
		}
		return nil, &ResolutionError{Type: key, Context: "binding has no construction strategy", Cause: ErrNoBinding}
	}
}

// deferredTarget reports whether t is func() T or func() (T, error) and returns T.
func deferredTarget(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Func || t.NumIn() != 0 || t.IsVariadic() {
		return nil, false
	}
	switch t.NumOut() {
	case 1:
		return t.Out(0), true
	case 2:
		if t.Out(1) == errorType {
			return t.Out(0), true
		}
	}
	return nil, false
}

// deferred builds a function of type fnType that resolves target against c
// each time it is called. The func() T form panics if resolution fails.
// Called before the resolution that built it returns, the function stays
// part of that resolution.
func (c *Container) deferred(fnType, target reflect.Type) any {
	base := &Container{core: c.core, sess: c.sess}
	returnsError := fnType.NumOut() == 2

	fn := reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		v, err := base.Resolve(target)
		out := reflect.New(target).Elem()
		if err == nil {
			out, err = valueFor(v, target)
		}

		if returnsError {
			errValue := reflect.New(errorType).Elem()
			if err != nil {
				errValue.Set(reflect.ValueOf(err))
				out = reflect.New(target).Elem()
			}
			return []reflect.Value{out, errValue}
		}

		if err != nil {
			panic(fmt.Sprintf("crann: deferred resolution of %v failed: %v", target, err))
		}
		return []reflect.Value{out}
	})

	c.core.logger.Debug("deferred factory synthesized", typeField("key", fnType))
	return fn.Interface()
}

// isConcrete reports whether t can be built without a binding: structs,
// pointers to structs, and any type with catalogued constructors.
// Go has no open generic types at runtime, so there is nothing else to exclude.
func isConcrete(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface:
		return false
	case reflect.Struct:
		return true
	case reflect.Ptr:
		if t.Elem().Kind() == reflect.Struct {
			return true
		}
	}
	ctors, err := constructors.lookup(t)
	return err == nil && len(ctors) > 0
}

// valueFor converts a resolved value into a reflect.Value of type t.
func valueFor(v any, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	if v == nil {
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return out, fmt.Errorf("resolved value of type %v is not assignable to %v", rv.Type(), t)
	}
	out.Set(rv)
	return out, nil
}

func checkAssignable(v any, t reflect.Type) error {
	if v == nil {
		return nil
	}
	if vt := reflect.TypeOf(v); !vt.AssignableTo(t) {
		return fmt.Errorf("value of type %v is not assignable to %v", vt, t)
	}
	return nil
}

// resolveArgs resolves every parameter type against c.
// It stops at the first parameter that fails.
func (c *Container) resolveArgs(params []reflect.Type) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(params))
	for i, p := range params {
		v, err := c.Resolve(p)
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%v): %w", i, p, err)
		}
		rv, err := valueFor(v, p)
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%v): %w", i, p, err)
		}
		args[i] = rv
	}
	return args, nil
}

func (c *core) logFallback(t reflect.Type, err error) {
	c.logger.Debug("constructor rejected, trying next", typeField("type", t), zap.Error(err))
}
