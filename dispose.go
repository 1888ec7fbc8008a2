package crann

import (
	"fmt"
	"io"
	"reflect"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Disposable represents a service that requires cleanup.
// Singletons implementing it (or io.Closer) are disposed by the container
// that created them, in reverse creation order.
//
// Example:
//
//	type DatabaseConnection struct {}
//	func (d *DatabaseConnection) Dispose() error {
//	    return d.connection.Close()
//	}
type Disposable interface {
	Dispose() error
}

// Initializable represents a service that requires initialization.
// Values built by the container that implement it have Initialize called
// once, right after construction. Instances passed to ToInstance are not
// initialized.
type Initializable interface {
	Initialize() error
}

func initialize(v any) error {
	if i, ok := v.(Initializable); ok {
		if err := i.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize %T: %w", v, err)
		}
	}
	return nil
}

// disposerFor returns the cleanup function of v, if it has one.
func disposerFor(v any) (func() error, bool) {
	switch d := v.(type) {
	case Disposable:
		return d.Dispose, true
	case io.Closer:
		return d.Close, true
	default:
		return nil, false
	}
}

// track records v for disposal if it is disposable.
// A value already tracked by this container is not tracked twice. A value
// created after the container was disposed is disposed immediately.
func (c *core) track(v any) {
	if _, ok := disposerFor(v); !ok {
		return
	}

	c.mu.Lock()
	if c.disposed.Load() {
		c.mu.Unlock()
		if err := safeDispose(v); err != nil {
			c.logger.Error("failed to dispose instance",
				zap.String("type", fmt.Sprintf("%T", v)),
				zap.Error(err),
			)
		}
		return
	}
	defer c.mu.Unlock()

	for _, existing := range c.disposables {
		if sameValue(existing, v) {
			return
		}
	}
	c.disposables = append(c.disposables, v)
}

// sameValue reports whether a and b hold the same dynamic type and value.
// Values whose contents cannot be compared are never the same.
func sameValue(a, b any) bool {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Type() != bv.Type() || !av.Comparable() || !bv.Comparable() {
		return false
	}
	return a == b
}

// Dispose releases the container. The first call disposes every tracked
// singleton in reverse creation order, logging and collecting failures
// without stopping, then clears the binding table. Later calls are no-ops.
// Children and the parent are not affected.
//
// Example:
//
//	c := crann.New()
//	defer c.Dispose()
func (c *Container) Dispose() error {
	state := c.core

	state.mu.Lock()
	if state.disposed.Load() {
		state.mu.Unlock()
		return nil
	}
	state.disposed.Store(true)
	tracked := state.disposables
	state.disposables = nil
	state.installers = nil
	state.mu.Unlock()

	var errs error
	for i := len(tracked) - 1; i >= 0; i-- {
		instance := tracked[i]
		if err := safeDispose(instance); err != nil {
			state.logger.Error("failed to dispose instance",
				zap.String("type", fmt.Sprintf("%T", instance)),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("disposal error for %T: %w", instance, err))
		}
	}

	bindings := state.bindings.Len()
	state.bindings.Clear()
	state.logger.Debug("container disposed",
		zap.Int("disposed", len(tracked)),
		zap.Int("bindings", bindings),
	)

	return errs
}

// safeDispose runs v's cleanup, turning a panic into an error.
func safeDispose(v any) (err error) {
	dispose, ok := disposerFor(v)
	if !ok {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispose panicked: %v", r)
		}
	}()

	return dispose()
}
