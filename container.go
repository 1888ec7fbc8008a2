package crann

import (
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/toutaio/toutago-crann/registry"
)

// Container is a hierarchical dependency injection container.
//
// A Container owns its bindings and the singletons it creates. It holds a
// non-owning reference to its parent: child containers see every parent
// binding, can shadow any of them, and never mutate or dispose the parent.
//
// The *Container handed to a Factory is a view of the same container that
// also carries the current resolution path, so cycle errors name every step.
// Cycles are detected per goroutine, which also covers resolutions made
// through a captured container or a deferred factory.
type Container struct {
	core *core
	path []frame
	sess *session
}

// session is one top-level resolution. Views created while it runs share it.
type session struct {
	gid  int64
	done atomic.Bool
}

// active reports whether s belongs to a resolution that has not returned.
func (s *session) active() bool {
	return s != nil && !s.done.Load()
}

// activeKey marks key as being resolved by a goroutine in one container.
type activeKey struct {
	gid int64
	key reflect.Type
}

// frame is one entry of a resolution path.
type frame struct {
	owner *core
	key   reflect.Type
}

// core is the state shared by every view of a container.
type core struct {
	parent   *core
	opts     options
	logger   *zap.Logger
	bindings *registry.Registry[*binding]
	disposed atomic.Bool

	// resolving holds the activeKey of every Resolve in progress.
	resolving sync.Map

	// mu guards disposables and installers.
	mu          sync.Mutex
	disposables []any
	installers  []*installerEntry
}

// New creates a root container.
//
// Example:
//
//	c := crann.New()
//	// or with options:
//	c := crann.New(crann.WithLogger(logger), crann.WithImplicitBinding(false))
func New(opts ...Option) *Container {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Container{core: newCore(nil, o, o.logger.With(zap.String("container", "root")))}
}

func newCore(parent *core, o options, logger *zap.Logger) *core {
	return &core{
		parent:   parent,
		opts:     o,
		logger:   logger,
		bindings: registry.New[*binding](),
	}
}

// CreateChild returns a new container whose parent is c.
// The child resolves every key bound in c (and c's ancestors) without
// copying anything; registering a key in the child shadows the parent's
// binding for the child and its descendants only.
//
// Example:
//
//	request, err := root.CreateChild()
//	if err != nil {
//	    return err
//	}
//	defer request.Dispose()
func (c *Container) CreateChild() (*Container, error) {
	if c.core.isDisposed() {
		return nil, ErrDisposed
	}

	child := newCore(c.core, c.core.opts, c.core.opts.logger.With(zap.String("container", "child")))
	c.core.logger.Debug("child container created")
	return &Container{core: child}, nil
}

// Parent returns the parent container, or nil for a root container.
// Called on the container handed to a Factory, it keeps the resolution
// path, so a factory may decorate the parent's binding for its own key.
func (c *Container) Parent() *Container {
	if c.core.parent == nil {
		return nil
	}
	return &Container{core: c.core.parent, path: c.path, sess: c.sess}
}

// IsDisposed reports whether Dispose has been called.
func (c *Container) IsDisposed() bool {
	return c.core.isDisposed()
}

// Logger returns the logger used by the container.
func (c *Container) Logger() *zap.Logger {
	return c.core.logger
}

func (c *core) isDisposed() bool {
	return c.disposed.Load()
}

// bound reports whether c or one of its ancestors has a binding for key.
func (c *core) bound(key reflect.Type) bool {
	for p := c; p != nil; p = p.parent {
		if !p.isDisposed() && p.bindings.Has(key) {
			return true
		}
	}
	return false
}

// push returns a view of the container whose path ends with key.
func (c *Container) push(key reflect.Type) *Container {
	path := make([]frame, len(c.path), len(c.path)+1)
	copy(path, c.path)
	return &Container{core: c.core, path: append(path, frame{owner: c.core, key: key}), sess: c.sess}
}

// begin returns a view bound to an active session, starting a new one when
// c has none. The returned func ends the session if begin started it.
func (c *Container) begin() (*Container, func()) {
	if c.sess.active() {
		return c, func() {}
	}
	s := &session{gid: goroutineID()}
	return &Container{core: c.core, sess: s}, func() { s.done.Store(true) }
}

// enter marks key as being resolved by the session's goroutine.
// It returns false if that goroutine is already resolving key here.
func (c *Container) enter(key reflect.Type) bool {
	_, loaded := c.core.resolving.LoadOrStore(activeKey{gid: c.sess.gid, key: key}, struct{}{})
	return !loaded
}

func (c *Container) leave(key reflect.Type) {
	c.core.resolving.Delete(activeKey{gid: c.sess.gid, key: key})
}

// cycleError reports key closing a cycle. When the cycle was closed outside
// the carried path, key is also shown as the first step.
func (c *Container) cycleError(key reflect.Type) *CircularDependencyError {
	path := make([]reflect.Type, 0, len(c.path)+2)
	seen := false
	for _, f := range c.path {
		path = append(path, f.key)
		if f.owner == c.core && f.key == key {
			seen = true
		}
	}
	if !seen {
		path = append([]reflect.Type{key}, path...)
	}
	return &CircularDependencyError{Path: append(path, key)}
}

// goroutineID returns the id of the calling goroutine.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))
	if len(fields) == 0 {
		return 0
	}
	id, _ := strconv.ParseInt(fields[0], 10, 64)
	return id
}
