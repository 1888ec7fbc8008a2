package crann

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// BindingBuilder is returned by Register. It selects how the registered key
// is built: ToImplementation, ToInstance, ToFactory or ToConstructor.
// A registration that is never completed binds the key to itself.
type BindingBuilder struct {
	c   *Container
	b   *binding
	err error
}

// LifetimeBuilder is the second stage of a registration. It selects how long
// the built value lives. The default lifetime is Transient, except for
// ToInstance which is always Singleton.
type LifetimeBuilder struct {
	b   *binding
	err error
}

// Register creates a fresh binding for key in c, replacing any binding c
// already has for it. Parent containers are never touched.
//
// Example:
//
//	err := c.Register(reflect.TypeFor[Logger]()).
//	    ToImplementation(reflect.TypeFor[*ConsoleLogger]()).
//	    AsSingleton()
func (c *Container) Register(key reflect.Type) *BindingBuilder {
	if key == nil {
		return &BindingBuilder{err: &InvalidBindingError{Reason: "service key cannot be nil"}}
	}
	if c.core.isDisposed() {
		return &BindingBuilder{err: ErrDisposed}
	}

	b := newBinding(key)
	replaced := c.core.bindings.Put(key, b)
	c.core.logger.Debug("binding registered", typeField("key", key), zap.Bool("replaced", replaced))

	return &BindingBuilder{c: c, b: b}
}

// Err returns the registration error, if Register itself failed.
func (bb *BindingBuilder) Err() error {
	return bb.err
}

// ToImplementation binds the key to a concrete type built with constructor
// injection. t must be assignable to the key and be a struct, a pointer to a
// struct, or a type whose constructors were catalogued with
// RegisterConstructors before this call.
//
// Example:
//
//	crann.Register[Repository](c).ToImplementation(reflect.TypeFor[*SQLRepository]())
func (bb *BindingBuilder) ToImplementation(t reflect.Type) *LifetimeBuilder {
	if bb.err != nil {
		return &LifetimeBuilder{err: bb.err}
	}
	if t == nil {
		return bb.invalid("implementation type cannot be nil")
	}
	if !isConcrete(t) {
		return bb.invalid(fmt.Sprintf("implementation %v must be a concrete type", t))
	}
	if !t.AssignableTo(bb.b.key) {
		return bb.invalid(fmt.Sprintf("implementation %v is not assignable to %v", t, bb.b.key))
	}

	bb.b.setImplementation(t)
	return &LifetimeBuilder{b: bb.b}
}

// ToInstance binds the key to a pre-built value. The binding is Singleton
// for good; if the value is disposable the container disposes it.
//
// Example:
//
//	crann.Register[*Config](c).ToInstance(cfg)
func (bb *BindingBuilder) ToInstance(v any) *LifetimeBuilder {
	if bb.err != nil {
		return &LifetimeBuilder{err: bb.err}
	}
	if v == nil {
		return bb.invalid("instance cannot be nil")
	}
	if vt := reflect.TypeOf(v); !vt.AssignableTo(bb.b.key) {
		return bb.invalid(fmt.Sprintf("instance of type %v is not assignable to %v", vt, bb.b.key))
	}

	bb.b.setInstance(v)
	bb.c.core.track(v)
	return &LifetimeBuilder{b: bb.b}
}

// ToSelf binds the key to itself: the key must be a concrete type, built
// with constructor injection. This is also what an incomplete registration
// does; ToSelf exists to choose a lifetime.
//
// Example:
//
//	crann.Register[*ReportService](c).ToSelf().AsSingleton()
func (bb *BindingBuilder) ToSelf() *LifetimeBuilder {
	if bb.err != nil {
		return &LifetimeBuilder{err: bb.err}
	}
	if !isConcrete(bb.b.key) {
		return bb.invalid(fmt.Sprintf("%v is not a concrete type", bb.b.key))
	}

	bb.b.setSelf()
	return &LifetimeBuilder{b: bb.b}
}

// ToFactory binds the key to a function called with the resolution context.
func (bb *BindingBuilder) ToFactory(fn Factory) *LifetimeBuilder {
	if bb.err != nil {
		return &LifetimeBuilder{err: bb.err}
	}
	if fn == nil {
		return bb.invalid("factory function cannot be nil")
	}

	bb.b.setFactory(fn)
	return &LifetimeBuilder{b: bb.b}
}

// ToConstructor binds the key to a constructor function whose parameters are
// resolved from the container on every build.
// Supported signatures are func(Deps...) T and func(Deps...) (T, error),
// where T is assignable to the key.
//
// Example:
//
//	crann.Register[UserService](c).ToConstructor(NewUserService).AsSingleton()
//	// Where: func NewUserService(logger Logger, db Database) (*userService, error)
func (bb *BindingBuilder) ToConstructor(fn any) *LifetimeBuilder {
	if bb.err != nil {
		return &LifetimeBuilder{err: bb.err}
	}

	info, err := parseConstructor(fn)
	if err != nil {
		return bb.invalid(fmt.Sprintf("invalid constructor: %v", err))
	}
	if !info.returnType.AssignableTo(bb.b.key) {
		return bb.invalid(fmt.Sprintf("constructor result %v is not assignable to %v", info.returnType, bb.b.key))
	}

	bb.b.setFactory(func(c *Container) (any, error) {
		args, err := c.resolveArgs(info.paramTypes)
		if err != nil {
			return nil, err
		}
		return info.call(args)
	})
	return &LifetimeBuilder{b: bb.b}
}

func (bb *BindingBuilder) invalid(reason string) *LifetimeBuilder {
	return &LifetimeBuilder{err: &InvalidBindingError{Key: bb.b.key, Reason: reason}}
}

// AsSingleton makes the binding produce one shared instance, created lazily.
// It is a no-op for instance bindings.
func (lb *LifetimeBuilder) AsSingleton() error {
	if lb.err != nil {
		return lb.err
	}
	return lb.b.setLifetime(Singleton)
}

// AsTransient makes the binding produce a new instance on every resolution.
// It fails for instance bindings, which stay Singleton.
func (lb *LifetimeBuilder) AsTransient() error {
	if lb.err != nil {
		return lb.err
	}
	return lb.b.setLifetime(Transient)
}

// Err returns the error of the previous registration step, if any.
// Use it when the default lifetime is wanted:
//
//	if err := crann.Register[Clock](c).ToInstance(clock).Err(); err != nil {
//	    return err
//	}
func (lb *LifetimeBuilder) Err() error {
	return lb.err
}
