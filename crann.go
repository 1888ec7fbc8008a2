// Package crann provides a hierarchical dependency injection container for Go.
//
// Crann (Irish: "Tree") resolves object graphs at runtime from bindings
// keyed by type. Containers form a tree: a child sees every binding of its
// ancestors, can shadow any of them, and owns only what it creates.
//
// # Features
//
//   - Bindings to an implementation, a fixed instance, a factory or a constructor
//   - Transient and Singleton lifetimes, singletons created lazily and once
//   - Constructor injection with fallback to less specific constructors
//   - Implicit construction of unregistered concrete types
//   - Deferred factories: func() T and func() (T, error) are resolvable
//   - Field and method injection into existing objects
//   - Circular dependency detection per goroutine, through factories,
//     captured containers and deferred factories alike
//   - Disposal of owned singletons in reverse creation order
//   - Installers for modular configuration
//
// # Quick Start
//
//	c := crann.New()
//	defer c.Dispose()
//
//	crann.Register[Logger](c).ToImplementation(reflect.TypeFor[*ConsoleLogger]()).AsSingleton()
//	logger, err := crann.Resolve[Logger](c)
//
// # Lifetimes
//
// Transient - new instance each time (the default):
//
//	crann.Register[Handler](c).ToImplementation(reflect.TypeFor[*handler]()).AsTransient()
//
// Singleton - one instance, shared by the owning container and its children:
//
//	crann.Register[Cache](c).ToFactory(newCache).AsSingleton()
//
// # Child Containers
//
//	request, _ := root.CreateChild()
//	defer request.Dispose()
//	crann.Register[*RequestContext](request).ToInstance(rc)
//
// # Constructor Injection
//
// Constructors are registered per type, or declared by the type itself
// through ConstructorSource. The constructor with the most parameters is
// tried first; if one of its parameters cannot be resolved the next one is
// tried:
//
//	crann.RegisterConstructors(NewReportService, NewReportServiceWithCache)
//	svc, err := crann.Resolve[*ReportService](c)
//
// # Field Injection
//
//	type Handler struct {
//	    Logger Logger `inject:""`
//	    Cache  Cache  `inject:"optional"`
//	}
//	_, err := c.InjectInto(&Handler{})
//
// # Thread Safety
//
// All operations are safe for concurrent use. Factories should resolve their
// dependencies through the *Container they receive so cycle errors show the
// full chain.
package crann

import "reflect"

// Register starts a binding for T in c.
//
// Example:
//
//	err := crann.Register[Logger](c).ToInstance(logger).Err()
func Register[T any](c *Container) *BindingBuilder {
	return c.Register(reflect.TypeFor[T]())
}

// Resolve resolves T from c.
//
// Example:
//
//	logger, err := crann.Resolve[Logger](c)
func Resolve[T any](c *Container) (T, error) {
	var zero T

	v, err := c.Resolve(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}

	typed, ok := v.(T)
	if !ok {
		return zero, &ResolutionError{
			Type:    reflect.TypeFor[T](),
			Context: "type assertion failed",
		}
	}
	return typed, nil
}

// MustResolve resolves T from c and panics on failure.
// Use it only during application startup.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}

// CanResolve reports whether T can be resolved from c.
func CanResolve[T any](c *Container) bool {
	return c.CanResolve(reflect.TypeFor[T]())
}

// Construct builds T with constructor injection against c, without a binding.
func Construct[T any](c *Container) (T, error) {
	var zero T

	v, err := c.Construct(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &ConstructionError{Type: reflect.TypeFor[T]()}
	}
	return typed, nil
}
