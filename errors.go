package crann

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrDisposed is returned by every operation on a disposed container.
	ErrDisposed = errors.New("crann: container already disposed")
	// ErrNoBinding indicates that nothing in the container chain can produce the key.
	ErrNoBinding = errors.New("no binding registered and type is not implicitly constructible")
	// ErrNoConstructor indicates a type without constructors and without a zero-value form.
	ErrNoConstructor = errors.New("type has no constructors and no implicit default constructor")
	// ErrRootInitialized is returned by InitRoot when the root container already exists.
	ErrRootInitialized = errors.New("crann: root container already initialized")
	// ErrRootNotInitialized is returned by Root before InitRoot has been called.
	ErrRootNotInitialized = errors.New("crann: root container not initialized")

	errReentrant = errors.New("singleton re-entered during its own creation")
)

// InvalidBindingError is returned when a registration is invalid.
// It is raised at the registration call site and never deferred.
type InvalidBindingError struct {
	Key    reflect.Type
	Reason string
}

func (e *InvalidBindingError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("invalid binding: %s", e.Reason)
	}
	return fmt.Sprintf("invalid binding for %v: %s", e.Key, e.Reason)
}

// ArgumentError is returned when an operation receives an unusable argument,
// such as Construct on an interface type.
type ArgumentError struct {
	Type   reflect.Type
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %v: %s", e.Type, e.Reason)
}

// ResolutionError is returned when a key cannot be resolved.
type ResolutionError struct {
	Type    reflect.Type
	Context string
	Cause   error
}

func (e *ResolutionError) Error() string {
	typeStr := "unknown"
	if e.Type != nil {
		typeStr = e.Type.String()
	}

	contextStr := ""
	if e.Context != "" {
		contextStr = fmt.Sprintf(": %s", e.Context)
	}

	causeStr := ""
	if e.Cause != nil {
		causeStr = fmt.Sprintf(": %v", e.Cause)
	}

	return fmt.Sprintf("failed to resolve %s%s%s", typeStr, contextStr, causeStr)
}

// Unwrap returns the underlying cause error.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// ConstructionError is returned when a concrete type could not be built:
// every constructor failed parameter resolution, a constructor returned an
// error, or the type has no constructors at all.
type ConstructionError struct {
	Type  reflect.Type
	Cause error
}

func (e *ConstructionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("failed to construct %v", e.Type)
	}
	return fmt.Sprintf("failed to construct %v: %v", e.Type, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ConstructionError) Unwrap() error {
	return e.Cause
}

// CircularDependencyError indicates a circular dependency was detected.
// Path lists the keys being resolved, ending with the key that closed the cycle.
type CircularDependencyError struct {
	Path []reflect.Type
}

func (e *CircularDependencyError) Error() string {
	if len(e.Path) == 0 {
		return "circular dependency detected"
	}

	names := make([]string, len(e.Path))
	for i, t := range e.Path {
		names[i] = t.String()
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(names, " -> "))
}

// InjectionError reports a mandatory injection point that could not be populated.
type InjectionError struct {
	Target reflect.Type
	Member string
	Type   reflect.Type
	Cause  error
}

func (e *InjectionError) Error() string {
	memberType := ""
	if e.Type != nil {
		memberType = fmt.Sprintf(" (%v)", e.Type)
	}
	return fmt.Sprintf("failed to inject %v.%s%s: %v", e.Target, e.Member, memberType, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *InjectionError) Unwrap() error {
	return e.Cause
}
