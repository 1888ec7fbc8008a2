package crann

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ConstructorSource lets a type describe its own constructors.
// Constructors is called once per type, on the zero value (a nil pointer for
// pointer types), so it must not touch the receiver. Only functions whose
// result type is exactly the described type are used.
//
// Example:
//
//	func (*Widget) Constructors() []any {
//	    return []any{NewWidget, NewWidgetWithCache}
//	}
type ConstructorSource interface {
	Constructors() []any
}

var constructorSourceType = reflect.TypeOf((*ConstructorSource)(nil)).Elem()

// constructorInfo holds metadata about a constructor function.
type constructorInfo struct {
	fn           reflect.Value
	paramTypes   []reflect.Type
	returnsError bool
	returnType   reflect.Type
}

// parseConstructor analyzes a constructor function and extracts metadata.
// Supported signatures:
//   - func(Dep1, Dep2, ...) T
//   - func(Dep1, Dep2, ...) (T, error)
func parseConstructor(constructor any) (*constructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	fnValue := reflect.ValueOf(constructor)
	fnType := fnValue.Type()

	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %v", fnType.Kind())
	}
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("constructor must not be variadic: %v", fnType)
	}
	if fnValue.IsNil() {
		return nil, fmt.Errorf("constructor cannot be a nil function")
	}

	numOut := fnType.NumOut()
	if numOut == 0 || numOut > 2 {
		return nil, fmt.Errorf("constructor must return (T) or (T, error), got %d return values", numOut)
	}

	returnsError := false
	if numOut == 2 {
		if fnType.Out(1) != errorType {
			return nil, fmt.Errorf("constructor's second return value must be error, got %v", fnType.Out(1))
		}
		returnsError = true
	}

	paramTypes := make([]reflect.Type, fnType.NumIn())
	for i := range paramTypes {
		paramTypes[i] = fnType.In(i)
	}

	return &constructorInfo{
		fn:           fnValue,
		paramTypes:   paramTypes,
		returnsError: returnsError,
		returnType:   fnType.Out(0),
	}, nil
}

// call invokes the constructor with already-resolved arguments.
func (info *constructorInfo) call(args []reflect.Value) (any, error) {
	results := info.fn.Call(args)

	if info.returnsError {
		if errValue := results[1]; !errValue.IsNil() {
			return nil, fmt.Errorf("constructor returned error: %w", errValue.Interface().(error))
		}
	}

	return results[0].Interface(), nil
}

// catalog is the process-wide table of constructors per concrete type.
type catalog struct {
	mu       sync.RWMutex
	declared map[reflect.Type][]*constructorInfo
	sorted   map[reflect.Type][]*constructorInfo
	failures map[reflect.Type]error

	// described holds a *sync.Once per type for ConstructorSource loading.
	described sync.Map
}

var constructors = newCatalog()

func newCatalog() *catalog {
	return &catalog{
		declared: make(map[reflect.Type][]*constructorInfo),
		sorted:   make(map[reflect.Type][]*constructorInfo),
		failures: make(map[reflect.Type]error),
	}
}

// RegisterConstructors adds constructor functions to the process-wide
// catalog. Each function is filed under its first result type; the order of
// registration breaks ties between constructors with equal parameter counts.
// Nothing is registered if any function is invalid.
//
// Example:
//
//	crann.RegisterConstructors(NewWidget, NewMinimalWidget)
//	w, err := crann.Construct[*Widget](c)
func RegisterConstructors(ctors ...any) error {
	infos := make([]*constructorInfo, 0, len(ctors))
	for _, ctor := range ctors {
		info, err := parseConstructor(ctor)
		if err != nil {
			return &InvalidBindingError{Reason: fmt.Sprintf("invalid constructor: %v", err)}
		}
		infos = append(infos, info)
	}
	constructors.add(infos...)
	return nil
}

func (cat *catalog) add(infos ...*constructorInfo) {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	for _, info := range infos {
		cat.declared[info.returnType] = append(cat.declared[info.returnType], info)
		delete(cat.sorted, info.returnType)
	}
}

// lookup returns the constructors of t ordered by descending parameter
// count, ties in declaration order. The order is computed once per type.
func (cat *catalog) lookup(t reflect.Type) ([]*constructorInfo, error) {
	cat.describe(t)

	// Fast path: sorted list already cached
	cat.mu.RLock()
	if err := cat.failures[t]; err != nil {
		cat.mu.RUnlock()
		return nil, err
	}
	list, exists := cat.sorted[t]
	cat.mu.RUnlock()

	if exists {
		return list, nil
	}

	cat.mu.Lock()
	defer cat.mu.Unlock()

	// Double-check after acquiring write lock
	if list, exists = cat.sorted[t]; exists {
		return list, nil
	}

	list = append([]*constructorInfo(nil), cat.declared[t]...)
	sort.SliceStable(list, func(i, j int) bool {
		return len(list[i].paramTypes) > len(list[j].paramTypes)
	})
	cat.sorted[t] = list
	return list, nil
}

// describe loads the constructors a type declares through ConstructorSource,
// once per type.
func (cat *catalog) describe(t reflect.Type) {
	once, _ := cat.described.LoadOrStore(t, &sync.Once{})
	once.(*sync.Once).Do(func() {
		var source reflect.Value
		switch {
		case t.Kind() == reflect.Interface:
			return
		case t.Implements(constructorSourceType):
			source = reflect.Zero(t)
		case reflect.PointerTo(t).Implements(constructorSourceType):
			source = reflect.New(t)
		default:
			return
		}

		infos := make([]*constructorInfo, 0)
		for _, ctor := range source.Interface().(ConstructorSource).Constructors() {
			info, err := parseConstructor(ctor)
			if err != nil {
				cat.fail(t, fmt.Errorf("invalid constructor declared by %v: %w", t, err))
				return
			}
			if info.returnType == t {
				infos = append(infos, info)
			}
		}
		cat.add(infos...)
	})
}

func (cat *catalog) fail(t reflect.Type, err error) {
	cat.mu.Lock()
	defer cat.mu.Unlock()
	cat.failures[t] = err
}

// Construct builds t with constructor injection, resolving parameters
// against c, without requiring a binding for t.
// Interface types are rejected with an ArgumentError.
//
// Example:
//
//	v, err := c.Construct(reflect.TypeFor[*ReportService]())
func (c *Container) Construct(t reflect.Type) (any, error) {
	if t == nil {
		return nil, &ArgumentError{Reason: "type cannot be nil"}
	}
	if c.core.isDisposed() {
		return nil, ErrDisposed
	}
	if t.Kind() == reflect.Interface {
		return nil, &ArgumentError{Type: t, Reason: "cannot construct an interface type"}
	}
	return c.construct(t)
}

// construct runs the constructor-injection algorithm: the most specific
// constructor whose parameters all resolve wins; a parameter failure moves
// on to the next constructor.
func (c *Container) construct(t reflect.Type) (any, error) {
	ctors, err := constructors.lookup(t)
	if err != nil {
		return nil, &ConstructionError{Type: t, Cause: err}
	}

	if len(ctors) == 0 {
		v, ok := zeroValue(t)
		if !ok {
			return nil, &ConstructionError{Type: t, Cause: ErrNoConstructor}
		}
		if err := initialize(v); err != nil {
			return nil, &ConstructionError{Type: t, Cause: err}
		}
		return v, nil
	}

	var lastErr error
	for _, ctor := range ctors {
		args, err := c.resolveArgs(ctor.paramTypes)
		if err != nil {
			lastErr = err
			c.core.logFallback(t, err)
			continue
		}

		v, err := ctor.call(args)
		if err != nil {
			return nil, &ConstructionError{Type: t, Cause: err}
		}
		if err := initialize(v); err != nil {
			return nil, &ConstructionError{Type: t, Cause: err}
		}
		return v, nil
	}

	return nil, &ConstructionError{Type: t, Cause: lastErr}
}

// zeroValue is the implicit default constructor of structs and pointers to structs.
func zeroValue(t reflect.Type) (any, bool) {
	switch {
	case t.Kind() == reflect.Struct:
		return reflect.New(t).Elem().Interface(), true
	case t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct:
		return reflect.New(t.Elem()).Interface(), true
	default:
		return nil, false
	}
}
