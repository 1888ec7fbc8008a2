package crann

import (
	"reflect"
	"sync"
)

// reflectionCache caches injection metadata per struct type so InjectInto
// does not walk the same type twice. Entries are never invalidated: a Go
// type's shape cannot change at runtime.
type reflectionCache struct {
	mu sync.RWMutex

	points map[reflect.Type]*injectionPoints
}

// injectionPoints holds the injection metadata of one struct type.
type injectionPoints struct {
	fields  []fieldInfo
	methods []methodInfo
}

// fieldInfo stores metadata about a tagged struct field.
type fieldInfo struct {
	index    int
	name     string
	typ      reflect.Type
	optional bool
	exported bool
}

// methodInfo stores metadata about an injection method.
type methodInfo struct {
	name     string
	params   []reflect.Type // receiver excluded
	optional bool
	found    bool
	invalid  string // non-empty when the method cannot be used for injection
}

var injectionCache = newReflectionCache()

func newReflectionCache() *reflectionCache {
	return &reflectionCache{
		points: make(map[reflect.Type]*injectionPoints),
	}
}

// get retrieves or computes the injection points of the struct type typ.
// target is a pointer to a typ value, used to ask MethodInjector types for
// their method list.
func (rc *reflectionCache) get(typ reflect.Type, target reflect.Value) *injectionPoints {
	// Fast path: check cache with read lock
	rc.mu.RLock()
	points, exists := rc.points[typ]
	rc.mu.RUnlock()

	if exists {
		return points
	}

	// Computed outside the lock: InjectionMethods is user code
	computed := &injectionPoints{
		fields:  scanFields(typ),
		methods: scanMethods(typ, target),
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	// Double-check after acquiring write lock
	if points, exists = rc.points[typ]; exists {
		return points
	}
	rc.points[typ] = computed
	return computed
}

// scanFields returns the fields of typ carrying an inject tag.
func scanFields(typ reflect.Type) []fieldInfo {
	var fields []fieldInfo

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		tag, ok := field.Tag.Lookup("inject")
		if !ok {
			continue
		}
		opts := parseInjectTag(tag)
		if opts.skip {
			continue
		}

		fields = append(fields, fieldInfo{
			index:    i,
			name:     field.Name,
			typ:      field.Type,
			optional: opts.optional,
			exported: field.IsExported(),
		})
	}

	return fields
}

// scanMethods returns the injection methods declared by target, looked up on
// the pointer type so both value and pointer receivers are found.
func scanMethods(typ reflect.Type, target reflect.Value) []methodInfo {
	injector, ok := target.Interface().(MethodInjector)
	if !ok {
		return nil
	}

	ptrType := reflect.PointerTo(typ)
	points := injector.InjectionMethods()
	methods := make([]methodInfo, 0, len(points))

	for _, point := range points {
		info := methodInfo{name: point.Name, optional: point.Optional}

		method, found := ptrType.MethodByName(point.Name)
		if !found {
			methods = append(methods, info)
			continue
		}
		info.found = true

		mt := method.Type
		if mt.IsVariadic() {
			info.invalid = "variadic methods cannot be injected"
		}
		switch {
		case mt.NumOut() == 1 && mt.Out(0) == errorType:
		case mt.NumOut() == 0:
		default:
			info.invalid = "method must return nothing or a single error"
		}

		for i := 1; i < mt.NumIn(); i++ {
			info.params = append(info.params, mt.In(i))
		}
		methods = append(methods, info)
	}

	return methods
}
