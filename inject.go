package crann

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MethodPoint names an injection method.
type MethodPoint struct {
	Name     string
	Optional bool
}

// MethodInjector is implemented by types that receive dependencies through
// methods. Each listed method has its parameters resolved from the container
// and is then called. It may return nothing or a single error.
//
// Example:
//
//	func (h *Handler) InjectionMethods() []crann.MethodPoint {
//	    return []crann.MethodPoint{{Name: "SetMetrics", Optional: true}}
//	}
//
//	func (h *Handler) SetMetrics(m Metrics) { h.metrics = m }
type MethodInjector interface {
	InjectionMethods() []MethodPoint
}

// tagOptions represents parsed options from an inject tag.
type tagOptions struct {
	skip     bool
	optional bool
}

// parseInjectTag parses an inject struct tag.
// Supported formats:
//   - `inject:""` - mandatory injection
//   - `inject:"optional"` - optional injection
//   - `inject:"-"` - never injected
func parseInjectTag(tag string) tagOptions {
	opts := tagOptions{}

	if tag == "-" {
		opts.skip = true
		return opts
	}

	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == "optional" {
			opts.optional = true
		}
	}

	return opts
}

// InjectInto populates the injection points of an existing object from c:
// struct fields tagged `inject`, then the methods listed by MethodInjector.
//
// A point that cannot be resolved is skipped silently when optional. When
// mandatory, an InjectionError is recorded and the remaining points are still
// processed. InjectInto reports whether at least one point was populated and
// returns every mandatory failure combined.
//
// Example:
//
//	type Handler struct {
//	    Logger Logger `inject:""`
//	    Cache  Cache  `inject:"optional"`
//	}
//
//	h := &Handler{}
//	if _, err := c.InjectInto(h); err != nil {
//	    return err
//	}
func (c *Container) InjectInto(target any) (bool, error) {
	if target == nil {
		return false, &ArgumentError{Reason: "injection target cannot be nil"}
	}
	if c.core.isDisposed() {
		return false, ErrDisposed
	}

	value := reflect.ValueOf(target)
	if value.Kind() != reflect.Ptr || value.IsNil() {
		return false, &ArgumentError{Type: value.Type(), Reason: "injection target must be a non-nil pointer to struct"}
	}
	elem := value.Elem()
	if elem.Kind() != reflect.Struct {
		return false, &ArgumentError{Type: value.Type(), Reason: "injection target must be a non-nil pointer to struct"}
	}

	points := injectionCache.get(elem.Type(), value)

	var errs error
	injected := false

	for _, field := range points.fields {
		ok, err := c.injectField(elem, field)
		if ok {
			injected = true
		}
		errs = multierr.Append(errs, err)
	}

	for _, method := range points.methods {
		ok, err := c.injectMethod(value, method)
		if ok {
			injected = true
		}
		errs = multierr.Append(errs, err)
	}

	return injected, errs
}

// InjectInto is the package-level form of Container.InjectInto.
func InjectInto(c *Container, target any) (bool, error) {
	return c.InjectInto(target)
}

// injectField resolves and assigns one field. The error is non-nil only for
// mandatory fields that could not be populated.
func (c *Container) injectField(elem reflect.Value, field fieldInfo) (bool, error) {
	fail := func(cause error) (bool, error) {
		if field.optional {
			return false, nil
		}
		return false, c.injectionFailure(elem.Type(), field.name, field.typ, cause)
	}

	if !field.exported {
		return fail(fmt.Errorf("field is not exported"))
	}
	if !c.CanResolve(field.typ) {
		return fail(&ResolutionError{Type: field.typ, Cause: ErrNoBinding})
	}

	v, err := c.Resolve(field.typ)
	if err != nil {
		return fail(err)
	}
	rv, err := valueFor(v, field.typ)
	if err != nil {
		return fail(err)
	}

	elem.Field(field.index).Set(rv)
	return true, nil
}

// injectMethod resolves the parameters of one injection method and calls it.
// The error is non-nil only for mandatory methods that failed.
func (c *Container) injectMethod(target reflect.Value, method methodInfo) (bool, error) {
	structType := target.Type().Elem()
	fail := func(cause error) (bool, error) {
		if method.optional {
			return false, nil
		}
		return false, c.injectionFailure(structType, method.name, nil, cause)
	}

	if !method.found {
		return fail(fmt.Errorf("method not found"))
	}
	if method.invalid != "" {
		return fail(fmt.Errorf("%s", method.invalid))
	}

	for i, p := range method.params {
		if !c.CanResolve(p) {
			return fail(fmt.Errorf("parameter %d (%v): %w", i, p, &ResolutionError{Type: p, Cause: ErrNoBinding}))
		}
	}
	args, err := c.resolveArgs(method.params)
	if err != nil {
		return fail(err)
	}

	out := target.MethodByName(method.name).Call(args)
	if len(out) == 1 && !out[0].IsNil() {
		return fail(out[0].Interface().(error))
	}
	return true, nil
}

func (c *Container) injectionFailure(target reflect.Type, member string, typ reflect.Type, cause error) error {
	err := &InjectionError{Target: target, Member: member, Type: typ, Cause: cause}
	c.core.logger.Warn("mandatory injection point not satisfied",
		typeField("target", target),
		zap.String("member", member),
		zap.Error(cause),
	)
	return err
}
