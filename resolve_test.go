package crann

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type IFoo interface {
	Name() string
}

type FooImpl struct {
	name string
}

func (f *FooImpl) Name() string { return f.name }

type IBar interface {
	Foo() IFoo
}

type BarImpl struct {
	foo IFoo
}

func (b *BarImpl) Foo() IFoo { return b.foo }

func NewBarImpl(foo IFoo) *BarImpl {
	return &BarImpl{foo: foo}
}

type Widget struct {
	logger Logger
	db     Database
}

func NewWidget(logger Logger, db Database) *Widget {
	return &Widget{logger: logger, db: db}
}

type cycleA struct{ b *cycleB }
type cycleB struct{ a *cycleA }

func newCycleA(b *cycleB) *cycleA { return &cycleA{b: b} }
func newCycleB(a *cycleA) *cycleB { return &cycleB{a: a} }

type initService struct {
	initialized int
}

func (s *initService) Initialize() error {
	s.initialized++
	return nil
}

func init() {
	if err := RegisterConstructors(NewBarImpl, NewWidget, newCycleA, newCycleB); err != nil {
		panic(err)
	}
}

func TestResolve_SingletonDependencyOfTransient(t *testing.T) {
	c := New()
	require.NoError(t, Register[IFoo](c).ToImplementation(reflect.TypeFor[*FooImpl]()).AsSingleton())
	require.NoError(t, Register[IBar](c).ToImplementation(reflect.TypeFor[*BarImpl]()).AsTransient())

	first, err := Resolve[IBar](c)
	require.NoError(t, err)
	second, err := Resolve[IBar](c)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Same(t, first.Foo(), second.Foo())
}

func TestResolve_ImplicitConcreteType(t *testing.T) {
	c := New()
	require.NoError(t, Register[Logger](c).ToImplementation(reflect.TypeFor[*ConsoleLogger]()).AsSingleton())
	require.NoError(t, Register[Database](c).ToImplementation(reflect.TypeFor[*MockDB]()).AsSingleton())

	assert.True(t, CanResolve[*Widget](c))

	w, err := Resolve[*Widget](c)
	require.NoError(t, err)
	assert.Same(t, MustResolve[Logger](c), w.logger)
	assert.Same(t, MustResolve[Database](c), w.db)

	_, registered := c.Binding(reflect.TypeFor[*Widget]())
	assert.False(t, registered, "implicit construction does not register a binding")
}

func TestResolve_ImplicitBindingDisabled(t *testing.T) {
	c := New(WithImplicitBinding(false))

	assert.False(t, CanResolve[*ConsoleLogger](c))
	_, err := Resolve[*ConsoleLogger](c)
	assert.ErrorIs(t, err, ErrNoBinding)

	// A registration without a strategy binds the key to itself
	require.NoError(t, Register[*ConsoleLogger](c).Err())
	assert.True(t, CanResolve[*ConsoleLogger](c))
	l, err := Resolve[*ConsoleLogger](c)
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestResolve_ImplicitBindingInheritedByChildren(t *testing.T) {
	root := New(WithImplicitBinding(false))
	child, err := root.CreateChild()
	require.NoError(t, err)

	assert.False(t, CanResolve[*ConsoleLogger](child))
}

func TestResolve_UnregisteredInterface(t *testing.T) {
	c := New()

	assert.False(t, CanResolve[Logger](c))
	_, err := Resolve[Logger](c)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, loggerType, resErr.Type)
	assert.ErrorIs(t, err, ErrNoBinding)
}

func TestResolve_NilKey(t *testing.T) {
	c := New()

	_, err := c.Resolve(nil)
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
	assert.False(t, c.CanResolve(nil))
}

func TestResolve_CircularDependency(t *testing.T) {
	c := New()

	_, err := Resolve[*cycleA](c)
	require.Error(t, err)

	var cycle *CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []reflect.Type{
		reflect.TypeFor[*cycleA](),
		reflect.TypeFor[*cycleB](),
		reflect.TypeFor[*cycleA](),
	}, cycle.Path)
	assert.Contains(t, cycle.Error(), "->")
}

func TestResolve_CircularSingletonFactories(t *testing.T) {
	c := New()
	require.NoError(t, Register[Logger](c).ToFactory(func(c *Container) (any, error) {
		if _, err := Resolve[Database](c); err != nil {
			return nil, err
		}
		return &ConsoleLogger{}, nil
	}).AsSingleton())
	require.NoError(t, Register[Database](c).ToFactory(func(c *Container) (any, error) {
		if _, err := Resolve[Logger](c); err != nil {
			return nil, err
		}
		return &MockDB{}, nil
	}).AsSingleton())

	_, err := Resolve[Logger](c)
	var cycle *CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []reflect.Type{loggerType, databaseType, loggerType}, cycle.Path)

	// The failed resolution leaves the container usable
	require.NoError(t, Register[Database](c).ToImplementation(reflect.TypeFor[*MockDB]()).AsSingleton())
	l, err := Resolve[Logger](c)
	require.NoError(t, err)
	assert.NotNil(t, l)
}

type selfReferencing struct{ next *selfReferencing }

// resolveWithin runs resolve and fails the test if it has not returned after a second.
func resolveWithin(t *testing.T, resolve func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- resolve() }()

	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatal("resolution did not return")
		return nil
	}
}

func TestResolve_CycleThroughDeferredFactory(t *testing.T) {
	selfType := reflect.TypeFor[*selfReferencing]()
	lifetimes := []Lifetime{Singleton, Transient}

	for _, lifetime := range lifetimes {
		t.Run(lifetime.String(), func(t *testing.T) {
			c := New()
			lb := Register[*selfReferencing](c).ToFactory(func(c *Container) (any, error) {
				next, err := Resolve[func() (*selfReferencing, error)](c)
				if err != nil {
					return nil, err
				}
				s, err := next()
				if err != nil {
					return nil, err
				}
				return &selfReferencing{next: s}, nil
			})
			if lifetime == Singleton {
				require.NoError(t, lb.AsSingleton())
			} else {
				require.NoError(t, lb.AsTransient())
			}

			err := resolveWithin(t, func() error {
				_, err := Resolve[*selfReferencing](c)
				return err
			})

			var cycle *CircularDependencyError
			require.ErrorAs(t, err, &cycle)
			assert.Equal(t, []reflect.Type{selfType, selfType}, cycle.Path)
		})
	}
}

func TestResolve_DeferredFactoryCalledLaterIsNotACycle(t *testing.T) {
	c := New()
	var later func() (*selfReferencing, error)
	require.NoError(t, Register[*selfReferencing](c).ToFactory(func(c *Container) (any, error) {
		next, err := Resolve[func() (*selfReferencing, error)](c)
		if err != nil {
			return nil, err
		}
		later = next
		return &selfReferencing{}, nil
	}).AsTransient())

	first := MustResolve[*selfReferencing](c)
	require.NotNil(t, later)

	second, err := later()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestResolve_CycleThroughCapturedContainer(t *testing.T) {
	c := New()
	require.NoError(t, Register[Logger](c).ToFactory(func(*Container) (any, error) {
		if _, err := Resolve[Database](c); err != nil {
			return nil, err
		}
		return &ConsoleLogger{}, nil
	}).AsSingleton())
	require.NoError(t, Register[Database](c).ToFactory(func(*Container) (any, error) {
		if _, err := Resolve[Logger](c); err != nil {
			return nil, err
		}
		return &MockDB{}, nil
	}).AsTransient())

	err := resolveWithin(t, func() error {
		_, err := Resolve[Logger](c)
		return err
	})

	var cycle *CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []reflect.Type{loggerType, loggerType}, cycle.Path)
}

func TestResolve_CycleFromChildThroughParent(t *testing.T) {
	root := New()
	require.NoError(t, Register[Logger](root).ToFactory(func(c *Container) (any, error) {
		if _, err := Resolve[Database](c); err != nil {
			return nil, err
		}
		return &ConsoleLogger{}, nil
	}).AsSingleton())
	require.NoError(t, Register[Database](root).ToFactory(func(c *Container) (any, error) {
		if _, err := Resolve[Logger](c); err != nil {
			return nil, err
		}
		return &MockDB{}, nil
	}).AsSingleton())

	child, err := root.CreateChild()
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err = resolveWithin(t, func() error {
			_, err := Resolve[Logger](child)
			return err
		})

		var cycle *CircularDependencyError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []reflect.Type{loggerType, databaseType, loggerType}, cycle.Path)
	}
}

func TestResolve_SavedFactoryContainerIsNotACycle(t *testing.T) {
	c := New()
	var saved *Container
	require.NoError(t, Register[Logger](c).ToFactory(func(c *Container) (any, error) {
		saved = c
		return &ConsoleLogger{}, nil
	}).AsTransient())

	MustResolve[Logger](c)
	require.NotNil(t, saved)

	_, err := Resolve[Logger](saved)
	assert.NoError(t, err)
}

func TestResolve_SameKeyOnTwoGoroutinesIsNotACycle(t *testing.T) {
	c := New()
	var inside sync.WaitGroup
	inside.Add(2)
	require.NoError(t, Register[Logger](c).ToFactory(func(*Container) (any, error) {
		inside.Done()
		inside.Wait()
		return &ConsoleLogger{}, nil
	}).AsTransient())

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := Resolve[Logger](c)
			errs <- err
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("concurrent resolution did not return")
		}
	}
}

func TestResolve_SameKeyInDifferentContainersIsNotACycle(t *testing.T) {
	root := New()
	require.NoError(t, Register[Logger](root).ToImplementation(reflect.TypeFor[*ConsoleLogger]()).AsSingleton())

	child, err := root.CreateChild()
	require.NoError(t, err)

	// The child's Logger decorates the parent's Logger
	parentLogger := MustResolve[Logger](root)
	require.NoError(t, Register[Logger](child).ToFactory(func(c *Container) (any, error) {
		inner, err := Resolve[Logger](c.Parent())
		if err != nil {
			return nil, err
		}
		return &decoratedLogger{inner: inner}, nil
	}).AsTransient())

	l, err := Resolve[Logger](child)
	require.NoError(t, err)
	require.IsType(t, &decoratedLogger{}, l)
	assert.Same(t, parentLogger, l.(*decoratedLogger).inner)
}

type decoratedLogger struct {
	inner Logger
}

func (d *decoratedLogger) Log(msg string) { d.inner.Log("decorated: " + msg) }

func TestResolve_DelegatesToParentContext(t *testing.T) {
	root := New()
	require.NoError(t, Register[Logger](root).ToImplementation(reflect.TypeFor[*ConsoleLogger]()).AsSingleton())
	require.NoError(t, Register[Database](root).ToImplementation(reflect.TypeFor[*MockDB]()).AsSingleton())
	require.NoError(t, Register[*Widget](root).ToSelf().AsSingleton())

	child, err := root.CreateChild()
	require.NoError(t, err)
	require.NoError(t, Register[Logger](child).ToImplementation(reflect.TypeFor[*FileLogger]()).AsSingleton())

	w := MustResolve[*Widget](child)
	assert.IsType(t, &ConsoleLogger{}, w.logger, "a parent binding is built in the parent")
}

func TestResolve_FactoryError(t *testing.T) {
	c := New()
	errBoom := errors.New("boom")
	require.NoError(t, Register[Logger](c).ToFactory(func(*Container) (any, error) {
		return nil, errBoom
	}).AsSingleton())

	_, err := Resolve[Logger](c)
	assert.ErrorIs(t, err, errBoom)

	info, ok := c.Binding(loggerType)
	require.True(t, ok)
	assert.False(t, info.Resolved)
}

func TestResolve_FactoryWrongType(t *testing.T) {
	c := New()
	require.NoError(t, Register[Logger](c).ToFactory(func(*Container) (any, error) {
		return "not a logger", nil
	}).Err())

	_, err := Resolve[Logger](c)
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Contains(t, err.Error(), "not assignable")
}

func TestResolve_Initializable(t *testing.T) {
	c := New()

	s, err := Resolve[*initService](c)
	require.NoError(t, err)
	assert.Equal(t, 1, s.initialized)

	require.NoError(t, Register[*initService](c).ToInstance(&initService{}).Err())
	s, err = Resolve[*initService](c)
	require.NoError(t, err)
	assert.Equal(t, 0, s.initialized, "instances are not initialized")
}

func TestResolve_DeferredFactory(t *testing.T) {
	c := New()
	require.NoError(t, Register[Logger](c).ToImplementation(reflect.TypeFor[*ConsoleLogger]()).AsSingleton())

	assert.True(t, CanResolve[func() Logger](c))

	factory, err := Resolve[func() Logger](c)
	require.NoError(t, err)
	assert.Same(t, MustResolve[Logger](c), factory())

	withErr, err := Resolve[func() (Logger, error)](c)
	require.NoError(t, err)
	l, err := withErr()
	require.NoError(t, err)
	assert.Same(t, MustResolve[Logger](c), l)
}

func TestResolve_DeferredFactoryIsLazy(t *testing.T) {
	c := New()
	created := 0
	require.NoError(t, Register[Logger](c).ToFactory(func(*Container) (any, error) {
		created++
		return &ConsoleLogger{}, nil
	}).AsTransient())

	factory := MustResolve[func() Logger](c)
	assert.Equal(t, 0, created)

	factory()
	factory()
	assert.Equal(t, 2, created)
}

func TestResolve_DeferredFactoryFailures(t *testing.T) {
	c := New()

	assert.False(t, CanResolve[func() Database](c))
	_, err := Resolve[func() Database](c)
	assert.ErrorIs(t, err, ErrNoBinding)

	errDown := errors.New("database down")
	require.NoError(t, Register[Database](c).ToFactory(func(*Container) (any, error) {
		return nil, errDown
	}).Err())

	withErr := MustResolve[func() (Database, error)](c)
	db, err := withErr()
	assert.Nil(t, db)
	assert.ErrorIs(t, err, errDown)

	plain := MustResolve[func() Database](c)
	assert.Panics(t, func() { plain() })
}

func TestMustResolve_Panics(t *testing.T) {
	c := New()
	assert.Panics(t, func() { MustResolve[Logger](c) })
}
