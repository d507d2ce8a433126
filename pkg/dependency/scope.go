package dependency

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/dig"

	appErrors "bit-backend/pkg/errors"
)

// LifetimeScope is a built set of registrations backed by its own dig container.
//
// Each scope builds its per-scope registrations itself. Single-instance
// registrations are built by the scope they were registered in and shared with
// every descendant. Resolution is serialized per scope. Constructors must take
// their dependencies as parameters: a constructor that resolves from the scope
// currently building it gets an invalid operation error.
type LifetimeScope struct {
	mu        sync.Mutex
	holder    atomic.Uint64
	parent    *LifetimeScope
	options   []dig.Option
	container *dig.Container
	regs      []*registration
	owners    map[uint64]*LifetimeScope
	defaults  map[serviceKey]*registration
	closers   []io.Closer
	closed    bool
}

func newLifetimeScope(parent *LifetimeScope, own []*registration, opts []dig.Option) (*LifetimeScope, error) {
	s := &LifetimeScope{
		parent:    parent,
		options:   opts,
		container: dig.New(opts...),
		owners:    make(map[uint64]*LifetimeScope),
	}

	if parent != nil {
		s.regs = append(s.regs, parent.regs...)
		for _, reg := range parent.regs {
			if reg.lifecycle == SingleInstance {
				s.owners[reg.id] = parent.owners[reg.id]
			} else {
				s.owners[reg.id] = s
			}
		}
	}
	for _, reg := range own {
		s.owners[reg.id] = s
	}
	s.regs = append(s.regs, own...)
	s.defaults = computeDefaults(s.regs)

	for _, reg := range s.regs {
		if err := s.provideRegistration(reg); err != nil {
			return nil, fmt.Errorf("failed to provide %s: %w", reg.implType, err)
		}
	}
	for key, reg := range s.defaults {
		if err := s.provideDefault(key, reg); err != nil {
			return nil, fmt.Errorf("failed to provide default %s: %w", key.service, err)
		}
	}
	return s, nil
}

// computeDefaults picks the registration each (service, name) key resolves to.
// The last registration wins unless it was registered with KeepExisting.
func computeDefaults(regs []*registration) map[serviceKey]*registration {
	defaults := make(map[serviceKey]*registration)
	for _, reg := range regs {
		for _, key := range reg.keys() {
			if _, exists := defaults[key]; exists && !reg.overwrite {
				continue
			}
			defaults[key] = reg
		}
	}
	return defaults
}

func (s *LifetimeScope) provideRegistration(reg *registration) error {
	var fn reflect.Value
	switch owner := s.owners[reg.id]; {
	case reg.kind == kindInstance:
		fn = reflect.MakeFunc(
			reflect.FuncOf(nil, []reflect.Type{reg.implType}, false),
			func([]reflect.Value) []reflect.Value {
				return []reflect.Value{reg.instance}
			})
	case owner != s:
		fn = reflect.MakeFunc(
			reflect.FuncOf(nil, []reflect.Type{reg.implType, errorType}, false),
			func([]reflect.Value) []reflect.Value {
				v, err := owner.resolveRegistration(reg)
				if err != nil {
					return []reflect.Value{reflect.Zero(reg.implType), errorValue(err)}
				}
				return []reflect.Value{v, errorValue(nil)}
			})
	default:
		fn = reflect.MakeFunc(
			reflect.FuncOf(reg.params(), []reflect.Type{reg.implType, errorType}, false),
			func(args []reflect.Value) []reflect.Value {
				v, err := reg.build(args)
				if err != nil {
					return []reflect.Value{reflect.Zero(reg.implType), errorValue(err)}
				}
				s.track(v)
				return []reflect.Value{v, errorValue(nil)}
			})
	}
	return s.container.Provide(fn.Interface(), dig.Name(reg.key()))
}

func (s *LifetimeScope) provideDefault(key serviceKey, reg *registration) error {
	fn := reflect.MakeFunc(
		reflect.FuncOf([]reflect.Type{inStruct(reg.implType, reg.tag())}, []reflect.Type{key.service}, false),
		func(args []reflect.Value) []reflect.Value {
			return []reflect.Value{assign(args[0].Field(1), key.service)}
		})

	var opts []dig.ProvideOption
	if key.name != "" {
		opts = append(opts, dig.Name(key.name))
	}
	return s.container.Provide(fn.Interface(), opts...)
}

// track records instances the scope has to close. Called with s.mu held.
func (s *LifetimeScope) track(v reflect.Value) {
	if c, ok := closerOf(v); ok {
		s.closers = append(s.closers, c)
	}
}

// invokeLocked resolves t (with the given dig struct tag) from the container.
func (s *LifetimeScope) invokeLocked(t reflect.Type, tag string) (reflect.Value, error) {
	if s.closed {
		return reflect.Value{}, appErrors.NewInvalidOperationError("lifetime scope has been closed")
	}

	var out reflect.Value
	fn := reflect.MakeFunc(
		reflect.FuncOf([]reflect.Type{inStruct(t, tag)}, nil, false),
		func(args []reflect.Value) []reflect.Value {
			out = args[0].Field(1)
			return nil
		})
	if err := s.container.Invoke(fn.Interface()); err != nil {
		return reflect.Value{}, appErrors.NewResolutionError(t.String(), err)
	}
	return out, nil
}

// lock acquires s.mu and records the holding goroutine. A goroutine that
// already holds it is inside one of the scope's constructors, so it gets an
// error instead of blocking on itself.
func (s *LifetimeScope) lock() error {
	if !s.mu.TryLock() {
		if id := goroutineID(); id != 0 && s.holder.Load() == id {
			return appErrors.NewInvalidOperationError(
				"re-entrant resolution from a constructor of this lifetime scope; take the dependency as a constructor parameter")
		}
		s.mu.Lock()
	}
	s.holder.Store(goroutineID())
	return nil
}

func (s *LifetimeScope) unlock() {
	s.holder.Store(0)
	s.mu.Unlock()
}

func (s *LifetimeScope) resolveRegistration(reg *registration) (reflect.Value, error) {
	if err := s.lock(); err != nil {
		return reflect.Value{}, err
	}
	defer s.unlock()
	return s.invokeLocked(reg.implType, reg.tag())
}

// Resolve returns the default registration for serviceType and name.
func (s *LifetimeScope) Resolve(serviceType reflect.Type, name string) (interface{}, error) {
	if serviceType == nil {
		return nil, appErrors.NewInvalidArgumentError("serviceType")
	}

	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.unlock()

	if _, ok := s.defaults[serviceKey{service: serviceType, name: name}]; !ok {
		return nil, appErrors.NewNotRegisteredError(describe(serviceType, name))
	}
	v, err := s.invokeLocked(serviceType, nameTag(name))
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// ResolveOptional is Resolve reporting a missing registration as absent.
func (s *LifetimeScope) ResolveOptional(serviceType reflect.Type, name string) (interface{}, bool, error) {
	registered, err := s.isRegistered(serviceType, name)
	if err != nil || !registered {
		return nil, false, err
	}
	v, err := s.Resolve(serviceType, name)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// ResolveAll returns one instance per registration of serviceType, in
// registration order. A non-empty name keeps only registrations with that name.
func (s *LifetimeScope) ResolveAll(serviceType reflect.Type, name string) ([]interface{}, error) {
	if serviceType == nil {
		return nil, appErrors.NewInvalidArgumentError("serviceType")
	}

	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.unlock()

	all := make([]interface{}, 0)
	for _, reg := range s.regs {
		if !reg.provides(serviceType, name) {
			continue
		}
		v, err := s.invokeLocked(reg.implType, reg.tag())
		if err != nil {
			return nil, err
		}
		all = append(all, assign(v, serviceType).Interface())
	}
	return all, nil
}

// IsRegistered reports whether any registration provides serviceType.
func (s *LifetimeScope) IsRegistered(serviceType reflect.Type) (bool, error) {
	return s.isRegistered(serviceType, "")
}

func (s *LifetimeScope) isRegistered(serviceType reflect.Type, name string) (bool, error) {
	if serviceType == nil {
		return false, appErrors.NewInvalidArgumentError("serviceType")
	}

	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.unlock()
	_, ok := s.defaults[serviceKey{service: serviceType, name: name}]
	return ok, nil
}

// Invoke runs fn against the scope's dig container.
func (s *LifetimeScope) Invoke(fn interface{}, opts ...dig.InvokeOption) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlock()

	if s.closed {
		return appErrors.NewInvalidOperationError("lifetime scope has been closed")
	}
	return s.container.Invoke(fn, opts...)
}

// Container exposes the underlying dig container.
func (s *LifetimeScope) Container() *dig.Container {
	return s.container
}

// Parent returns the scope this one was created from, or nil for the root.
func (s *LifetimeScope) Parent() *LifetimeScope {
	return s.parent
}

// BeginChild creates a child scope with the registrations collected in b.
func (s *LifetimeScope) BeginChild(b *Builder) (*LifetimeScope, error) {
	if b == nil {
		return nil, appErrors.NewInvalidArgumentError("builder")
	}
	if err := s.lock(); err != nil {
		return nil, err
	}
	closed := s.closed
	s.unlock()
	if closed {
		return nil, appErrors.NewInvalidOperationError("lifetime scope has been closed")
	}
	return b.build(s)
}

// Close closes every io.Closer the scope built, newest first. Instances
// registered with RegisterInstance are owned by the caller and left open.
// Calling Close again is a no-op.
func (s *LifetimeScope) Close() error {
	if err := s.lock(); err != nil {
		return err
	}
	if s.closed {
		s.unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func describe(t reflect.Type, name string) string {
	if name == "" {
		return t.String()
	}
	return fmt.Sprintf("%s (name %q)", t, name)
}
