package dependency

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	appErrors "bit-backend/pkg/errors"
)

// Registrar registers services before the container is built.
type Registrar interface {
	// Register registers implType for serviceTypes. Instances are created from the
	// zero value of implType and fields tagged `inject:"[name]"` are filled in.
	Register(serviceTypes []reflect.Type, implType reflect.Type, opts ...RegisterOption) error
	// RegisterInstance registers an existing object.
	RegisterInstance(obj interface{}, serviceTypes []reflect.Type, opts ...RegisterOption) error
	// RegisterUsing registers a dig constructor func(deps...) T or func(deps...) (T, error).
	RegisterUsing(constructor interface{}, serviceTypes []reflect.Type, opts ...RegisterOption) error
}

// Resolver resolves services from a built container.
type Resolver interface {
	Resolve(serviceType reflect.Type, name string) (interface{}, error)
	ResolveOptional(serviceType reflect.Type, name string) (interface{}, bool, error)
	ResolveAll(serviceType reflect.Type, name string) ([]interface{}, error)
	IsRegistered(serviceType reflect.Type) (bool, error)
	// CreateChildResolver begins a child lifetime scope. customize may be nil.
	CreateChildResolver(customize func(Registrar) error) (Resolver, error)
	Close() error
}

// DependencyManager owns the container lifecycle: builder, build, then resolve.
type DependencyManager interface {
	Registrar
	Resolver

	Init() error
	UseContainerBuilder(builder *Builder) error
	GetContainerBuilder() (*Builder, error)
	BuildContainer() error
	UseContainer(scope *LifetimeScope) error
	GetContainer() (*LifetimeScope, error)
	IsInited() bool
}

var (
	dependencyManagerType = reflect.TypeOf((*DependencyManager)(nil)).Elem()
	registrarType         = reflect.TypeOf((*Registrar)(nil)).Elem()
	resolverType          = reflect.TypeOf((*Resolver)(nil)).Elem()
)

// DigManager is the DependencyManager backed by go.uber.org/dig.
type DigManager struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	builder *Builder
	scope   *LifetimeScope
}

// NewDigManager creates a manager with no builder and no container.
func NewDigManager(logger *zap.Logger) *DigManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DigManager{logger: logger}
}

var _ DependencyManager = (*DigManager)(nil)

// Init prepares a fresh container builder.
func (m *DigManager) Init() error {
	return m.UseContainerBuilder(NewBuilder())
}

// UseContainerBuilder adopts builder and registers the manager in it as
// DependencyManager, Registrar and Resolver.
func (m *DigManager) UseContainerBuilder(builder *Builder) error {
	if builder == nil {
		return appErrors.NewInvalidArgumentError("builder")
	}

	m.mu.Lock()
	if m.builder != nil {
		m.mu.Unlock()
		return appErrors.NewInvalidOperationError("container builder has been set already")
	}
	m.builder = builder
	m.mu.Unlock()

	return m.RegisterInstance(m, []reflect.Type{dependencyManagerType, registrarType, resolverType})
}

// GetContainerBuilder returns the builder set by Init or UseContainerBuilder.
func (m *DigManager) GetContainerBuilder() (*Builder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.builder == nil {
		return nil, appErrors.NewInvalidOperationError("container builder is not prepared, either call Init or UseContainerBuilder first")
	}
	return m.builder, nil
}

// BuildContainer builds the root lifetime scope. It can be called once.
func (m *DigManager) BuildContainer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scope != nil {
		return appErrors.NewInvalidOperationError("container has been set already")
	}
	if m.builder == nil {
		return appErrors.NewInvalidOperationError("container builder is not prepared, either call Init or UseContainerBuilder first")
	}

	scope, err := m.builder.Build()
	if err != nil {
		return err
	}
	m.scope = scope

	m.logger.Info("Dependency container built", zap.Int("registrations", len(scope.regs)))
	return nil
}

// UseContainer adopts an already built scope.
func (m *DigManager) UseContainer(scope *LifetimeScope) error {
	if scope == nil {
		return appErrors.NewInvalidArgumentError("container")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scope != nil {
		return appErrors.NewInvalidOperationError("container has been set already")
	}
	m.scope = scope
	return nil
}

// GetContainer returns the built lifetime scope.
func (m *DigManager) GetContainer() (*LifetimeScope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.scope == nil {
		return nil, appErrors.NewInvalidOperationError("container is not prepared, build it first")
	}
	return m.scope, nil
}

// IsInited reports whether the container has been built or set.
func (m *DigManager) IsInited() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scope != nil
}

func (m *DigManager) Register(serviceTypes []reflect.Type, implType reflect.Type, opts ...RegisterOption) error {
	reg, err := newTypeRegistration(serviceTypes, implType, opts)
	if err != nil {
		return err
	}
	return m.add(reg)
}

func (m *DigManager) RegisterInstance(obj interface{}, serviceTypes []reflect.Type, opts ...RegisterOption) error {
	reg, err := newInstanceRegistration(obj, serviceTypes, opts)
	if err != nil {
		return err
	}
	return m.add(reg)
}

func (m *DigManager) RegisterUsing(constructor interface{}, serviceTypes []reflect.Type, opts ...RegisterOption) error {
	reg, err := newFactoryRegistration(constructor, serviceTypes, opts)
	if err != nil {
		return err
	}
	return m.add(reg)
}

func (m *DigManager) add(reg *registration) error {
	m.mu.RLock()
	builder, scope := m.builder, m.scope
	m.mu.RUnlock()

	if scope != nil {
		return appErrors.NewInvalidOperationError("container has been built already, registrations are closed")
	}
	if builder == nil {
		return appErrors.NewInvalidOperationError("container builder is not prepared, either call Init or UseContainerBuilder first")
	}
	if err := builder.add(reg); err != nil {
		return err
	}

	m.logger.Debug("Service registered",
		zap.Stringer("implementation", reg.implType),
		zap.String("name", reg.name),
		zap.Stringer("lifecycle", reg.lifecycle),
	)
	return nil
}

func (m *DigManager) Resolve(serviceType reflect.Type, name string) (interface{}, error) {
	scope, err := m.GetContainer()
	if err != nil {
		return nil, err
	}
	return scope.Resolve(serviceType, name)
}

func (m *DigManager) ResolveOptional(serviceType reflect.Type, name string) (interface{}, bool, error) {
	scope, err := m.GetContainer()
	if err != nil {
		return nil, false, err
	}
	return scope.ResolveOptional(serviceType, name)
}

func (m *DigManager) ResolveAll(serviceType reflect.Type, name string) ([]interface{}, error) {
	scope, err := m.GetContainer()
	if err != nil {
		return nil, err
	}
	return scope.ResolveAll(serviceType, name)
}

func (m *DigManager) IsRegistered(serviceType reflect.Type) (bool, error) {
	scope, err := m.GetContainer()
	if err != nil {
		return false, err
	}
	return scope.IsRegistered(serviceType)
}

// CreateChildResolver begins a child scope. The child manager registers itself
// in the child, so resolving Resolver from it returns the child.
func (m *DigManager) CreateChildResolver(customize func(Registrar) error) (Resolver, error) {
	scope, err := m.GetContainer()
	if err != nil {
		return nil, err
	}

	child := &DigManager{logger: m.logger}
	builder := NewBuilder(scope.options...)
	if err := child.UseContainerBuilder(builder); err != nil {
		return nil, err
	}
	if customize != nil {
		if err := customize(child); err != nil {
			return nil, err
		}
	}

	childScope, err := scope.BeginChild(builder)
	if err != nil {
		return nil, err
	}
	child.mu.Lock()
	child.scope = childScope
	child.mu.Unlock()
	return child, nil
}

// Close closes the manager's lifetime scope. It is a no-op before build.
func (m *DigManager) Close() error {
	m.mu.RLock()
	scope := m.scope
	m.mu.RUnlock()

	if scope == nil {
		return nil
	}
	return scope.Close()
}
