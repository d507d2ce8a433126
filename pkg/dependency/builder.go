package dependency

import (
	"sync"

	"go.uber.org/dig"

	appErrors "bit-backend/pkg/errors"
)

// Builder collects registrations until it is built into a LifetimeScope.
// A Builder can be built once.
type Builder struct {
	mu      sync.Mutex
	options []dig.Option
	regs    []*registration
	built   bool
}

// NewBuilder creates an empty builder. The options are passed to every dig
// container created for scopes built from it.
func NewBuilder(opts ...dig.Option) *Builder {
	return &Builder{options: opts}
}

// Len returns the number of registrations collected so far
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.regs)
}

func (b *Builder) add(reg *registration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.built {
		return appErrors.NewInvalidOperationError("container has been built already, registrations are closed")
	}
	b.regs = append(b.regs, reg)
	return nil
}

// Build creates the root lifetime scope.
func (b *Builder) Build() (*LifetimeScope, error) {
	return b.build(nil)
}

func (b *Builder) build(parent *LifetimeScope) (*LifetimeScope, error) {
	b.mu.Lock()
	if b.built {
		b.mu.Unlock()
		return nil, appErrors.NewInvalidOperationError("container builder has been built already")
	}
	b.built = true
	regs := append([]*registration(nil), b.regs...)
	b.mu.Unlock()

	return newLifetimeScope(parent, regs, b.options)
}
