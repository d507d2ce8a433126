// Package middleware configures the HTTP middleware pipeline. Configurations are
// collected at startup and applied to a chi.Router in order.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "bit-backend/pkg/errors"
)

// Configuration configures part of the request pipeline on a router.
type Configuration interface {
	Configure(r chi.Router) error
}

// DelegateConfiguration stores a configuration callback and invokes it when the
// pipeline is built.
type DelegateConfiguration struct {
	configure func(r chi.Router) error
}

var _ Configuration = (*DelegateConfiguration)(nil)

// NewDelegateConfiguration wraps fn. A nil fn is an invalid argument.
func NewDelegateConfiguration(fn func(r chi.Router) error) (*DelegateConfiguration, error) {
	if fn == nil {
		return nil, appErrors.NewInvalidArgumentError("configure")
	}
	return &DelegateConfiguration{configure: fn}, nil
}

// Configure invokes the stored callback against r.
func (c *DelegateConfiguration) Configure(r chi.Router) error {
	if r == nil {
		return appErrors.NewInvalidArgumentError("router")
	}
	return c.configure(r)
}

// Use returns a configuration that installs middlewares on the router.
func Use(middlewares ...func(http.Handler) http.Handler) Configuration {
	return &DelegateConfiguration{configure: func(r chi.Router) error {
		r.Use(middlewares...)
		return nil
	}}
}

type namedConfiguration struct {
	name string
	Configuration
}

// Pipeline is an ordered list of configurations.
type Pipeline struct {
	configurations []namedConfiguration
	logger         *zap.Logger
}

// NewPipeline creates an empty pipeline.
func NewPipeline(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger}
}

// Add appends a configuration. Configurations run in the order they are added.
func (p *Pipeline) Add(name string, c Configuration) *Pipeline {
	p.configurations = append(p.configurations, namedConfiguration{name: name, Configuration: c})
	return p
}

// AddFunc appends a delegate configuration for fn.
func (p *Pipeline) AddFunc(name string, fn func(r chi.Router) error) *Pipeline {
	if fn == nil {
		return p.Add(name, nil)
	}
	return p.Add(name, &DelegateConfiguration{configure: fn})
}

// Len returns the number of configurations.
func (p *Pipeline) Len() int {
	return len(p.configurations)
}

// Build applies every configuration to r and stops at the first failure.
func (p *Pipeline) Build(r chi.Router) error {
	if r == nil {
		return appErrors.NewInvalidArgumentError("router")
	}

	for _, c := range p.configurations {
		if c.Configuration == nil {
			return appErrors.NewInvalidArgumentError(c.name)
		}
		if err := c.Configure(r); err != nil {
			p.logger.Error("Middleware configuration failed",
				zap.String("configuration", c.name),
				zap.Error(err),
			)
			return appErrors.Wrapf(err, "configure %s", c.name)
		}
		p.logger.Debug("Added configuration to pipeline", zap.String("configuration", c.name))
	}
	return nil
}
