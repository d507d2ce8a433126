//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"bit-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracing,
	ProvideTracer,
	ProvideErrorHandler,
	ProvideSsoPageProvider,
	ProvideAntiForgery,
	ProvideRateLimiter,
	ProvideClientLogStore,
	ProvideClientLogService,
	ProvideViewService,
	ProvideSiteConfig,
	ProvideDependencyManager,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned cleanup
// releases resources in reverse order of creation.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
