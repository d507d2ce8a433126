// Package di wires the application together. Infrastructure is assembled by
// wire; the HTTP handlers are registered in a dependency.DigManager so each
// request can open its own lifetime scope.
package di

import (
	"go.uber.org/zap"

	"bit-backend/application/ports"
	"bit-backend/application/services"
	"bit-backend/infrastructure/config"
	"bit-backend/interfaces/http/rest"
	"bit-backend/pkg/dependency"
	"bit-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Tracing      *observability.TracerProvider
	Pages        ports.SsoPageProvider
	ClientLogs   *services.ClientLogService
	Dependencies *dependency.DigManager
	Router       *rest.Router
}
