package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bit-backend/interfaces/http/rest/handlers"
	"bit-backend/interfaces/http/rest/middleware"
)

// Router creates and configures the HTTP router
type Router struct {
	pipeline       *middleware.Pipeline
	identity       *handlers.IdentityHandler
	clientLogs     *handlers.ClientLogHandler
	health         *handlers.HealthHandler
	clientLogLimit func(http.Handler) http.Handler
	metrics        http.Handler
	logger         *zap.Logger
}

// NewRouter creates a new router instance. clientLogLimit and metrics may be nil.
func NewRouter(
	pipeline *middleware.Pipeline,
	identity *handlers.IdentityHandler,
	clientLogs *handlers.ClientLogHandler,
	health *handlers.HealthHandler,
	clientLogLimit func(http.Handler) http.Handler,
	metrics http.Handler,
	logger *zap.Logger,
) *Router {
	return &Router{
		pipeline:       pipeline,
		identity:       identity,
		clientLogs:     clientLogs,
		health:         health,
		clientLogLimit: clientLogLimit,
		metrics:        metrics,
		logger:         logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() (http.Handler, error) {
	router := chi.NewRouter()

	if err := rt.pipeline.Build(router); err != nil {
		return nil, err
	}

	router.Get("/health", rt.health.Health)
	router.Get("/ready", rt.health.Ready)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics)
	}

	router.Route(rt.identity.BasePath(), rt.identity.Routes)

	router.Route("/api", func(r chi.Router) {
		r.Route("/client-logs", func(r chi.Router) {
			if rt.clientLogLimit != nil {
				r.Use(rt.clientLogLimit)
			}
			rt.clientLogs.Routes(r)
		})
	})

	rt.logger.Info("HTTP routes configured", zap.Int("middlewares", rt.pipeline.Len()))
	return router, nil
}
