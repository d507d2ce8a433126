package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bit-backend/pkg/dependency"
	appErrors "bit-backend/pkg/errors"
)

// CORSConfig lists the cross-origin settings
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// Options holds what the standard pipeline needs. Nil members skip their stage.
type Options struct {
	Logger       *zap.Logger
	ErrorHandler *appErrors.ErrorHandler
	Metrics      HTTPRecorder
	Tracer       trace.Tracer
	CORS         *CORSConfig
	Timeout      time.Duration

	// Dependencies opens a lifetime scope per request when set.
	Dependencies          dependency.Resolver
	CustomizeRequestScope func(r *http.Request, reg dependency.Registrar) error
}

// CORS returns the go-chi/cors middleware for config.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   config.AllowedMethods,
		AllowedHeaders:   config.AllowedHeaders,
		ExposedHeaders:   config.ExposedHeaders,
		AllowCredentials: config.AllowCredentials,
		MaxAge:           config.MaxAge,
	})
}

// NewStandardPipeline assembles the global middleware in the order requests
// pass through them.
func NewStandardPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	errorHandler := opts.ErrorHandler
	if errorHandler == nil {
		errorHandler = appErrors.NewErrorHandler(logger, false)
	}

	p := NewPipeline(logger).
		Add("request-id", Use(RequestID)).
		Add("real-ip", Use(chimiddleware.RealIP))

	if opts.Tracer != nil {
		p.Add("tracing", Use(Tracing(opts.Tracer)))
	}
	if opts.Metrics != nil {
		p.Add("metrics", Use(Metrics(opts.Metrics)))
	}

	p.Add("logging", Use(Logger(logger))).
		Add("recovery", Use(errorHandler.Middleware))

	if opts.CORS != nil {
		p.Add("cors", Use(CORS(*opts.CORS)))
	}
	if opts.Timeout > 0 {
		p.Add("timeout", Use(chimiddleware.Timeout(opts.Timeout)))
	}
	if opts.Dependencies != nil {
		p.AddFunc("dependency-scope", func(r chi.Router) error {
			r.Use(dependency.Middleware(opts.Dependencies, logger, opts.CustomizeRequestScope))
			return nil
		})
	}
	return p
}
