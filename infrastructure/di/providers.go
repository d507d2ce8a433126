package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bit-backend/application/ports"
	"bit-backend/application/services"
	"bit-backend/infrastructure/config"
	"bit-backend/infrastructure/persistence/dynamodb"
	"bit-backend/infrastructure/persistence/memory"
	"bit-backend/infrastructure/ssopage"
	"bit-backend/interfaces/http/rest"
	"bit-backend/interfaces/http/rest/handlers"
	"bit-backend/interfaces/http/rest/middleware"
	"bit-backend/interfaces/http/views"
	"bit-backend/pkg/auth"
	"bit-backend/pkg/dependency"
	appErrors "bit-backend/pkg/errors"
	"bit-backend/pkg/observability"
)

const (
	rateLimiterCleanupInterval = 10 * time.Minute
	tracingShutdownTimeout     = 5 * time.Second
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	var zapConfig zap.Config
	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("environment", cfg.Environment))

	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideTracing sets up OpenTelemetry. The cleanup flushes pending spans.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Site.Name,
		Version:     cfg.Tracing.Version,
		Environment: cfg.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideTracer returns the tracer used for view rendering spans
func ProvideTracer(tp *observability.TracerProvider) trace.Tracer {
	return tp.Tracer()
}

// ProvideErrorHandler creates the HTTP error handler. Details are exposed in development only.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *appErrors.ErrorHandler {
	return appErrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideSsoPageProvider selects the login page source
func ProvideSsoPageProvider(cfg *config.Config, logger *zap.Logger) (ports.SsoPageProvider, func(), error) {
	switch cfg.SsoPage.Source {
	case "static":
		return ssopage.NewStaticProvider(""), func() {}, nil

	case "file":
		provider, err := ssopage.NewFileProvider(cfg.SsoPage.Path, cfg.SsoPage.Watch, logger)
		if err != nil {
			return nil, nil, err
		}
		return provider, func() { _ = provider.Close() }, nil

	case "remote":
		remote := ssopage.DefaultRemoteConfig(cfg.SsoPage.URL)
		if cfg.SsoPage.Timeout > 0 {
			remote.Timeout = cfg.SsoPage.Timeout
		}
		if cfg.SsoPage.CacheTTL > 0 {
			remote.CacheTTL = cfg.SsoPage.CacheTTL
		}
		return ssopage.NewRemoteProvider(remote, nil, logger), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown SSO page source %q", cfg.SsoPage.Source)
	}
}

// ProvideAntiForgery creates the anti-forgery token issuer
func ProvideAntiForgery(cfg *config.Config) (*auth.AntiForgery, error) {
	return auth.NewAntiForgery(auth.AntiForgeryConfig{
		SecretKey: cfg.AntiForgery.Secret,
		Issuer:    cfg.AntiForgery.Issuer,
		FieldName: cfg.AntiForgery.FieldName,
		TTL:       cfg.AntiForgery.TTL,
	})
}

// ProvideRateLimiter creates the per-client limiter and starts its cleanup loop
func ProvideRateLimiter(cfg *config.Config) (*auth.ClientRateLimiter, func()) {
	limiter := auth.NewClientRateLimiter(cfg.ClientLogs.RequestsPerMinute, cfg.ClientLogs.Burst)

	ctx, cancel := context.WithCancel(context.Background())
	go limiter.RunCleanup(ctx, rateLimiterCleanupInterval)

	return limiter, cancel
}

// ProvideClientLogStore selects the client log store
func ProvideClientLogStore(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
) (ports.ClientLogStore, error) {
	switch cfg.ClientLogs.Store {
	case "memory":
		return memory.NewInMemoryClientLogStore(cfg.ClientLogs.MaxRecords), nil

	case "dynamodb":
		client, err := newDynamoDBClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return dynamodb.NewClientLogStore(client, cfg.ClientLogs.TableName, cfg.ClientLogs.Retention, logger, metrics), nil

	default:
		return nil, fmt.Errorf("unknown client log store %q", cfg.ClientLogs.Store)
	}
}

func newDynamoDBClient(ctx context.Context, cfg *config.Config) (*awsdynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	}), nil
}

// ProvideClientLogService creates the client log service
func ProvideClientLogService(
	cfg *config.Config,
	store ports.ClientLogStore,
	logger *zap.Logger,
	metrics *observability.Collector,
) *services.ClientLogService {
	return services.NewClientLogService(store, logger, metrics, cfg.ClientLogs.MaxBatchSize)
}

// ProvideViewService creates the identity view renderer
func ProvideViewService(
	pages ports.SsoPageProvider,
	logger *zap.Logger,
	tracer trace.Tracer,
	metrics *observability.Collector,
) views.ViewService {
	return views.NewDefaultViewService(pages, logger, tracer, metrics)
}

// ProvideSiteConfig maps the site settings onto the identity handler
func ProvideSiteConfig(cfg *config.Config) handlers.SiteConfig {
	return handlers.SiteConfig{
		SiteName:               cfg.Site.Name,
		SiteURL:                cfg.Site.URL,
		BasePath:               cfg.Site.BasePath,
		PostLogoutRedirectURL:  cfg.Site.PostLogoutRedirectURL,
		AllowedRedirectOrigins: cfg.Site.AllowedRedirectOrigins,
		AllowRememberMe:        cfg.Site.AllowRememberMe,
	}
}

// ProvideDependencyManager builds the dig-backed container the HTTP layer
// resolves its handlers from. Every request also gets a child scope of it.
func ProvideDependencyManager(
	cfg *config.Config,
	logger *zap.Logger,
	viewService views.ViewService,
	pages ports.SsoPageProvider,
	store ports.ClientLogStore,
	clientLogs *services.ClientLogService,
	antiForgery *auth.AntiForgery,
	errorHandler *appErrors.ErrorHandler,
	site handlers.SiteConfig,
) (*dependency.DigManager, func(), error) {
	manager := dependency.NewDigManager(logger)
	if err := manager.Init(); err != nil {
		return nil, nil, err
	}

	registrations := []func() error{
		func() error { return dependency.RegisterInstance(manager, cfg) },
		func() error { return dependency.RegisterInstance(manager, logger) },
		func() error { return dependency.RegisterInstance(manager, viewService) },
		func() error { return dependency.RegisterInstance(manager, pages) },
		func() error { return dependency.RegisterInstance(manager, store) },
		func() error { return dependency.RegisterInstance(manager, clientLogs) },
		func() error { return dependency.RegisterInstance(manager, antiForgery) },
		func() error { return dependency.RegisterInstance(manager, errorHandler) },
		func() error { return dependency.RegisterInstance(manager, site) },
		func() error {
			return dependency.RegisterUsing[*handlers.IdentityHandler](manager, handlers.NewIdentityHandler,
				dependency.WithLifecycle(dependency.SingleInstance))
		},
		func() error {
			return dependency.RegisterUsing[*handlers.ClientLogHandler](manager, handlers.NewClientLogHandler,
				dependency.WithLifecycle(dependency.SingleInstance))
		},
		func() error {
			return dependency.RegisterUsing[*handlers.HealthHandler](manager, handlers.NewHealthHandler,
				dependency.WithLifecycle(dependency.SingleInstance))
		},
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return nil, nil, err
		}
	}

	if err := manager.BuildContainer(); err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := manager.Close(); err != nil {
			logger.Warn("Failed to close dependency container", zap.Error(err))
		}
	}
	return manager, cleanup, nil
}

// customizeRequestScope registers the request itself and a ViewService whose
// log lines carry the request id in every request scope.
func customizeRequestScope(tracer trace.Tracer, metrics *observability.Collector) func(*http.Request, dependency.Registrar) error {
	newViewService := func(r *http.Request, pages ports.SsoPageProvider, logger *zap.Logger) views.ViewService {
		logger = logger.With(zap.String("requestID", middleware.GetRequestID(r.Context())))
		return views.NewDefaultViewService(pages, logger, tracer, metrics)
	}

	return func(r *http.Request, reg dependency.Registrar) error {
		if err := dependency.RegisterInstance(reg, r); err != nil {
			return err
		}
		return dependency.RegisterUsing[views.ViewService](reg, newViewService)
	}
}

// ProvideRouter resolves the handlers and assembles the middleware pipeline
func ProvideRouter(
	cfg *config.Config,
	logger *zap.Logger,
	manager *dependency.DigManager,
	metrics *observability.Collector,
	tracer trace.Tracer,
	errorHandler *appErrors.ErrorHandler,
	limiter *auth.ClientRateLimiter,
) (*rest.Router, error) {
	identity, err := dependency.Resolve[*handlers.IdentityHandler](manager)
	if err != nil {
		return nil, err
	}
	clientLogs, err := dependency.Resolve[*handlers.ClientLogHandler](manager)
	if err != nil {
		return nil, err
	}
	health, err := dependency.Resolve[*handlers.HealthHandler](manager)
	if err != nil {
		return nil, err
	}

	opts := middleware.Options{
		Logger:                logger,
		ErrorHandler:          errorHandler,
		Timeout:               cfg.Server.RequestTimeout,
		Dependencies:          manager,
		CustomizeRequestScope: customizeRequestScope(tracer, metrics),
	}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics
		metricsHandler = metrics.Handler()
	}
	if cfg.Tracing.Enabled {
		opts.Tracer = tracer
	}
	if cfg.CORS.Enabled {
		opts.CORS = &middleware.CORSConfig{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			ExposedHeaders:   []string{middleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}
	}

	return rest.NewRouter(
		middleware.NewStandardPipeline(opts),
		identity,
		clientLogs,
		health,
		middleware.RateLimit(limiter, middleware.ClientIPKey, errorHandler, logger),
		metricsHandler,
		logger,
	), nil
}
