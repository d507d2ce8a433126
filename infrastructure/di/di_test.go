package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bit-backend/domain/identity"
	"bit-backend/infrastructure/config"
	dynamostore "bit-backend/infrastructure/persistence/dynamodb"
	"bit-backend/infrastructure/persistence/memory"
	"bit-backend/infrastructure/ssopage"
	"bit-backend/interfaces/http/rest/handlers"
	"bit-backend/interfaces/http/views"
	"bit-backend/pkg/dependency"
	"bit-backend/pkg/observability"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Environment = config.Test
	cfg.LogLevel = "error"
	cfg.AntiForgery.Secret = "test-secret"
	return cfg
}

func TestInitializeContainer(t *testing.T) {
	// Arrange
	cfg := testConfig()

	// Act
	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	handler, err := container.Router.Setup()
	require.NoError(t, err)

	// Assert
	assert.Same(t, cfg, container.Config)
	assert.True(t, container.Dependencies.IsInited())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/identity/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "&#34;siteName&#34;:&#34;Bit Identity&#34;")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bit_views_rendered_total")
}

func TestInitializeContainer_ResolvesFromDependencyManager(t *testing.T) {
	container, cleanup, err := InitializeContainer(context.Background(), testConfig())
	require.NoError(t, err)
	defer cleanup()

	first, err := dependency.Resolve[*handlers.IdentityHandler](container.Dependencies)
	require.NoError(t, err)
	second, err := dependency.Resolve[*handlers.IdentityHandler](container.Dependencies)
	require.NoError(t, err)
	assert.Same(t, first, second, "handlers are single instances")

	viewService, err := dependency.Resolve[views.ViewService](container.Dependencies)
	require.NoError(t, err)
	assert.NotNil(t, viewService)

	site, err := dependency.Resolve[handlers.SiteConfig](container.Dependencies)
	require.NoError(t, err)
	assert.Equal(t, "/identity", site.BasePath)
}

func TestInitializeContainer_CustomBasePath(t *testing.T) {
	cfg := testConfig()
	cfg.Site.BasePath = "/sso"

	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	handler, err := container.Router.Setup()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sso/logout", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action='/sso/logout'`)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/identity/logout", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInitializeContainer_InvalidLogLevel(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "verbose"

	_, _, err := InitializeContainer(context.Background(), cfg)

	assert.ErrorContains(t, err, "invalid log level")
}

func TestProvideSsoPageProvider(t *testing.T) {
	logger := zap.NewNop()

	t.Run("static", func(t *testing.T) {
		provider, cleanup, err := ProvideSsoPageProvider(testConfig(), logger)
		require.NoError(t, err)
		defer cleanup()

		assert.IsType(t, &ssopage.StaticProvider{}, provider)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "login.html")
		require.NoError(t, os.WriteFile(path, []byte("<html>{model}</html>"), 0o644))

		cfg := testConfig()
		cfg.SsoPage.Source = "file"
		cfg.SsoPage.Path = path

		provider, cleanup, err := ProvideSsoPageProvider(cfg, logger)
		require.NoError(t, err)
		defer cleanup()

		page, err := provider.GetSsoPage(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "<html>{model}</html>", page)
	})

	t.Run("file missing", func(t *testing.T) {
		cfg := testConfig()
		cfg.SsoPage.Source = "file"
		cfg.SsoPage.Path = filepath.Join(t.TempDir(), "missing.html")

		_, _, err := ProvideSsoPageProvider(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("remote", func(t *testing.T) {
		cfg := testConfig()
		cfg.SsoPage.Source = "remote"
		cfg.SsoPage.URL = "https://cdn.example.com/login.html"

		provider, cleanup, err := ProvideSsoPageProvider(cfg, logger)
		require.NoError(t, err)
		defer cleanup()

		assert.IsType(t, &ssopage.RemoteProvider{}, provider)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testConfig()
		cfg.SsoPage.Source = "ftp"

		_, _, err := ProvideSsoPageProvider(cfg, logger)
		assert.ErrorContains(t, err, "unknown SSO page source")
	})
}

func TestProvideClientLogStore(t *testing.T) {
	logger := zap.NewNop()
	metrics := observability.NewCollector("bit_test")

	t.Run("memory", func(t *testing.T) {
		store, err := ProvideClientLogStore(context.Background(), testConfig(), logger, metrics)
		require.NoError(t, err)
		assert.IsType(t, &memory.InMemoryClientLogStore{}, store)
	})

	t.Run("dynamodb", func(t *testing.T) {
		t.Setenv("AWS_ACCESS_KEY_ID", "test")
		t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

		cfg := testConfig()
		cfg.ClientLogs.Store = "dynamodb"
		cfg.ClientLogs.TableName = "client-logs"
		cfg.AWS.Endpoint = "http://localhost:8000"

		store, err := ProvideClientLogStore(context.Background(), cfg, logger, metrics)
		require.NoError(t, err)
		assert.IsType(t, &dynamostore.ClientLogStore{}, store)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testConfig()
		cfg.ClientLogs.Store = "postgres"

		_, err := ProvideClientLogStore(context.Background(), cfg, logger, metrics)
		assert.ErrorContains(t, err, "unknown client log store")
	})
}

func TestProvideRouter_RequestScope(t *testing.T) {
	container, cleanup, err := InitializeContainer(context.Background(), testConfig())
	require.NoError(t, err)
	defer cleanup()

	handler, err := container.Router.Setup()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/client-logs", strings.NewReader(`[{"message":"boom","logLevel":"error"}]`))
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	recent, err := container.ClientLogs.Recent(context.Background(), time.Hour, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestCustomizeRequestScope_RequestBoundViewService(t *testing.T) {
	// Arrange
	container, cleanup, err := InitializeContainer(context.Background(), testConfig())
	require.NoError(t, err)
	defer cleanup()

	root, err := dependency.Resolve[views.ViewService](container.Dependencies)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/identity/error", nil)
	customize := customizeRequestScope(nil, observability.NewCollector("bit_scope_test"))

	// Act
	scope, err := container.Dependencies.CreateChildResolver(func(reg dependency.Registrar) error {
		return customize(req, reg)
	})
	require.NoError(t, err)
	defer scope.Close()

	// Assert
	scoped, err := dependency.Resolve[views.ViewService](scope)
	require.NoError(t, err)
	assert.NotSame(t, root, scoped)

	again, err := dependency.Resolve[views.ViewService](scope)
	require.NoError(t, err)
	assert.Same(t, scoped, again, "one view service per request scope")

	bound, err := dependency.Resolve[*http.Request](scope)
	require.NoError(t, err)
	assert.Same(t, req, bound)

	page, err := scoped.Error(context.Background(), &identity.ErrorViewModel{ErrorMessage: "scoped"})
	require.NoError(t, err)
	require.NotNil(t, page)
}
