package rest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bit-backend/application/services"
	"bit-backend/infrastructure/persistence/memory"
	"bit-backend/infrastructure/ssopage"
	"bit-backend/interfaces/http/rest/handlers"
	"bit-backend/interfaces/http/rest/middleware"
	"bit-backend/interfaces/http/views"
	"bit-backend/pkg/auth"
	appErrors "bit-backend/pkg/errors"
	"bit-backend/pkg/observability"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	collector := observability.NewCollector("bit_test")
	errorHandler := appErrors.NewErrorHandler(logger, false)
	pages := ssopage.NewStaticProvider("")

	antiForgery, err := auth.NewAntiForgery(auth.AntiForgeryConfig{SecretKey: "secret", TTL: time.Hour})
	require.NoError(t, err)

	viewService := views.NewDefaultViewService(pages, logger, nil, collector)
	service := services.NewClientLogService(memory.NewInMemoryClientLogStore(10), logger, collector, 10)
	limiter := auth.NewClientRateLimiter(60, 1)

	router := NewRouter(
		middleware.NewStandardPipeline(middleware.Options{Logger: logger, ErrorHandler: errorHandler, Metrics: collector}),
		handlers.NewIdentityHandler(viewService, antiForgery, errorHandler, handlers.SiteConfig{SiteName: "Bit"}, logger),
		handlers.NewClientLogHandler(service, errorHandler, logger),
		handlers.NewHealthHandler(pages, logger),
		middleware.RateLimit(limiter, nil, errorHandler, logger),
		collector.Handler(),
		logger,
	)

	handler, err := router.Setup()
	require.NoError(t, err)
	return handler
}

func TestRouter_Routes(t *testing.T) {
	handler := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/identity/login", http.StatusOK},
		{http.MethodGet, "/identity/logout", http.StatusOK},
		{http.MethodGet, "/identity/error", http.StatusOK},
		{http.MethodGet, "/identity/consent", http.StatusOK},
		{http.MethodGet, "/identity/permissions", http.StatusOK},
		{http.MethodGet, "/missing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `bit_test_views_rendered_total{status="ok",view="login"} 1`)
	assert.Contains(t, w.Body.String(), `bit_test_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRouter_ClientLogsRateLimited(t *testing.T) {
	handler := newTestRouter(t)

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/client-logs", strings.NewReader(`[{"message":"hi"}]`))
		req.RemoteAddr = "203.0.113.9:4000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusAccepted, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
}
