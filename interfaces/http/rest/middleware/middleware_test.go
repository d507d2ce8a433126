package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"bit-backend/pkg/dependency"
	appErrors "bit-backend/pkg/errors"
)

func TestDelegateConfiguration(t *testing.T) {
	t.Run("nil callback is rejected", func(t *testing.T) {
		c, err := NewDelegateConfiguration(nil)
		assert.Nil(t, c)
		assert.True(t, appErrors.IsInvalidArgument(err))
	})

	t.Run("nil router is rejected", func(t *testing.T) {
		c, err := NewDelegateConfiguration(func(r chi.Router) error { return nil })
		require.NoError(t, err)
		assert.True(t, appErrors.IsInvalidArgument(c.Configure(nil)))
	})

	t.Run("callback receives the router", func(t *testing.T) {
		router := chi.NewRouter()
		var got chi.Router
		c, err := NewDelegateConfiguration(func(r chi.Router) error {
			got = r
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, c.Configure(router))
		assert.Same(t, router, got)
	})

	t.Run("callback error is returned", func(t *testing.T) {
		boom := errors.New("boom")
		c, err := NewDelegateConfiguration(func(r chi.Router) error { return boom })
		require.NoError(t, err)
		assert.ErrorIs(t, c.Configure(chi.NewRouter()), boom)
	})
}

func TestPipeline_Build(t *testing.T) {
	t.Run("applies configurations in order", func(t *testing.T) {
		var order []string
		tag := func(name string) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := chi.NewRouter()
		p := NewPipeline(zap.NewNop()).
			Add("first", Use(tag("first"))).
			Add("second", Use(tag("second")))
		require.NoError(t, p.Build(router))
		router.Get("/", func(w http.ResponseWriter, r *http.Request) {})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, []string{"first", "second"}, order)
		assert.Equal(t, 2, p.Len())
	})

	t.Run("stops at first failure", func(t *testing.T) {
		called := false
		p := NewPipeline(nil).
			AddFunc("broken", func(r chi.Router) error { return errors.New("broken") }).
			AddFunc("after", func(r chi.Router) error {
				called = true
				return nil
			})

		err := p.Build(chi.NewRouter())

		assert.ErrorContains(t, err, "configure broken")
		assert.False(t, called)
	})

	t.Run("nil configuration and router", func(t *testing.T) {
		assert.True(t, appErrors.IsInvalidArgument(NewPipeline(nil).AddFunc("nil", nil).Build(chi.NewRouter())))
		assert.True(t, appErrors.IsInvalidArgument(NewPipeline(nil).Build(nil)))
	})
}

func TestRequestID(t *testing.T) {
	t.Run("generates an id", func(t *testing.T) {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("keeps the incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "test-request-id")
		w := httptest.NewRecorder()

		RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-request-id", GetRequestID(r.Context()))
		})).ServeHTTP(w, req)

		assert.Equal(t, "test-request-id", w.Header().Get(RequestIDHeader))
	})
}

// MockHTTPRecorder is a mock implementation of HTTPRecorder
type MockHTTPRecorder struct {
	mock.Mock
}

func (m *MockHTTPRecorder) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.Called(method, route, status, duration)
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	recorder := new(MockHTTPRecorder)
	recorder.On("RecordHTTPRequest", http.MethodGet, "/items/{id}", http.StatusTeapot, mock.AnythingOfType("time.Duration")).Once()

	router := chi.NewRouter()
	router.Use(Metrics(recorder))
	router.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))

	recorder.AssertExpectations(t)
}

func TestTracing_RecordsServerSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer provider.Shutdown(context.Background())

	router := chi.NewRouter()
	router.Use(Tracing(provider.Tracer("test")))
	router.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /items/{id}", spans[0].Name)
	assert.Equal(t, "Error", spans[0].Status.Code.String())
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

// MockRateLimiter is a mock implementation of auth.RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateLimiter) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func TestRateLimit(t *testing.T) {
	limiter := new(MockRateLimiter)
	limiter.On("Allow", mock.Anything, "192.0.2.1").Return(true, nil).Once()
	limiter.On("Allow", mock.Anything, "192.0.2.1").Return(false, nil).Once()

	handler := RateLimit(limiter, nil, appErrors.NewErrorHandler(zap.NewNop(), false), zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/api/client-logs", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	limiter.AssertExpectations(t)
}

type requestMarker struct{ path string }

func TestStandardPipeline(t *testing.T) {
	// Arrange
	manager := dependency.NewDigManager(zap.NewNop())
	require.NoError(t, manager.Init())
	require.NoError(t, manager.BuildContainer())

	recorder := new(MockHTTPRecorder)
	recorder.On("RecordHTTPRequest", http.MethodGet, "/hello", http.StatusOK, mock.Anything).Once()

	p := NewStandardPipeline(Options{
		Logger:  zap.NewNop(),
		Metrics: recorder,
		CORS: &CORSConfig{
			AllowedOrigins: []string{"https://app.example.com"},
			AllowedMethods: []string{http.MethodGet},
		},
		Timeout:      time.Second,
		Dependencies: manager,
		CustomizeRequestScope: func(r *http.Request, reg dependency.Registrar) error {
			return reg.RegisterInstance(&requestMarker{path: r.URL.Path},
				[]reflect.Type{reflect.TypeOf((*requestMarker)(nil))})
		},
	})

	router := chi.NewRouter()
	require.NoError(t, p.Build(router))

	var marker *requestMarker
	router.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
		scope, ok := dependency.FromContext(r.Context())
		require.True(t, ok)
		m, err := dependency.Resolve[*requestMarker](scope)
		require.NoError(t, err)
		marker = m
		_, _ = w.Write([]byte("hi"))
	})
	router.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	// Act
	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	require.NotNil(t, marker)
	assert.Equal(t, "/hello", marker.path)
	recorder.AssertExpectations(t)

	recorder.On("RecordHTTPRequest", http.MethodGet, "/panic", http.StatusInternalServerError, mock.Anything).Once()
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
