package dependency

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

type contextKey struct{}

// WithResolver returns a copy of ctx carrying r.
func WithResolver(ctx context.Context, r Resolver) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// FromContext returns the request scope stored by Middleware.
func FromContext(ctx context.Context) (Resolver, bool) {
	r, ok := ctx.Value(contextKey{}).(Resolver)
	return r, ok
}

// Middleware opens a child lifetime scope for every request and closes it when
// the request completes. customize may register request-bound services, such as
// the *http.Request itself, and may be nil.
func Middleware(manager Resolver, logger *zap.Logger, customize func(*http.Request, Registrar) error) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var configure func(Registrar) error
			if customize != nil {
				configure = func(reg Registrar) error {
					return customize(r, reg)
				}
			}

			scope, err := manager.CreateChildResolver(configure)
			if err != nil {
				logger.Error("Failed to create request scope",
					zap.Error(err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			defer func() {
				if err := scope.Close(); err != nil {
					logger.Warn("Failed to close request scope", zap.Error(err))
				}
			}()

			next.ServeHTTP(w, r.WithContext(WithResolver(r.Context(), scope)))
		})
	}
}
