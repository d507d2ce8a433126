package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"bit-backend/pkg/auth"
	appErrors "bit-backend/pkg/errors"
)

// KeyFunc picks the rate limit key for a request
type KeyFunc func(r *http.Request) string

// ClientIPKey keys requests by remote address. Run it after chi's RealIP.
func ClientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects requests over the limiter's budget with 429.
func RateLimit(limiter auth.RateLimiter, key KeyFunc, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIPKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			allowed, err := limiter.Allow(r.Context(), k)
			if err != nil {
				errorHandler.Handle(w, r, err)
				return
			}
			if !allowed {
				logger.Warn("Rate limit exceeded",
					zap.String("key", k),
					zap.String("path", r.URL.Path),
				)
				errorHandler.Handle(w, r, appErrors.NewRateLimitError(k))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
