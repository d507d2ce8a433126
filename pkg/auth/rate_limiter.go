package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// ClientRateLimiter keeps one token bucket per client key.
type ClientRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientRateLimiter allows requestsPerMinute per key with the given burst.
func NewClientRateLimiter(requestsPerMinute, burst int) *ClientRateLimiter {
	if burst <= 0 {
		burst = requestsPerMinute
	}
	return &ClientRateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Limit(float64(requestsPerMinute) / 60),
		burst:    burst,
		idleTTL:  time.Hour,
		now:      time.Now,
	}
}

var _ RateLimiter = (*ClientRateLimiter)(nil)

// Allow checks if a request is allowed
func (l *ClientRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, exists := l.limiters[key]
	if !exists {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = c
	}
	c.lastSeen = now

	return c.limiter.AllowN(now, 1), nil
}

// Reset resets the rate limit for a key
func (l *ClientRateLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.limiters, key)
	return nil
}

// Cleanup drops limiters idle for longer than an hour and returns how many were removed.
func (l *ClientRateLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, c := range l.limiters {
		if now.Sub(c.lastSeen) > l.idleTTL {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (l *ClientRateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}
