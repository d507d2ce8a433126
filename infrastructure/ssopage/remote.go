package ssopage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"bit-backend/application/ports"
	appErrors "bit-backend/pkg/errors"
)

// maxPageSize caps the downloaded page.
const maxPageSize = 2 << 20

// RemoteConfig holds configuration for the remote page provider
type RemoteConfig struct {
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration

	// Circuit breaker settings
	MaxRequests      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultRemoteConfig returns a default configuration for url
func DefaultRemoteConfig(url string) RemoteConfig {
	return RemoteConfig{
		URL:              url,
		Timeout:          5 * time.Second,
		CacheTTL:         5 * time.Minute,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		OpenTimeout:      60 * time.Second,
		FailureThreshold: 0.5,
		MinRequests:      3,
	}
}

// RemoteProvider downloads the page over HTTP behind a circuit breaker. The last
// good page is cached and keeps being served while the origin is failing.
type RemoteProvider struct {
	config RemoteConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	mu        sync.RWMutex
	cached    string
	fetchedAt time.Time
	now       func() time.Time
}

var _ ports.SsoPageProvider = (*RemoteProvider)(nil)

// NewRemoteProvider creates a remote provider. client may be nil.
func NewRemoteProvider(config RemoteConfig, client *http.Client, logger *zap.Logger) *RemoteProvider {
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	p := &RemoteProvider{
		config: config,
		client: client,
		logger: logger,
		now:    time.Now,
	}
	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sso-page",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation by the caller says nothing about the origin.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return p
}

func (p *RemoteProvider) GetSsoPage(ctx context.Context) (string, error) {
	p.mu.RLock()
	cached, fetchedAt := p.cached, p.fetchedAt
	p.mu.RUnlock()

	if cached != "" && p.now().Sub(fetchedAt) < p.config.CacheTTL {
		return cached, nil
	}

	page, err := p.cb.Execute(func() (interface{}, error) {
		return p.fetch(ctx)
	})
	if err != nil {
		if cached != "" {
			p.logger.Warn("Serving stale SSO page",
				zap.String("url", p.config.URL),
				zap.Error(err),
			)
			return cached, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", appErrors.NewUnavailableError("sso-page").WithCause(err)
		}
		return "", appErrors.NewExternalError("sso-page", err)
	}

	html := page.(string)
	p.mu.Lock()
	p.cached = html
	p.fetchedAt = p.now()
	p.mu.Unlock()
	return html, nil
}

func (p *RemoteProvider) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch SSO page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status fetching SSO page: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("failed to read SSO page: %w", err)
	}
	return string(body), nil
}

// State reports the circuit breaker state
func (p *RemoteProvider) State() gobreaker.State {
	return p.cb.State()
}
