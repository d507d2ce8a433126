package ssopage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "bit-backend/pkg/errors"
)

func TestStaticProvider(t *testing.T) {
	page, err := NewStaticProvider("<p>{model}</p>").GetSsoPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<p>{model}</p>", page)

	page, err = NewStaticProvider("").GetSsoPage(context.Background())
	require.NoError(t, err)
	assert.Contains(t, page, ModelPlaceholder)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewStaticProvider("x").GetSsoPage(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.html")
	require.NoError(t, os.WriteFile(path, []byte("v1 {model}"), 0o644))

	p, err := NewFileProvider(path, true, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	page, err := p.GetSsoPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1 {model}", page)

	require.NoError(t, os.WriteFile(path, []byte("v2 {model}"), 0o644))

	assert.Eventually(t, func() bool {
		page, _ := p.GetSsoPage(context.Background())
		return page == "v2 {model}"
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

func TestFileProvider_Missing(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.html"), false, zap.NewNop())
	assert.Error(t, err)
}

func TestRemoteProvider(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("remote {model}"))
	}))
	defer server.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	config := DefaultRemoteConfig(server.URL)
	config.CacheTTL = time.Minute
	p := NewRemoteProvider(config, server.Client(), zap.NewNop())
	p.now = func() time.Time { return now }

	page, err := p.GetSsoPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "remote {model}", page)

	_, err = p.GetSsoPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "served from cache")

	failing.Store(true)
	now = now.Add(2 * time.Minute)
	page, err = p.GetSsoPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "remote {model}", page, "stale page while origin fails")
}

func TestRemoteProvider_CircuitOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config := DefaultRemoteConfig(server.URL)
	config.MinRequests = 2
	p := NewRemoteProvider(config, server.Client(), zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := p.GetSsoPage(context.Background())
		require.Error(t, err)
		assert.True(t, appErrors.IsType(err, appErrors.ErrorTypeExternal))
	}

	assert.Equal(t, gobreaker.StateOpen, p.State())

	_, err := p.GetSsoPage(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.IsType(err, appErrors.ErrorTypeUnavailable))
}
