package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "static", cfg.SsoPage.Source)
	assert.Equal(t, "memory", cfg.ClientLogs.Store)
	assert.NotEmpty(t, cfg.AntiForgery.Secret, "development gets a generated secret")
	assert.Equal(t, []string{"defaults", "environment"}, cfg.LoadedFrom)
}

func TestLoadConfig_FileThenEnvironment(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: staging
log_level: debug
site:
  name: Acme Login
  post_logout_redirect_url: https://acme.example.com/
  allowed_redirect_origins: [https://app.acme.example.com]
sso_page:
  source: remote
  url: https://cdn.example.com/login.html
  cache_ttl: 10m
client_logs:
  store: dynamodb
  table_name: client-logs
  max_batch_size: 20
cors:
  enabled: true
  allowed_origins: [https://acme.example.com]
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CLIENT_LOG_MAX_BATCH", "50")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	// Act
	cfg, err := LoadConfig()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Staging, cfg.Environment)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "Acme Login", cfg.Site.Name)
	assert.Equal(t, "/identity", cfg.Site.BasePath, "defaults survive the file")
	assert.Equal(t, []string{"https://app.acme.example.com"}, cfg.Site.AllowedRedirectOrigins)
	assert.Equal(t, "remote", cfg.SsoPage.Source)
	assert.Equal(t, 10*time.Minute, cfg.SsoPage.CacheTTL)
	assert.Equal(t, "client-logs", cfg.ClientLogs.TableName)
	assert.Equal(t, 50, cfg.ClientLogs.MaxBatchSize)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"defaults", path, "environment"}, cfg.LoadedFrom)
}

func TestLoadConfig_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))
		t.Setenv("CONFIG_FILE", path)

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) { c.AntiForgery.Secret = "dev" },
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "qa" },
			wantErr: true,
		},
		{
			name:    "file source without path",
			mutate:  func(c *Config) { c.SsoPage.Source = "file" },
			wantErr: true,
		},
		{
			name:    "remote source without url",
			mutate:  func(c *Config) { c.SsoPage.Source = "remote" },
			wantErr: true,
		},
		{
			name:    "dynamodb store without table",
			mutate:  func(c *Config) { c.ClientLogs.Store = "dynamodb" },
			wantErr: true,
		},
		{
			name:    "sample rate above one",
			mutate:  func(c *Config) { c.Tracing.SampleRate = 1.5 },
			wantErr: true,
		},
		{
			name: "redirect origins must be urls",
			mutate: func(c *Config) {
				c.AntiForgery.Secret = "dev"
				c.Site.AllowedRedirectOrigins = []string{"not a url"}
			},
			wantErr: true,
		},
		{
			name:    "base path must be absolute",
			mutate:  func(c *Config) { c.Site.BasePath = "identity" },
			wantErr: true,
		},
		{
			name: "production requires a long secret",
			mutate: func(c *Config) {
				c.Environment = Production
				c.AntiForgery.Secret = "short"
			},
			wantErr: true,
		},
		{
			name: "production with secret",
			mutate: func(c *Config) {
				c.Environment = Production
				c.AntiForgery.Secret = "0123456789abcdef0123456789abcdef"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
