package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// loadEnvironment overlays environment variables. Unset or unparsable
// variables leave the current value in place.
func (c *Config) loadEnvironment() {
	setString("ENVIRONMENT", &c.Environment)
	setString("LOG_LEVEL", &c.LogLevel)
	setBool("IS_LAMBDA", &c.IsLambda)
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		c.IsLambda = true
	}

	setString("SERVER_ADDRESS", &c.Server.Address)
	setDuration("SERVER_READ_TIMEOUT", &c.Server.ReadTimeout)
	setDuration("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeout)
	setDuration("SERVER_IDLE_TIMEOUT", &c.Server.IdleTimeout)
	setDuration("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	setDuration("REQUEST_TIMEOUT", &c.Server.RequestTimeout)

	setString("SITE_NAME", &c.Site.Name)
	setString("SITE_URL", &c.Site.URL)
	setString("IDENTITY_BASE_PATH", &c.Site.BasePath)
	setString("POST_LOGOUT_REDIRECT_URL", &c.Site.PostLogoutRedirectURL)
	setList("ALLOWED_REDIRECT_ORIGINS", &c.Site.AllowedRedirectOrigins)
	setBool("ALLOW_REMEMBER_ME", &c.Site.AllowRememberMe)

	setString("SSO_PAGE_SOURCE", &c.SsoPage.Source)
	setString("SSO_PAGE_PATH", &c.SsoPage.Path)
	setBool("SSO_PAGE_WATCH", &c.SsoPage.Watch)
	setString("SSO_PAGE_URL", &c.SsoPage.URL)
	setDuration("SSO_PAGE_CACHE_TTL", &c.SsoPage.CacheTTL)

	setString("ANTI_FORGERY_SECRET", &c.AntiForgery.Secret)
	setString("ANTI_FORGERY_ISSUER", &c.AntiForgery.Issuer)
	setDuration("ANTI_FORGERY_TTL", &c.AntiForgery.TTL)

	setString("CLIENT_LOG_STORE", &c.ClientLogs.Store)
	setString("CLIENT_LOG_TABLE", &c.ClientLogs.TableName)
	setDuration("CLIENT_LOG_RETENTION", &c.ClientLogs.Retention)
	setInt("CLIENT_LOG_MAX_BATCH", &c.ClientLogs.MaxBatchSize)
	setInt("CLIENT_LOG_RATE_PER_MINUTE", &c.ClientLogs.RequestsPerMinute)
	setInt("CLIENT_LOG_BURST", &c.ClientLogs.Burst)

	setBool("ENABLE_CORS", &c.CORS.Enabled)
	setList("CORS_ALLOWED_ORIGINS", &c.CORS.AllowedOrigins)

	setBool("ENABLE_TRACING", &c.Tracing.Enabled)
	setString("SERVICE_VERSION", &c.Tracing.Version)
	setString("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	setBool("OTEL_EXPORTER_OTLP_INSECURE", &c.Tracing.Insecure)
	setFloat("TRACING_SAMPLE_RATE", &c.Tracing.SampleRate)

	setBool("ENABLE_METRICS", &c.Metrics.Enabled)
	setString("METRICS_NAMESPACE", &c.Metrics.Namespace)

	setString("AWS_REGION", &c.AWS.Region)
	setString("AWS_ENDPOINT_URL", &c.AWS.Endpoint)
}

func setString(key string, dst *string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(key string, dst *bool) {
	if value := os.Getenv(key); value != "" {
		*dst = value == "true" || value == "1" || value == "yes"
	}
}

func setInt(key string, dst *int) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			*dst = d
		}
	}
}

func setList(key string, dst *[]string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}
