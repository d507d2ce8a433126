// Package config loads the service configuration. Values come from built-in
// defaults, then an optional YAML file named by CONFIG_FILE, then environment
// variables, with later sources taking precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Environment names
const (
	Development = "development"
	Staging     = "staging"
	Production  = "production"
	Test        = "test"
)

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment" validate:"required,oneof=development staging production test"`
	LogLevel    string `yaml:"log_level" validate:"required,oneof=debug info warn error"`
	IsLambda    bool   `yaml:"is_lambda"`

	Server      Server      `yaml:"server"`
	Site        Site        `yaml:"site"`
	SsoPage     SsoPage     `yaml:"sso_page"`
	AntiForgery AntiForgery `yaml:"anti_forgery"`
	ClientLogs  ClientLogs  `yaml:"client_logs"`
	CORS        CORS        `yaml:"cors"`
	Tracing     Tracing     `yaml:"tracing"`
	Metrics     Metrics     `yaml:"metrics"`
	AWS         AWS         `yaml:"aws"`

	// LoadedFrom lists the sources applied, lowest precedence first.
	LoadedFrom []string `yaml:"-"`
}

// Server configuration
type Server struct {
	Address         string        `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" validate:"gte=0"`
}

// Site describes the identity site shown on the pages
type Site struct {
	Name                   string   `yaml:"name" validate:"required"`
	URL                    string   `yaml:"url" validate:"omitempty,url"`
	BasePath               string   `yaml:"base_path" validate:"required,startswith=/"`
	PostLogoutRedirectURL  string   `yaml:"post_logout_redirect_url" validate:"omitempty,url"`
	AllowedRedirectOrigins []string `yaml:"allowed_redirect_origins" validate:"dive,url"`
	AllowRememberMe        bool     `yaml:"allow_remember_me"`
}

// SsoPage selects where the login page template comes from
type SsoPage struct {
	Source   string        `yaml:"source" validate:"required,oneof=static file remote"`
	Path     string        `yaml:"path" validate:"required_if=Source file"`
	Watch    bool          `yaml:"watch"`
	URL      string        `yaml:"url" validate:"required_if=Source remote,omitempty,url"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

// AntiForgery configures the tokens posted with identity forms
type AntiForgery struct {
	Secret    string        `yaml:"secret"`
	Issuer    string        `yaml:"issuer"`
	FieldName string        `yaml:"field_name"`
	TTL       time.Duration `yaml:"ttl" validate:"gt=0"`
}

// ClientLogs configures the client log endpoint and its store
type ClientLogs struct {
	Store             string        `yaml:"store" validate:"required,oneof=memory dynamodb"`
	TableName         string        `yaml:"table_name" validate:"required_if=Store dynamodb"`
	Retention         time.Duration `yaml:"retention" validate:"gte=0"`
	MaxRecords        int           `yaml:"max_records" validate:"gte=0"`
	MaxBatchSize      int           `yaml:"max_batch_size" validate:"min=1,max=1000"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"min=1"`
	Burst             int           `yaml:"burst" validate:"gte=0"`
}

// CORS configuration
type CORS struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins" validate:"required_if=Enabled true"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age" validate:"gte=0"`
}

// Tracing configuration
type Tracing struct {
	Enabled    bool    `yaml:"enabled"`
	Version    string  `yaml:"version"`
	Endpoint   string  `yaml:"endpoint" validate:"required_if=Enabled true"`
	Insecure   bool    `yaml:"insecure"`
	SampleRate float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// Metrics configuration
type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required"`
}

// AWS configuration
type AWS struct {
	Region string `yaml:"region" validate:"required"`

	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Site: Site{
			Name:     "Bit Identity",
			BasePath: "/identity",
		},
		SsoPage: SsoPage{
			Source:   "static",
			Timeout:  5 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
		AntiForgery: AntiForgery{
			Issuer: "bit-identity",
			TTL:    30 * time.Minute,
		},
		ClientLogs: ClientLogs{
			Store:             "memory",
			Retention:         30 * 24 * time.Hour,
			MaxRecords:        10000,
			MaxBatchSize:      100,
			RequestsPerMinute: 60,
			Burst:             10,
		},
		CORS: CORS{
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		},
		Tracing: Tracing{SampleRate: 0.1},
		Metrics: Metrics{Enabled: true, Namespace: "bit"},
		AWS:     AWS{Region: "us-west-2"},
	}
}

// LoadConfig loads configuration from defaults, CONFIG_FILE and the environment
func LoadConfig() (*Config, error) {
	cfg := Default()
	cfg.LoadedFrom = []string{"defaults"}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.LoadedFrom = append(cfg.LoadedFrom, path)
	}

	cfg.loadEnvironment()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	cfg.applyEnvironmentDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentDefaults() {
	// Development runs get a throwaway key; tokens do not survive a restart.
	if c.AntiForgery.Secret == "" && !c.IsProduction() {
		c.AntiForgery.Secret = uuid.NewString()
	}
	if c.Environment == Production && c.LogLevel == "debug" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return err
	}
	if c.IsProduction() && c.AntiForgery.Secret == "" {
		return fmt.Errorf("ANTI_FORGERY_SECRET is required in production")
	}
	if c.IsProduction() && len(c.AntiForgery.Secret) < 32 {
		return fmt.Errorf("ANTI_FORGERY_SECRET must be at least 32 characters in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}
