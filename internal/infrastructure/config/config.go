package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	AssetAPI  AssetAPIConfig
	Sandbox   SandboxConfig
	Catalog   CatalogConfig
	Store     StoreConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// AssetAPIConfig describes the brand-data API the sandbox reads from.
type AssetAPIConfig struct {
	BaseURL   string        `envconfig:"ASSET_API_URL" default:"http://localhost:3001/api"`
	Token     string        `envconfig:"ASSET_API_TOKEN"`
	Timeout   time.Duration `envconfig:"ASSET_API_TIMEOUT" default:"15s"`
	RateLimit float64       `envconfig:"ASSET_API_RPS" default:"0"`
	Retries   int           `envconfig:"ASSET_API_RETRIES" default:"2"`
}

// SandboxConfig controls the execution contexts.
type SandboxConfig struct {
	// ScriptTimeout bounds a single guest task (top-level script, timer or
	// promise callback). Zero disables the bound.
	ScriptTimeout time.Duration `envconfig:"SANDBOX_SCRIPT_TIMEOUT" default:"5s"`
	// AllowedOrigins are the extra origins guest fetch may read from. The
	// asset API origin is always allowed.
	AllowedOrigins []string `envconfig:"SANDBOX_ALLOWED_ORIGINS"`
	// PublicAPIURL is the apiBaseUrl exposed to browsers, when it differs
	// from the address the backend uses.
	PublicAPIURL string `envconfig:"SANDBOX_PUBLIC_API_URL"`
}

// CatalogConfig enables a directory-backed bundle source instead of the API.
type CatalogConfig struct {
	Dir string `envconfig:"CATALOG_DIR"`
}

// StoreConfig holds view persistence configuration.
type StoreConfig struct {
	Path string `envconfig:"VIEW_DB_PATH" default:":memory:"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		AssetAPI: AssetAPIConfig{
			BaseURL: "http://localhost:3001/api",
			Timeout: 15 * time.Second,
			Retries: 2,
		},
		Sandbox: SandboxConfig{
			ScriptTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Path: ":memory:",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
