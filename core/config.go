package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the marketplace service.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithPort(8080),
//	    WithStorage("sqlite"),
//	    WithSQLitePath("./data/marketplace.db"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Core configuration
	Name      string `json:"name" yaml:"name" env:"MARKETPLACE_NAME"`
	Port      int    `json:"port" yaml:"port" env:"MARKETPLACE_PORT" default:"8080"`
	Address   string `json:"address" yaml:"address" env:"MARKETPLACE_ADDRESS"`
	Namespace string `json:"namespace" yaml:"namespace" env:"MARKETPLACE_NAMESPACE" default:"marketplace"`

	HTTP        HTTPConfig        `json:"http" yaml:"http"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Session     SessionConfig     `json:"session" yaml:"session"`
	Checkout    CheckoutConfig    `json:"checkout" yaml:"checkout"`
	Telemetry   TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
	Resilience  ResilienceConfig  `json:"resilience" yaml:"resilience"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Development DevelopmentConfig `json:"development" yaml:"development"`
}

// HTTPConfig contains HTTP server configuration including timeouts and CORS settings.
type HTTPConfig struct {
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" env:"MARKETPLACE_HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" env:"MARKETPLACE_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout" default:"120s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" default:"10s"`
	CORS            CORSConfig    `json:"cors" yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing (CORS) configuration.
// Supports wildcard domains (e.g., *.example.com) and wildcard ports (e.g., http://localhost:*).
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled" env:"MARKETPLACE_CORS_ENABLED" default:"false"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins" env:"MARKETPLACE_CORS_ORIGINS"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers" default:"Content-Type,Authorization"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials" env:"MARKETPLACE_CORS_CREDENTIALS" default:"false"`
	MaxAge           int      `json:"max_age" yaml:"max_age" default:"86400"`
}

// StorageConfig selects where the session, catalog and cart slots live.
//   - "memory": process memory, lost on restart
//   - "sqlite": single-file database on this device (default)
//   - "redis":  shared Redis instance
type StorageConfig struct {
	Provider   string `json:"provider" yaml:"provider" env:"MARKETPLACE_STORAGE" default:"sqlite"`
	RedisURL   string `json:"redis_url" yaml:"redis_url" env:"MARKETPLACE_REDIS_URL,REDIS_URL"`
	RedisDB    int    `json:"redis_db" yaml:"redis_db" env:"MARKETPLACE_REDIS_DB" default:"2"`
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path" env:"MARKETPLACE_SQLITE_PATH" default:"data/marketplace.db"`
}

// SessionConfig controls the mock authentication gate.
type SessionConfig struct {
	// LoginDelay mimics a network round trip before login/signup settles.
	LoginDelay time.Duration `json:"login_delay" yaml:"login_delay" env:"MARKETPLACE_LOGIN_DELAY" default:"500ms"`
}

// CheckoutConfig controls the simulated checkout.
type CheckoutConfig struct {
	// NotificationTTL is how long the success notification stays visible.
	NotificationTTL time.Duration `json:"notification_ttl" yaml:"notification_ttl" env:"MARKETPLACE_NOTIFICATION_TTL" default:"5s"`
	// DefaultPaymentMethod is preselected when a request omits one.
	DefaultPaymentMethod string `json:"default_payment_method" yaml:"default_payment_method" default:"credit-card"`
}

// TelemetryConfig contains tracing and metrics configuration.
// When Endpoint is empty and development mode is on, spans go to stdout.
// Counters go to MetricsEndpoint over OTLP/HTTP, or to stdout in
// development mode.
type TelemetryConfig struct {
	Enabled         bool    `json:"enabled" yaml:"enabled" env:"MARKETPLACE_TELEMETRY_ENABLED" default:"false"`
	Endpoint        string  `json:"endpoint" yaml:"endpoint" env:"MARKETPLACE_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	MetricsEndpoint string  `json:"metrics_endpoint" yaml:"metrics_endpoint" env:"MARKETPLACE_TELEMETRY_METRICS_ENDPOINT,OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`
	ServiceName     string  `json:"service_name" yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	SamplingRate    float64 `json:"sampling_rate" yaml:"sampling_rate" default:"1.0"`
	Insecure        bool    `json:"insecure" yaml:"insecure" default:"true"`
}

// ResilienceConfig contains retry and circuit breaker settings for storage writes.
type ResilienceConfig struct {
	Retry          RetryConfig          `json:"retry" yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
}

// CircuitBreakerConfig guards storage writes. Once ErrorThreshold of at
// least VolumeThreshold recent writes fail, writes fail fast for SleepWindow.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled" yaml:"enabled" env:"MARKETPLACE_CIRCUIT_BREAKER_ENABLED" default:"true"`
	ErrorThreshold   float64       `json:"error_threshold" yaml:"error_threshold" default:"0.5"`
	VolumeThreshold  int           `json:"volume_threshold" yaml:"volume_threshold" default:"5"`
	SleepWindow      time.Duration `json:"sleep_window" yaml:"sleep_window" env:"MARKETPLACE_CIRCUIT_BREAKER_SLEEP" default:"10s"`
	HalfOpenRequests int           `json:"half_open_requests" yaml:"half_open_requests" default:"1"`
}

// RetryConfig defines retry pattern settings with exponential backoff.
// Formula: interval = min(InitialInterval * (Multiplier ^ attempt), MaxInterval)
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts" yaml:"max_attempts" env:"MARKETPLACE_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialInterval time.Duration `json:"initial_interval" yaml:"initial_interval" default:"100ms"`
	MaxInterval     time.Duration `json:"max_interval" yaml:"max_interval" default:"2s"`
	Multiplier      float64       `json:"multiplier" yaml:"multiplier" default:"2.0"`
}

// LoggingConfig contains logging configuration.
// Supports structured (json) and human-readable (text) formats.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"MARKETPLACE_LOG_LEVEL" default:"info"`
	Format string `json:"format" yaml:"format" env:"MARKETPLACE_LOG_FORMAT" default:"json"`
}

// DevelopmentConfig contains settings for local development.
//
// WARNING: Never enable development mode in production!
type DevelopmentConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled" env:"MARKETPLACE_DEV_MODE" default:"false"`
	PrettyLogs bool `json:"pretty_logs" yaml:"pretty_logs" default:"false"`
}

// Option is a functional option for configuring the service.
// Options are applied in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:      "marketplace",
		Port:      8080,
		Address:   "localhost",
		Namespace: DefaultNamespace,
		HTTP: HTTPConfig{
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORS: CORSConfig{
				Enabled:          false,
				AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Content-Type", "Authorization"},
				AllowCredentials: false,
				MaxAge:           86400,
			},
		},
		Storage: StorageConfig{
			Provider:   "sqlite",
			RedisDB:    RedisDBStorefront,
			SQLitePath: filepath.Join("data", "marketplace.db"),
		},
		Session: SessionConfig{
			LoginDelay: 500 * time.Millisecond,
		},
		Checkout: CheckoutConfig{
			NotificationTTL:      5 * time.Second,
			DefaultPaymentMethod: "credit-card",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Resilience: ResilienceConfig{
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     2 * time.Second,
				Multiplier:      2.0,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				ErrorThreshold:   0.5,
				VolumeThreshold:  5,
				SleepWindow:      10 * time.Second,
				HalfOpenRequests: 1,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over defaults but are overridden by functional options.
//
// Variable naming convention:
//   - Service-specific: MARKETPLACE_<SETTING>
//   - Standard variables: REDIS_URL, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SERVICE_NAME
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv(EnvName); v != "" {
		c.Name = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvPort, v, ErrInvalidConfiguration)
		}
		c.Port = port
	}
	if v := os.Getenv(EnvAddress); v != "" {
		c.Address = v
	}
	if v := os.Getenv(EnvNamespace); v != "" {
		c.Namespace = v
	}

	// HTTP settings
	if v := os.Getenv(EnvHTTPReadTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv(EnvHTTPWriteTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.WriteTimeout = d
		}
	}

	// CORS settings
	if v := os.Getenv(EnvCORSEnabled); v != "" {
		c.HTTP.CORS.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvCORSOrigins); v != "" {
		c.HTTP.CORS.AllowedOrigins = parseStringList(v)
	}
	if v := os.Getenv(EnvCORSCredentials); v != "" {
		c.HTTP.CORS.AllowCredentials = parseBool(v)
	}

	// Storage settings
	if v := os.Getenv(EnvStorage); v != "" {
		c.Storage.Provider = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Storage.RedisURL = v
	} else if v := os.Getenv(EnvRedisURLFallback); v != "" {
		c.Storage.RedisURL = v
	}
	if v := os.Getenv(EnvRedisDB); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Storage.RedisDB = db
		}
	}
	if v := os.Getenv(EnvSQLitePath); v != "" {
		c.Storage.SQLitePath = v
	}

	// Session / checkout timers
	if v := os.Getenv(EnvLoginDelay); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Session.LoginDelay = d
		}
	}
	if v := os.Getenv(EnvNotificationTTL); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Checkout.NotificationTTL = d
		}
	}

	// Telemetry settings
	if v := os.Getenv(EnvTelemetryEnabled); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvTelemetryEndpoint); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true // Auto-enable if endpoint is provided
	} else if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv(EnvTelemetryMetricsEndpoint); v != "" {
		c.Telemetry.MetricsEndpoint = v
		c.Telemetry.Enabled = true
	} else if v := os.Getenv(EnvOTLPMetricsEndpoint); v != "" {
		c.Telemetry.MetricsEndpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv(EnvOTELServiceName); v != "" {
		c.Telemetry.ServiceName = v
	}

	if v := os.Getenv(EnvRetryAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.Retry.MaxAttempts = n
		}
	}

	if v := os.Getenv(EnvCircuitBreakerEnabled); v != "" {
		c.Resilience.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvCircuitBreakerSleep); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Resilience.CircuitBreaker.SleepWindow = d
		}
	}

	// Logging settings
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(EnvDevMode); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.applyDevelopmentDefaults()
		}
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// File settings override environment variables but are overridden by functional options.
//
// Example YAML:
//
//	port: 9090
//	storage:
//	  provider: redis
//	  redis_url: redis://localhost:6379
//	checkout:
//	  notification_ttl: 3s
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- extension is validated
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
//
// Validation rules:
//   - Port must be between 1 and 65535
//   - Namespace is required
//   - Storage provider must be memory, sqlite or redis
//   - Redis URL is required for the redis provider, a path for sqlite
//   - Timers must not be negative
//   - An enabled circuit breaker needs an error threshold in (0, 1]
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &MarketError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid port: %d", c.Port),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Namespace == "" {
		return &MarketError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "storage namespace is required",
			Err:     ErrMissingConfiguration,
		}
	}

	switch c.Storage.Provider {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return &MarketError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "sqlite path is required for the sqlite storage provider",
				Err:     ErrMissingConfiguration,
			}
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return &MarketError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "redis URL is required for the redis storage provider",
				Err:     ErrMissingConfiguration,
			}
		}
	default:
		return &MarketError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("unknown storage provider: %q", c.Storage.Provider),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Session.LoginDelay < 0 || c.Checkout.NotificationTTL < 0 {
		return &MarketError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "timer durations must not be negative",
			Err:     ErrInvalidConfiguration,
		}
	}

	if cb := c.Resilience.CircuitBreaker; cb.Enabled && (cb.ErrorThreshold <= 0 || cb.ErrorThreshold > 1) {
		return &MarketError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("circuit breaker error threshold must be in (0, 1]: %v", cb.ErrorThreshold),
			Err:     ErrInvalidConfiguration,
		}
	}

	return nil
}

// ListenAddress returns host:port for the HTTP server
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

func (c *Config) applyDevelopmentDefaults() {
	c.Development.PrettyLogs = true
	c.Logging.Level = "debug"
	c.Logging.Format = "text"
}

// Helper functions

// parseStringList splits a comma-separated string into a slice of strings.
// Whitespace is trimmed from each element, and empty strings are filtered out.
func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseBool accepts "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional Options

// WithName sets the service name used in logs and traces.
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithPort sets the HTTP server port.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return &MarketError{
				Op:      "WithPort",
				Kind:    "config",
				Message: fmt.Sprintf("invalid port: %d", port),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Port = port
		return nil
	}
}

// WithAddress sets the bind address for the HTTP server.
func WithAddress(address string) Option {
	return func(c *Config) error {
		c.Address = address
		return nil
	}
}

// WithNamespace sets the key namespace of the storage slots.
func WithNamespace(namespace string) Option {
	return func(c *Config) error {
		c.Namespace = namespace
		return nil
	}
}

// WithCORS enables CORS with specific allowed origins.
func WithCORS(origins []string, credentials bool) Option {
	return func(c *Config) error {
		c.HTTP.CORS.Enabled = true
		c.HTTP.CORS.AllowedOrigins = origins
		c.HTTP.CORS.AllowCredentials = credentials
		return nil
	}
}

// WithStorage selects the storage provider ("memory", "sqlite", "redis").
func WithStorage(provider string) Option {
	return func(c *Config) error {
		c.Storage.Provider = provider
		return nil
	}
}

// WithRedisURL sets the Redis URL and switches storage to Redis.
// Format: redis://[user:password@]host:port/db
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Storage.RedisURL = url
		c.Storage.Provider = "redis"
		return nil
	}
}

// WithSQLitePath sets the database file for the sqlite provider.
func WithSQLitePath(path string) Option {
	return func(c *Config) error {
		c.Storage.SQLitePath = path
		return nil
	}
}

// WithLoginDelay sets the simulated authentication delay.
func WithLoginDelay(d time.Duration) Option {
	return func(c *Config) error {
		c.Session.LoginDelay = d
		return nil
	}
}

// WithNotificationTTL sets how long the checkout notification is shown.
func WithNotificationTTL(d time.Duration) Option {
	return func(c *Config) error {
		c.Checkout.NotificationTTL = d
		return nil
	}
}

// WithTelemetry enables tracing with the specified OTLP endpoint.
func WithTelemetry(enabled bool, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		c.Telemetry.Endpoint = endpoint
		if c.Telemetry.ServiceName == "" {
			c.Telemetry.ServiceName = c.Name
		}
		return nil
	}
}

// WithRetry configures retries of storage writes.
func WithRetry(maxAttempts int, initialInterval time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.Retry.MaxAttempts = maxAttempts
		c.Resilience.Retry.InitialInterval = initialInterval
		return nil
	}
}

// WithCircuitBreaker enables or disables the storage circuit breaker.
func WithCircuitBreaker(enabled bool) Option {
	return func(c *Config) error {
		c.Resilience.CircuitBreaker.Enabled = enabled
		return nil
	}
}

// WithLogLevel sets the minimum logging level (debug, info, warn, error).
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging output format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithConfigFile loads configuration from a JSON or YAML file.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithDevelopmentMode enables development mode: debug level, text logs.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.applyDevelopmentDefaults()
		}
		return nil
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in the following order:
//  1. Default values from DefaultConfig()
//  2. Environment variables via LoadFromEnv()
//  3. Functional options (highest priority)
//  4. Validation via Validate()
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.Name
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
