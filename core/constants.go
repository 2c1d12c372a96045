package core

// Environment variables read by Config.LoadFromEnv.
const (
	EnvName      = "MARKETPLACE_NAME"
	EnvPort      = "MARKETPLACE_PORT"
	EnvAddress   = "MARKETPLACE_ADDRESS"
	EnvNamespace = "MARKETPLACE_NAMESPACE"
	EnvDevMode   = "MARKETPLACE_DEV_MODE"

	EnvHTTPReadTimeout  = "MARKETPLACE_HTTP_READ_TIMEOUT"
	EnvHTTPWriteTimeout = "MARKETPLACE_HTTP_WRITE_TIMEOUT"
	EnvCORSEnabled      = "MARKETPLACE_CORS_ENABLED"
	EnvCORSOrigins      = "MARKETPLACE_CORS_ORIGINS"
	EnvCORSCredentials  = "MARKETPLACE_CORS_CREDENTIALS"

	EnvStorage    = "MARKETPLACE_STORAGE"
	EnvRedisURL   = "MARKETPLACE_REDIS_URL"
	EnvRedisDB    = "MARKETPLACE_REDIS_DB"
	EnvSQLitePath = "MARKETPLACE_SQLITE_PATH"

	EnvLoginDelay      = "MARKETPLACE_LOGIN_DELAY"
	EnvNotificationTTL = "MARKETPLACE_NOTIFICATION_TTL"
	EnvRetryAttempts   = "MARKETPLACE_RETRY_MAX_ATTEMPTS"

	EnvCircuitBreakerEnabled = "MARKETPLACE_CIRCUIT_BREAKER_ENABLED"
	EnvCircuitBreakerSleep   = "MARKETPLACE_CIRCUIT_BREAKER_SLEEP"

	EnvTelemetryEnabled         = "MARKETPLACE_TELEMETRY_ENABLED"
	EnvTelemetryEndpoint        = "MARKETPLACE_TELEMETRY_ENDPOINT"
	EnvTelemetryMetricsEndpoint = "MARKETPLACE_TELEMETRY_METRICS_ENDPOINT"

	EnvLogLevel  = "MARKETPLACE_LOG_LEVEL"
	EnvLogFormat = "MARKETPLACE_LOG_FORMAT"

	// Fallbacks shared with other tooling.
	EnvRedisURLFallback    = "REDIS_URL"
	EnvOTLPEndpoint        = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPMetricsEndpoint = "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"
	EnvOTELServiceName     = "OTEL_SERVICE_NAME"
)

// DefaultNamespace prefixes every storage key ("marketplace:auth").
const DefaultNamespace = "marketplace"
