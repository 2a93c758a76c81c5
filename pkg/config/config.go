package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/astralpost/astralpost/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Billing configuration
	Billing BillingConfig

	// Content generation configuration
	Content ContentConfig

	// Almanac (ephemeris + news) configuration
	Almanac AlmanacConfig

	// Mailer configuration
	Mailer MailerConfig

	// User lifecycle configuration
	Users UsersConfig

	// Archive configuration (S3 newsletter archive)
	Archive ArchiveConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxConns     int
	MinConns     int
	Timeout      time.Duration
	MaxLifetime  time.Duration
	MaxIdleTime  time.Duration
	MetricsTTL   time.Duration // retention window for append-only metric rows
	LedgerMaxAge time.Duration // retention window for webhook ledger entries
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// BillingConfig holds billing state machine configuration
type BillingConfig struct {
	// Per-webhook-type shared secrets
	SubscriptionWebhookSecret string
	PaymentWebhookSecret      string

	// Signature timestamps older than this are rejected (replay protection)
	SignatureTolerance time.Duration

	// Price-id to tier mapping file (YAML, hot-reloaded)
	PriceMapPath string

	// Tier assigned when a price id resolves nowhere
	DefaultTier string

	TrialDays int

	// Dispatch retry policy
	MaxDispatchAttempts int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration

	// Hosted payment links offered in the trial-ending reminder
	UpgradeBasicURL string
	UpgradeProURL   string
}

// UsersConfig holds user lifecycle configuration
type UsersConfig struct {
	// Key for the HMAC account tokens issued at registration
	TokenSecret string
}

// ContentConfig holds content generation pipeline configuration
type ContentConfig struct {
	PrimaryBaseURL  string
	PrimaryAPIKey   string
	PrimaryModel    string
	FallbackBaseURL string
	FallbackAPIKey  string
	FallbackModel   string

	// Per-model-tier request timeouts
	StandardTimeout time.Duration
	PremiumTimeout  time.Duration

	CacheTTL    time.Duration
	L1CacheSize int

	// Circuit breaker tuning
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration

	// Canned per-perspective payloads used when everything else fails
	FallbackTemplatesPath string
}

// AlmanacConfig holds ephemeris and news provider configuration
type AlmanacConfig struct {
	EphemerisBaseURL string
	EphemerisAPIKey  string
	EphemerisTTL     time.Duration
	NewsBaseURL      string
	NewsAPIKey       string
	NewsTTL          time.Duration
}

// MailerConfig holds email delivery configuration
type MailerConfig struct {
	BaseURL     string
	APIKey      string
	FromAddress string
	QueueKey    string
	Workers     int
	MaxAttempts int
}

// ArchiveConfig holds the optional S3 newsletter archive configuration
type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Billing:       loadBillingConfig(),
		Content:       loadContentConfig(),
		Almanac:       loadAlmanacConfig(),
		Mailer:        loadMailerConfig(),
		Users:         loadUsersConfig(),
		Archive:       loadArchiveConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ASTRAL_HOST", "0.0.0.0"),
		Port:            getEnv("ASTRAL_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ASTRAL_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ASTRAL_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("ASTRAL_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ASTRAL_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ASTRAL_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("ASTRAL_POSTGRES_URL", "postgres://localhost/astralpost?sslmode=disable"),
		MaxConns:     getEnvInt("ASTRAL_POSTGRES_MAX_CONNS", 25),
		MinConns:     getEnvInt("ASTRAL_POSTGRES_MIN_CONNS", 5),
		Timeout:      getEnvDuration("ASTRAL_POSTGRES_TIMEOUT", 5*time.Second),
		MaxLifetime:  getEnvDuration("ASTRAL_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime:  getEnvDuration("ASTRAL_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
		MetricsTTL:   getEnvDuration("ASTRAL_METRICS_TTL", 30*24*time.Hour),
		LedgerMaxAge: getEnvDuration("ASTRAL_LEDGER_MAX_AGE", 90*24*time.Hour),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("ASTRAL_REDIS_URL", "redis://localhost:6379/0"),
		Password:   getEnv("ASTRAL_REDIS_PASSWORD", ""),
		DB:         getEnvInt("ASTRAL_REDIS_DB", -1),
		MaxRetries: getEnvInt("ASTRAL_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("ASTRAL_REDIS_POOL_SIZE", 10),
	}
}

func loadBillingConfig() BillingConfig {
	return BillingConfig{
		SubscriptionWebhookSecret: getEnv("ASTRAL_STRIPE_SUBSCRIPTION_SECRET", ""),
		PaymentWebhookSecret:      getEnv("ASTRAL_STRIPE_PAYMENT_SECRET", ""),
		SignatureTolerance:        getEnvDuration("ASTRAL_SIGNATURE_TOLERANCE", 300*time.Second),
		PriceMapPath:              getEnv("ASTRAL_PRICE_MAP_PATH", "config/prices.yaml"),
		DefaultTier:               getEnv("ASTRAL_DEFAULT_PAID_TIER", "basic"),
		TrialDays:                 getEnvInt("ASTRAL_TRIAL_DAYS", 7),
		MaxDispatchAttempts:       getEnvInt("ASTRAL_WEBHOOK_MAX_ATTEMPTS", 3),
		RetryBaseDelay:            getEnvDuration("ASTRAL_WEBHOOK_RETRY_BASE", 1*time.Second),
		RetryMaxDelay:             getEnvDuration("ASTRAL_WEBHOOK_RETRY_CAP", 5*time.Second),
		UpgradeBasicURL:           getEnv("ASTRAL_UPGRADE_URL_BASIC", "https://pay.astralpost.app/basic"),
		UpgradeProURL:             getEnv("ASTRAL_UPGRADE_URL_PRO", "https://pay.astralpost.app/pro"),
	}
}

func loadContentConfig() ContentConfig {
	return ContentConfig{
		PrimaryBaseURL:          getEnv("ASTRAL_PRIMARY_PROVIDER_URL", "https://api.nova.ai/v1"),
		PrimaryAPIKey:           getEnv("ASTRAL_PRIMARY_PROVIDER_KEY", ""),
		PrimaryModel:            getEnv("ASTRAL_PRIMARY_MODEL", "nova-large"),
		FallbackBaseURL:         getEnv("ASTRAL_FALLBACK_PROVIDER_URL", "https://api.scribe.dev/v1"),
		FallbackAPIKey:          getEnv("ASTRAL_FALLBACK_PROVIDER_KEY", ""),
		FallbackModel:           getEnv("ASTRAL_FALLBACK_MODEL", "scribe-chat"),
		StandardTimeout:         getEnvDuration("ASTRAL_PROVIDER_TIMEOUT", 15*time.Second),
		PremiumTimeout:          getEnvDuration("ASTRAL_PROVIDER_PREMIUM_TIMEOUT", 25*time.Second),
		CacheTTL:                getEnvDuration("ASTRAL_CONTENT_CACHE_TTL", 48*time.Hour),
		L1CacheSize:             getEnvInt("ASTRAL_CONTENT_L1_SIZE", 256),
		BreakerFailureThreshold: getEnvInt("ASTRAL_BREAKER_THRESHOLD", 3),
		BreakerCooldown:         getEnvDuration("ASTRAL_BREAKER_COOLDOWN", 5*time.Minute),
		FallbackTemplatesPath:   getEnv("ASTRAL_FALLBACK_TEMPLATES_PATH", "config/fallbacks.yaml"),
	}
}

func loadAlmanacConfig() AlmanacConfig {
	return AlmanacConfig{
		EphemerisBaseURL: getEnv("ASTRAL_EPHEMERIS_URL", "https://api.ephemeris.example.com/v1"),
		EphemerisAPIKey:  getEnv("ASTRAL_EPHEMERIS_KEY", ""),
		EphemerisTTL:     getEnvDuration("ASTRAL_EPHEMERIS_TTL", 24*time.Hour),
		NewsBaseURL:      getEnv("ASTRAL_NEWS_URL", "https://api.news.example.com/v2"),
		NewsAPIKey:       getEnv("ASTRAL_NEWS_KEY", ""),
		NewsTTL:          getEnvDuration("ASTRAL_NEWS_TTL", 6*time.Hour),
	}
}

func loadMailerConfig() MailerConfig {
	return MailerConfig{
		BaseURL:     getEnv("ASTRAL_MAIL_API_URL", "https://api.resend.com"),
		APIKey:      getEnv("ASTRAL_MAIL_API_KEY", ""),
		FromAddress: getEnv("ASTRAL_MAIL_FROM", "Astral Post <hello@astralpost.app>"),
		QueueKey:    getEnv("ASTRAL_MAIL_QUEUE_KEY", "mail:queue"),
		Workers:     getEnvInt("ASTRAL_MAIL_WORKERS", 4),
		MaxAttempts: getEnvInt("ASTRAL_MAIL_MAX_ATTEMPTS", 3),
	}
}

func loadUsersConfig() UsersConfig {
	return UsersConfig{
		TokenSecret: getEnv("ASTRAL_TOKEN_SECRET", ""),
	}
}

func loadArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Enabled:   getEnvBool("ASTRAL_ARCHIVE_ENABLED", false),
		Endpoint:  getEnv("ASTRAL_ARCHIVE_S3_ENDPOINT", ""),
		Region:    getEnv("ASTRAL_ARCHIVE_S3_REGION", "us-east-1"),
		Bucket:    getEnv("ASTRAL_ARCHIVE_S3_BUCKET", ""),
		AccessKey: getEnv("ASTRAL_ARCHIVE_S3_ACCESS_KEY", ""),
		SecretKey: getEnv("ASTRAL_ARCHIVE_S3_SECRET_KEY", ""),
		PathStyle: getEnvBool("ASTRAL_ARCHIVE_S3_PATH_STYLE", false),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("ASTRAL_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("ASTRAL_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("ASTRAL_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("ASTRAL_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("ASTRAL_OTEL_SERVICE_NAME", "astralpost"),
		OTelServiceVersion: getEnv("ASTRAL_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("ASTRAL_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	switch c.Billing.DefaultTier {
	case "basic", "pro":
		// ok
	default:
		return fmt.Errorf("invalid default paid tier: %s (must be basic or pro)", c.Billing.DefaultTier)
	}
	if c.Billing.MaxDispatchAttempts < 1 {
		return fmt.Errorf("webhook max attempts must be at least 1")
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive bucket is required when archiving is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
