package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Storage drivers.
const (
	StorageMemory  = "memory"
	StorageLevelDB = "leveldb"
	StorageRedis   = "redis"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int           `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	// Remote catalog, auth and upload API
	BackendURL          string        `env:"BACKEND_URL" envDefault:"https://etor.onrender.com/api"`
	BackendTimeout      time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
	BackendMaxRetries   int           `env:"BACKEND_MAX_RETRIES" envDefault:"3"`
	BackendRetryWaitMin time.Duration `env:"BACKEND_RETRY_WAIT_MIN" envDefault:"1s"`
	BackendRetryWaitMax time.Duration `env:"BACKEND_RETRY_WAIT_MAX" envDefault:"8s"`
	BackendMaxConns     int           `env:"BACKEND_MAX_CONNS" envDefault:"50"`

	// Session and cart storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`
	LevelDBPath   string `env:"LEVELDB_PATH" envDefault:"data/storefront"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass     string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Sessions
	SessionCookie   string        `env:"SESSION_COOKIE" envDefault:"storefront_session"`
	SessionMaxAge   time.Duration `env:"SESSION_MAX_AGE" envDefault:"720h"`
	SessionIdleTTL  time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SessionSweep    time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	SecureCookies   bool          `env:"SECURE_COOKIES" envDefault:"false"`
	CatalogTTL      time.Duration `env:"CATALOG_TTL" envDefault:"1m"`
	CatalogMaxAge   int           `env:"CATALOG_MAX_AGE" envDefault:"60"`
	CartEventBuffer int           `env:"CART_EVENT_BUFFER" envDefault:"256"`

	// Kafka; empty disables cart events
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Rate limiting
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Debug endpoints
	MetricsAllowedCIDRs []string `env:"METRICS_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16" envSeparator:","`
	PprofAllowedCIDRs   []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", c.BackendURL)
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive, got %s", c.BackendTimeout)
	}
	if c.BackendMaxRetries < 0 {
		return fmt.Errorf("BACKEND_MAX_RETRIES must not be negative, got %d", c.BackendMaxRetries)
	}
	if c.BackendRetryWaitMin > c.BackendRetryWaitMax {
		return fmt.Errorf("BACKEND_RETRY_WAIT_MIN (%s) exceeds BACKEND_RETRY_WAIT_MAX (%s)", c.BackendRetryWaitMin, c.BackendRetryWaitMax)
	}

	switch c.StorageDriver {
	case StorageMemory, StorageRedis:
	case StorageLevelDB:
		if c.LevelDBPath == "" {
			return fmt.Errorf("LEVELDB_PATH is required for the leveldb driver")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of memory, leveldb, redis; got %q", c.StorageDriver)
	}

	if c.SessionCookie == "" {
		return fmt.Errorf("SESSION_COOKIE must not be empty")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive, got %s", c.SessionIdleTTL)
	}
	if c.CatalogTTL <= 0 {
		return fmt.Errorf("CATALOG_TTL must be positive, got %s", c.CatalogTTL)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.Environment == "production" && !c.SecureCookies {
		return fmt.Errorf("SECURE_COOKIES must be enabled in production")
	}
	if c.Environment == "production" && slices.Contains(c.CORSAllowedOrigins, "*") {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must list explicit origins in production")
	}
	return nil
}

// KafkaEnabled reports whether cart events are published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
