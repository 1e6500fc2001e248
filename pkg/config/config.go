package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for assessments.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Risk     RiskConfig
	Breaker  BreakerConfig
	NATS     NATSConfig
	Sentry   SentryConfig
	Tracing  TracingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// RiskConfig wires the scoring engine into the service.
type RiskConfig struct {
	// ConfigFile holds the risk tunables; empty means built-in defaults.
	ConfigFile  string
	WatchConfig bool
	// Profile is applied on top of the file at startup when set.
	Profile          string
	Store            string
	HistoryLimit     int
	BaselineCacheTTL time.Duration
}

// BreakerConfig tunes the breaker around order history lookups.
type BreakerConfig struct {
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold int
	SuccessThreshold int
}

// NATSConfig holds the security alert transport.
type NATSConfig struct {
	URL          string
	AlertSubject string
	Enabled      bool
}

// SentryConfig holds error reporting settings.
type SentryConfig struct {
	DSN string
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Endpoint string
	Enabled  bool
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "orderrisk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Risk: RiskConfig{
			ConfigFile:       getEnv("RISK_CONFIG_FILE", ""),
			WatchConfig:      getEnvAsBool("RISK_WATCH_CONFIG", true),
			Profile:          getEnv("RISK_PROFILE", ""),
			Store:            strings.ToLower(getEnv("RISK_STORE", StorePostgres)),
			HistoryLimit:     getEnvAsInt("RISK_HISTORY_LIMIT", 20),
			BaselineCacheTTL: getEnvAsDuration("RISK_BASELINE_CACHE_TTL", 5*time.Minute),
		},
		Breaker: BreakerConfig{
			Interval:         getEnvAsDuration("HISTORY_BREAKER_INTERVAL", time.Minute),
			Timeout:          getEnvAsDuration("HISTORY_BREAKER_TIMEOUT", 30*time.Second),
			FailureThreshold: getEnvAsInt("HISTORY_BREAKER_FAILURES", 5),
			SuccessThreshold: getEnvAsInt("HISTORY_BREAKER_SUCCESSES", 1),
		},
		NATS: NATSConfig{
			URL:          getEnv("NATS_URL", "nats://localhost:4222"),
			AlertSubject: getEnv("NATS_ALERT_SUBJECT", "fraud.alerts.high_risk"),
			Enabled:      getEnvAsBool("NATS_ENABLED", false),
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
		},
		Tracing: TracingConfig{
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Enabled:  getEnvAsBool("TRACING_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Risk.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("invalid RISK_STORE %q: want %s or %s", c.Risk.Store, StoreMemory, StorePostgres)
	}
	if c.Risk.HistoryLimit <= 0 {
		return fmt.Errorf("RISK_HISTORY_LIMIT must be positive, got %d", c.Risk.HistoryLimit)
	}
	if c.NATS.Enabled && c.NATS.AlertSubject == "" {
		return fmt.Errorf("NATS_ALERT_SUBJECT is required when NATS is enabled")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as migrate drivers expect.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
