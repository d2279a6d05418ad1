package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server configuration
	Port            string        `yaml:"port"`
	Environment     string        `yaml:"environment"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Database configuration
	DBDriver    string `yaml:"db_driver"`
	DatabaseURL string `yaml:"database_url"`

	// Redis configuration
	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// PubNub configuration
	PubNubPublishKey   string `yaml:"pubnub_publish_key"`
	PubNubSubscribeKey string `yaml:"pubnub_subscribe_key"`
	PubNubSecretKey    string `yaml:"pubnub_secret_key"`
	PubNubUserID       string `yaml:"pubnub_user_id"`

	// Gateway configuration
	GatewayMode      string        `yaml:"gateway_mode"`
	GatewayBaseURL   string        `yaml:"gateway_base_url"`
	GatewaySecretKey string        `yaml:"gateway_secret_key"`
	GatewayTimeout   time.Duration `yaml:"gateway_timeout"`

	// Circuit breaker in front of tokenize and charge
	BreakerMaxRequests  int           `yaml:"breaker_max_requests"`
	BreakerInterval     time.Duration `yaml:"breaker_interval"`
	BreakerTimeout      time.Duration `yaml:"breaker_timeout"`
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio"`

	// Checkout configuration
	DefaultCurrency  string        `yaml:"default_currency"`
	TicketValidity   time.Duration `yaml:"ticket_validity"`
	DefaultEventName string        `yaml:"default_event_name"`

	// Refund retry queue
	RefundRetryInterval time.Duration `yaml:"refund_retry_interval"`
	RefundRetryBackoff  time.Duration `yaml:"refund_retry_backoff"`
	RefundMaxAttempts   int           `yaml:"refund_max_attempts"`

	// Lockout policy
	LockoutThreshold  int           `yaml:"lockout_threshold"`
	LockoutBase       time.Duration `yaml:"lockout_base"`
	LockoutMultiplier int           `yaml:"lockout_multiplier"`

	// Auth
	JWTSecret string        `yaml:"jwt_secret"`
	JWTTTL    time.Duration `yaml:"jwt_ttl"`

	// Rate limiting
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// Monitoring
	EnableMetrics   bool          `yaml:"enable_metrics"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by CONFIG_FILE if set, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:            "8090",
		Environment:     "development",
		LogLevel:        "info",
		ShutdownTimeout: 15 * time.Second,

		DBDriver:    "sqlite",
		DatabaseURL: "file:checkout.db?_pragma=busy_timeout(5000)",

		RedisURL: "localhost:6379",

		PubNubUserID: "ticket-checkout",

		GatewayMode:    "sandbox",
		GatewayTimeout: 10 * time.Second,

		BreakerMaxRequests:  20,
		BreakerInterval:     60 * time.Second,
		BreakerTimeout:      30 * time.Second,
		BreakerFailureRatio: 0.6,

		DefaultCurrency:  "USD",
		TicketValidity:   30 * 24 * time.Hour,
		DefaultEventName: "Event Ticket",

		RefundRetryInterval: 30 * time.Second,
		RefundRetryBackoff:  time.Minute,
		RefundMaxAttempts:   8,

		LockoutThreshold:  10,
		LockoutBase:       300 * time.Second,
		LockoutMultiplier: 2,

		JWTTTL: time.Hour,

		RateLimitPerMinute: 30,

		EnableMetrics:   true,
		MetricsInterval: 30 * time.Second,
	}
}

func (c *Config) applyEnv() {
	// Server
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	// Database
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	// Redis
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvAsInt("REDIS_DB", c.RedisDB)

	// PubNub
	c.PubNubPublishKey = getEnv("PUBNUB_PUBLISH_KEY", c.PubNubPublishKey)
	c.PubNubSubscribeKey = getEnv("PUBNUB_SUBSCRIBE_KEY", c.PubNubSubscribeKey)
	c.PubNubSecretKey = getEnv("PUBNUB_SECRET_KEY", c.PubNubSecretKey)
	c.PubNubUserID = getEnv("PUBNUB_USER_ID", c.PubNubUserID)

	// Gateway
	c.GatewayMode = getEnv("GATEWAY_MODE", c.GatewayMode)
	c.GatewayBaseURL = getEnv("GATEWAY_BASE_URL", c.GatewayBaseURL)
	c.GatewaySecretKey = getEnv("GATEWAY_SECRET_KEY", c.GatewaySecretKey)
	c.GatewayTimeout = getEnvAsDuration("GATEWAY_TIMEOUT", c.GatewayTimeout)

	// Breaker
	c.BreakerMaxRequests = getEnvAsInt("BREAKER_MAX_REQUESTS", c.BreakerMaxRequests)
	c.BreakerInterval = getEnvAsDuration("BREAKER_INTERVAL", c.BreakerInterval)
	c.BreakerTimeout = getEnvAsDuration("BREAKER_TIMEOUT", c.BreakerTimeout)
	c.BreakerFailureRatio = getEnvAsFloat("BREAKER_FAILURE_RATIO", c.BreakerFailureRatio)

	// Checkout
	c.DefaultCurrency = getEnv("DEFAULT_CURRENCY", c.DefaultCurrency)
	c.TicketValidity = getEnvAsDuration("TICKET_VALIDITY", c.TicketValidity)
	c.DefaultEventName = getEnv("DEFAULT_EVENT_NAME", c.DefaultEventName)

	// Refunds
	c.RefundRetryInterval = getEnvAsDuration("REFUND_RETRY_INTERVAL", c.RefundRetryInterval)
	c.RefundRetryBackoff = getEnvAsDuration("REFUND_RETRY_BACKOFF", c.RefundRetryBackoff)
	c.RefundMaxAttempts = getEnvAsInt("REFUND_MAX_ATTEMPTS", c.RefundMaxAttempts)

	// Lockout
	c.LockoutThreshold = getEnvAsInt("LOCKOUT_THRESHOLD", c.LockoutThreshold)
	c.LockoutBase = getEnvAsDuration("LOCKOUT_BASE", c.LockoutBase)
	c.LockoutMultiplier = getEnvAsInt("LOCKOUT_MULTIPLIER", c.LockoutMultiplier)

	// Auth
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTTTL = getEnvAsDuration("JWT_TTL", c.JWTTTL)

	// Rate limiting
	c.RateLimitPerMinute = getEnvAsInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)

	// Monitoring
	c.EnableMetrics = getEnvAsBool("ENABLE_METRICS", c.EnableMetrics)
	c.MetricsInterval = getEnvAsDuration("METRICS_INTERVAL", c.MetricsInterval)
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "pgx", "postgres":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.GatewayMode {
	case "sandbox":
	case "live":
		if c.GatewaySecretKey == "" {
			return fmt.Errorf("config: GATEWAY_SECRET_KEY is required in live mode")
		}
	default:
		return fmt.Errorf("config: unsupported GATEWAY_MODE %q", c.GatewayMode)
	}
	if _, err := NewLockoutPolicy(c.LockoutThreshold, c.LockoutBase, c.LockoutMultiplier); err != nil {
		return err
	}
	if c.Environment == "production" && c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required in production")
	}
	return nil
}

// LockoutPolicy returns the policy built from the validated settings.
func (c *Config) LockoutPolicy() LockoutPolicy {
	p, _ := NewLockoutPolicy(c.LockoutThreshold, c.LockoutBase, c.LockoutMultiplier)
	return p
}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}
