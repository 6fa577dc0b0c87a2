// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
)

// ErrInvalidConfig is returned when loaded values are inconsistent.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Vonage credentials. The signature secret verifies inbound webhooks.
	VonageAPIKey          string `env:"VONAGE_API_KEY"`
	VonageAPISecret       string `env:"VONAGE_API_SECRET"`
	VonageSignatureSecret string `env:"VONAGE_SIGNATURE_SECRET"`
	VonageAPIURL          string `env:"VONAGE_API_URL" envDefault:"https://rest.nexmo.com/sms/json"`

	// Outbound SMS
	SMSDryRun      bool          `env:"SMS_DRY_RUN" envDefault:"false"`
	SMSTimeout     time.Duration `env:"SMS_TIMEOUT" envDefault:"10s"`
	SMSMaxAttempts int           `env:"SMS_MAX_ATTEMPTS" envDefault:"3"`

	// Region assumed for numbers typed without a country code.
	DefaultRegion string `env:"DEFAULT_REGION" envDefault:"US"`

	// Request body size limit in bytes (default 64KB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`

	// Inbound message dedupe window
	DedupeTTL time.Duration `env:"DEDUPE_TTL" envDefault:"24h"`

	// Per-sender rate limiting
	RateLimitSenderEnabled   bool `env:"RATE_LIMIT_SENDER_ENABLED" envDefault:"true"`
	RateLimitSenderPerMinute int  `env:"RATE_LIMIT_SENDER_PER_MINUTE" envDefault:"30"`
	RateLimitSenderBurst     int  `env:"RATE_LIMIT_SENDER_BURST" envDefault:"10"`

	// Maximum concurrent notification sends per command
	NotifyConcurrency int `env:"NOTIFY_CONCURRENCY" envDefault:"8"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	if !c.SMSDryRun && (c.VonageAPIKey == "" || c.VonageAPISecret == "") {
		return fmt.Errorf("%w: VONAGE_API_KEY and VONAGE_API_SECRET are required unless SMS_DRY_RUN is set", ErrInvalidConfig)
	}
	if c.IsProduction() && c.VonageSignatureSecret == "" {
		return fmt.Errorf("%w: VONAGE_SIGNATURE_SECRET is required in production", ErrInvalidConfig)
	}
	if c.RateLimitSenderEnabled && (c.RateLimitSenderPerMinute <= 0 || c.RateLimitSenderBurst <= 0) {
		return fmt.Errorf("%w: sender rate limit needs a positive rate and burst", ErrInvalidConfig)
	}
	if c.NotifyConcurrency <= 0 {
		return fmt.Errorf("%w: NOTIFY_CONCURRENCY must be positive", ErrInvalidConfig)
	}
	return nil
}

// RedactedDatabaseURL returns DatabaseURL with the password masked, for logs.
func (c *Config) RedactedDatabaseURL() string {
	return redactURL(c.DatabaseURL)
}

// RedactedRedisURL returns RedisURL with the password masked, for logs.
func (c *Config) RedactedRedisURL() string {
	return redactURL(c.RedisURL)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom is like Load but reads from the given map instead of the process
// environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
