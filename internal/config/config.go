// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Answer generation
	OpenAIAPIKey string // If empty, the mock generator is used
	OpenAIModel  string
	MockDelay    time.Duration // Simulated latency of the mock generator

	// Billing
	StripeSecretKey    string  // If empty, the simulated payment processor is used
	PaymentFailureRate float64 // Simulated processor failure probability [0,1)
	RenewalInterval    time.Duration

	// Security / limits
	RateLimitRPM   int
	AllowedOrigins []string

	// Tracing
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort               = "8080"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultMockDelay          = 150 * time.Millisecond
	DefaultPaymentFailureRate = 0.1
	DefaultRenewalInterval    = time.Hour
	DefaultRateLimitRPM       = 60
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:        os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        getEnv("OPENAI_MODEL", DefaultOpenAIModel),
		MockDelay:          getEnvDuration("MOCK_ANSWER_DELAY", DefaultMockDelay),
		StripeSecretKey:    os.Getenv("STRIPE_SECRET_KEY"),
		PaymentFailureRate: getEnvFloat("PAYMENT_FAILURE_RATE", DefaultPaymentFailureRate),
		RenewalInterval:    getEnvDuration("RENEWAL_INTERVAL", DefaultRenewalInterval),
		RateLimitRPM:       int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		AllowedOrigins:     []string{getEnv("ALLOWED_ORIGIN", "*")},
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all configuration values are coherent
func (c *Config) Validate() error {
	if c.PaymentFailureRate < 0 || c.PaymentFailureRate >= 1 {
		return fmt.Errorf("PAYMENT_FAILURE_RATE must be in [0, 1), got %v", c.PaymentFailureRate)
	}
	if c.RenewalInterval < time.Minute {
		return fmt.Errorf("RENEWAL_INTERVAL must be at least 1m, got %v", c.RenewalInterval)
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive, got %d", c.RateLimitRPM)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
