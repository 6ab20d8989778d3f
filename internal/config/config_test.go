package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "PORT", "")
	setEnv(t, "PAYMENT_FAILURE_RATE", "")
	setEnv(t, "RENEWAL_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultOpenAIModel, cfg.OpenAIModel)
	assert.Equal(t, DefaultPaymentFailureRate, cfg.PaymentFailureRate)
	assert.Equal(t, DefaultRenewalInterval, cfg.RenewalInterval)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "PAYMENT_FAILURE_RATE", "0.25")
	setEnv(t, "RENEWAL_INTERVAL", "30m")
	setEnv(t, "OPENAI_MODEL", "gpt-4o")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 0.25, cfg.PaymentFailureRate)
	assert.Equal(t, 30*time.Minute, cfg.RenewalInterval)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "failure rate too high",
			mutate:  func(c *Config) { c.PaymentFailureRate = 1.0 },
			wantErr: "PAYMENT_FAILURE_RATE",
		},
		{
			name:    "failure rate negative",
			mutate:  func(c *Config) { c.PaymentFailureRate = -0.1 },
			wantErr: "PAYMENT_FAILURE_RATE",
		},
		{
			name:    "renewal interval too short",
			mutate:  func(c *Config) { c.RenewalInterval = time.Second },
			wantErr: "RENEWAL_INTERVAL",
		},
		{
			name:    "rate limit zero",
			mutate:  func(c *Config) { c.RateLimitRPM = 0 },
			wantErr: "RATE_LIMIT_RPM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				PaymentFailureRate: DefaultPaymentFailureRate,
				RenewalInterval:    DefaultRenewalInterval,
				RateLimitRPM:       DefaultRateLimitRPM,
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
