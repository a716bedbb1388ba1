package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("BOOKING_STORE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "simulated", cfg.Payment.Mode)
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Booking.LockTTL)
	assert.Equal(t, "30-1m", cfg.RateLimit.Rate)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("BOOKING_STORE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/chargeslot")
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("PAYMENT_GATEWAY_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{URL: "postgres://x", Driver: "postgres"},
			JWT:      JWTConfig{Secret: "s"},
			Payment:  PaymentConfig{Mode: "simulated", Timeout: time.Second},
			Booking:  BookingConfig{Store: "postgres", LockTTL: 3 * time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing database url", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL is required"},
		{"memory store needs no database", func(c *Config) { c.Database.URL = ""; c.Booking.Store = "memory" }, ""},
		{"unknown store", func(c *Config) { c.Booking.Store = "mongo" }, "invalid BOOKING_STORE"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "invalid DATABASE_DRIVER"},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "JWT_SECRET is required"},
		{"razorpay without keys", func(c *Config) { c.Payment.Mode = "razorpay" }, "RAZORPAY_KEY_ID"},
		{"unknown payment mode", func(c *Config) { c.Payment.Mode = "stripe" }, "invalid PAYMENT_MODE"},
		{"zero timeout", func(c *Config) { c.Payment.Timeout = 0 }, "PAYMENT_GATEWAY_TIMEOUT"},
		{"lock ttl equal to two gateway calls", func(c *Config) { c.Booking.LockTTL = 2 * time.Second }, "BOOKING_LOCK_TTL"},
		{"lock ttl shorter than gateway timeout", func(c *Config) { c.Payment.Timeout = 30 * time.Second }, "BOOKING_LOCK_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_RejectsShortLockTTL(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("BOOKING_STORE", "memory")
	t.Setenv("PAYMENT_GATEWAY_TIMEOUT", "20s")
	t.Setenv("BOOKING_LOCK_TTL", "30s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOOKING_LOCK_TTL")
}
