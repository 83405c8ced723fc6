package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/booking?sslmode=disable")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("RAZORPAY_MODE", "sandbox")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Booking.HoldWindow)
	assert.Equal(t, "INR", cfg.Booking.Currency)
	assert.Equal(t, 200, cfg.Booking.SweepBatch)
	assert.Equal(t, "sandbox_secret", cfg.Payment.KeySecret)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "events", cfg.Events.Exchange)
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BOOKING_HOLD_WINDOW_MINUTES", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Booking.HoldWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Environment: "development"},
			Database: DatabaseConfig{Driver: StorageDriverPostgres, URL: "postgres://x"},
			JWT:      JWTConfig{Secret: "s"},
			Booking:  BookingConfig{HoldWindow: time.Minute, SweepBatch: 10},
			Payment:  PaymentConfig{Mode: PaymentModeSandbox},
		}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing database url", func(t *testing.T) {
		c := valid()
		c.Database.URL = ""
		assert.Error(t, c.Validate())
	})

	t.Run("memory driver needs no url", func(t *testing.T) {
		c := valid()
		c.Database.Driver = StorageDriverMemory
		c.Database.URL = ""
		assert.NoError(t, c.Validate())
	})

	t.Run("memory driver rejected in production", func(t *testing.T) {
		c := valid()
		c.Database.Driver = StorageDriverMemory
		c.Server.Environment = "production"
		assert.Error(t, c.Validate())
	})

	t.Run("live mode requires credentials", func(t *testing.T) {
		c := valid()
		c.Payment.Mode = PaymentModeLive
		assert.Error(t, c.Validate())

		c.Payment.KeyID = "rzp_live_x"
		c.Payment.KeySecret = "secret"
		c.Payment.WebhookSecret = "whsec"
		assert.NoError(t, c.Validate())
	})

	t.Run("unknown payment mode", func(t *testing.T) {
		c := valid()
		c.Payment.Mode = "paypal"
		assert.Error(t, c.Validate())
	})

	t.Run("non-positive hold window", func(t *testing.T) {
		c := valid()
		c.Booking.HoldWindow = 0
		assert.Error(t, c.Validate())
	})
}
