package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 3, cfg.Matching.MaxAttempts)
	assert.Equal(t, "INR", cfg.Gateway.Currency)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("MATCH_MAX_ATTEMPTS", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 5, cfg.Matching.MaxAttempts)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.CORSAllowedOrigins)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoad_ProdRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "prod-secret")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_KEY_SECRET")

	t.Setenv("GATEWAY_KEY_SECRET", "gw-secret")
	t.Setenv("GATEWAY_KEY_ID", "rzp_live_x")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoad_RejectsBadTimezone(t *testing.T) {
	t.Setenv("SERVICE_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)
}
