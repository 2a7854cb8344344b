package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "settleup.db")
	t.Setenv("AUTH_MODE", "DEV")
	t.Setenv("IDEMPOTENCY_TTL", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "settleup.db", cfg.DatabaseURL)
	assert.Equal(t, AuthModeDev, cfg.AuthMode)
	assert.Equal(t, 10*time.Minute, cfg.IdempotencyTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadRequiresSecretInJWTMode(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseDriver: "postgres",
			DatabaseURL:    "postgres://localhost/settleup",
			AuthMode:       AuthModeJWT,
			JWTSecret:      "secret",
			JWTTTL:         time.Hour,
			IdempotencyTTL: time.Hour,
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"missing url", func(c *Config) { c.DatabaseURL = "" }},
		{"unknown auth mode", func(c *Config) { c.AuthMode = "basic" }},
		{"zero jwt ttl", func(c *Config) { c.JWTTTL = 0 }},
		{"negative idempotency ttl", func(c *Config) { c.IdempotencyTTL = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
