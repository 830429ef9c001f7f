package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTTTL)
	assert.Equal(t, 587, cfg.Mail.SMTPPort)
	assert.Equal(t, "http://localhost:3000", cfg.App.FrontendURL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/billing")
	t.Setenv("JWT_SECRET", "super-secret")
	t.Setenv("JWT_TTL", "1h")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/billing", cfg.Database.URL)
	assert.Equal(t, "super-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Auth.JWTTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
