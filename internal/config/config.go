// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST,default=0.0.0.0"`
	Port int    `env:"SERVER_PORT,default=8080"`
}

// DatabaseConfig holds the Postgres connection settings. An empty URL means
// the in-memory store is used.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=5m"`
}

// AuthConfig holds session and identity-provider settings.
type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET"`
	JWTTTL         time.Duration `env:"JWT_TTL,default=24h"`
	GoogleClientID string        `env:"GOOGLE_CLIENT_ID"`
}

// MailConfig holds the SMTP relay settings. An empty host means outgoing
// mail is logged instead of sent.
type MailConfig struct {
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	From         string `env:"MAIL_FROM,default=noreply@freelancebill.app"`
}

// AppConfig holds frontend-facing settings.
type AppConfig struct {
	FrontendURL    string   `env:"FRONTEND_URL,default=http://localhost:3000"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RatePerSecond  int      `env:"RATE_LIMIT_PER_SECOND,default=20"`
	RateBurst      int      `env:"RATE_LIMIT_BURST,default=40"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Mail     MailConfig
	App      AppConfig
	Logging  LoggingConfig
}

// Load reads configuration from the environment, honouring a local .env
// file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}
