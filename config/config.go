package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/token"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres" validate:"oneof=postgres sqlite"`
	DatabaseURL   string `env:"DATABASE_URL" validate:"required_if=StorageDriver postgres"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"quicksand.db"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	SecretKey             string        `env:"SECRET_KEY,required" validate:"required,min=32"`
	JWTAlgorithm          string        `env:"JWT_ALGORITHM" envDefault:"HS256" validate:"oneof=HS256 HS384 HS512"`
	InviteTokenTTL        time.Duration `env:"INVITE_TOKEN_TTL" envDefault:"720h" validate:"gt=0"`
	PasswordResetTokenTTL time.Duration `env:"PASSWORD_RESET_TOKEN_TTL" envDefault:"24h" validate:"gt=0"`
	EmailChangeTokenTTL   time.Duration `env:"EMAIL_CHANGE_TOKEN_TTL" envDefault:"24h" validate:"gt=0"`
	AccessTokenTTL        time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"168h" validate:"gt=0"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	EmailHost    string `env:"EMAIL_HOST" envDefault:"http://localhost:8080" validate:"url"`

	MediaRoot            string `env:"MEDIA_ROOT" envDefault:"media"`
	ProfileAvatarMaxSize int64  `env:"PROFILE_AVATAR_MAX_SIZE" envDefault:"10485760" validate:"min=1"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	RateLimitRPS       float64  `env:"RATE_LIMIT_RPS" envDefault:"1" validate:"gt=0"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"5" validate:"min=1"`

	InviteMailCron  string `env:"INVITE_MAIL_CRON" envDefault:"*/5 * * * *" validate:"required"`
	InviteMailBatch int    `env:"INVITE_MAIL_BATCH" envDefault:"50" validate:"min=1,max=1000"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// TokenConfig builds the codec settings from the environment.
func (c *Config) TokenConfig() token.Config {
	return token.Config{
		Secret:    []byte(c.SecretKey),
		Algorithm: c.JWTAlgorithm,
		TTL: map[domain.TokenPurpose]time.Duration{
			domain.PurposeInvite:        c.InviteTokenTTL,
			domain.PurposePasswordReset: c.PasswordResetTokenTTL,
			domain.PurposeEmailChange:   c.EmailChangeTokenTTL,
			domain.PurposeAccess:        c.AccessTokenTTL,
		},
	}
}
