package config

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	// SecretKey seals credentials at rest. Base64, 32 bytes decoded.
	SecretKey string `env:"SECRET_KEY,required" validate:"required"`
	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	// Provider endpoints.
	AuthURL    string `env:"AUTH_URL" envDefault:"https://auth.atriumapp.co/realms/my-tfc/protocol/openid-connect/token" validate:"required,url"`
	ClientID   string `env:"AUTH_CLIENT_ID" envDefault:"my-tfc" validate:"required"`
	BookingURL string `env:"BOOKING_URL" envDefault:"https://api.atriumapp.co" validate:"required,url"`
	OccupantID string `env:"OCCUPANT_ID,required" validate:"required"`

	// Scheduling constants.
	LocalTZ            string `env:"LOCAL_TZ" envDefault:"America/New_York" validate:"required"`
	AdvanceWindowHours int    `env:"ADVANCE_WINDOW_HOURS" envDefault:"168" validate:"min=1"`
	PrepLeadSec        int    `env:"PREP_LEAD_SEC" envDefault:"180" validate:"min=1"`
	RescueGraceSec     int    `env:"RESCUE_GRACE_SEC" envDefault:"30" validate:"min=1"`
	RefreshSafetySec   int    `env:"REFRESH_SAFETY_SEC" envDefault:"30" validate:"min=1"`
	RefreshBackoffSec  int    `env:"REFRESH_BACKOFF_SEC" envDefault:"300" validate:"min=1"`
	GuardBandSec       int    `env:"GUARD_BAND_SEC" envDefault:"2" validate:"min=1"`
	WorkerCount        int    `env:"WORKER_COUNT" envDefault:"5" validate:"min=1,max=100"`

	// Optional initial load. If set but unreadable, startup aborts.
	SchedulesPath string `env:"SCHEDULES_PATH"`
	TokensPath    string `env:"TOKENS_PATH"`

	// Operator alerting.
	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_unless=Env local"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_unless=Env local"`
	AlertEmail   string `env:"ALERT_EMAIL"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.SecretKeyBytes(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SecretKeyBytes decodes the sealing key. Accepts standard and raw base64.
func (c *Config) SecretKeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.SecretKey)
	if err != nil {
		key, err = base64.RawStdEncoding.DecodeString(c.SecretKey)
	}
	if err != nil {
		return nil, fmt.Errorf("SECRET_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("SECRET_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) AdvanceWindow() time.Duration {
	return time.Duration(c.AdvanceWindowHours) * time.Hour
}

func (c *Config) PrepLead() time.Duration {
	return time.Duration(c.PrepLeadSec) * time.Second
}

func (c *Config) RescueGrace() time.Duration {
	return time.Duration(c.RescueGraceSec) * time.Second
}

func (c *Config) RefreshSafety() time.Duration {
	return time.Duration(c.RefreshSafetySec) * time.Second
}

func (c *Config) RefreshBackoff() time.Duration {
	return time.Duration(c.RefreshBackoffSec) * time.Second
}

func (c *Config) GuardBand() time.Duration {
	return time.Duration(c.GuardBandSec) * time.Second
}
