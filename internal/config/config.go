package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"marketplace-payouts/internal/notify"
	"marketplace-payouts/internal/observability/logging"
	"marketplace-payouts/internal/ratelimit"
)

// Config is the process configuration.
type Config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	OutboxInterval    time.Duration
	OutboxBatch       int
	OutboxMaxAttempts int

	Log       logging.Options
	RateLimit ratelimit.Config
	Notify    NotifyConfig
}

// NotifyConfig configures notification channels and templates.
type NotifyConfig struct {
	WebhookURL     string            `yaml:"webhook_url"`
	WebhookSecret  string            `yaml:"webhook_secret"`
	WebhookTimeout time.Duration     `yaml:"webhook_timeout"`
	SMTPHost       string            `yaml:"smtp_host"`
	SMTPPort       int               `yaml:"smtp_port"`
	SMTPUsername   string            `yaml:"smtp_username"`
	SMTPPassword   string            `yaml:"smtp_password"`
	MailFrom       string            `yaml:"mail_from"`
	Templates      map[string]string `yaml:"templates"`
}

// SMTP returns the e-mail channel settings, or false when SMTP is not configured.
func (n NotifyConfig) SMTP() (notify.SMTPConfig, bool) {
	if n.SMTPHost == "" || n.MailFrom == "" {
		return notify.SMTPConfig{}, false
	}
	return notify.SMTPConfig{
		Host:     n.SMTPHost,
		Port:     n.SMTPPort,
		Username: n.SMTPUsername,
		Password: n.SMTPPassword,
		From:     n.MailFrom,
	}, true
}

// fileConfig is the optional YAML overlay.
type fileConfig struct {
	Notify    *NotifyConfig `yaml:"notify"`
	RateLimit *struct {
		Rate     string `yaml:"rate"`
		RedisURL string `yaml:"redis_url"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"rate_limit"`
}

// Load reads .env (if present), the environment, and the optional PAYOUTS_CONFIG YAML file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		ReadTimeout:       getenvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      getenvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout:   getenvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		OutboxInterval:    getenvDuration("OUTBOX_DISPATCH_INTERVAL", 2*time.Second),
		OutboxBatch:       getenvIntDefault("OUTBOX_DISPATCH_BATCH", 50),
		OutboxMaxAttempts: getenvIntDefault("OUTBOX_MAX_ATTEMPTS", 5),
		Log: logging.Options{
			Level:      getenvDefault("LOG_LEVEL", "info"),
			Format:     getenvDefault("LOG_FORMAT", "json"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getenvIntDefault("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getenvIntDefault("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getenvIntDefault("LOG_MAX_AGE_DAYS", 28),
		},
		RateLimit: ratelimit.Config{
			Rate:     getenvDefault("RATE_LIMIT", "60-1m"),
			RedisURL: os.Getenv("REDIS_URL"),
		},
		Notify: NotifyConfig{
			WebhookURL:     os.Getenv("NOTIFY_WEBHOOK_URL"),
			WebhookSecret:  os.Getenv("NOTIFY_WEBHOOK_SECRET"),
			WebhookTimeout: getenvDuration("NOTIFY_WEBHOOK_TIMEOUT", 5*time.Second),
			SMTPHost:       os.Getenv("SMTP_HOST"),
			SMTPPort:       getenvIntDefault("SMTP_PORT", 587),
			SMTPUsername:   os.Getenv("SMTP_USERNAME"),
			SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
			MailFrom:       os.Getenv("MAIL_FROM"),
		},
	}

	if path := os.Getenv("PAYOUTS_CONFIG"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("config: AUTH_JWT_SECRET is required")
	}
	if _, err := ratelimit.ParseRate(cfg.RateLimit.Rate); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if n := file.Notify; n != nil {
		mergeNotify(&cfg.Notify, *n)
	}
	if rl := file.RateLimit; rl != nil {
		if rl.Rate != "" {
			cfg.RateLimit.Rate = rl.Rate
		}
		if rl.RedisURL != "" {
			cfg.RateLimit.RedisURL = rl.RedisURL
		}
		if rl.Prefix != "" {
			cfg.RateLimit.Prefix = rl.Prefix
		}
	}
	return nil
}

func mergeNotify(base *NotifyConfig, override NotifyConfig) {
	if override.WebhookURL != "" {
		base.WebhookURL = override.WebhookURL
	}
	if override.WebhookSecret != "" {
		base.WebhookSecret = override.WebhookSecret
	}
	if override.WebhookTimeout != 0 {
		base.WebhookTimeout = override.WebhookTimeout
	}
	if override.SMTPHost != "" {
		base.SMTPHost = override.SMTPHost
	}
	if override.SMTPPort != 0 {
		base.SMTPPort = override.SMTPPort
	}
	if override.SMTPUsername != "" {
		base.SMTPUsername = override.SMTPUsername
	}
	if override.SMTPPassword != "" {
		base.SMTPPassword = override.SMTPPassword
	}
	if override.MailFrom != "" {
		base.MailFrom = override.MailFrom
	}
	if len(override.Templates) > 0 {
		base.Templates = override.Templates
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
