package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"budgee-monitor/src/scheduler"
)

type Config struct {
	Port           string
	DatabaseURL    string
	JWTSecret      string
	AllowedOrigins []string
	LogLevel       string

	ScanSchedule        string
	ScanWorkers         int
	UserScanTimeout     time.Duration
	BudgetCooldown      time.Duration
	NearingDeadlineDays int
	Timezone            string
	BudgetsFile         string

	NotifyWebhookURL    string
	NotifyWebhookSecret string
	NATSURL             string
	NotifyWorkers       int
	NotifyBuffer        int
	NotifyTimeout       time.Duration
}

// Load reads configuration from the environment, after loading a .env file
// if one is present. Malformed numbers and durations are reported together.
func Load() (Config, error) {
	_ = godotenv.Load()

	p := &parser{}
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		ScanSchedule:        getEnv("SCAN_SCHEDULE", scheduler.DefaultSchedule),
		ScanWorkers:         p.int("SCAN_WORKERS", 4),
		UserScanTimeout:     p.duration("USER_SCAN_TIMEOUT", 30*time.Second),
		BudgetCooldown:      p.duration("BUDGET_COOLDOWN", 0),
		NearingDeadlineDays: p.int("NEARING_DEADLINE_DAYS", 30),
		Timezone:            getEnv("TIMEZONE", "UTC"),
		BudgetsFile:         getEnv("BUDGETS_FILE", ""),

		NotifyWebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookSecret: getEnv("NOTIFY_WEBHOOK_SECRET", ""),
		NATSURL:             getEnv("NATS_URL", ""),
		NotifyWorkers:       p.int("NOTIFY_WORKERS", 2),
		NotifyBuffer:        p.int("NOTIFY_BUFFER", 256),
		NotifyTimeout:       p.duration("NOTIFY_TIMEOUT", 10*time.Second),
	}
	return cfg, errors.Join(p.errs...)
}

// Validate checks values that parsed but make no sense. DATABASE_URL is
// checked by the commands that need it.
func (c Config) Validate() error {
	var errs []error
	if c.ScanWorkers < 1 {
		errs = append(errs, fmt.Errorf("SCAN_WORKERS must be at least 1"))
	}
	if c.UserScanTimeout <= 0 {
		errs = append(errs, fmt.Errorf("USER_SCAN_TIMEOUT must be positive"))
	}
	if c.BudgetCooldown < 0 {
		errs = append(errs, fmt.Errorf("BUDGET_COOLDOWN must not be negative"))
	}
	if c.NearingDeadlineDays < 1 {
		errs = append(errs, fmt.Errorf("NEARING_DEADLINE_DAYS must be at least 1"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := scheduler.ParseSchedule(c.ScanSchedule); err != nil {
		errs = append(errs, fmt.Errorf("SCAN_SCHEDULE: %w", err))
	}
	if c.NotifyWebhookURL != "" && c.NotifyWebhookSecret == "" {
		errs = append(errs, fmt.Errorf("NOTIFY_WEBHOOK_SECRET is required with NOTIFY_WEBHOOK_URL"))
	}
	if c.NotifyWorkers < 1 || c.NotifyBuffer < 1 {
		errs = append(errs, fmt.Errorf("NOTIFY_WORKERS and NOTIFY_BUFFER must be at least 1"))
	}
	if c.NotifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_TIMEOUT must be positive"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}
