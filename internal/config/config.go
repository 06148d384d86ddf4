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
)

// Config keeps runtime settings for the bot and the progress engine.
type Config struct {
	TelegramToken        string        `yaml:"telegram_token"`
	DatabaseURL          string        `yaml:"database_url"`
	ReportInterval       time.Duration `yaml:"-"`
	ReportIntervalHours  int           `yaml:"report_interval_hours"`
	EvaluateAt           string        `yaml:"evaluate_at"`
	Timezone             string        `yaml:"timezone"`
	HorizonDays          int           `yaml:"horizon_days"`
	FreezeTokensPerMonth int           `yaml:"freeze_tokens_per_month"`
	MaxFreezeTokens      int           `yaml:"max_freeze_tokens"`
	LogLevel             string        `yaml:"log_level"`
	MetricsAddr          string        `yaml:"metrics_addr"`
	BotRatePerSecond     float64       `yaml:"bot_rate_per_second"`
	BotBurst             int           `yaml:"bot_burst"`

	Location *time.Location `yaml:"-"`
}

// ErrMissingToken is returned by RequireBot when no Telegram token is configured.
var ErrMissingToken = errors.New("TELEGRAM_TOKEN is required")

func defaults() Config {
	return Config{
		DatabaseURL:          "momentum.db",
		ReportIntervalHours:  5,
		EvaluateAt:           "00:05",
		HorizonDays:          90,
		FreezeTokensPerMonth: 1,
		MaxFreezeTokens:      3,
		LogLevel:             "info",
		BotRatePerSecond:     1,
		BotBurst:             5,
	}
}

// Load reads configuration with sane defaults. Sources, lowest priority first:
// defaults, the YAML file named by MOMENTUM_CONFIG, a .env file, the environment.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("MOMENTUM_CONFIG")); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return cfg, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	overrideFromEnv(&cfg)
	return cfg, cfg.finalize()
}

// RequireBot validates the settings needed to run the Telegram front end.
func (c Config) RequireBot() error {
	if c.TelegramToken == "" {
		return ErrMissingToken
	}
	return nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.EvaluateAt, "EVALUATE_AT")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.MetricsAddr, "METRICS_ADDR")
	setInt(&cfg.ReportIntervalHours, "REPORT_INTERVAL_HOURS")
	setInt(&cfg.HorizonDays, "HORIZON_DAYS")
	setInt(&cfg.FreezeTokensPerMonth, "FREEZE_TOKENS_PER_MONTH")
	setInt(&cfg.MaxFreezeTokens, "MAX_FREEZE_TOKENS")
	setInt(&cfg.BotBurst, "BOT_BURST")
	if raw := strings.TrimSpace(os.Getenv("BOT_RATE_PER_SECOND")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			cfg.BotRatePerSecond = v
		}
	}
}

func (c *Config) finalize() error {
	c.ReportInterval = parseInterval(strconv.Itoa(c.ReportIntervalHours))
	if c.ReportInterval == 0 {
		c.ReportInterval = 5 * time.Hour
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 90
	}
	if c.MaxFreezeTokens <= 0 {
		c.MaxFreezeTokens = 3
	}
	if c.FreezeTokensPerMonth <= 0 {
		c.FreezeTokensPerMonth = 1
	}
	if _, err := time.Parse("15:04", c.EvaluateAt); err != nil {
		return fmt.Errorf("EVALUATE_AT %q: expected HH:MM", c.EvaluateAt)
	}

	c.Location = time.Local
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", c.Timezone, err)
		}
		c.Location = loc
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	if v, err := strconv.Atoi(raw); err == nil {
		*dst = v
	}
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
