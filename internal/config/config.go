package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	Location      *time.Location
	AppEnv        string
	LogLevel      string
	LogFile       string
}

// Load reads configuration from environment variables with sane defaults.
// Values from the dotenv file named by ENV_FILE (default .env) are applied
// first without overriding variables already set.
func Load() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AppEnv:        strings.TrimSpace(os.Getenv("APP_ENV")),
		LogLevel:      strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		LogFile:       strings.TrimSpace(os.Getenv("LOG_FILE")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DB_PATH"))
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "reminders.db"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	loc, err := loadLocation(strings.TrimSpace(os.Getenv("TIMEZONE")))
	if err != nil {
		return cfg, err
	}
	cfg.Location = loc

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}
