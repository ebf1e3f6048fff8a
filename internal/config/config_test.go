package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_TOKEN", "DATABASE_URL", "DB_PATH", "TIMEZONE", "APP_ENV",
		"LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", " token ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.TelegramToken)
	assert.Equal(t, "reminders.db", cfg.DatabaseURL)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Local, cfg.Location)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("DB_PATH", "data/legacy.db")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "data/legacy.db", cfg.DatabaseURL)
	assert.Equal(t, "UTC", cfg.Location.String())
}

func TestLoadRequiresToken(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TELEGRAM_TOKEN=from-file\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("ENV_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.TelegramToken)
	assert.Equal(t, "debug", cfg.LogLevel)
}
