// Package logger builds the zap logger shared by every component.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config defines logger configuration.
type Config struct {
	Environment string // "development" or "production"
	Level       string // "debug", "info", "warn", "error"
	// Filename is the rotated log file used in production. Empty means stdout.
	Filename   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// New returns a console logger for development and a JSON logger for production.
func New(cfg Config) (*zap.Logger, error) {
	level := ParseLevel(cfg.Level)
	switch strings.ToLower(cfg.Environment) {
	case "production", "prod":
		return newProductionLogger(cfg, level), nil
	default:
		return newDevelopmentLogger(level)
	}
}

func newProductionLogger(cfg Config, level zapcore.Level) *zap.Logger {
	var writer zapcore.WriteSyncer = zapcore.AddSync(os.Stdout)
	if cfg.Filename != "" {
		writer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    orDefault(cfg.MaxSize, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAge, 30),
			Compress:   true,
		})
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, level)
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", "reminder-bot")),
	)
}

func newDevelopmentLogger(level zapcore.Level) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	config.Level = zap.NewAtomicLevelAt(level)
	return config.Build()
}

// ParseLevel converts a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
