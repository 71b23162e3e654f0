package logger

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
	Encoding    string `json:"encoding"` // "json" or "console"
}

// ConfigFromJSON resolves a Config from the raw value of JOBSLIB_LOGGING
// (or the equivalent settings-file string): a production-shaped default
// (info/json, non-development) overlaid with whatever fields the JSON
// object sets. An empty raw string returns the default unchanged.
func ConfigFromJSON(raw string) (Config, error) {
	cfg := Config{Level: "info", Encoding: "json"}
	if raw == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse JOBSLIB_LOGGING: %w", err)
	}
	return cfg, nil
}

// New creates a new zap logger
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config

	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	if cfg.Encoding != "" {
		zapConfig.Encoding = cfg.Encoding
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	return zapConfig.Build()
}

// Default creates a default logger
func Default() *zap.Logger {
	logger, err := New(Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Development: os.Getenv("APP_ENV") != "production",
		Encoding:    "console",
	})
	if err != nil {
		// Fallback to a basic logger
		return zap.NewExample()
	}
	return logger
}

// WithContext returns a logger with additional context fields
func WithContext(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}
