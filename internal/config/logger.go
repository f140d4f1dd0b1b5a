package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a JSON logger for production and a console logger
// otherwise, at the given level.
func NewLogger(env, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	// Stdout carries command output.
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// MustInitLogger is NewLogger that falls back to info on a bad level and
// panics if zap cannot build at all.
func MustInitLogger(env, level string) *zap.Logger {
	logger, err := NewLogger(env, level)
	if err == nil {
		return logger
	}
	logger, err = NewLogger(env, "info")
	if err != nil {
		panic(err)
	}
	return logger
}
