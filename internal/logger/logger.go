// Package logger builds the zap loggers used across the service.
//
// Loggers are injected and Named per component: lggr.Named("session").
// New is for runtime; tests use package loggertest.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface shared by all packages.
type Logger = *zap.SugaredLogger

// Config selects the encoder and level.
type Config struct {
	Level       string
	Development bool
}

// New returns a JSON production logger, or a console logger in development.
func New(c Config) (Logger, error) {
	cfg := zap.NewProductionConfig()
	if c.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		lvl, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level.SetLevel(lvl)
	}
	core, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return core.Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return zap.NewNop().Sugar()
}
