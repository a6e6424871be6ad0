// Package loggertest provides loggers for tests that write through testing.TB.
package loggertest

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arturoeanton/godsplan/internal/logger"
)

// New returns a logger that writes through tb.
func New(tb testing.TB) logger.Logger {
	tb.Helper()
	return zaptest.NewLogger(tb).Sugar()
}

// Observed returns a test logger and the entries it records at lvl or above.
func Observed(tb testing.TB, lvl zapcore.Level) (logger.Logger, *observer.ObservedLogs) {
	tb.Helper()
	oCore, logs := observer.New(lvl)
	observe := zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, oCore)
	})
	return zaptest.NewLogger(tb, zaptest.WrapOptions(observe)).Sugar(), logs
}
