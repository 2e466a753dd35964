// Package logger provides superFetch's structured logging contract.
//
// It wraps a zap.SugaredLogger behind a package-level singleton so call
// sites can log without threading a logger through every constructor,
// while tests can still swap in an isolated instance.
package logger

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var singleton atomic.Pointer[zap.SugaredLogger]

func init() {
	singleton.Store(NewLogger(os.Getenv("LOG_LEVEL"), unstructuredLogs()))
}

// NewLogger builds a new sugared logger at the given level
// ("debug"|"info"|"warn"|"error", default "info"). When unstructured is
// true, output is a human-readable console encoding; otherwise JSON.
func NewLogger(level string, unstructured bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if unstructured {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	l, err := cfg.Build()
	if err != nil {
		// Fall back to a minimal logger rather than panic at import time.
		l = zap.NewNop()
	}
	return l.Sugar()
}

func unstructuredLogs() bool {
	return unstructuredLogsWithEnv(os.Getenv("UNSTRUCTURED_LOGS"))
}

func unstructuredLogsWithEnv(raw string) bool {
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
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

// SetForTest replaces the singleton, returning a restore function.
func SetForTest(l *zap.SugaredLogger) (restore func()) {
	prev := singleton.Load()
	singleton.Store(l)
	return func() { singleton.Store(prev) }
}

func current() *zap.SugaredLogger { return singleton.Load() }

// Debug logs at debug level.
func Debug(args ...any) { current().Debug(args...) }

// Debugf logs at debug level with formatting.
func Debugf(template string, args ...any) { current().Debugf(template, args...) }

// Debugw logs at debug level with structured key/value pairs.
func Debugw(msg string, kv ...any) { current().Debugw(msg, kv...) }

// Info logs at info level.
func Info(args ...any) { current().Info(args...) }

// Infof logs at info level with formatting.
func Infof(template string, args ...any) { current().Infof(template, args...) }

// Infow logs at info level with structured key/value pairs.
func Infow(msg string, kv ...any) { current().Infow(msg, kv...) }

// Warn logs at warn level.
func Warn(args ...any) { current().Warn(args...) }

// Warnf logs at warn level with formatting.
func Warnf(template string, args ...any) { current().Warnf(template, args...) }

// Warnw logs at warn level with structured key/value pairs.
func Warnw(msg string, kv ...any) { current().Warnw(msg, kv...) }

// Error logs at error level.
func Error(args ...any) { current().Error(args...) }

// Errorf logs at error level with formatting.
func Errorf(template string, args ...any) { current().Errorf(template, args...) }

// Errorw logs at error level with structured key/value pairs.
func Errorw(msg string, kv ...any) { current().Errorw(msg, kv...) }

// DPanic logs at dpanic level (panics in development builds only).
func DPanic(args ...any) { current().DPanic(args...) }

// DPanicf logs at dpanic level with formatting.
func DPanicf(template string, args ...any) { current().DPanicf(template, args...) }

// DPanicw logs at dpanic level with structured key/value pairs.
func DPanicw(msg string, kv ...any) { current().DPanicw(msg, kv...) }

// Fatalf logs at fatal level with formatting, then exits the process.
func Fatalf(template string, args ...any) { current().Fatalf(template, args...) }

// Panicf logs at panic level with formatting, then panics.
func Panicf(template string, args ...any) { current().Panicf(template, args...) }
