// Package telemetry provides structured logging for the whole service. Call
// sites pass a message plus a flat field map; the zap backend handles
// encoding, levels and output.
package telemetry

import (
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.Must(buildConfig("dev").Build(zap.AddCallerSkip(1)))
)

// Configure rebuilds the logger for the given environment. Production emits
// JSON at info level; everything else emits console output at debug level.
func Configure(env string) {
	fresh := zap.Must(buildConfig(env).Build(zap.AddCallerSkip(1)))
	mu.Lock()
	old := logger
	logger = fresh
	mu.Unlock()
	_ = old.Sync()
}

func buildConfig(env string) zap.Config {
	if env == "production" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.MessageKey = "msg"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg
	}
	return zap.NewDevelopmentConfig()
}

// SetLogger swaps in a caller-provided logger and returns a function that
// restores the previous one. Embedding applications and tests use this to
// route telemetry into their own sink.
func SetLogger(l *zap.Logger) func() {
	mu.Lock()
	prev := logger
	logger = l
	mu.Unlock()
	return func() {
		mu.Lock()
		logger = prev
		mu.Unlock()
	}
}

// Sync flushes buffered entries; main should defer it.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = logger.Sync()
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	current().Debug(msg, toFields(fields)...)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	current().Info(msg, toFields(fields)...)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	current().Warn(msg, toFields(fields)...)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	current().Error(msg, toFields(fields)...)
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// toFields sorts keys so log lines are stable for a given call site.
func toFields(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
