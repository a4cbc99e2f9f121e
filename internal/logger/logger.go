package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines the minimal structured logging surface packages rely on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// Package-level logger to be used across packages after Init.
var S *zap.SugaredLogger

// Init initializes a zap SugaredLogger for the given level string.
func Init(level string) (*zap.SugaredLogger, error) {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info":
		lvl = zapcore.InfoLevel
	case "warn", "warning":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(zapcore.Lock(os.Stdout)),
		lvl,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	sugar := logger.Sugar()
	S = sugar
	return sugar, nil
}

// Close flushes any buffered loggers.
func Close() error {
	if S == nil {
		return nil
	}
	return S.Sync()
}

// Minimal object logging helpers -------------------------------------------------
// These log the given object as a structured field named `key` and do not
// attempt to parse arbitrary kv arrays.

func InfoObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Info(msg, zap.Any(key, obj))
}

func DebugObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Debug(msg, zap.Any(key, obj))
}

func WarnObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Warn(msg, zap.Any(key, obj))
}

func ErrorObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Error(msg, zap.Any(key, obj))
}

// pkgLogger adapts the package-level helpers to the Logger interface.
type pkgLogger struct{}

func (pkgLogger) InfoObj(msg, key string, obj interface{})  { InfoObj(msg, key, obj) }
func (pkgLogger) DebugObj(msg, key string, obj interface{}) { DebugObj(msg, key, obj) }
func (pkgLogger) WarnObj(msg, key string, obj interface{})  { WarnObj(msg, key, obj) }
func (pkgLogger) ErrorObj(msg, key string, obj interface{}) { ErrorObj(msg, key, obj) }

// Default returns a Logger backed by the package-level zap logger.
func Default() Logger { return pkgLogger{} }

// NopLogger discards all log output.
type NopLogger struct{}

func (NopLogger) InfoObj(string, string, interface{})  {}
func (NopLogger) DebugObj(string, string, interface{}) {}
func (NopLogger) WarnObj(string, string, interface{})  {}
func (NopLogger) ErrorObj(string, string, interface{}) {}
