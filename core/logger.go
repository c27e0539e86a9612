package core

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging for the management bridge.
//
// Debug and Info messages are only emitted when debug is enabled.
// Warnings and errors are always emitted.
type Logger struct {
	zl      *zap.Logger
	enabled bool
}

// NewLogger creates a new logger writing JSON lines to stderr.
func NewLogger(enabled bool) *Logger {
	level := zapcore.WarnLevel
	if enabled {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	zl, err := cfg.Build()
	if err != nil {
		zl = zap.NewNop()
	}
	return &Logger{zl: zl.Named("cbmgmt"), enabled: enabled}
}

// NewLoggerFrom wraps an existing zap logger.
func NewLoggerFrom(zl *zap.Logger, enabled bool) *Logger {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &Logger{zl: zl, enabled: enabled}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zl: zap.NewNop()}
}

// Zap returns the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Named returns a child logger with the given name segment appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zl: l.zl.Named(name), enabled: l.enabled}
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zl: l.zl.With(fields...), enabled: l.enabled}
}

// Debug logs a debug message (only if debug is enabled).
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	if l.enabled {
		l.zl.Debug(msg, fields...)
	}
}

// Info logs an info message (only if debug is enabled).
func (l *Logger) Info(msg string, fields ...zap.Field) {
	if l.enabled {
		l.zl.Info(msg, fields...)
	}
}

// Warn logs a warning message (always logged).
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zl.Warn(msg, fields...)
}

// Error logs an error message (always logged).
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zl.Error(msg, fields...)
}

// Submission logs an operation handed to the native client.
func (l *Logger) Submission(op, mode string) {
	if l.enabled {
		l.zl.Debug("submitted management operation", FieldOp(op), FieldMode(mode))
	}
}

// Completion logs the delivery of an operation outcome.
func (l *Logger) Completion(op, mode, outcome string, duration time.Duration) {
	if l.enabled {
		l.zl.Debug("delivered management operation",
			FieldOp(op), FieldMode(mode), zap.String("outcome", outcome), zap.Duration("duration", duration))
	}
}

// Timing logs request timing information.
func (l *Logger) Timing(method, path string, duration time.Duration) {
	if l.enabled {
		l.zl.Debug("http request completed",
			zap.String("method", method), zap.String("path", path), zap.Int64("ms", duration.Milliseconds()))
	}
}

// Throttled logs time spent waiting for a submission slot.
func (l *Logger) Throttled(op string, wait time.Duration) {
	if l.enabled && wait > 0 {
		l.zl.Debug("submission throttled", FieldOp(op), zap.Duration("wait", wait))
	}
}

// Enabled returns whether debug logging is enabled.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// FieldOp tags a log entry with an operation tag.
func FieldOp(op string) zap.Field {
	return zap.String("op", op)
}

// FieldMode tags a log entry with a delivery mode ("blocking" or "async").
func FieldMode(mode string) zap.Field {
	return zap.String("mode", mode)
}

// FieldKind tags a log entry with an error classification.
func FieldKind(kind ErrorKind) zap.Field {
	return zap.Stringer("kind", kind)
}
