package observability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger with additional convenience methods.
type Logger struct {
	*zap.Logger
}

// LoggingOptions selects how NewLogger builds the zap logger.
type LoggingOptions struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	EnableCaller     bool
	EnableStacktrace bool
	Development      bool
}

type (
	loggerContextKey    struct{}
	requestIDContextKey struct{}
)

// NewLogger builds a zap logger. Development mode logs to the console with
// colored levels; otherwise entries are encoded per Format.
func NewLogger(opts LoggingOptions) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableCaller = !opts.EnableCaller
		cfg.DisableStacktrace = !opts.EnableStacktrace
		cfg.Encoding = "json"
		if opts.Format == "console" {
			cfg.Encoding = "console"
		}
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}
	cfg.Level = level

	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}
	if len(opts.ErrorOutputPaths) > 0 {
		cfg.ErrorOutputPaths = opts.ErrorOutputPaths
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// Wrap returns a Logger around z.
func Wrap(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{Logger: z}
}

// WithContext returns a logger carrying the request fields found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := ExtractContextFields(ctx)
	if len(fields) > 0 {
		return &Logger{Logger: l.With(fields...)}
	}
	return l
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With(zap.String("component", component))}
}

// ContextWithLogger adds the logger to the context.
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// LoggerFromContext retrieves the logger stored in ctx, or fallback.
func LoggerFromContext(ctx context.Context, fallback *Logger) *Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return logger
	}
	return fallback
}

// ContextWithRequestID stores the NBI request id.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the NBI request id, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// ExtractContextFields extracts logging fields from ctx.
func ExtractContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return fields
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if err := l.Logger.Sync(); err != nil {
		return fmt.Errorf("failed to sync logger: %w", err)
	}
	return nil
}

// LogRequest logs an HTTP request.
func (l *Logger) LogRequest(method, path string, statusCode int, durationMs float64) {
	l.Info("http request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", statusCode),
		zap.Float64("duration_ms", durationMs),
	)
}

// LogDriverOperation logs a driver call against one orchestrator.
func (l *Logger) LogDriverOperation(operation, backend, orchestratorID string, err error) {
	if err != nil {
		l.Warn("driver operation failed",
			zap.String("operation", operation),
			zap.String("backend", backend),
			zap.String("orchestrator_id", orchestratorID),
			zap.Error(err),
		)
		return
	}
	l.Debug("driver operation completed",
		zap.String("operation", operation),
		zap.String("backend", backend),
		zap.String("orchestrator_id", orchestratorID),
	)
}

// LogSubscriptionEvent logs a subscription lifecycle event.
func (l *Logger) LogSubscriptionEvent(event, subscriptionID, orchestratorID string) {
	l.Info("subscription event",
		zap.String("event", event),
		zap.String("subscription_id", subscriptionID),
		zap.String("orchestrator_id", orchestratorID),
	)
}

// LogRedisOperation logs a Redis operation.
func (l *Logger) LogRedisOperation(operation string, key string, err error) {
	if err != nil {
		l.Error("redis operation failed",
			zap.String("operation", operation),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	l.Debug("redis operation completed",
		zap.String("operation", operation),
		zap.String("key", key),
	)
}
