package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/piwi3910/msolo/internal/observability"
)

func observed(level zapcore.Level) (*observability.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return observability.Wrap(zap.New(core)), logs
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		opts    observability.LoggingOptions
		wantErr bool
	}{
		{name: "production json", opts: observability.LoggingOptions{Level: "info", Format: "json"}},
		{name: "production console", opts: observability.LoggingOptions{Level: "warn", Format: "console"}},
		{name: "development", opts: observability.LoggingOptions{Level: "debug", Development: true}},
		{name: "default level", opts: observability.LoggingOptions{}},
		{name: "invalid level", opts: observability.LoggingOptions{Level: "loud"}, wantErr: true},
		{
			name:    "invalid output path",
			opts:    observability.LoggingOptions{OutputPaths: []string{"/nonexistent/dir/app.log"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := observability.NewLogger(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestNewLoggerLevel(t *testing.T) {
	logger, err := observability.NewLogger(observability.LoggingOptions{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestWrapNil(t *testing.T) {
	l := observability.Wrap(nil)
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Info("discarded") })
}

func TestLoggerWithContextAddsRequestID(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)

	ctx := observability.ContextWithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", observability.RequestIDFromContext(ctx))

	l.WithContext(ctx).Info("hello")
	l.WithContext(context.Background()).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestLoggerFromContext(t *testing.T) {
	stored, _ := observed(zapcore.InfoLevel)
	fallback, _ := observed(zapcore.InfoLevel)

	ctx := observability.ContextWithLogger(context.Background(), stored)
	assert.Same(t, stored, observability.LoggerFromContext(ctx, fallback))
	assert.Same(t, fallback, observability.LoggerFromContext(context.Background(), fallback))
}

func TestLoggerWithComponent(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)
	l.WithComponent("reconciler").Info("pass")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "reconciler", logs.All()[0].ContextMap()["component"])
}

func TestLogDriverOperation(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	l.LogDriverOperation("GetNs", "osm", "1", nil)
	l.LogDriverOperation("GetNs", "osm", "1", errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "osm", entries[1].ContextMap()["backend"])
	assert.Equal(t, "1", entries[1].ContextMap()["orchestrator_id"])
}

func TestLogRedisOperation(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	l.LogRedisOperation("seed", "msolo:orchestrators:nfvo", nil)
	l.LogRedisOperation("seed", "msolo:orchestrators:nfvo", errors.New("down"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "redis operation completed", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestLogRequestAndSubscriptionEvent(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)

	l.LogRequest("GET", "/nfvo", 200, 1.5)
	l.LogSubscriptionEvent("created", "sub-1", "1")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(200), entries[0].ContextMap()["status"])
	assert.Equal(t, "sub-1", entries[1].ContextMap()["subscription_id"])
}
