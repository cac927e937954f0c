package log_test

import (
	"context"
	"testing"

	"github.com/jrife/sertree/utils/log"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFromContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := log.WithLogger(context.Background(), zap.New(core))
	ctx = log.WithFields(ctx, zap.String("command", "get"))

	logger, _ := log.LoggerFromContext(ctx, zap.NewNop())
	logger.Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "hello", entries[0].Message)
	require.Equal(t, map[string]interface{}{"command": "get"}, entries[0].ContextMap())
}

func TestLoggerFromContextDefault(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	defaultLogger := zap.New(core)

	logger, ctx := log.LoggerFromContext(context.Background(), defaultLogger)
	logger.Debug("hello")

	require.Same(t, defaultLogger, log.Logger(ctx))
	require.Equal(t, 1, logs.Len())
}

func TestFields(t *testing.T) {
	ctx := log.WithFields(context.Background(), zap.String("a", "1"))
	a := log.WithFields(ctx, zap.String("b", "2"))
	b := log.WithFields(ctx, zap.String("c", "3"))

	require.Len(t, log.Fields(a), 2)
	require.Len(t, log.Fields(b), 2)
	require.Equal(t, "b", log.Fields(a)[1].Key)
	require.Equal(t, "c", log.Fields(b)[1].Key)
	require.Empty(t, log.Fields(context.Background()))
}

func TestNew(t *testing.T) {
	_, err := log.New("nope")
	require.Error(t, err)

	logger, err := log.New("debug")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zap.DebugLevel))
}
