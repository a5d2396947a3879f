package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewValidatesLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)

	l, err := New(Config{Level: "debug", Encoding: "console", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.NotNil(t, l)

	l, err = New(Config{})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := NewContext(context.Background(), zap.New(core).With(zap.String("export_id", "abc")))

	FromContext(ctx).Info("row group written")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "abc", logs.All()[0].ContextMap()["export_id"])

	assert.NotNil(t, FromContext(context.Background()))
}

func TestForExport(t *testing.T) {
	assert.NotNil(t, ForExport("pipeline", "abc", zap.String("mode", "push")))
	assert.NoError(t, Sync())
}
