package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gear-market/internal/core/config"
)

func TestFromConfig_RotateWritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	l, cleanup := FromConfig(config.Log{
		Level: "info",
		JSON:  true,
		Rotate: config.Rotate{
			Enable:    true,
			Filename:  file,
			MaxSizeMB: 1,
		},
	}, zap.String("app", "gear-market"))
	l.Info("hello", zap.String("k", "v"))
	cleanup()

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
	assert.Contains(t, string(b), `"k":"v"`)
	assert.Contains(t, string(b), `"app":"gear-market"`)
}

func TestFromConfig_BadLevelFallsBackToInfo(t *testing.T) {
	l, cleanup := FromConfig(config.Log{Level: "loud"})
	defer cleanup()
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestToWriter_TrimsNewline(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := ToWriter(zap.New(core), zapcore.WarnLevel)

	n, err := w.Write([]byte("gin warning\n"))
	require.NoError(t, err)
	assert.Equal(t, len("gin warning\n"), n)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "gin warning", entry.Message)
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
}
