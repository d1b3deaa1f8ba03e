package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"imagedetect/internal/config"
)

func TestNewLogger_CreatesLevelFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	l, err := NewLogger(&config.Config{LogDirectory: dir, LogLevel: "info"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	l.Info("model %s loaded", "yolov8n.onnx")
	l.Warning("fallback in use")
	l.Error("store unavailable: %v", errors.New("dial tcp: refused"))

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "model yolov8n.onnx loaded")

	warning, err := os.ReadFile(filepath.Join(dir, "warning.log"))
	require.NoError(t, err)
	assert.Contains(t, string(warning), "fallback in use")

	errLog, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errLog), "dial tcp: refused")
	assert.NotContains(t, string(errLog), "fallback in use")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "loud"})
	assert.Error(t, err)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo)

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(slog.LevelDebug)
	l.Debug("visible %d", 1)
	assert.Contains(t, buf.String(), "visible 1")
}

func TestLogger_WithAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo).With("component", "pipeline")

	l.Info("done")
	assert.Contains(t, buf.String(), "component=pipeline")
	assert.Contains(t, buf.String(), "msg=done")
}

func TestGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	g := NewGormLogger(New(&buf, slog.LevelInfo), 100*time.Millisecond)
	sql := func() (string, int64) { return "SELECT 1", 1 }

	g.Trace(t.Context(), time.Now(), sql, nil)
	assert.Empty(t, buf.String(), "fast queries are debug-only")

	g.Trace(t.Context(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "record-not-found is not an error")

	g.Trace(t.Context(), time.Now(), sql, errors.New("deadlock"))
	assert.Contains(t, buf.String(), "query error: deadlock")

	buf.Reset()
	g.Trace(t.Context(), time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, buf.String(), "slow query")
}
