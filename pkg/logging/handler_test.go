package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryd/memoryd/pkg/logging"
)

func TestHandlerFormatsLevelComponentAndMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewHandler(&buf, slog.LevelInfo))

	logger.Info("job worker started", "component", "jobs")

	line := strings.TrimSpace(buf.String())
	require.True(t, strings.HasPrefix(line, "["))
	require.Contains(t, line, "] INFO jobs: job worker started")
}

func TestHandlerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewHandler(&buf, slog.LevelWarn))

	logger.Info("should not appear")
	logger.Warn("should appear", "component", "pipeline")

	require.NotContains(t, buf.String(), "should not appear")
	require.Contains(t, buf.String(), "should appear")
}

func TestHandlerAppendsExtraAttrsAsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewHandler(&buf, slog.LevelInfo))

	logger.With("component", "jobs").Info("item failed", "memory_id", int64(42))

	require.Contains(t, buf.String(), "memory_id=42")
}

func TestHandlerEnabledRespectsLevel(t *testing.T) {
	h := logging.NewHandler(&bytes.Buffer{}, slog.LevelError)
	require.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, h.Enabled(context.Background(), slog.LevelError))
}
