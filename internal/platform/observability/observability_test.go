package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartSpan_Disabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{}, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	require.NoError(t, err)
	defer shutdown(context.Background())
	buf.Reset()

	_, end := StartSpan(context.Background(), "scan", "recognize")
	end(nil)
	RecordMetric(context.Background(), "scan.started", 1, nil)

	require.False(t, Enabled())
	require.Empty(t, buf.String())
}

func TestStartSpan_Enabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{Enabled: true}, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	require.NoError(t, err)
	require.True(t, Enabled())

	_, end := StartSpan(context.Background(), "scan", "recognize")
	end(errors.New("HTTP 403: denied"))

	out := buf.String()
	require.Contains(t, out, "span start")
	require.Contains(t, out, "span end")
	require.Contains(t, out, "metric=scan.recognize.duration_ms")
	require.Contains(t, out, "outcome=error")

	require.NoError(t, shutdown(context.Background()))
	require.False(t, Enabled())
}
