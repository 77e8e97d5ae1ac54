package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestInitLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := InitLogger(LogOptions{Level: "info", Format: "json", Writer: &buf})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("saved", "item", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "saved", rec["msg"])
	assert.EqualValues(t, 1, rec["item"])
	assert.NotContains(t, rec, "trace_id")
}

func TestInitLogger_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := InitLogger(LogOptions{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("no texts found")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `msg="no texts found"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestInitLogger_BadFormat(t *testing.T) {
	t.Parallel()

	_, err := InitLogger(LogOptions{Format: "xml"})
	require.Error(t, err)
}

func TestTraceHandler_AddsSpanIDs(t *testing.T) {
	t.Parallel()

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(tracetest.NewInMemoryExporter())))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	logger, err := InitLogger(LogOptions{Format: "json", Writer: &buf})
	require.NoError(t, err)
	logger.With("component", "pipeline").InfoContext(ctx, "processing")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, span.SpanContext().TraceID().String(), rec["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), rec["span_id"])
	assert.Equal(t, "pipeline", rec["component"])
}

func TestTracingEnabled(t *testing.T) {
	t.Setenv(EndpointEnv, "")
	assert.False(t, TracingEnabled())

	t.Setenv(EndpointEnv, "localhost:4317")
	assert.True(t, TracingEnabled())
}
