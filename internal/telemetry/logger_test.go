package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestTraceHandler_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "json", "proj")

	logger.InfoContext(context.Background(), "hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "hello", entry["msg"])
	assert.NotContains(t, entry, "trace")
}

func TestTraceHandler_AddsSpanIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "json", "proj")
	logger.InfoContext(ctx, "traced", "slot", "phone")

	entry := decodeLine(t, &buf)
	traceID := span.SpanContext().TraceID().String()
	assert.Equal(t, traceID, entry["trace"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["spanId"])
	assert.Equal(t, true, entry["traceSampled"])
	assert.Equal(t, "projects/proj/traces/"+traceID, entry["logging.googleapis.com/trace"])
	assert.Equal(t, "phone", entry["slot"])
}

func TestTraceHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn, "text", "")

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.With("component", "keys").WithGroup("g").Warn("kept", "k", "v")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), "component=keys")
	assert.Contains(t, buf.String(), "g.k=v")
}
