package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestProviderLogsEndedSpans writes every ended span to the logger.
func TestProviderLogsEndedSpans(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	recorder := tracetest.NewSpanRecorder()
	p, err := NewProvider(context.Background(), "runwatch-test", zap.New(core), recorder)
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "monitor.delivery")
	span.SetAttributes(attribute.String("channel", "progress"))
	span.End()

	_, failed := p.Tracer("test").Start(context.Background(), "monitor.click")
	failed.RecordError(errors.New("not armed"))
	failed.SetStatus(codes.Error, "not armed")
	failed.End()

	require.NoError(t, p.Shutdown(context.Background()))

	require.Len(t, recorder.Ended(), 2)
	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "monitor.delivery", entries[0].Message)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, "progress", entries[0].ContextMap()["channel"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, "not armed", entries[1].ContextMap()["status"])
}

// TestNilProviderIsNoop hands out usable tracers without a provider.
func TestNilProviderIsNoop(t *testing.T) {
	t.Parallel()

	var p *Provider
	_, span := p.Tracer("test").Start(context.Background(), "noop")
	span.End()
	require.False(t, span.SpanContext().IsValid())
	require.NoError(t, p.Shutdown(context.Background()))
}
