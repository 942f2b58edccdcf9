package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type logProcessor struct {
	logger *zap.Logger
}

func newLogProcessor(logger *zap.Logger) *logProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logProcessor{logger: logger.Named("trace")}
}

func (p *logProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	level := zapcore.DebugLevel
	if span.Status().Code == codes.Error {
		level = zapcore.WarnLevel
	}
	ce := p.logger.Check(level, span.Name())
	if ce == nil {
		return
	}

	fields := make([]zap.Field, 0, len(span.Attributes())+3)
	fields = append(fields,
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Duration("duration", span.EndTime().Sub(span.StartTime())),
	)
	if desc := span.Status().Description; desc != "" {
		fields = append(fields, zap.String("status", desc))
	}
	for _, kv := range span.Attributes() {
		fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
	}
	ce.Write(fields...)
}

func (p *logProcessor) Shutdown(context.Context) error {
	_ = p.logger.Sync()
	return nil
}

func (p *logProcessor) ForceFlush(context.Context) error { return nil }
