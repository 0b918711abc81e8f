package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CtxZapLogger is a context-aware wrapper around zap.Logger.
// The module name is bound at creation; callers only pass ctx.
// Obtain instances through GetLogger, not directly.
type CtxZapLogger struct {
	base   *zap.Logger
	module string
}

// DebugCtx logs at Debug level, extracting the trace id from ctx
func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Debug(msg, enrichFields(ctx, fields)...)
}

// Debug logs at Debug level without a context
func (l *CtxZapLogger) Debug(msg string, fields ...zap.Field) {
	l.DebugCtx(context.Background(), msg, fields...)
}

// InfoCtx logs at Info level, extracting the trace id from ctx
func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, enrichFields(ctx, fields)...)
}

// Info logs at Info level without a context
func (l *CtxZapLogger) Info(msg string, fields ...zap.Field) {
	l.InfoCtx(context.Background(), msg, fields...)
}

// WarnCtx logs at Warn level, extracting the trace id from ctx
func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, enrichFields(ctx, fields)...)
}

// Warn logs at Warn level without a context
func (l *CtxZapLogger) Warn(msg string, fields ...zap.Field) {
	l.WarnCtx(context.Background(), msg, fields...)
}

// ErrorCtx logs at Error level, extracting the trace id from ctx
func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Error(msg, enrichFields(ctx, fields)...)
}

// Error logs at Error level without a context
func (l *CtxZapLogger) Error(msg string, fields ...zap.Field) {
	l.ErrorCtx(context.Background(), msg, fields...)
}

// With returns a logger carrying preset fields
func (l *CtxZapLogger) With(fields ...zap.Field) *CtxZapLogger {
	return &CtxZapLogger{base: l.base.With(fields...), module: l.module}
}

// GetZapLogger exposes the underlying zap.Logger for third-party
// integration, e.g. etcd client.WithLogger.
func (l *CtxZapLogger) GetZapLogger() *zap.Logger {
	return l.base
}

// enrichFields prepends the trace id when the context carries one
func enrichFields(ctx context.Context, fields []zap.Field) []zap.Field {
	traceID := traceIDFromContext(ctx)
	if traceID == "" {
		return fields
	}
	enriched := make([]zap.Field, 0, len(fields)+1)
	enriched = append(enriched, zap.String("trace_id", traceID))
	return append(enriched, fields...)
}

// traceIDFromContext prefers the OpenTelemetry span context, then the
// conventional "trace_id" context value.
func traceIDFromContext(ctx context.Context) string {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	if val := ctx.Value("trace_id"); val != nil {
		if traceID, ok := val.(string); ok {
			return traceID
		}
	}
	return ""
}
