package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Invocation identifies one tool call for log correlation.
type Invocation struct {
	ID      string
	Tool    string
	Project string
}

type invocationCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if inv := InvocationFromContext(ctx); inv != nil {
		fields = append(fields,
			zap.String("invocation.id", inv.ID),
			zap.String("tool", inv.Tool),
		)
		if inv.Project != "" {
			fields = append(fields, zap.String("project", inv.Project))
		}
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// WithInvocation attaches inv to ctx. A nil inv leaves ctx unchanged.
func WithInvocation(ctx context.Context, inv *Invocation) context.Context {
	if inv == nil {
		return ctx
	}
	return context.WithValue(ctx, invocationCtxKey{}, inv)
}

// InvocationFromContext returns the invocation attached to ctx, or nil.
func InvocationFromContext(ctx context.Context) *Invocation {
	if inv, ok := ctx.Value(invocationCtxKey{}).(*Invocation); ok {
		return inv
	}
	return nil
}

// WithRequestID attaches the HTTP request id of the enclosing transport request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request id attached to ctx.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
