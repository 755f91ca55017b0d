package features

import (
	"context"

	"github.com/google/uuid"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

// ContextKey is a type for context value keys.
// Using a custom type prevents collisions with other packages.
type ContextKey string

// Well known request scoped keys. Values stored under them with
// context.WithValue are picked up by FieldsFromContext.
const (
	ContextKeyRequestID   ContextKey = "request_id"
	ContextKeyTraceID     ContextKey = "trace_id"
	ContextKeySpanID      ContextKey = "span_id"
	ContextKeyUserID      ContextKey = "user_id"
	ContextKeySessionID   ContextKey = "session_id"
	ContextKeyCorrelation ContextKey = "correlation_id"
	ContextKeyComponent   ContextKey = "component"
	ContextKeyOperation   ContextKey = "operation"
)

var defaultContextKeys = []ContextKey{
	ContextKeyRequestID,
	ContextKeyTraceID,
	ContextKeySpanID,
	ContextKeyUserID,
	ContextKeySessionID,
	ContextKeyCorrelation,
	ContextKeyComponent,
	ContextKeyOperation,
}

type fieldsKey struct{}

// WithFields returns a context carrying fields for every event logged with
// it. Fields already on ctx are kept; new values win on key collisions.
//
// Example:
//
//	ctx = features.WithFields(ctx, types.F("tenant", "acme"))
//	logger.LogContext(ctx, types.LevelInfo, "invoice sent")
func WithFields(ctx context.Context, fields ...types.Field) context.Context {
	prev, _ := ctx.Value(fieldsKey{}).(types.Fields)
	return context.WithValue(ctx, fieldsKey{}, prev.Merge(fields...))
}

// FieldsFromContext collects the values stored under keys (the well known
// keys when none are given) followed by the fields added with WithFields.
func FieldsFromContext(ctx context.Context, keys ...ContextKey) types.Fields {
	if ctx == nil {
		return nil
	}
	if len(keys) == 0 {
		keys = defaultContextKeys
	}
	var out types.Fields
	for _, key := range keys {
		if value := ctx.Value(key); value != nil {
			out = append(out, types.F(string(key), value))
		}
	}
	if extra, ok := ctx.Value(fieldsKey{}).(types.Fields); ok {
		out = out.Merge(extra...)
	}
	return out
}

// RequestContext stores a request ID, generating one when empty.
func RequestContext(ctx context.Context, requestID string) (context.Context, string) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return context.WithValue(ctx, ContextKeyRequestID, requestID), requestID
}

// TraceContext adds tracing identifiers to a context.
func TraceContext(ctx context.Context, traceID, spanID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyTraceID, traceID)
	if spanID != "" {
		ctx = context.WithValue(ctx, ContextKeySpanID, spanID)
	}
	return ctx
}

// CorrelationContext stores a correlation ID, generating one when empty.
func CorrelationContext(ctx context.Context, correlationID string) (context.Context, string) {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return context.WithValue(ctx, ContextKeyCorrelation, correlationID), correlationID
}
