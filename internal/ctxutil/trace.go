package ctxutil

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// TraceKey is the context key for the request trace ID.
type TraceKey struct{}

// WithTraceID returns a context with the trace ID embedded.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceKey{}, traceID)
}

// TraceIDFromContext returns the trace ID from context, or empty string if not set.
func TraceIDFromContext(ctx context.Context) string {
	if v := ctx.Value(TraceKey{}); v != nil {
		return v.(string)
	}
	return ""
}

// NewTraceID returns a fresh random trace ID.
func NewTraceID() string {
	return uuid.NewString()
}

// EnsureTraceID returns explicit when set, then the context's trace ID, then a new one.
func EnsureTraceID(ctx context.Context, explicit string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}
	if id := TraceIDFromContext(ctx); id != "" {
		return id
	}
	return NewTraceID()
}
