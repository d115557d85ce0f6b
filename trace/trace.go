// Package trace carries correlation identifiers for logical requests.
// A logical request keeps one id across all of its attempts; callers may
// seed it from an inbound request through the context.
package trace

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	traceParentKey contextKey = "traceparent"

	// HeaderXRequestID is the standard header name for request correlation
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// WithRequestID adds a request id to the context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id from context if present
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the context's request id or a new one.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return NewID()
}

// WithTraceParent adds a W3C traceparent value to the context
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// ParentFromContext returns a traceparent from context if present
func ParentFromContext(ctx context.Context) (string, bool) {
	if tp, ok := ctx.Value(traceParentKey).(string); ok && tp != "" {
		return tp, true
	}
	return "", false
}

// InjectHeaders writes the correlation headers into h without overwriting
// values that are already present.
func InjectHeaders(ctx context.Context, h http.Header, header, requestID string) {
	if header == "" {
		header = HeaderXRequestID
	}
	if h.Get(header) == "" && requestID != "" {
		h.Set(header, requestID)
	}
	if tp, ok := ParentFromContext(ctx); ok && h.Get(HeaderTraceParent) == "" {
		h.Set(HeaderTraceParent, tp)
	}
}
