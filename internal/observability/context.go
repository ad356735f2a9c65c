package observability

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID is the inbound header carrying a caller-supplied correlation id.
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLength bounds caller-supplied correlation ids.
const maxRequestIDLength = 128

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	traceIDKey   contextKey = "trace_id"
	spanIDKey    contextKey = "span_id"
)

// NewCorrelationID returns a fresh random correlation id.
func NewCorrelationID() string {
	return uuid.NewString()
}

// CorrelationIDFromRequest returns the caller's X-Request-ID when it is
// printable and reasonably short, otherwise a new id.
func CorrelationIDFromRequest(r *http.Request) string {
	if r != nil {
		if id := strings.TrimSpace(r.Header.Get(HeaderRequestID)); isSafeRequestID(id) {
			return id
		}
	}
	return NewCorrelationID()
}

func isSafeRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithTraceID adds a trace ID to the context.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext extracts the trace ID from context.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// ContextWithSpanID adds a span ID to the context.
func ContextWithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

// SpanIDFromContext extracts the span ID from context.
func SpanIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(spanIDKey).(string)
	return id
}
