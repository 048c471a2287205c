package context

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Trace identifies the request a context belongs to.
// TraceID and SpanID are empty unless a recording tracer provider is installed.
type Trace struct {
	RequestID string
	TraceID   string
	SpanID    string
}

type requestIDKey struct{}

// WithRequestID stores the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request ID or "".
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// GetTrace combines the request ID with the current span, if any.
func GetTrace(ctx context.Context) Trace {
	t := Trace{RequestID: RequestID(ctx)}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		t.TraceID = sc.TraceID().String()
		t.SpanID = sc.SpanID().String()
	}
	return t
}
