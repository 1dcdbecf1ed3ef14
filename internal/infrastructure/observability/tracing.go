package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "wahub/whatsapp-api"

// GetTracer returns the tracer for the whatsapp-api service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// SessionAttributes returns common attributes for session lifecycle spans.
func SessionAttributes(tenantID, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("session.tenant_id", tenantID),
		attribute.String("session.status", status),
	}
}

// StartSessionSpan starts a span for a session lifecycle operation.
func StartSessionSpan(ctx context.Context, operation, tenantID string) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "session."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("session.tenant_id", tenantID)),
	)
	return ctx, span
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
