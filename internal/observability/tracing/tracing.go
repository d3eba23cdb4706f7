// Package tracing wraps OpenTelemetry spans for the security pipeline.
// Spans are no-ops until the process installs a TracerProvider.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultName is the instrumentation scope used when none is given.
const DefaultName = "github.com/target/gatehouse"

// Tracer adapts OpenTelemetry tracing to the pipeline stages.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer(name string) *Tracer {
	if name == "" {
		name = DefaultName
	}
	return &Tracer{tracer: otel.Tracer(name)}
}

// Start opens a span. The returned func ends it, recording err when non-nil.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	if t == nil || t.tracer == nil {
		return ctx, func(error) {}
	}

	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return spanCtx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// Annotate adds attributes to the span in ctx, if any.
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
