package dispatcher

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

const tracerName = "github.com/nextlevelbuilder/botsim/internal/dispatcher"

func defaultTracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(tracerName)
}

// startSpan opens the span covering one dispatched call.
func (s *Server) startSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "botsim."+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("botsim.method", method)),
	)
}

// endSpan records the outcome of the call and ends the span.
func endSpan(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		span.SetAttributes(attribute.Bool("botsim.ok", true))
		span.SetStatus(codes.Ok, "")
		return
	}
	code := 400
	if e, ok := botapi.AsError(err); ok {
		code = e.Code
	}
	span.SetAttributes(
		attribute.Bool("botsim.ok", false),
		attribute.Int("botsim.error_code", code),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
