package fsm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "fsm"

// startTickSpan creates the root span for one scheduler tick. The caller is
// responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startTickSpan(ctx context.Context, group string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)

	ctx, span := tracer.Start(ctx, "fsm.tick")
	span.SetAttributes(attribute.String("group", group))

	return ctx, span
}

// startStepSpan creates a child span for one Instance step. The caller is
// responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startStepSpan(ctx context.Context, inst *Instance) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)

	ctx, span := tracer.Start(ctx, "fsm.step")
	span.SetAttributes(
		attribute.String("group", inst.def.Group()),
		attribute.String("definition", inst.def.Name()),
		attribute.String("instance_id", inst.ID()),
		attribute.String("host", inst.Host().Name()),
		attribute.String("state", inst.CurrentState()),
	)

	return ctx, span
}
