package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartCommandSpan creates a span for a CLI command execution.
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	ctx, span := TracerProvider().Tracer("pmteam/cli").Start(ctx, "command."+cmdName)
	span.SetAttributes(attribute.String("command", cmdName))
	return ctx, span
}

// StartTurnSpan creates the root span of one chat turn against a run.
//
//	ctx, span := telemetry.StartTurnSpan(ctx, project, run, mode)
//	defer span.End()
func StartTurnSpan(ctx context.Context, project, run, mode string) (context.Context, trace.Span) {
	ctx, span := TracerProvider().Tracer("pmteam/assistant").Start(ctx, "chat.turn")
	span.SetAttributes(
		attribute.String("project", project),
		attribute.String("run", run),
		attribute.String("mutation.mode", mode),
	)
	return ctx, span
}

// StartTierSpan creates a span for one intelligence tier attempt.
func StartTierSpan(ctx context.Context, tier string) (context.Context, trace.Span) {
	ctx, span := TracerProvider().Tracer("pmteam/intelligence").Start(ctx, "tier."+tier)
	span.SetAttributes(attribute.String("tier", tier))
	return ctx, span
}

// StartProviderSpan creates a span for a provider API call.
func StartProviderSpan(ctx context.Context, providerName, model string) (context.Context, trace.Span) {
	ctx, span := TracerProvider().Tracer("pmteam/provider").Start(ctx, "provider.complete")
	span.SetAttributes(
		attribute.String("provider", providerName),
		attribute.String("model", model),
	)
	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records err on the span and sets error status. Nil is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordDuration records d as a millisecond attribute named name_ms.
func RecordDuration(span trace.Span, name string, d time.Duration) {
	span.SetAttributes(attribute.Int64(name+"_ms", d.Milliseconds()))
}
