// Package tracer is a thin adapter over OpenTelemetry so store and service
// code can record spans without depending on otel APIs directly.
package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans around units of work.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

// Span is a unit of traced work. End records err when non-nil.
type Span interface {
	End(err error)
	SetAttributes(kv ...attribute.KeyValue)
}

// OTel is an OpenTelemetry-backed Tracer using the global provider.
type OTel struct {
	tracer trace.Tracer
}

// NewOTel creates a tracer with the given instrumentation name.
func NewOTel(name string) *OTel {
	return &OTel{tracer: otel.Tracer(name)}
}

func (t *OTel) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func (s *otelSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.span.SetAttributes(kv...)
}

// Noop discards all spans. Useful in tests and when no exporter is wired.
type Noop struct{}

func (Noop) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error)                           {}
func (noopSpan) SetAttributes(...attribute.KeyValue) {}
