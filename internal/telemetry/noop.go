package telemetry

import (
	"context"
	"time"
)

// NoOpProvider is a telemetry provider that does nothing.
// It is the default when no provider is configured.
type NoOpProvider struct{}

// NewNoOp creates a new no-op telemetry provider
func NewNoOp() *NoOpProvider {
	return &NoOpProvider{}
}

func (n *NoOpProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	return ctx, NoOpSpan{}
}

func (n *NoOpProvider) RecordEvaluation(context.Context, string, string, time.Duration) {}

func (n *NoOpProvider) RecordLoad(context.Context, string, string, bool, time.Duration, int) {}

func (n *NoOpProvider) RecordRollback(context.Context, string, bool) {}

func (n *NoOpProvider) RecordKillSwitch(context.Context, string, bool) {}

func (n *NoOpProvider) Shutdown(context.Context) error { return nil }

// NoOpSpan is a span that does nothing
type NoOpSpan struct{}

func (NoOpSpan) End()                          {}
func (NoOpSpan) SetAttributes(...Attribute)    {}
func (NoOpSpan) RecordError(error)             {}
func (NoOpSpan) AddEvent(string, ...Attribute) {}
