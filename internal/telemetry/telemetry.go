// Package telemetry defines the tracing and metrics surface of the engine.
package telemetry

import (
	"context"
	"time"
)

// Provider defines the interface for telemetry providers
type Provider interface {
	// Tracer operations
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// Metrics operations
	RecordEvaluation(ctx context.Context, toggle string, decision string, duration time.Duration)
	RecordLoad(ctx context.Context, namespace string, op string, success bool, duration time.Duration, flagCount int)
	RecordRollback(ctx context.Context, namespace string, success bool)
	RecordKillSwitch(ctx context.Context, namespace string, enabled bool)

	// Lifecycle
	Shutdown(ctx context.Context) error
}

// Span represents a trace span
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	RecordError(err error)
	AddEvent(name string, attrs ...Attribute)
}

// SpanOption configures span creation
type SpanOption func(*SpanConfig)

// SpanConfig holds span configuration
type SpanConfig struct {
	Attributes []Attribute
}

// Attribute represents a key-value attribute
type Attribute struct {
	Key   string
	Value any
}

// WithAttributes adds attributes to a span
func WithAttributes(attrs ...Attribute) SpanOption {
	return func(c *SpanConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

func String(key, value string) Attribute      { return Attribute{Key: key, Value: value} }
func Int(key string, value int) Attribute     { return Attribute{Key: key, Value: value} }
func Int64(key string, value int64) Attribute { return Attribute{Key: key, Value: value} }
func Bool(key string, value bool) Attribute   { return Attribute{Key: key, Value: value} }

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}
