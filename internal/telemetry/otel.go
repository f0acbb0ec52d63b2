package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	meterName  = "github.com/OrlandoBitencourt/pennant"
	tracerName = "github.com/OrlandoBitencourt/pennant"
)

// OTelProvider implements Provider using OpenTelemetry
type OTelProvider struct {
	tracer trace.Tracer
	meter  metric.Meter

	evaluations  metric.Int64Counter
	evalLatency  metric.Float64Histogram
	loadDuration metric.Float64Histogram
	loadSuccess  metric.Int64Counter
	loadFailure  metric.Int64Counter
	rollbacks    metric.Int64Counter
	enabled      metric.Int64ObservableGauge

	mu        sync.Mutex
	killState map[string]bool
}

// Option configures an OTelProvider.
type Option func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *otelConfig) { c.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *otelConfig) { c.meterProvider = mp }
}

// NewOTel creates a new OpenTelemetry provider
func NewOTel(opts ...Option) (*OTelProvider, error) {
	cfg := otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	provider := &OTelProvider{
		tracer:    cfg.tracerProvider.Tracer(tracerName),
		meter:     cfg.meterProvider.Meter(meterName),
		killState: make(map[string]bool),
	}

	if err := provider.initMetrics(); err != nil {
		return nil, err
	}

	return provider, nil
}

func (o *OTelProvider) initMetrics() error {
	var err error

	o.evaluations, err = o.meter.Int64Counter(
		"pennant.evaluations",
		metric.WithDescription("Number of toggle evaluations by decision kind"),
	)
	if err != nil {
		return err
	}

	o.evalLatency, err = o.meter.Float64Histogram(
		"pennant.evaluation.duration",
		metric.WithDescription("Duration of toggle resolution"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.loadDuration, err = o.meter.Float64Histogram(
		"pennant.load.duration",
		metric.WithDescription("Duration of snapshot load and patch operations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.loadSuccess, err = o.meter.Int64Counter(
		"pennant.load.success",
		metric.WithDescription("Number of snapshots installed"),
	)
	if err != nil {
		return err
	}

	o.loadFailure, err = o.meter.Int64Counter(
		"pennant.load.failure",
		metric.WithDescription("Number of rejected payloads"),
	)
	if err != nil {
		return err
	}

	o.rollbacks, err = o.meter.Int64Counter(
		"pennant.rollbacks",
		metric.WithDescription("Number of rollback attempts"),
	)
	if err != nil {
		return err
	}

	o.enabled, err = o.meter.Int64ObservableGauge(
		"pennant.namespace.enabled",
		metric.WithDescription("Namespace kill switch state (1=enabled, 0=disabled)"),
		metric.WithInt64Callback(o.observeKillSwitch),
	)
	return err
}

func (o *OTelProvider) observeKillSwitch(_ context.Context, observer metric.Int64Observer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for ns, enabled := range o.killState {
		var v int64
		if enabled {
			v = 1
		}
		observer.Observe(v, metric.WithAttributes(attribute.String("namespace", ns)))
	}
	return nil
}

// StartSpan creates a new trace span
func (o *OTelProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	config := &SpanConfig{}
	for _, opt := range opts {
		opt(config)
	}

	ctx, otelSpan := o.tracer.Start(ctx, name,
		trace.WithAttributes(convertAttributes(config.Attributes)...))

	return ctx, &OTelSpan{span: otelSpan}
}

func convertAttributes(attrs []Attribute) []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		out[i] = convertAttribute(attr)
	}
	return out
}

func convertAttribute(attr Attribute) attribute.KeyValue {
	switch v := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, v)
	case int:
		return attribute.Int(attr.Key, v)
	case int64:
		return attribute.Int64(attr.Key, v)
	case bool:
		return attribute.Bool(attr.Key, v)
	case float64:
		return attribute.Float64(attr.Key, v)
	default:
		return attribute.String(attr.Key, "")
	}
}

func (o *OTelProvider) RecordEvaluation(ctx context.Context, toggle string, decision string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("toggle", toggle),
		attribute.String("decision", decision),
	)
	o.evaluations.Add(ctx, 1, attrs)
	o.evalLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordLoad records a load or patch attempt. op is "load" or "patch".
func (o *OTelProvider) RecordLoad(ctx context.Context, namespace string, op string, success bool, duration time.Duration, flagCount int) {
	attrs := []attribute.KeyValue{
		attribute.String("namespace", namespace),
		attribute.String("op", op),
	}

	o.loadDuration.Record(ctx, float64(duration.Microseconds())/1000,
		metric.WithAttributes(append(attrs, attribute.Bool("success", success))...))

	if success {
		o.loadSuccess.Add(ctx, 1, metric.WithAttributes(
			append(attrs, attribute.Int("flag.count", flagCount))...))
	} else {
		o.loadFailure.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (o *OTelProvider) RecordRollback(ctx context.Context, namespace string, success bool) {
	o.rollbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", namespace),
		attribute.Bool("success", success),
	))
}

// RecordKillSwitch stores the state reported by the enabled gauge.
func (o *OTelProvider) RecordKillSwitch(_ context.Context, namespace string, enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.killState[namespace] = enabled
}

// Shutdown is a no-op; SDK providers are shut down by their owner.
func (o *OTelProvider) Shutdown(context.Context) error {
	return nil
}

// OTelSpan wraps an OpenTelemetry span
type OTelSpan struct {
	span trace.Span
}

func (s *OTelSpan) End() {
	s.span.End()
}

func (s *OTelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(convertAttributes(attrs)...)
}

func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

func (s *OTelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(convertAttributes(attrs)...))
}
