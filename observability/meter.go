package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeter installs a periodic OTLP meter provider as the global one.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns a meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics holds the instruments recorded by the storage layer and the
// HTTP surface. A nil *Metrics records nothing.
type Metrics struct {
	requestTotal      metric.Int64Counter
	requestDuration   metric.Float64Histogram
	requestActive     metric.Int64UpDownCounter
	operationTotal    metric.Int64Counter
	operationDuration metric.Float64Histogram
	errorTotal        metric.Int64Counter
	bytesTransferred  metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.requestTotal, err = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("Handled HTTP requests")); err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}
	if m.requestDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating request histogram: %w", err)
	}
	if m.requestActive, err = meter.Int64UpDownCounter("http.server.request.active",
		metric.WithDescription("In-flight HTTP requests")); err != nil {
		return nil, fmt.Errorf("creating active request gauge: %w", err)
	}
	if m.operationTotal, err = meter.Int64Counter("storage.operation.total",
		metric.WithDescription("Remote storage calls")); err != nil {
		return nil, fmt.Errorf("creating operation counter: %w", err)
	}
	if m.operationDuration, err = meter.Float64Histogram("storage.operation.duration",
		metric.WithDescription("Remote storage call latency"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating operation histogram: %w", err)
	}
	if m.errorTotal, err = meter.Int64Counter("storage.error.total",
		metric.WithDescription("Remote storage failures by reason")); err != nil {
		return nil, fmt.Errorf("creating error counter: %w", err)
	}
	if m.bytesTransferred, err = meter.Int64Counter("storage.bytes",
		metric.WithDescription("Bytes uploaded to storage"), metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("creating bytes counter: %w", err)
	}
	return &m, nil
}

// RecordRequestStart increments the in-flight request gauge.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd records a completed HTTP request.
func (m *Metrics) RecordRequestEnd(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
	m.requestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

// RecordOperation records a remote storage call.
func (m *Metrics) RecordOperation(ctx context.Context, provider, operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.operationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
	m.operationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
	))
}

// RecordError counts a failed call by reason.
func (m *Metrics) RecordError(ctx context.Context, reason, component string) {
	if m == nil {
		return
	}
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.String("component", component),
	))
}

// RecordBytes counts uploaded bytes.
func (m *Metrics) RecordBytes(ctx context.Context, provider string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesTransferred.Add(ctx, n, metric.WithAttributes(attribute.String("provider", provider)))
}
