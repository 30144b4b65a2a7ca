// Package telemetry provides OpenTelemetry instrumentation for the Loom
// Studio client coordinators.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OperationMetricsMeterName is the name used for the operation metrics meter
const OperationMetricsMeterName = "github.com/loomstudio/loomctl/operations"

// OperationMetrics holds the OpenTelemetry instruments for coordinator
// operations (browser sign-in, background jobs)
type OperationMetrics struct {
	operationDuration metric.Float64Histogram
	pollTicks         metric.Int64Counter
}

// NewOperationMetrics creates an OperationMetrics instance with the given
// meter provider. If provider is nil, it returns nil (no-op metrics).
func NewOperationMetrics(provider metric.MeterProvider) (*OperationMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(OperationMetricsMeterName)

	operationDuration, err := meter.Float64Histogram(
		"loomctl_operation_duration_seconds",
		metric.WithDescription("Duration of tracked external operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	pollTicks, err := meter.Int64Counter(
		"loomctl_poll_ticks_total",
		metric.WithDescription("Number of poll ticks observed by coordinators"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	return &OperationMetrics{
		operationDuration: operationDuration,
		pollTicks:         pollTicks,
	}, nil
}

// RecordOperationDuration records how long an operation took to reach a
// terminal outcome
func (m *OperationMetrics) RecordOperationDuration(ctx context.Context, kind string, duration time.Duration, outcome string) {
	if m == nil || m.operationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", kind),
		attribute.String("outcome", outcome),
	}

	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordPollTick counts one observed poll tick for an operation kind
func (m *OperationMetrics) RecordPollTick(ctx context.Context, kind string) {
	if m == nil || m.pollTicks == nil {
		return
	}

	m.pollTicks.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", kind)))
}
