// Package observability instruments the admission pipeline with
// OpenTelemetry metrics. Exporter wiring belongs to the host process;
// this package only defines the instruments and a provider helper.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/aibos-platform/action-kernel"

// NewMeterProvider builds an SDK meter provider for the kernel. Readers
// (periodic exporters, manual readers in tests) are passed by the host.
func NewMeterProvider(readers ...sdkmetric.Reader) *sdkmetric.MeterProvider {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("action-kernel"),
		)),
	}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	return sdkmetric.NewMeterProvider(opts...)
}

// Metrics holds the pipeline's instruments.
type Metrics struct {
	admissions    metric.Int64Counter
	quotaRejects  metric.Int64Counter
	circuitTrips  metric.Int64Counter
	dedupedEvents metric.Int64Counter
}

// NewMetrics creates the instruments on the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}
	var err error

	m.admissions, err = meter.Int64Counter("admissions_total",
		metric.WithDescription("Admission checks by outcome and deciding stage"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: admissions counter: %w", err)
	}

	m.quotaRejects, err = meter.Int64Counter("quota_rejections_total",
		metric.WithDescription("Quota rejections by scope"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: quota counter: %w", err)
	}

	m.circuitTrips, err = meter.Int64Counter("circuit_trips_total",
		metric.WithDescription("Circuit breaker trips by engine"),
		metric.WithUnit("{trip}"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: circuit counter: %w", err)
	}

	m.dedupedEvents, err = meter.Int64Counter("events_deduplicated_total",
		metric.WithDescription("Events dropped by the replay ledger"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: dedup counter: %w", err)
	}

	return m, nil
}

// AdmissionDecided counts one finished admission check.
func (m *Metrics) AdmissionDecided(ctx context.Context, admitted bool, stage string) {
	outcome := "admitted"
	if !admitted {
		outcome = "rejected"
	}
	m.admissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("stage", stage),
	))
}

// QuotaRejected counts one quota rejection for a scope class.
func (m *Metrics) QuotaRejected(ctx context.Context, scope string) {
	m.quotaRejects.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}

// CircuitTripped counts one breaker trip.
func (m *Metrics) CircuitTripped(ctx context.Context, engine string) {
	m.circuitTrips.Add(ctx, 1, metric.WithAttributes(attribute.String("engine", engine)))
}

// EventDeduplicated counts one dropped duplicate event.
func (m *Metrics) EventDeduplicated(ctx context.Context, eventType string) {
	m.dedupedEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}
