package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability bridges an OpenTelemetry meter to the Prometheus registry so
// hub and mutation instruments surface on the same /metrics endpoint.
type Observability struct {
	meterProvider    *metric.MeterProvider
	meter            otelmetric.Meter
	mutationCounter  otelmetric.Int64Counter
	mutationDuration otelmetric.Float64Histogram
	eventCounter     otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	mutationCounter, _ := meter.Int64Counter(
		"queue.mutations",
		otelmetric.WithDescription("Number of queue mutations processed"),
	)

	mutationDuration, _ := meter.Float64Histogram(
		"queue.mutation.duration",
		otelmetric.WithDescription("Queue mutation round-trip duration"),
		otelmetric.WithUnit("ms"),
	)

	eventCounter, _ := meter.Int64Counter(
		"hub.events",
		otelmetric.WithDescription("Number of hub events handled"),
	)

	return &Observability{
		meterProvider:    provider,
		meter:            meter,
		mutationCounter:  mutationCounter,
		mutationDuration: mutationDuration,
		eventCounter:     eventCounter,
	}
}

// RecordMutation counts one mutation by action and outcome.
func (o *Observability) RecordMutation(ctx context.Context, action, outcome string) {
	if o.mutationCounter != nil {
		o.mutationCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("action", action),
			attribute.String("outcome", outcome),
		))
	}
}

// RecordMutationDuration records a mutation's round-trip time.
func (o *Observability) RecordMutationDuration(ctx context.Context, action string, d time.Duration) {
	if o.mutationDuration != nil {
		o.mutationDuration.Record(ctx, float64(d.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("action", action),
		))
	}
}

// RecordHubEvent counts one dispatched hub event.
func (o *Observability) RecordHubEvent(ctx context.Context, hub, event string) {
	if o.eventCounter != nil {
		o.eventCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("hub", hub),
			attribute.String("event", event),
		))
	}
}

// Shutdown flushes and stops the meter provider.
func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
