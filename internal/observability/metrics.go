// Package observability provides the OpenTelemetry metric instruments the
// batching engine records. Hosts that install a real MeterProvider get the
// instruments exported; otherwise the noop meter keeps recording free.
package observability

import (
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the metric instruments used by the batching engine.
// Instruments are created once at build time and shared.
type Metrics struct {
	EventsSubmitted   otelmetric.Int64Counter
	BatchesSent       otelmetric.Int64Counter
	BatchSize         otelmetric.Int64Histogram
	SendFailures      otelmetric.Int64Counter
	EndpointFallbacks otelmetric.Int64Counter
	EventsRequeued    otelmetric.Int64Counter
}

// NewMetrics creates all metric instruments from the given Meter.
func NewMetrics(meter otelmetric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	m.EventsSubmitted, err = meter.Int64Counter(
		"pulse.events.submitted",
		otelmetric.WithDescription("Events accepted by the batching engine"),
	)
	if err != nil {
		return nil, err
	}

	m.BatchesSent, err = meter.Int64Counter(
		"pulse.batches.sent",
		otelmetric.WithDescription("Batches delivered to an endpoint"),
	)
	if err != nil {
		return nil, err
	}

	m.BatchSize, err = meter.Int64Histogram(
		"pulse.batch.size",
		otelmetric.WithDescription("Events per delivered batch"),
	)
	if err != nil {
		return nil, err
	}

	m.SendFailures, err = meter.Int64Counter(
		"pulse.send.failures",
		otelmetric.WithDescription("Delivery attempts that exhausted every endpoint"),
	)
	if err != nil {
		return nil, err
	}

	m.EndpointFallbacks, err = meter.Int64Counter(
		"pulse.endpoint.fallbacks",
		otelmetric.WithDescription("Endpoint attempts that failed over to the next endpoint"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsRequeued, err = meter.Int64Counter(
		"pulse.events.requeued",
		otelmetric.WithDescription("Events returned to the in-memory batch after a failed send"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// NopMetrics returns instruments backed by the noop meter.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("pulse"))
	return m
}
