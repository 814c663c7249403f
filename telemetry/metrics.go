package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/qubane/webserv"

// Metrics carries the server counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	accepted metric.Int64Counter
	served   metric.Int64Counter
	deferred metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	accepted, err := meter.Int64Counter("server.connections.accepted",
		metric.WithDescription("Connections accepted by the supervisor"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	served, err := meter.Int64Counter("server.requests.served",
		metric.WithDescription("Requests answered with a complete response"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	deferred, err := meter.Int64Counter("server.admission.deferred",
		metric.WithDescription("Accept attempts deferred by the admission ceiling"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	return &Metrics{accepted: accepted, served: served, deferred: deferred}, nil
}

func (m *Metrics) ConnectionAccepted(ctx context.Context) {
	if m == nil {
		return
	}
	m.accepted.Add(ctx, 1)
}

func (m *Metrics) RequestServed(ctx context.Context, status uint16) {
	if m == nil {
		return
	}
	m.served.Add(ctx, 1, metric.WithAttributes(attribute.Int("http.status_code", int(status))))
}

func (m *Metrics) AdmissionDeferred(ctx context.Context) {
	if m == nil {
		return
	}
	m.deferred.Add(ctx, 1)
}
