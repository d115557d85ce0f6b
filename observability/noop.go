package observability

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	noopTracerProvider trace.TracerProvider = noop.NewTracerProvider()
	noopMeterProvider  metric.MeterProvider = metricnoop.NewMeterProvider()
)

// noopProvider is returned when observability is disabled.
type noopProvider struct{}

func newNoopProvider() *noopProvider {
	return &noopProvider{}
}

func (*noopProvider) TracerProvider() trace.TracerProvider { return noopTracerProvider }

func (*noopProvider) MeterProvider() metric.MeterProvider { return noopMeterProvider }

func (*noopProvider) Shutdown(context.Context) error { return nil }

func (*noopProvider) ForceFlush(context.Context) error { return nil }
