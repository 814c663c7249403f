// Package telemetry wires logging, metrics and tracing. With an OTLP
// endpoint configured (OTEL_EXPORTER_OTLP_ENDPOINT) all three are exported
// over gRPC and slog records flow through the otel bridge; without one, logs
// go to stderr and the otel globals stay no-ops.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Provider struct {
	logger    *slog.Logger
	shutdowns []func(context.Context) error
}

func Setup(ctx context.Context, serviceName string) (*Provider, error) {
	provider := &Provider{}

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		provider.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
		return provider, nil
	}

	logExporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: log exporter: %w", err)
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)
	global.SetLoggerProvider(loggerProvider)
	provider.shutdowns = append(provider.shutdowns, loggerProvider.Shutdown)
	provider.logger = otelslog.NewLogger(serviceName)

	metricExporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)
	otel.SetMeterProvider(meterProvider)
	provider.shutdowns = append(provider.shutdowns, meterProvider.Shutdown)

	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)
	provider.shutdowns = append(provider.shutdowns, tracerProvider.Shutdown)

	return provider, nil
}

func (p *Provider) Logger() *slog.Logger {
	return p.logger
}

func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range p.shutdowns {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
