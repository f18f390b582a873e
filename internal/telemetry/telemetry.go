// Package telemetry is the OpenTelemetry wiring (C14): a tracer and meter
// provider built from the standard OTEL_EXPORTER_OTLP_* environment
// variables, grounded structurally on the pack's observability.NewTracer
// (exporter/resource/provider construction, graceful Shutdown) but over
// otlptracehttp/otlpmetrichttp, the teacher's actual OTel dependency set,
// rather than the grpc exporter.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config names the service identity reported on every span/metric; the
// actual collector endpoint is read from OTEL_EXPORTER_OTLP_ENDPOINT (and
// friends) by the exporters themselves, matching the OTel SDK convention.
type Config struct {
	ServiceName string
	Enabled     bool
}

// Provider bundles the tracer/meter this process uses and the shutdown
// hook the serve command runs on exit.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	RequestCount   metric.Int64Counter
	RequestLatency metric.Float64Histogram
}

// noopProvider is returned when telemetry is disabled (Config.Enabled false,
// or none of the OTLP endpoint variables set): every span/metric call is a no-op.
func noopProvider(name string) *Provider {
	tracer := otel.Tracer(name)
	meter := otel.Meter(name)
	count, _ := meter.Int64Counter("ndc.requests")
	latency, _ := meter.Float64Histogram("ndc.request.duration")
	return &Provider{Tracer: tracer, RequestCount: count, RequestLatency: latency}
}

// New builds the tracer/meter providers from OTEL_EXPORTER_OTLP_ENDPOINT (or
// its trace/metric-specific overrides). Returns a no-op provider if neither
// is set, so the connector runs unobserved rather than failing to start.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled || (os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" &&
		os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") == "" &&
		os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT") == "") {
		return noopProvider(cfg.ServiceName), nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	traceExporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	metricExporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(cfg.ServiceName)
	count, err := meter.Int64Counter("ndc.requests", metric.WithDescription("query/explain requests served"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create request counter: %w", err)
	}
	latency, err := meter.Float64Histogram("ndc.request.duration",
		metric.WithDescription("query/explain request latency"), metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create latency histogram: %w", err)
	}

	return &Provider{
		TracerProvider: tp,
		MeterProvider:  mp,
		Tracer:         tp.Tracer(cfg.ServiceName),
		RequestCount:   count,
		RequestLatency: latency,
	}, nil
}

// Shutdown flushes and closes both providers, tolerating either being nil
// (the no-op provider case).
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if p.MeterProvider != nil {
		return p.MeterProvider.Shutdown(ctx)
	}
	return nil
}
