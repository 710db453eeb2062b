package observability

import (
	"context"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var logger = log.New(log.Writer(), "[Observability] ", log.LstdFlags)

// SetLogger replaces the package logger.
func SetLogger(l *log.Logger) {
	logger = l
}

// Init installs the global tracer and meter providers. When OTEL_ENABLED is
// false spans are never sampled and metrics are never exported, so
// instrumented code runs unchanged.
func Init(ctx context.Context, rootCfg *Config) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if rootCfg == nil {
		return noop, fmt.Errorf("observability: config is nil")
	}
	cfg := *rootCfg
	if err := cfg.Validate(); err != nil {
		return noop, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		mp := sdkmetric.NewMeterProvider()
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		return NewShutdownFunc(tp, mp), nil
	}

	res, err := newResource(ctx, &cfg)
	if err != nil {
		return noop, fmt.Errorf("observability: failed to build resource: %w", err)
	}

	spanExporter, err := newTraceExporter(ctx, &cfg)
	if err != nil {
		return noop, fmt.Errorf("observability: failed to create OTLP trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler(&cfg)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(spanExporter),
	)

	metricExporter, err := newMetricExporter(ctx, &cfg)
	if err != nil {
		_ = NewShutdownFunc(tp, nil)(ctx)
		return noop, fmt.Errorf("observability: failed to create OTLP metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.MetricExportInterval))),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	logger.Printf("exporting traces and metrics for %s to %s (%s)", cfg.ServiceName, cfg.ExporterEndpoint, cfg.ExporterProtocol)
	return NewShutdownFunc(tp, mp), nil
}

func sampler(cfg *Config) sdktrace.Sampler {
	switch strings.ToLower(cfg.TracesSampler) {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TracesSamplerArg))
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	default:
		return sdktrace.AlwaysSample()
	}
}

func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attributes := []attribute.KeyValue{attribute.String(resourceServiceName, cfg.ServiceName)}
	for key, value := range cfg.ResourceAttributes {
		if strings.EqualFold(key, resourceServiceName) {
			continue
		}
		attributes = append(attributes, attribute.String(key, value))
	}

	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attributes...),
	)
}
