package observability

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	otlpmetricgrpc "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otlpmetrichttp "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otlptracegrpc "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	tracesPath  = "/v1/traces"
	metricsPath = "/v1/metrics"
)

func newTraceExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterProtocol {
	case protocolHTTPProtobuf:
		endpoint, err := signalURL(cfg.ExporterEndpoint, tracesPath)
		if err != nil {
			return nil, err
		}
		options := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
		if strings.HasPrefix(endpoint, "http://") {
			options = append(options, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, options...)
	case protocolGRPC:
		endpoint, insecure, err := parseGRPCEndpoint(cfg.ExporterEndpoint)
		if err != nil {
			return nil, err
		}
		options := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if insecure {
			options = append(options, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, options...)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", cfg.ExporterProtocol)
	}
}

func newMetricExporter(ctx context.Context, cfg *Config) (sdkmetric.Exporter, error) {
	switch cfg.ExporterProtocol {
	case protocolHTTPProtobuf:
		endpoint, err := signalURL(cfg.ExporterEndpoint, metricsPath)
		if err != nil {
			return nil, err
		}
		options := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(endpoint)}
		if strings.HasPrefix(endpoint, "http://") {
			options = append(options, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, options...)
	case protocolGRPC:
		endpoint, insecure, err := parseGRPCEndpoint(cfg.ExporterEndpoint)
		if err != nil {
			return nil, err
		}
		options := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
		if insecure {
			options = append(options, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, options...)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", cfg.ExporterProtocol)
	}
}

// signalURL appends the per-signal OTLP path unless the endpoint already
// ends with it. Query parameters are kept.
func signalURL(endpoint, signalPath string) (string, error) {
	if strings.TrimSpace(endpoint) == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	path := strings.TrimSuffix(parsed.Path, "/")
	if !strings.HasSuffix(path, signalPath) {
		path += signalPath
	}
	parsed.Path = path
	return parsed.String(), nil
}

// parseGRPCEndpoint returns host:port and whether the connection is
// plaintext. A bare host:port is treated as plaintext.
func parseGRPCEndpoint(raw string) (string, bool, error) {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return "", false, fmt.Errorf("endpoint cannot be empty")
	}

	if !strings.Contains(endpoint, "://") {
		if !strings.Contains(endpoint, ":") {
			return "", false, fmt.Errorf("endpoint %q must be host:port", endpoint)
		}
		return endpoint, true, nil
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", false, err
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("endpoint must include host")
	}
	switch parsed.Scheme {
	case "http", "grpc":
		return parsed.Host, true, nil
	case "https", "grpcs":
		return parsed.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
}
