package observability

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ca-srg/legalrag/internal/types"
)

const (
	defaultServiceName    = "legalrag"
	protocolHTTPProtobuf  = "http/protobuf"
	protocolGRPC          = "grpc"
	resourceServiceName   = "service.name"
	defaultExportInterval = 60 * time.Second
)

// Config holds the OpenTelemetry settings taken from the application config.
type Config struct {
	Enabled              bool
	ServiceName          string
	ExporterEndpoint     string
	ExporterProtocol     string
	ResourceAttributes   map[string]string
	TracesSampler        string
	TracesSamplerArg     float64
	MetricExportInterval time.Duration
}

// LoadConfig extracts and validates the OTEL_* settings.
func LoadConfig(cfg *types.Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("observability: nil root configuration provided")
	}

	attributes, err := parseResourceAttributes(cfg.OTelResourceAttributes)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to parse resource attributes: %w", err)
	}

	otelCfg := &Config{
		Enabled:              cfg.OTelEnabled,
		ServiceName:          strings.TrimSpace(cfg.OTelServiceName),
		ExporterEndpoint:     strings.TrimSpace(cfg.OTelExporterOTLPEndpoint),
		ExporterProtocol:     cfg.OTelExporterOTLPProtocol,
		ResourceAttributes:   attributes,
		TracesSampler:        strings.TrimSpace(cfg.OTelTracesSampler),
		TracesSamplerArg:     cfg.OTelTracesSamplerArg,
		MetricExportInterval: cfg.OTelMetricExportInterval,
	}
	if err := otelCfg.Validate(); err != nil {
		return nil, err
	}
	return otelCfg, nil
}

// Validate fills defaults and, when export is enabled, checks the exporter
// endpoint against the selected protocol.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("observability: config is nil")
	}

	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	c.ExporterProtocol = strings.ToLower(strings.TrimSpace(c.ExporterProtocol))
	if c.ExporterProtocol == "" {
		c.ExporterProtocol = protocolHTTPProtobuf
	}
	if c.TracesSampler == "" {
		c.TracesSampler = "always_on"
	}
	if c.MetricExportInterval <= 0 {
		c.MetricExportInterval = defaultExportInterval
	}
	if c.ResourceAttributes == nil {
		c.ResourceAttributes = make(map[string]string)
	}
	if _, ok := c.ResourceAttributes[resourceServiceName]; !ok {
		c.ResourceAttributes[resourceServiceName] = c.ServiceName
	}

	if !c.Enabled {
		return nil
	}

	if c.ExporterEndpoint == "" {
		return fmt.Errorf("observability: OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED=true")
	}
	if err := validateEndpoint(c.ExporterProtocol, c.ExporterEndpoint); err != nil {
		return err
	}

	if c.TracesSamplerArg < 0 {
		return fmt.Errorf("observability: traces sampler argument must be non-negative")
	}
	if strings.EqualFold(c.TracesSampler, "traceidratio") && (c.TracesSamplerArg <= 0 || c.TracesSamplerArg > 1) {
		return fmt.Errorf("observability: traces sampler argument must be in (0, 1] for traceidratio")
	}
	return nil
}

func validateEndpoint(protocol, endpoint string) error {
	switch protocol {
	case protocolHTTPProtobuf:
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("observability: invalid OTLP exporter endpoint: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("observability: http/protobuf endpoint must use http or https")
		}
		if parsed.Host == "" {
			return fmt.Errorf("observability: http/protobuf endpoint must include a host")
		}
	case protocolGRPC:
		if _, _, err := parseGRPCEndpoint(endpoint); err != nil {
			return fmt.Errorf("observability: invalid grpc endpoint: %w", err)
		}
	default:
		return fmt.Errorf("observability: unsupported OTLP exporter protocol %q", protocol)
	}
	return nil
}

// parseResourceAttributes reads the OTEL_RESOURCE_ATTRIBUTES key=value list.
func parseResourceAttributes(input string) (map[string]string, error) {
	attributes := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid resource attribute %q", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("resource attribute key cannot be empty")
		}
		attributes[key] = strings.TrimSpace(value)
	}
	return attributes, nil
}
