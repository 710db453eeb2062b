package mcpserver

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	mcpMetricsOnce      sync.Once
	mcpRequestCounter   metric.Int64Counter
	mcpErrorCounter     metric.Int64Counter
	mcpLatencyHistogram metric.Float64Histogram
)

func initMCPMetrics() {
	mcpMetricsOnce.Do(func() {
		meter := otel.Meter("legalrag/mcpserver")

		var err error
		mcpRequestCounter, err = meter.Int64Counter(
			"legalrag.mcp.tool_calls.total",
			metric.WithDescription("Total MCP tool calls"),
		)
		if err != nil {
			log.Printf("observability: failed to create MCP request counter: %v", err)
		}

		mcpErrorCounter, err = meter.Int64Counter(
			"legalrag.mcp.tool_errors.total",
			metric.WithDescription("MCP tool calls answered with an error result"),
		)
		if err != nil {
			log.Printf("observability: failed to create MCP error counter: %v", err)
		}

		mcpLatencyHistogram, err = meter.Float64Histogram(
			"legalrag.mcp.response_time",
			metric.WithDescription("MCP tool response time (ms)"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			log.Printf("observability: failed to create MCP latency histogram: %v", err)
		}
	})
}

func recordToolCall(ctx context.Context, tool, mode string, duration time.Duration, errType string) {
	initMCPMetrics()
	attrs := []attribute.KeyValue{
		attribute.String("mcp.tool", tool),
		attribute.String("search.mode", mode),
	}
	if mcpRequestCounter != nil {
		mcpRequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if mcpLatencyHistogram != nil {
		mcpLatencyHistogram.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	}
	if errType != "" && mcpErrorCounter != nil {
		mcpErrorCounter.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("error.type", errType))...))
	}
}
