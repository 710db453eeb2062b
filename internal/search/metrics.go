package search

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
	searchTracer = otel.Tracer("legalrag/search")

	searchMetricsOnce       sync.Once
	searchRequestCounter    metric.Int64Counter
	searchDegradedCounter   metric.Int64Counter
	generationFailedCounter metric.Int64Counter
	searchLatencyHistogram  metric.Float64Histogram
)

func initSearchMetrics() {
	searchMetricsOnce.Do(func() {
		meter := otel.Meter("legalrag/search")

		var err error
		searchRequestCounter, err = meter.Int64Counter(
			"legalrag.search.requests.total",
			metric.WithDescription("Total search and answer requests by mode"),
		)
		if err != nil {
			log.Printf("observability: failed to create search request counter: %v", err)
		}

		searchDegradedCounter, err = meter.Int64Counter(
			"legalrag.search.degraded.total",
			metric.WithDescription("Retrieval strategies that failed and returned no results"),
		)
		if err != nil {
			log.Printf("observability: failed to create degraded search counter: %v", err)
		}

		generationFailedCounter, err = meter.Int64Counter(
			"legalrag.answer.generation_failures.total",
			metric.WithDescription("Answer generations replaced by the fallback message"),
		)
		if err != nil {
			log.Printf("observability: failed to create generation failure counter: %v", err)
		}

		searchLatencyHistogram, err = meter.Float64Histogram(
			"legalrag.search.response_time",
			metric.WithDescription("Search and answer response time (ms)"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			log.Printf("observability: failed to create search latency histogram: %v", err)
		}
	})
}

func recordRequest(ctx context.Context, operation, mode string, duration time.Duration, results int) {
	initSearchMetrics()
	attrs := metric.WithAttributes(
		attribute.String("search.operation", operation),
		attribute.String("search.mode", mode),
		attribute.Bool("search.empty", results == 0),
	)
	if searchRequestCounter != nil {
		searchRequestCounter.Add(ctx, 1, attrs)
	}
	if searchLatencyHistogram != nil {
		searchLatencyHistogram.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func recordDegraded(ctx context.Context, strategy string) {
	initSearchMetrics()
	if searchDegradedCounter != nil {
		searchDegradedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("search.strategy", strategy)))
	}
}

func recordGenerationFailure(ctx context.Context, reason string) {
	initSearchMetrics()
	if generationFailedCounter != nil {
		generationFailedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("error.type", reason)))
	}
}
