package metrics

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder counts invocations in the store and reports the cumulative
// totals as the legalrag.invocations.total gauge. Recording never fails
// the caller.
type Recorder struct {
	store        *Store
	registration metric.Registration
	logger       *log.Logger
	now          func() time.Time
}

func NewRecorder(store *Store) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("usage store cannot be nil")
	}
	r := &Recorder{
		store:  store,
		logger: log.New(log.Writer(), "[usage] ", log.LstdFlags),
		now:    time.Now,
	}

	meter := otel.Meter("legalrag/metrics")
	gauge, err := meter.Int64ObservableGauge(
		"legalrag.invocations.total",
		metric.WithDescription("Cumulative total invocations by mode (search, ask, chat, mcp)"),
		metric.WithUnit("{invocations}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create invocation gauge: %w", err)
	}
	r.registration, err = meter.RegisterCallback(func(ctx context.Context, observer metric.Observer) error {
		totals, err := r.store.Totals(ctx)
		if err != nil {
			return err
		}
		for _, mode := range AllModes {
			observer.ObserveInt64(gauge, totals[mode], metric.WithAttributes(attribute.String("mode", string(mode))))
		}
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("failed to register invocation callback: %w", err)
	}
	return r, nil
}

func (r *Recorder) SetLogger(logger *log.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Record adds one invocation of mode. Nil recorders are no-ops.
func (r *Recorder) Record(ctx context.Context, mode Mode) {
	if r == nil {
		return
	}
	if err := r.store.Increment(ctx, mode, r.now()); err != nil {
		r.logger.Printf("failed to record invocation for %s: %v", mode, err)
	}
}

func (r *Recorder) Store() *Store {
	return r.store
}

func (r *Recorder) Close() error {
	if r.registration != nil {
		if err := r.registration.Unregister(); err != nil {
			r.logger.Printf("failed to unregister invocation callback: %v", err)
		}
	}
	return r.store.Close()
}
