package ratelimit

import (
	"context"

	"github.com/compozy/docqa/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type blockCounter struct {
	counter metric.Int64Counter
}

func newBlockCounter(meter metric.Meter) (*blockCounter, error) {
	if meter == nil {
		return &blockCounter{}, nil
	}
	counter, err := meter.Int64Counter(
		metrics.MetricNameWithSubsystem("ratelimit", "blocks_total"),
		metric.WithDescription("Total number of requests blocked by rate limiting"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return &blockCounter{}, err
	}
	return &blockCounter{counter: counter}, nil
}

// increment adds one blocked request for route.
func (b *blockCounter) increment(ctx context.Context, route string) {
	if b == nil || b.counter == nil {
		return
	}
	b.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}
