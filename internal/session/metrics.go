package session

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce sync.Once
	dispatches  metric.Int64Counter
	restarts    metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/loqalabs/loqa-interpret/session")
		if c, err := meter.Int64Counter("loqa.session.dispatches", metric.WithDescription("Settled transcripts submitted for translation")); err == nil {
			dispatches = c
		}
		if c, err := meter.Int64Counter("loqa.session.restarts", metric.WithDescription("Recognition streams reopened after an unexpected end")); err == nil {
			restarts = c
		}
	})
}

func add(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1)
	}
}
