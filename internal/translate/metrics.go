package translate

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	outcomeOK          = "ok"
	outcomeInvalid     = "invalid"
	outcomeRateLimited = "rate_limited"
	outcomeFailed      = "failed"
)

var (
	requestsOnce    sync.Once
	requestsCounter metric.Int64Counter
)

func recordOutcome(ctx context.Context, outcome string) {
	requestsOnce.Do(func() {
		meter := otel.Meter("github.com/loqalabs/loqa-interpret/translate")
		counter, err := meter.Int64Counter("loqa.translate.requests", metric.WithDescription("Translation requests by outcome"))
		if err == nil {
			requestsCounter = counter
		}
	})
	if requestsCounter != nil {
		requestsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
