package ratelimit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Limiter applies a Store to incoming requests using the wall clock.
type Limiter struct {
	store      Store
	clock      func() time.Time
	rejections metric.Int64Counter
}

func NewLimiter(store Store) *Limiter {
	l := &Limiter{store: store, clock: time.Now}
	meter := otel.Meter("github.com/loqalabs/loqa-interpret/ratelimit")
	if counter, err := meter.Int64Counter("loqa.ratelimit.rejections", metric.WithDescription("Requests rejected by the rate limiter")); err == nil {
		l.rejections = counter
	}
	return l
}

// Allow records a request for key and reports whether it may proceed.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.store == nil {
		return true
	}
	if l.store.Increment(key, l.clock()) {
		return true
	}
	if l.rejections != nil {
		l.rejections.Add(ctx, 1)
	}
	return false
}
