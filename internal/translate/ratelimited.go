package translate

import (
	"context"

	"github.com/loqalabs/loqa-interpret/internal/ratelimit"
)

// RateLimited applies limiter to next, keyed by ClientKey(ctx).
func RateLimited(next Translator, limiter *ratelimit.Limiter) Translator {
	return TranslatorFunc(func(ctx context.Context, req Request) (Result, error) {
		if !limiter.Allow(ctx, ClientKey(ctx)) {
			recordOutcome(ctx, outcomeRateLimited)
			return Result{}, ErrRateLimited
		}
		return next.Translate(ctx, req)
	})
}
