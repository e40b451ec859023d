package reasoning

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type runner interface {
	Run(ctx context.Context, req Request) (Response, error)
}

// Limited throttles calls to a reasoning service with a token bucket.
type Limited struct {
	next    runner
	limiter *rate.Limiter
}

// Limit wraps next so that at most perSecond calls start each second, with
// bursts up to burst. A non-positive perSecond disables throttling.
func Limit(next runner, perSecond float64, burst int) *Limited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Run waits for a token, then delegates.
func (l *Limited) Run(ctx context.Context, req Request) (Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return l.next.Run(ctx, req)
}
