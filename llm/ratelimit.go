package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited bounds the request rate of a predictor shared by concurrent
// runs. Callers block in Predict until a token is available or ctx ends.
type RateLimited struct {
	next    Predictor
	limiter *rate.Limiter
}

// NewRateLimited allows rps requests per second with the given burst.
// rps <= 0 disables limiting; burst < 1 is treated as 1.
func NewRateLimited(next Predictor, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Predict implements Predictor.
func (r *RateLimited) Predict(ctx context.Context, req *Request) (string, Metrics, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", Metrics{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Predict(ctx, req)
}
