package sitefetcher

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound fetches (link-page and content-fetch
// requests alike) to a sustained rate with a burst allowance, so a
// crawler with many pages or many links doesn't hammer the origin site.
// Adapted from the teacher's notifier rate limiter for the fetch path.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a RateLimiter allowing requestsPerSecond sustained
// requests with up to burst requests in an initial burst.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Allow blocks until a token is available or ctx is done.
func (r *RateLimiter) Allow(ctx context.Context) error {
	if r == nil || r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}
