// Package resilience holds the failure-handling primitives shared by the
// storage transports and the HTTP surface: retry with exponential
// backoff, a circuit breaker, a token-bucket rate limiter and a bulkhead
// that caps concurrent work.
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 5, Burst: 5})
//	res, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() (*T, error) {
//	    if err := rl.Wait(ctx); err != nil {
//	        return nil, err
//	    }
//	    return call(ctx)
//	})
package resilience
