// Package resilience holds the fault-tolerance building blocks the
// acquisition pipeline threads every outbound request through: per-source
// circuit breakers and bounded retry with exponential backoff.
//
// The subpackages compose in a fixed order for an outbound call: the
// breaker admits it, the rate limiter paces it, and the classified result
// is reported back to the breaker.
//
//	cb := circuitbreaker.New(circuitbreaker.DefaultConfig("hackernews"))
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return fetchFeed()
//	})
//
//	err := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
//	    return fetchOnce()
//	})
package resilience
