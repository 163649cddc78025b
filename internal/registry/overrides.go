package registry

import (
	"github.com/capcat/capcat/internal/ratelimit"
	"github.com/capcat/capcat/internal/resilience/circuitbreaker"
)

// RateLimitConfigs builds the per-source bucket table for a run: the
// built-in sensitive-source overrides win, then every other descriptor
// contributes its own declared rate. The two override tables (here and
// CircuitBreakerConfigs) are intentionally independent; a source tuned in
// only one of them uses the default for the other.
func (r *Registry) RateLimitConfigs() map[string]ratelimit.Config {
	out := ratelimit.SourceOverrides()
	for _, d := range r.All() {
		if _, tuned := out[d.SourceID]; tuned {
			continue
		}
		out[d.SourceID] = ratelimit.Config{
			RequestsPerSecond: d.RateLimit.RequestsPerSecond,
			Burst:             d.RateLimit.Burst,
			MinDelay:          d.RateLimit.MinDelay,
		}
	}
	return out
}

// CircuitBreakerConfigs builds the per-source breaker table: built-in
// overrides first, then descriptors that declare their own thresholds.
func (r *Registry) CircuitBreakerConfigs() map[string]circuitbreaker.Config {
	out := circuitbreaker.SourceOverrides()
	for _, d := range r.All() {
		if d.CircuitBreaker == nil {
			continue
		}
		if _, tuned := out[d.SourceID]; tuned {
			continue
		}
		out[d.SourceID] = circuitbreaker.Config{
			FailureThreshold: d.CircuitBreaker.FailureThreshold,
			SuccessThreshold: d.CircuitBreaker.SuccessThreshold,
			Timeout:          d.CircuitBreaker.Timeout,
			HalfOpenMaxCalls: d.CircuitBreaker.HalfOpenMaxCalls,
		}
	}
	return out
}
