package circuitbreaker

import "time"

// SourceOverrides is the built-in per-source breaker table. Known-brittle
// sources trip sooner and stay open longer than the default; anything
// unlisted falls back to the pool's default config. Tuned independently
// from the rate-limiter's override table: the breaker reacts to error
// streaks, the limiter to request pacing, and a source may need one
// adjusted without the other.
func SourceOverrides() map[string]Config {
	return map[string]Config{
		"scientificamerican": {FailureThreshold: 3, SuccessThreshold: 2, Timeout: 300 * time.Second, HalfOpenMaxCalls: 1},
		"economist":          {FailureThreshold: 3, SuccessThreshold: 2, Timeout: 300 * time.Second, HalfOpenMaxCalls: 1},
		"theatlantic":        {FailureThreshold: 4, SuccessThreshold: 2, Timeout: 180 * time.Second, HalfOpenMaxCalls: 2},
	}
}
