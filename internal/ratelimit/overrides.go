package ratelimit

import "time"

// SourceOverrides is the built-in per-source bucket table. Sources with a
// history of bot detection get lower sustained rates and a longer
// between-request floor than the default; anything unlisted falls back to
// the pool's default config.
func SourceOverrides() map[string]Config {
	return map[string]Config{
		"scientificamerican": {RequestsPerSecond: 0.5, Burst: 2, MinDelay: 2 * time.Second},
		"economist":          {RequestsPerSecond: 0.5, Burst: 2, MinDelay: 2 * time.Second},
		"wired":              {RequestsPerSecond: 1.0, Burst: 3, MinDelay: 1 * time.Second},
		"theatlantic":        {RequestsPerSecond: 1.0, Burst: 2, MinDelay: 1500 * time.Millisecond},
	}
}
