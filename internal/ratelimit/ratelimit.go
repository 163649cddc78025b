// Package ratelimit provides a per-source token-bucket gate applied
// before each outbound request. It wraps golang.org/x/time/rate, adding
// the minimum-delay floor and the per-source override pool the
// acquisition pipeline's source descriptors name.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/capcat/capcat/internal/observability/metrics"
)

// Config is one source's token-bucket parameters.
type Config struct {
	// Name identifies the source in wait-time metrics. Set by the Pool;
	// an unnamed bucket records no metrics.
	Name string

	// RequestsPerSecond is the sustained refill rate.
	RequestsPerSecond float64

	// Burst is the bucket capacity, i.e. the largest burst allowed when
	// the bucket is full.
	Burst int

	// MinDelay floors the wait imposed on a blocking Acquire even when
	// the token-bucket math alone would return sooner, keeping bursty
	// sources from hammering a server with back-to-back requests the instant a
	// token becomes available.
	MinDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2.0
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	return c
}

// DefaultConfig is the fallback bucket applied to any source without a
// more specific entry in a Pool's config table.
func DefaultConfig() Config {
	return Config{RequestsPerSecond: 2.0, Burst: 5, MinDelay: 500 * time.Millisecond}
}

// TokenBucket gates outbound requests for a single source.
type TokenBucket struct {
	cfg     Config
	limiter *rate.Limiter
}

// New builds a TokenBucket from cfg.
func New(cfg Config) *TokenBucket {
	cfg = cfg.withDefaults()
	return &TokenBucket{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// Acquire blocks until a token is available (respecting MinDelay) or ctx
// is canceled. Call this once immediately before an outbound request.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	if b.cfg.Name != "" {
		start := time.Now()
		defer func() {
			metrics.RateLimiterWaitSeconds.WithLabelValues(b.cfg.Name).Observe(time.Since(start).Seconds())
		}()
	}
	if b.cfg.MinDelay > 0 {
		reservation := b.limiter.Reserve()
		if !reservation.OK() {
			reservation.Cancel()
			return b.limiter.Wait(ctx)
		}
		delay := reservation.Delay()
		if delay < b.cfg.MinDelay {
			delay = b.cfg.MinDelay
		}
		if delay <= 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			reservation.Cancel()
			return ctx.Err()
		}
	}
	return b.limiter.Wait(ctx)
}

// TryAcquire attempts a non-blocking acquire, returning false immediately
// if no token is available. Used where a caller prefers to skip ahead
// rather than wait (e.g. a best-effort background refresh).
func (b *TokenBucket) TryAcquire() bool {
	return b.limiter.Allow()
}

// Config returns the bucket's configuration.
func (b *TokenBucket) Config() Config { return b.cfg }
