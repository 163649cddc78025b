package retry

import (
	"context"
	"errors"
	"time"

	"github.com/capcat/capcat/internal/domain/entity"
)

// DefaultMaxRetries is the total attempt budget DiscoverWithRetrySkip
// uses when the caller doesn't specify one.
const DefaultMaxRetries = 2

// Attempt performs one discovery attempt for a source, returning whatever
// the caller's discovery strategy produces.
type Attempt[T any] func() (T, error)

// DiscoverWithRetrySkip makes up to maxRetries total attempts of attempt,
// re-trying only failures classified retryable by IsRetryable. If every
// attempt is exhausted, it returns a SkipRecord instead of an error: the
// source is abandoned for this run and the batch continues. A
// non-retryable error is returned immediately.
func DiscoverWithRetrySkip[T any](ctx context.Context, sourceID, operation string, maxRetries int, attempt Attempt[T]) (T, *entity.SkipRecord, error) {
	var zero T
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	cfg := FeedFetchConfig()
	delay := cfg.InitialDelay

	var lastErr error
	attempts := 0
	for i := 1; i <= maxRetries; i++ {
		attempts++
		result, err := attempt()
		if err == nil {
			return result, nil, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, nil, err
		}

		if i == maxRetries {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, nil, ctx.Err()
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		delay = addJitter(delay, cfg.JitterFraction)
	}

	return zero, &entity.SkipRecord{
		SourceID:  sourceID,
		Operation: operation,
		Reason:    lastErr.Error(),
		ErrorKind: ClassifyErrorKind(lastErr),
		Attempts:  attempts,
		Timestamp: time.Now(),
	}, nil
}

// ClassifyErrorKind maps a sentinel error to the short string recorded on a
// SkipRecord and surfaced in the run summary.
func ClassifyErrorKind(err error) string {
	switch {
	case errors.Is(err, entity.ErrTimeout):
		return "timeout"
	case errors.Is(err, entity.ErrNetworkError):
		return "network_error"
	case errors.Is(err, entity.ErrInvalidFeed):
		return "invalid_feed"
	case errors.Is(err, entity.ErrArticleDiscoveryFailed):
		return "discovery_failed"
	case errors.Is(err, entity.ErrContentFetchError):
		return "content_fetch_error"
	case errors.Is(err, entity.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, entity.ErrFileSystemError):
		return "filesystem_error"
	case errors.Is(err, entity.ErrParsingError):
		return "parsing_error"
	default:
		return "unknown"
	}
}
