package entity

import (
	"errors"
	"fmt"
)

// Error taxonomy for the acquisition pipeline. Each kind is a
// distinct sentinel so callers can classify with errors.Is and decide
// retry/skip/propagate policy without string matching.
var (
	// ErrNetworkError covers DNS/connect/read failures and HTTP 5xx.
	ErrNetworkError = errors.New("network error")

	// ErrTimeout covers a request exceeding its configured timeout.
	ErrTimeout = errors.New("timeout")

	// ErrInvalidFeed covers feed content that is not parseable RSS/Atom.
	ErrInvalidFeed = errors.New("invalid feed")

	// ErrArticleDiscoveryFailed covers an entire discovery chain yielding
	// no items.
	ErrArticleDiscoveryFailed = errors.New("article discovery failed")

	// ErrContentFetchError covers an external ContentFetcher reporting
	// failure for a single article.
	ErrContentFetchError = errors.New("content fetch failed")

	// ErrCircuitOpen covers a circuit breaker refusing a call.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrFileSystemError covers an on-disk write failure.
	ErrFileSystemError = errors.New("filesystem error")

	// ErrParsingError covers HTML extraction failing on a specific URL.
	ErrParsingError = errors.New("parsing error")
)

// ValidationError represents a validation error with detailed field
// information. It implements the error interface and is used for
// validation failures, which have no sentinel of their own: malformed
// config or source descriptors.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
}
