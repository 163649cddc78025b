package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/capcat/capcat/internal/domain/entity"
	"github.com/capcat/capcat/internal/feed"
)

// FeedSummary reports what a single feed URL contains without running a
// full discovery: used by registration-time validation to sanity-check a
// descriptor's primary URL.
type FeedSummary struct {
	URL       string
	ItemCount int
	Newest    *time.Time
	Oldest    *time.Time
}

// IntrospectFeed fetches url directly (no rate limiting or breaker: this
// is a one-off dry run, not part of a batch) and summarizes the parsed
// feed.
func IntrospectFeed(ctx context.Context, client *http.Client, url string) (*FeedSummary, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %q", entity.ErrNetworkError, url)
	}
	req.Header.Set("User-Agent", "CapcatBot/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrNetworkError, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: http %d for %s", entity.ErrNetworkError, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscoveryBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", entity.ErrNetworkError, err)
	}

	items, err := feed.NewParser().Parse(body)
	if err != nil {
		return nil, err
	}

	summary := &FeedSummary{URL: url, ItemCount: len(items)}
	for _, item := range items {
		if item.PublishedDate == nil {
			continue
		}
		if summary.Newest == nil || item.PublishedDate.After(*summary.Newest) {
			summary.Newest = item.PublishedDate
		}
		if summary.Oldest == nil || item.PublishedDate.Before(*summary.Oldest) {
			summary.Oldest = item.PublishedDate
		}
	}
	return summary, nil
}
