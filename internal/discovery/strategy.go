// Package discovery implements the two article-discovery strategies:
// RSS (feed-based, with fallback URLs and autodiscovery) and HTML
// (CSS-selector scraping of an index page). Both strategies gate every
// outbound request through a source's rate limiter and circuit
// breaker in a fixed order: the breaker admits the call,
// the rate limiter paces it, the result is classified and reported back.
package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/capcat/capcat/internal/domain/entity"
	"github.com/capcat/capcat/internal/feed"
	"github.com/capcat/capcat/internal/ratelimit"
	"github.com/capcat/capcat/internal/resilience/circuitbreaker"
	"github.com/capcat/capcat/internal/resilience/retry"
)

const maxDiscoveryBodySize = 5 * 1024 * 1024

// ShouldSkipFunc is the caller-provided hook used for user-defined URL
// exclusions and binary-extension filtering, applied in addition to a
// source's own skipPatterns.
type ShouldSkipFunc func(url, title string) bool

// Strategy produces up to count Article references for a source,
// preserving discovery order and honoring shouldSkip.
type Strategy interface {
	Discover(ctx context.Context, source entity.SourceDescriptor, count int, shouldSkip ShouldSkipFunc) ([]entity.Article, error)
}

// matchesSkipPattern reports whether url contains any of patterns as a
// substring.
func matchesSkipPattern(rawURL string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(rawURL, p) {
			return true
		}
	}
	return false
}

// matchesSkipExtension reports whether url's path ends in one of the
// binary/media extensions a source wants excluded, a denylist kept
// separate from the substring skipPatterns.
func matchesSkipExtension(rawURL string, extensions []string) bool {
	if len(extensions) == 0 {
		return false
	}
	path := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		path = parsed.Path
	}
	lower := strings.ToLower(path)
	for _, ext := range extensions {
		if ext == "" {
			continue
		}
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func shouldDrop(rawURL, title string, source entity.SourceDescriptor, shouldSkip ShouldSkipFunc) bool {
	if matchesSkipPattern(rawURL, source.SkipPatterns) {
		return true
	}
	if matchesSkipExtension(rawURL, source.SkipExtensions) {
		return true
	}
	if shouldSkip != nil && shouldSkip(rawURL, title) {
		return true
	}
	return false
}

// gatedFetch performs a GET against rawURL on behalf of sourceID, admitted
// by the source's circuit breaker and paced by its rate limiter, and
// returns the response body. Classifies failures into the sentinel error
// taxonomy so callers never need to inspect *http.Response directly; a
// 4xx status is returned as a *retry.HTTPError, retryable only for 408/429.
func gatedFetch(ctx context.Context, client *http.Client, limiters *ratelimit.Pool, breakers *circuitbreaker.Pool, sourceID, rawURL string) ([]byte, error) {
	breaker := breakers.Get(sourceID)
	bucket := limiters.Get(sourceID)

	result, err := breaker.Execute(func() (interface{}, error) {
		if err := bucket.Acquire(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", "CapcatBot/1.0")

		resp, err := client.Do(req)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() || ctx.Err() != nil {
				return nil, entity.ErrTimeout
			}
			return nil, entity.ErrNetworkError
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 {
			return nil, entity.ErrNetworkError
		}
		if resp.StatusCode >= 400 {
			return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: rawURL}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscoveryBodySize))
		if err != nil {
			return nil, entity.ErrNetworkError
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpenState) {
			return nil, entity.ErrCircuitOpen
		}
		return nil, err
	}
	return result.([]byte), nil
}

// RSSStrategy discovers articles by walking a source's RSS/Atom URL
// chain, with optional FeedDiscovery autodiscovery fallback.
type RSSStrategy struct {
	client     *http.Client
	parser     *feed.Parser
	discoverer *feed.Discoverer
	limiters   *ratelimit.Pool
	breakers   *circuitbreaker.Pool
}

// NewRSSStrategy builds an RSSStrategy. client is shared across all
// sources; limiters and breakers provide per-source gating.
func NewRSSStrategy(client *http.Client, limiters *ratelimit.Pool, breakers *circuitbreaker.Pool) *RSSStrategy {
	if client == nil {
		client = http.DefaultClient
	}
	return &RSSStrategy{
		client:     client,
		parser:     feed.NewParser(),
		discoverer: feed.NewDiscoverer(client),
		limiters:   limiters,
		breakers:   breakers,
	}
}

// Discover implements Strategy.
func (s *RSSStrategy) Discover(ctx context.Context, source entity.SourceDescriptor, count int, shouldSkip ShouldSkipFunc) ([]entity.Article, error) {
	chain := source.RSSURLChain()

	items, workingURL, err := retry.TryURLChain(chain, func(candidateURL string) ([]entity.FeedItem, error) {
		body, ferr := gatedFetch(ctx, s.client, s.limiters, s.breakers, source.SourceID, candidateURL)
		if ferr != nil {
			return nil, ferr
		}
		return s.parser.Parse(body)
	})

	if err != nil && source.RSS != nil && source.RSS.Autodiscover {
		slog.Debug("rss chain exhausted, trying autodiscovery",
			slog.String("source_id", source.SourceID), slog.Any("error", err))
		found, discoveredItems, derr := s.discoverer.FindWorkingFeed(ctx, source.BaseURL)
		if derr == nil && len(discoveredItems) > 0 {
			items, workingURL, err = discoveredItems, found, nil
		}
	}

	if err != nil || len(items) == 0 {
		// A transient failure (timeout, connection error) on the last URL
		// surfaces as itself so the retry-skip wrapper can retry the whole
		// discovery; only a chain that produced no usable feed content is
		// a hard ArticleDiscoveryFailed.
		if err != nil && (retry.IsRetryable(err) || errors.Is(err, entity.ErrCircuitOpen)) {
			return nil, fmt.Errorf("source %s: %w", source.SourceID, err)
		}
		return nil, fmt.Errorf("source %s: %w", source.SourceID, entity.ErrArticleDiscoveryFailed)
	}

	slog.Debug("rss discovery succeeded",
		slog.String("source_id", source.SourceID), slog.String("feed_url", workingURL), slog.Int("items", len(items)))

	return mapFeedItems(items, source, count, shouldSkip), nil
}

func mapFeedItems(items []entity.FeedItem, source entity.SourceDescriptor, count int, shouldSkip ShouldSkipFunc) []entity.Article {
	articles := make([]entity.Article, 0, min(count, len(items)))
	for _, item := range items {
		if len(articles) >= count {
			break
		}
		if shouldDrop(item.URL, item.Title, source, shouldSkip) {
			continue
		}
		art := entity.Article{
			Title:         item.Title,
			URL:           item.URL,
			CommentURL:    item.CommentURL,
			PublishedDate: item.PublishedDate,
			Summary:       item.Description,
		}
		articles = append(articles, art)
	}
	return articles
}

// HTMLStrategy discovers articles by scraping an index page with a
// source's ordered list of CSS selectors.
type HTMLStrategy struct {
	client   *http.Client
	limiters *ratelimit.Pool
	breakers *circuitbreaker.Pool
}

// NewHTMLStrategy builds an HTMLStrategy.
func NewHTMLStrategy(client *http.Client, limiters *ratelimit.Pool, breakers *circuitbreaker.Pool) *HTMLStrategy {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTMLStrategy{client: client, limiters: limiters, breakers: breakers}
}

// Discover implements Strategy.
func (s *HTMLStrategy) Discover(ctx context.Context, source entity.SourceDescriptor, count int, shouldSkip ShouldSkipFunc) ([]entity.Article, error) {
	if source.HTML == nil {
		return nil, fmt.Errorf("source %s: %w", source.SourceID, entity.ErrArticleDiscoveryFailed)
	}

	body, err := gatedFetch(ctx, s.client, s.limiters, s.breakers, source.SourceID, source.HTML.IndexURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.SourceID, entity.ErrParsingError)
	}

	base, err := url.Parse(source.HTML.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: invalid index url: %w", source.SourceID, entity.ErrParsingError)
	}

	seen := make(map[string]bool)
	var articles []entity.Article

	for _, selector := range source.HTML.ArticleSelectors {
		if len(articles) >= count {
			break
		}
		// A selector that doesn't compile (typo, site redesign) must not
		// abort discovery for the remaining selectors; goquery's Find would panic on it.
		matcher, cerr := cascadia.Compile(selector)
		if cerr != nil {
			slog.Debug("invalid article selector",
				slog.String("source_id", source.SourceID),
				slog.String("selector", selector), slog.Any("error", cerr))
			continue
		}
		doc.FindMatcher(matcher).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if len(articles) >= count {
				return false
			}
			href, ok := sel.Attr("href")
			if !ok || href == "" {
				return true
			}
			abs := absolutizeHTML(base, href)
			if abs == "" || seen[abs] {
				return true
			}
			seen[abs] = true

			title := strings.TrimSpace(sel.Text())
			if shouldDrop(abs, title, source, shouldSkip) {
				return true
			}

			art := entity.Article{Title: title, URL: abs}
			art.Title = art.NormalizedTitle()
			articles = append(articles, art)
			return true
		})
	}

	if len(articles) == 0 {
		return nil, fmt.Errorf("source %s: %w", source.SourceID, entity.ErrArticleDiscoveryFailed)
	}
	return articles, nil
}

func absolutizeHTML(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
