// Package fetcher provides the default ContentFetcher used for
// declarative sources: fetch the article page, extract its primary
// content with the Readability algorithm, and write article.md (plus an
// optional flattened comments.md) into the article directory. Outbound
// requests go through the source's rate limiter and circuit breaker in
// the same order the discovery strategies use.
package fetcher

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
	"path/filepath"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/capcat/capcat/internal/archive"
	"github.com/capcat/capcat/internal/domain/entity"
	"github.com/capcat/capcat/internal/ratelimit"
	"github.com/capcat/capcat/internal/resilience/circuitbreaker"
	"github.com/capcat/capcat/internal/resilience/retry"
)

const maxArticleBodySize = 10 * 1024 * 1024

// Fetcher is the readability-backed ContentFetcher. Safe for concurrent
// use; one instance serves every declarative source in a run.
type Fetcher struct {
	client   *http.Client
	limiters *ratelimit.Pool
	breakers *circuitbreaker.Pool
	logger   *slog.Logger
}

// New builds a Fetcher. client is shared across sources; limiters and
// breakers provide the per-source gating.
func New(client *http.Client, limiters *ratelimit.Pool, breakers *circuitbreaker.Pool, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, limiters: limiters, breakers: breakers, logger: logger}
}

// FetchArticle fetches article.URL, extracts its readable content, and
// writes article.md into articleDir. Returns the directory written. The
// write is atomic: a cancelled fetch leaves either a complete article.md
// or none at all.
func (f *Fetcher) FetchArticle(ctx context.Context, source entity.SourceDescriptor, article entity.Article, articleDir string) (string, error) {
	body, err := f.gatedFetch(ctx, source, article.URL)
	if err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(article.URL)
	if err != nil {
		return "", fmt.Errorf("%w: article url %q", entity.ErrContentFetchError, article.URL)
	}

	extracted, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", fmt.Errorf("%w: readability extraction for %s: %v", entity.ErrParsingError, article.URL, err)
	}

	md := renderArticleMarkdown(article, extracted)
	if err := archive.WriteFileAtomic(filepath.Join(articleDir, "article.md"), []byte(md), 0o644); err != nil {
		return "", err
	}
	return articleDir, nil
}

// FetchComments fetches commentURL, flattens the page's readable text,
// and writes comments.md next to article.md. Callers treat failures as
// non-fatal: comments never fail an article.
func (f *Fetcher) FetchComments(ctx context.Context, source entity.SourceDescriptor, commentURL, title, articleDir string) error {
	var body []byte
	err := retry.WithBackoff(ctx, retry.CommentsFetchConfig(), func() error {
		var ferr error
		body, ferr = f.gatedFetch(ctx, source, commentURL)
		return ferr
	})
	if err != nil {
		return err
	}

	parsedURL, err := url.Parse(commentURL)
	if err != nil {
		return fmt.Errorf("%w: comment url %q", entity.ErrContentFetchError, commentURL)
	}

	extracted, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return fmt.Errorf("%w: comment extraction for %s: %v", entity.ErrParsingError, commentURL, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Comments: %s\n\n", title)
	fmt.Fprintf(&b, "**Source:** %s\n\n", commentURL)
	b.WriteString(strings.TrimSpace(extracted.TextContent))
	b.WriteString("\n")

	return archive.WriteFileAtomic(filepath.Join(articleDir, "comments.md"), []byte(b.String()), 0o644)
}

func renderArticleMarkdown(article entity.Article, extracted readability.Article) string {
	title := article.NormalizedTitle()
	if strings.TrimSpace(extracted.Title) != "" {
		title = strings.TrimSpace(extracted.Title)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Source:** %s\n\n", article.URL)
	if article.PublishedDate != nil {
		fmt.Fprintf(&b, "**Published:** %s\n\n", article.PublishedDate.Format(time.RFC1123))
	}
	if extracted.Byline != "" {
		fmt.Fprintf(&b, "**Author:** %s\n\n", extracted.Byline)
	}
	b.WriteString("---\n\n")

	text := strings.TrimSpace(extracted.TextContent)
	if text == "" {
		text = strings.TrimSpace(article.Summary)
	}
	b.WriteString(text)
	b.WriteString("\n")
	return b.String()
}

// gatedFetch performs one GET on behalf of source, admitted by its
// circuit breaker and paced by its rate limiter, classifying failures
// into the sentinel error taxonomy.
func (f *Fetcher) gatedFetch(ctx context.Context, source entity.SourceDescriptor, rawURL string) ([]byte, error) {
	breaker := f.breakers.Get(source.SourceID)
	bucket := f.limiters.Get(source.SourceID)

	reqCtx := ctx
	if source.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, source.Timeout)
		defer cancel()
	}

	result, err := breaker.Execute(func() (interface{}, error) {
		if err := bucket.Acquire(reqCtx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: build request for %q", entity.ErrContentFetchError, rawURL)
		}
		req.Header.Set("User-Agent", "CapcatBot/1.0")

		resp, err := f.client.Do(req)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() || reqCtx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("%w: %s", entity.ErrTimeout, rawURL)
			}
			return nil, fmt.Errorf("%w: %v", entity.ErrNetworkError, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%w: http %d for %s", entity.ErrContentFetchError, resp.StatusCode, rawURL)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxArticleBodySize))
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", entity.ErrNetworkError, err)
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpenState) {
			return nil, fmt.Errorf("%w: %s", entity.ErrCircuitOpen, source.SourceID)
		}
		return nil, err
	}
	return result.([]byte), nil
}
