package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/capcat/capcat/internal/domain/entity"
)

const discoveryMaxBodySize = 5 * 1024 * 1024

// commonFeedSuffixes is a fixed list of conventional feed paths tried
// after a site's declared <link rel="alternate"> feeds, in order, when
// autodiscover is enabled.
var commonFeedSuffixes = []string{
	"/feed", "/rss", "/atom", "/feed.xml", "/rss.xml", "/atom.xml",
	"/index.xml", "/feeds/posts/default", "/?feed=rss2", "/rss/", "/feed/",
}

// Discoverer finds candidate feed URLs for a site that doesn't advertise
// one directly, and validates the bytes at each candidate.
type Discoverer struct {
	client *http.Client
	parser *Parser
}

// NewDiscoverer builds a Discoverer using client for outbound HTTP.
func NewDiscoverer(client *http.Client) *Discoverer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Discoverer{client: client, parser: NewParser()}
}

// CandidateURLs fetches siteURL's homepage, collects every
// <link rel="alternate" type="application/(rss|atom)+xml"> href
// (absolutized against siteURL), and appends the fixed list of common
// feed-path suffixes. The declared links come first since they're the
// site's own claim about where its feed lives.
func (d *Discoverer) CandidateURLs(ctx context.Context, siteURL string) ([]string, error) {
	base, err := url.Parse(siteURL)
	if err != nil {
		return nil, fmt.Errorf("invalid site URL %q: %w", siteURL, err)
	}

	doc, err := d.fetchHTML(ctx, siteURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var candidates []string

	doc.Find(`link[rel="alternate"]`).Each(func(_ int, sel *goquery.Selection) {
		typ, _ := sel.Attr("type")
		if !strings.Contains(typ, "rss+xml") && !strings.Contains(typ, "atom+xml") {
			return
		}
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := absolutize(base, href)
		if abs != "" && !seen[abs] {
			seen[abs] = true
			candidates = append(candidates, abs)
		}
	})

	for _, suffix := range commonFeedSuffixes {
		abs := absolutize(base, suffix)
		if abs != "" && !seen[abs] {
			seen[abs] = true
			candidates = append(candidates, abs)
		}
	}

	return candidates, nil
}

func absolutize(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

func (d *Discoverer) fetchHTML(ctx context.Context, siteURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "CapcatBot/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, entity.ErrNetworkError
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, entity.ErrNetworkError
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, discoveryMaxBodySize))
	if err != nil {
		return nil, entity.ErrParsingError
	}
	return doc, nil
}

// ValidateFeed reports whether data's root element looks like RSS or Atom,
// without fully parsing it. A cheap pre-filter before spending a parse.
func ValidateFeed(data []byte) bool {
	lower := bytes.ToLower(data)
	return bytes.Contains(lower, []byte("<rss")) ||
		bytes.Contains(lower, []byte("<feed")) ||
		bytes.Contains(lower, []byte(":feed")) // namespaced atom root, e.g. <atom:feed>
}

// ErrNoFeedFound is returned by FindWorkingFeed when no candidate both
// validates and parses into at least one item.
var ErrNoFeedFound = fmt.Errorf("feed discovery: %w", entity.ErrArticleDiscoveryFailed)

// FindWorkingFeed tries each candidate from CandidateURLs in order,
// returning the first URL whose body validates as RSS/Atom and parses
// into at least one item.
func (d *Discoverer) FindWorkingFeed(ctx context.Context, siteURL string) (string, []entity.FeedItem, error) {
	candidates, err := d.CandidateURLs(ctx, siteURL)
	if err != nil {
		return "", nil, err
	}

	for _, candidate := range candidates {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
		if err != nil {
			continue
		}
		req.Header.Set("User-Agent", "CapcatBot/1.0")

		resp, err := d.client.Do(req)
		if err != nil {
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, discoveryMaxBodySize))
		_ = resp.Body.Close()
		if readErr != nil || !ValidateFeed(body) {
			continue
		}

		items, parseErr := d.parser.Parse(body)
		if parseErr != nil || len(items) == 0 {
			continue
		}
		return candidate, items, nil
	}

	return "", nil, ErrNoFeedFound
}
