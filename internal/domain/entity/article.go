// Package entity defines the core domain entities and validation logic for
// the archival pipeline: sources, articles, feed items, and the records the
// batch processor accumulates over a run.
package entity

import (
	"strings"
	"time"
)

// untitledArticle is substituted for a blank title after trimming.
const untitledArticle = "Untitled Article"

// Article is a discovered candidate for archival. It is created once by a
// DiscoveryStrategy and never mutated afterward; the batch processor and
// ContentFetcher only read it.
type Article struct {
	Title         string
	URL           string
	CommentURL    string
	PublishedDate *time.Time
	Summary       string
}

// NormalizedTitle returns the article's title, trimmed, falling back to
// "Untitled Article" when empty.
func (a *Article) NormalizedTitle() string {
	t := strings.TrimSpace(a.Title)
	if t == "" {
		return untitledArticle
	}
	return t
}

// FeedItem is the intermediate record produced by the feed parser. Items
// lacking both a title and a URL are discarded before this type is ever
// constructed outside of parser-internal scratch space.
type FeedItem struct {
	Title         string
	URL           string
	CommentURL    string
	Description   string
	PublishedDate *time.Time
}
