// Package feed parses RSS 2.0 and Atom feed bytes into entity.FeedItem
// values, sorted newest-first.
package feed

import (
	"sort"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/capcat/capcat/internal/domain/entity"
)

// Parser turns raw feed bytes into FeedItems. The zero value is ready to
// use; gofeed.Parser auto-detects RSS 2.0 vs. Atom (with or without the
// http://www.w3.org/2005/Atom namespace) and normalizes both into a
// single item shape, so this type doesn't need to sniff the root element
// itself the way a hand-rolled XML walker would.
type Parser struct {
	underlying *gofeed.Parser
}

// NewParser returns a ready-to-use Parser.
func NewParser() *Parser {
	fp := gofeed.NewParser()
	fp.UserAgent = "CapcatBot/1.0"
	return &Parser{underlying: fp}
}

// Parse parses raw feed bytes (RSS or Atom) into FeedItems sorted
// newest-first; items missing a publish date sort to the end, in their
// original feed order. Returns entity.ErrInvalidFeed on malformed XML or
// when no usable items can be extracted.
func (p *Parser) Parse(data []byte) ([]entity.FeedItem, error) {
	feed, err := p.underlying.ParseString(string(data))
	if err != nil {
		return nil, entity.ErrInvalidFeed
	}

	items := make([]entity.FeedItem, 0, len(feed.Items))
	for _, raw := range feed.Items {
		item := toFeedItem(raw)
		// Items lacking both title and url are discarded.
		if strings.TrimSpace(item.Title) == "" && strings.TrimSpace(item.URL) == "" {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, entity.ErrInvalidFeed
	}

	sortNewestFirst(items)
	return items, nil
}

func toFeedItem(raw *gofeed.Item) entity.FeedItem {
	item := entity.FeedItem{
		Title: raw.Title,
		URL:   raw.Link,
	}

	// RSS <comments> survives gofeed's normalization only as a custom
	// element; absent for Atom and for feeds that don't publish one.
	if c := raw.Custom["comments"]; c != "" {
		item.CommentURL = c
	}

	description := raw.Description
	if description == "" {
		description = raw.Content
	}
	item.Description = description

	if raw.PublishedParsed != nil {
		item.PublishedDate = raw.PublishedParsed
	} else if raw.UpdatedParsed != nil {
		item.PublishedDate = raw.UpdatedParsed
	} else if ts := firstNonEmpty(raw.Published, raw.Updated); ts != "" {
		// gofeed already tries RFC822/RFC1123/ISO8601 internally; this
		// fallback only fires when gofeed couldn't classify the format
		// itself but the raw timestamp string is still present.
		if parsed, err := dateparse.ParseAny(ts); err == nil {
			item.PublishedDate = &parsed
		}
	}

	return item
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// sortNewestFirst orders items by PublishedDate descending; undated items
// keep their relative order and are placed after every dated item.
func sortNewestFirst(items []entity.FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedDate, items[j].PublishedDate
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
