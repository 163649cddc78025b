// Package specialized holds the placeholder handlers for video/social
// platforms. A handler matches article URLs by
// pattern and writes a minimal placeholder article directory instead of
// fetching the underlying page; the per-article dispatcher consults the
// handler list before the normal fetch path.
package specialized

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/capcat/capcat/internal/archive"
	"github.com/capcat/capcat/internal/domain/entity"
)

// Handler matches article URLs and writes placeholder article directories
// for platforms whose content can't be meaningfully converted to Markdown
// (embedded video, social threads).
type Handler interface {
	// Name identifies the handler in logs and summaries.
	Name() string

	// Matches reports whether rawURL belongs to this handler's platform.
	Matches(rawURL string) bool

	// WritePlaceholder writes the placeholder article.md into articleDir
	// (computed by the batch processor's output layout) and returns the
	// directory it wrote.
	WritePlaceholder(article entity.Article, articleDir string) (string, error)
}

// hostHandler is the shared implementation behind the built-in handlers:
// match on host suffixes, write a title/URL/note placeholder.
type hostHandler struct {
	name  string
	note  string
	hosts []string
}

func (h *hostHandler) Name() string { return h.name }

func (h *hostHandler) Matches(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, candidate := range h.hosts {
		if host == candidate || strings.HasSuffix(host, "."+candidate) {
			return true
		}
	}
	return false
}

func (h *hostHandler) WritePlaceholder(article entity.Article, articleDir string) (string, error) {
	title := article.NormalizedTitle()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Source:** %s\n\n", article.URL)
	if article.PublishedDate != nil {
		fmt.Fprintf(&b, "**Published:** %s\n\n", article.PublishedDate.Format(time.RFC1123))
	}
	fmt.Fprintf(&b, "%s\n", h.note)

	if err := archive.WriteFileAtomic(filepath.Join(articleDir, "article.md"), []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return articleDir, nil
}

// Handlers returns the built-in placeholder handlers, consulted in order.
func Handlers() []Handler {
	return []Handler{
		&hostHandler{
			name:  "youtube",
			hosts: []string{"youtube.com", "youtu.be"},
			note:  "This is a YouTube video. Open the source link above to watch it.",
		},
		&hostHandler{
			name:  "vimeo",
			hosts: []string{"vimeo.com"},
			note:  "This is a Vimeo video. Open the source link above to watch it.",
		},
		&hostHandler{
			name:  "twitter",
			hosts: []string{"twitter.com", "x.com"},
			note:  "This is a post on X/Twitter. Open the source link above to view the thread.",
		},
	}
}

// Match returns the first handler in handlers matching rawURL, or nil.
func Match(handlers []Handler, rawURL string) Handler {
	for _, h := range handlers {
		if h.Matches(rawURL) {
			return h
		}
	}
	return nil
}
