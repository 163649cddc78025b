package entity

import (
	"fmt"
	"regexp"
	"time"
)

// SourceKind distinguishes how a source's discovery/fetch behavior is
// supplied. Declarative sources are entirely data-driven; custom sources
// carry a reference to a native SourceBehavior implementation; specialized
// sources are placeholder handlers consulted before the normal fetch path.
type SourceKind int

const (
	KindDeclarative SourceKind = iota
	KindCustom
	KindSpecialized
)

func (k SourceKind) String() string {
	switch k {
	case KindDeclarative:
		return "declarative"
	case KindCustom:
		return "custom"
	case KindSpecialized:
		return "specialized"
	default:
		return "unknown"
	}
}

// DiscoveryMethod selects which DiscoverySpec field of SourceDescriptor is
// populated and, in turn, which DiscoveryStrategy the registry wires up.
type DiscoveryMethod int

const (
	DiscoveryRSS DiscoveryMethod = iota
	DiscoveryHTML
)

// RSSSpec describes an RSS/Atom discovery chain: a primary URL, an ordered
// list of fallbacks tried in order, and whether FeedDiscovery autodiscovery
// should run if every configured URL fails.
type RSSSpec struct {
	Primary      string
	Fallbacks    []string
	Autodiscover bool
}

// HTMLSpec describes an HTML-scraping discovery source: an index page and
// an ordered list of CSS selectors tried in order, each yielding anchor
// elements.
type HTMLSpec struct {
	IndexURL         string
	ArticleSelectors []string
}

// RateLimitOverride carries a per-source override of the default token
// bucket parameters (requests/sec, burst, minimum delay).
type RateLimitOverride struct {
	RequestsPerSecond float64
	Burst             int
	MinDelay          time.Duration
}

// CircuitBreakerOverride carries a per-source override of the default
// circuit breaker thresholds.
type CircuitBreakerOverride struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	HalfOpenMaxCalls int
}

// SourceDescriptor is the immutable data describing a single content
// source: identity, discovery chain, rate/circuit overrides, and the
// opaque selector hints handed to the external ContentFetcher. Once loaded
// by the Source Registry, a descriptor is never mutated.
type SourceDescriptor struct {
	SourceID         string
	DisplayName      string
	BaseURL          string
	Category         string
	Timeout          time.Duration
	RateLimit        RateLimitOverride
	CircuitBreaker   *CircuitBreakerOverride // nil means "use the default table"
	SupportsComments bool
	HasComments      bool
	Kind             SourceKind
	Discovery        DiscoveryMethod
	RSS              *RSSSpec
	HTML             *HTMLSpec
	ContentSelectors []string
	SkipPatterns     []string
	SkipExtensions   []string
}

var sourceIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Validate checks the structural invariants of a SourceDescriptor.
// A descriptor failing validation is logged and omitted by the registry;
// it never aborts the whole load.
func (d *SourceDescriptor) Validate() error {
	if !sourceIDPattern.MatchString(d.SourceID) {
		return &ValidationError{Field: "source_id", Message: "must be lowercase alphanumeric and underscores"}
	}
	if err := ValidateURL(d.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if d.Timeout <= 0 {
		return &ValidationError{Field: "timeout", Message: "must be positive"}
	}
	if d.RateLimit.RequestsPerSecond <= 0 {
		return &ValidationError{Field: "rate_limit", Message: "must be positive"}
	}

	// Specialized sources are placeholder handlers matched by URL predicate
	//; they carry no RSS/HTML discovery chain of their own.
	if d.Kind == KindSpecialized {
		return nil
	}

	switch d.Discovery {
	case DiscoveryRSS:
		if d.RSS == nil || (d.RSS.Primary == "" && len(d.RSS.Fallbacks) == 0) {
			return &ValidationError{Field: "discovery.rss_urls", Message: "at least one of primary or fallbacks is required"}
		}
	case DiscoveryHTML:
		if d.HTML == nil || d.HTML.IndexURL == "" || len(d.HTML.ArticleSelectors) == 0 {
			return &ValidationError{Field: "discovery.article_selectors", Message: "index URL and at least one selector are required"}
		}
		if len(d.ContentSelectors) == 0 {
			return &ValidationError{Field: "content_selectors", Message: "required when discovery method is html"}
		}
	default:
		return &ValidationError{Field: "discovery.method", Message: "must be rss or html"}
	}

	return nil
}

// RSSURLChain returns the ordered list of URLs the RSS discovery strategy
// should try: primary first, then fallbacks in order.
func (d *SourceDescriptor) RSSURLChain() []string {
	if d.RSS == nil {
		return nil
	}
	chain := make([]string, 0, 1+len(d.RSS.Fallbacks))
	if d.RSS.Primary != "" {
		chain = append(chain, d.RSS.Primary)
	}
	chain = append(chain, d.RSS.Fallbacks...)
	return chain
}
