// Package registry loads source descriptors from a directory tree and
// resolves them by name. Declarative sources are one YAML file
// each; a custom/<sourceID>/ subtree pairs a descriptor with a native
// SourceBehavior implementation registered in code; specialized sources
// register placeholder handlers consulted before the normal fetch path.
package registry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/capcat/capcat/internal/domain/entity"
)

// fileDescriptor mirrors the on-disk descriptor document. Numeric
// rate/delay fields are plain floats in seconds and are converted to
// typed durations on the way into entity.SourceDescriptor.
type fileDescriptor struct {
	SourceID         string        `yaml:"source_id"`
	DisplayName      string        `yaml:"display_name"`
	BaseURL          string        `yaml:"base_url"`
	Category         string        `yaml:"category"`
	Timeout          float64       `yaml:"timeout"`
	RateLimit        float64       `yaml:"rate_limit"`
	Burst            int           `yaml:"burst"`
	MinDelay         float64       `yaml:"min_delay"`
	SupportsComments bool          `yaml:"supports_comments"`
	HasComments      bool          `yaml:"has_comments"`
	Discovery        fileDiscovery `yaml:"discovery"`
	ArticleSelectors []string      `yaml:"article_selectors"`
	ContentSelectors []string      `yaml:"content_selectors"`
	SkipPatterns     []string      `yaml:"skip_patterns"`
	SkipExtensions   []string      `yaml:"skip_extensions"`
	CircuitBreaker   *fileBreaker  `yaml:"circuit_breaker"`
}

type fileDiscovery struct {
	Method       string      `yaml:"method"`
	RSSURLs      fileRSSURLs `yaml:"rss_urls"`
	AutoDiscover bool        `yaml:"auto_discover"`
}

type fileRSSURLs struct {
	Primary   string   `yaml:"primary"`
	Fallbacks []string `yaml:"fallbacks"`
}

type fileBreaker struct {
	FailureThreshold int     `yaml:"failure_threshold"`
	SuccessThreshold int     `yaml:"success_threshold"`
	Timeout          float64 `yaml:"timeout"`
	HalfOpenMaxCalls int     `yaml:"half_open_max_calls"`
}

const (
	defaultTimeoutSeconds = 10
	defaultRateLimit      = 2.0
)

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// toDescriptor converts a parsed file into the immutable descriptor the
// rest of the pipeline consumes, applying the documented defaults for absent
// numeric fields. Kind is supplied by the scanner based on where the file
// was found in the directory tree.
func (f *fileDescriptor) toDescriptor(kind entity.SourceKind) (entity.SourceDescriptor, error) {
	d := entity.SourceDescriptor{
		SourceID:         f.SourceID,
		DisplayName:      f.DisplayName,
		BaseURL:          f.BaseURL,
		Category:         f.Category,
		Timeout:          secondsToDuration(f.Timeout),
		SupportsComments: f.SupportsComments,
		HasComments:      f.HasComments,
		Kind:             kind,
		ContentSelectors: f.ContentSelectors,
		SkipPatterns:     f.SkipPatterns,
		SkipExtensions:   f.SkipExtensions,
	}
	if f.Timeout <= 0 {
		d.Timeout = defaultTimeoutSeconds * time.Second
	}
	if d.DisplayName == "" {
		d.DisplayName = f.SourceID
	}

	rps := f.RateLimit
	if rps <= 0 {
		rps = defaultRateLimit
	}
	d.RateLimit = entity.RateLimitOverride{
		RequestsPerSecond: rps,
		Burst:             f.Burst,
		MinDelay:          secondsToDuration(f.MinDelay),
	}

	if f.CircuitBreaker != nil {
		d.CircuitBreaker = &entity.CircuitBreakerOverride{
			FailureThreshold: f.CircuitBreaker.FailureThreshold,
			SuccessThreshold: f.CircuitBreaker.SuccessThreshold,
			Timeout:          secondsToDuration(f.CircuitBreaker.Timeout),
			HalfOpenMaxCalls: f.CircuitBreaker.HalfOpenMaxCalls,
		}
	}

	switch f.Discovery.Method {
	case "rss", "":
		d.Discovery = entity.DiscoveryRSS
		d.RSS = &entity.RSSSpec{
			Primary:      f.Discovery.RSSURLs.Primary,
			Fallbacks:    f.Discovery.RSSURLs.Fallbacks,
			Autodiscover: f.Discovery.AutoDiscover,
		}
	case "html":
		d.Discovery = entity.DiscoveryHTML
		d.HTML = &entity.HTMLSpec{
			IndexURL:         f.BaseURL,
			ArticleSelectors: f.ArticleSelectors,
		}
	default:
		return d, &entity.ValidationError{Field: "discovery.method", Message: fmt.Sprintf("unknown method %q", f.Discovery.Method)}
	}

	if kind == entity.KindSpecialized {
		// Specialized sources are matched by URL predicate, not discovered.
		d.RSS = nil
		d.HTML = nil
	}

	return d, d.Validate()
}

func parseDescriptorFile(path string, kind entity.SourceKind) (entity.SourceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.SourceDescriptor{}, fmt.Errorf("read descriptor %s: %w", path, err)
	}
	var f fileDescriptor
	if err := yaml.Unmarshal(data, &f); err != nil {
		return entity.SourceDescriptor{}, fmt.Errorf("parse descriptor %s: %w", path, err)
	}
	return f.toDescriptor(kind)
}
