package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/capcat/capcat/internal/archive"
	"github.com/capcat/capcat/internal/discovery"
	"github.com/capcat/capcat/internal/domain/entity"
	"github.com/capcat/capcat/internal/layout"
	"github.com/capcat/capcat/internal/observability/logging"
	"github.com/capcat/capcat/internal/observability/metrics"
	"github.com/capcat/capcat/internal/observability/tracing"
	"github.com/capcat/capcat/internal/registry"
	"github.com/capcat/capcat/internal/resilience/retry"
	"github.com/capcat/capcat/internal/specialized"
)

// ProgressFunc receives per-article progress: a 0-1 fraction of the
// source's work list and a short textual stage.
type ProgressFunc func(sourceID string, fraction float64, stage string)

// Options are the processor's tuning knobs, resolved from the process
// config by the caller. Zero values select the built-in defaults.
type Options struct {
	// MaxDiscoveryWorkers bounds the parallel discovery pool (default 4).
	MaxDiscoveryWorkers int

	// MaxFetchWorkers caps each source's fetch pool (default 8); the
	// effective pool is min(MaxFetchWorkers, len(articles)).
	MaxFetchWorkers int

	// MaxRetries is the total discovery attempt budget per source
	// (default 2).
	MaxRetries int

	// PerArticleTimeout is the soft per-article fetch timeout (default
	// 60s). The batch-wide ceiling is PerArticleTimeout * numArticles.
	PerArticleTimeout time.Duration

	// MaxFilenameLength caps sanitized directory-name segments.
	MaxFilenameLength int

	// ShouldSkip is the caller-provided URL/title exclusion hook applied
	// during discovery. Optional.
	ShouldSkip discovery.ShouldSkipFunc

	// Progress receives per-article progress callbacks. Optional.
	Progress ProgressFunc

	// Refresher handles articles whose directory already exists from an
	// earlier run today: refresh in place instead of re-fetching. nil
	// disables the check and every article is fetched fresh.
	Refresher ArticleRefresher

	// Now supplies the calendar date used for output paths. Tests pin it;
	// nil means time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxDiscoveryWorkers <= 0 {
		o.MaxDiscoveryWorkers = 4
	}
	if o.MaxFetchWorkers <= 0 {
		o.MaxFetchWorkers = 8
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = retry.DefaultMaxRetries
	}
	if o.PerArticleTimeout <= 0 {
		o.PerArticleTimeout = 60 * time.Second
	}
	if o.MaxFilenameLength <= 0 {
		o.MaxFilenameLength = layout.DefaultMaxFilenameLength
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Request describes one batch run.
type Request struct {
	// SourceIDs names the sources to process.
	SourceIDs []string

	// Count is the per-source article count.
	Count int

	// OutputRoot is the archive root output paths are computed under.
	OutputRoot string
}

// Processor coordinates a batch run end to end. All shared mutable state
// (the dedup set, the run summary) is scoped to a single Run call; two
// concurrent runs never observe each other.
type Processor struct {
	reg      *registry.Registry
	rss      discovery.Strategy
	html     discovery.Strategy
	fetcher  ContentFetcher
	handlers []specialized.Handler
	logger   *slog.Logger
	opts     Options
}

// NewProcessor wires a Processor. handlers may be nil to disable
// specialized dispatch; logger nil selects slog.Default.
func NewProcessor(reg *registry.Registry, rss, html discovery.Strategy, fetcher ContentFetcher, handlers []specialized.Handler, opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		reg:      reg,
		rss:      rss,
		html:     html,
		fetcher:  fetcher,
		handlers: handlers,
		logger:   logger,
		opts:     opts.withDefaults(),
	}
}

// behaviorFor resolves the SourceBehavior for a descriptor: custom sources
// use their registered implementation, declarative sources share the
// strategy-parametrized behavior.
func (p *Processor) behaviorFor(d entity.SourceDescriptor) (registry.SourceBehavior, error) {
	switch d.Kind {
	case entity.KindCustom:
		b, ok := p.reg.Behavior(d.SourceID)
		if !ok {
			return nil, fmt.Errorf("custom source %s has no registered behavior", d.SourceID)
		}
		return b, nil
	case entity.KindSpecialized:
		return nil, fmt.Errorf("specialized source %s has no discovery", d.SourceID)
	default:
		strategy := p.rss
		if d.Discovery == entity.DiscoveryHTML {
			strategy = p.html
		}
		return &declarativeBehavior{source: d, strategy: strategy, fetcher: p.fetcher}, nil
	}
}

// Run executes the five phases of a batch and returns the run
// summary. Individual source and article failures are absorbed into the
// summary; Run itself only fails on context cancellation.
func (p *Processor) Run(ctx context.Context, req Request) (*entity.RunSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "batch.run",
		trace.WithAttributes(attribute.Int("sources", len(req.SourceIDs)), attribute.Int("count", req.Count)))
	defer span.End()

	summary := entity.NewRunSummary()
	ctx = logging.WithRunIDValue(ctx, summary.RunID)

	// Shadow the receiver with a run-scoped copy so the run_id attribute
	// never leaks between concurrent or successive runs.
	scoped := *p
	scoped.logger = logging.WithRunID(ctx, p.logger)
	p = &scoped

	var mu sync.Mutex

	// Phase 1 — parallel discovery.
	discovered := p.discoverAll(ctx, req, summary, &mu)
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	// Phase 2 — cross-source deduplication, in lexicographic source order
	// so the same run input always assigns a shared URL to the same
	// source.
	sourceIDs := make([]string, 0, len(discovered))
	for id := range discovered {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	seen := make(map[string]struct{})
	unique := make(map[string][]entity.Article, len(discovered))
	for _, id := range sourceIDs {
		for _, art := range discovered[id] {
			if _, dup := seen[art.URL]; dup {
				summary.RecordDuplicate()
				metrics.DuplicatesElidedTotal.Inc()
				p.logger.Debug("duplicate url elided",
					slog.String("source_id", id), slog.String("url", art.URL))
				continue
			}
			seen[art.URL] = struct{}{}
			unique[id] = append(unique[id], art)
		}
	}

	// Phase 3 — materialize per-source directories, only for sources that
	// actually have work: a skipped source must leave no empty directory.
	date := p.opts.Now()
	batchRoot := layout.BatchRoot(req.OutputRoot, date)
	sourceDirs := make(map[string]string, len(unique))
	for _, id := range sourceIDs {
		if len(unique[id]) == 0 {
			continue
		}
		d, _ := p.reg.Get(id)
		dir := layout.SourceDir(batchRoot, d.DisplayName, date)
		if err := archive.EnsureDir(dir); err != nil {
			p.logger.Warn("cannot create source directory",
				slog.String("source_id", id), slog.Any("error", err))
			mu.Lock()
			for range unique[id] {
				summary.RecordFailed(id)
				metrics.ArticlesFailedTotal.WithLabelValues(id, "filesystem_error").Inc()
			}
			mu.Unlock()
			delete(unique, id)
			continue
		}
		sourceDirs[id] = dir
	}

	// Phase 4 — parallel fetch under per-article and batch-wide ceilings.
	total := 0
	for _, arts := range unique {
		total += len(arts)
	}
	if total > 0 {
		batchCtx, cancel := context.WithTimeout(ctx, p.opts.PerArticleTimeout*time.Duration(total))
		p.fetchAll(batchCtx, unique, sourceDirs, summary, &mu)
		cancel()
	}

	// Phase 5 — summary.
	p.logSummary(summary)
	for id, st := range summary.PerSource {
		metrics.RecordRunSummary(id, st.Discovered, st.Fetched, st.Failed)
	}

	return summary, ctx.Err()
}

// discoverAll runs Phase 1: one discovery task per source, bounded to
// MaxDiscoveryWorkers, each wrapped in the retry-then-skip executor.
func (p *Processor) discoverAll(ctx context.Context, req Request, summary *entity.RunSummary, mu *sync.Mutex) map[string][]entity.Article {
	results := make(map[string][]entity.Article)

	g := new(errgroup.Group)
	g.SetLimit(p.opts.MaxDiscoveryWorkers)

	for _, sourceID := range req.SourceIDs {
		id := sourceID

		d, ok := p.reg.Get(id)
		if !ok {
			mu.Lock()
			summary.RecordSkip(entity.SkipRecord{
				SourceID: id, Operation: "discover",
				Reason: "source not registered", ErrorKind: "validation_error",
				Timestamp: time.Now(),
			})
			mu.Unlock()
			p.logger.Warn("unknown source requested", slog.String("source_id", id))
			continue
		}

		behavior, err := p.behaviorFor(d)
		if err != nil {
			mu.Lock()
			summary.RecordSkip(entity.SkipRecord{
				SourceID: id, Operation: "discover",
				Reason: err.Error(), ErrorKind: "validation_error",
				Timestamp: time.Now(),
			})
			mu.Unlock()
			p.logger.Warn("source has no usable behavior",
				slog.String("source_id", id), slog.Any("error", err))
			continue
		}

		g.Go(func() error {
			discCtx, span := tracing.StartSpan(ctx, "batch.discover",
				trace.WithAttributes(attribute.String("source_id", id)))
			defer span.End()

			start := time.Now()
			articles, skip, err := retry.DiscoverWithRetrySkip(discCtx, id, "discover", p.opts.MaxRetries, func() ([]entity.Article, error) {
				return behavior.Discover(discCtx, req.Count, p.opts.ShouldSkip)
			})
			metrics.RecordDiscoveryDuration(id, time.Since(start))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
				return err
			case err != nil:
				// Non-retryable discovery failure abandons the source for
				// this run, same as an exhausted retry budget.
				rec := entity.SkipRecord{
					SourceID: id, Operation: "discover",
					Reason: err.Error(), ErrorKind: retry.ClassifyErrorKind(err),
					Attempts: 1, Timestamp: time.Now(),
				}
				summary.RecordSkip(rec)
				metrics.SourcesSkippedTotal.WithLabelValues(id, rec.ErrorKind).Inc()
				p.logger.Warn("SOURCE SKIPPED",
					slog.String("source_id", id), slog.String("error_kind", rec.ErrorKind))
			case skip != nil:
				summary.RecordSkip(*skip)
				metrics.SourcesSkippedTotal.WithLabelValues(id, skip.ErrorKind).Inc()
				p.logger.Warn("SOURCE SKIPPED",
					slog.String("source_id", id),
					slog.String("error_kind", skip.ErrorKind),
					slog.Int("attempts", skip.Attempts))
			default:
				results[id] = articles
				summary.RecordDiscovered(id, len(articles))
				p.logger.Debug("discovery complete",
					slog.String("source_id", id), slog.Int("articles", len(articles)))
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// fetchAll runs Phase 4: per source, a bounded worker pool fans out the
// article fetches; each article runs under its own soft timeout derived
// from the batch context.
func (p *Processor) fetchAll(ctx context.Context, unique map[string][]entity.Article, sourceDirs map[string]string, summary *entity.RunSummary, mu *sync.Mutex) {
	outer := new(errgroup.Group)

	for sourceID, articles := range unique {
		id := sourceID
		arts := articles
		dir := sourceDirs[id]

		d, ok := p.reg.Get(id)
		if !ok {
			continue
		}
		behavior, err := p.behaviorFor(d)
		if err != nil {
			continue
		}

		outer.Go(func() error {
			srcCtx, span := tracing.StartSpan(ctx, "batch.fetch",
				trace.WithAttributes(attribute.String("source_id", id), attribute.Int("articles", len(arts))))
			defer span.End()

			pool := new(errgroup.Group)
			pool.SetLimit(minInt(p.opts.MaxFetchWorkers, len(arts)))

			var completed int64
			for i, article := range arts {
				index := i + 1
				art := article
				pool.Go(func() error {
					artCtx, cancel := context.WithTimeout(srcCtx, p.opts.PerArticleTimeout)
					defer cancel()

					start := time.Now()
					err := p.fetchOne(artCtx, d, behavior, art, dir, index)
					metrics.RecordFetchDuration(id, time.Since(start))

					mu.Lock()
					if err != nil {
						kind := retry.ClassifyErrorKind(err)
						if errors.Is(err, context.DeadlineExceeded) {
							kind = "timeout"
						}
						summary.RecordFailed(id)
						metrics.ArticlesFailedTotal.WithLabelValues(id, kind).Inc()
						p.logger.Warn("article fetch failed",
							slog.String("source_id", id),
							slog.String("url", art.URL),
							slog.String("error_kind", kind),
							slog.Any("error", err))
					} else {
						summary.RecordFetched(id)
					}
					completed++
					done := completed
					mu.Unlock()

					p.progress(id, float64(done)/float64(len(arts)), "done")
					return nil
				})
			}
			return pool.Wait()
		})
	}

	_ = outer.Wait()
}

// fetchOne processes a single article: already-archived articles are
// refreshed in place, then specialized dispatch, then the source
// behavior's fetch, then best-effort comments.
func (p *Processor) fetchOne(ctx context.Context, d entity.SourceDescriptor, behavior registry.SourceBehavior, art entity.Article, sourceDir string, index int) error {
	articleDir := layout.ArticleDir(sourceDir, index, art.NormalizedTitle(), p.opts.MaxFilenameLength)

	// An article.md already on disk means an earlier run today archived
	// this slot. Refresh it (liveness check + footer) instead of
	// re-fetching; the existing content is never overwritten.
	if p.opts.Refresher != nil {
		if _, err := os.Stat(filepath.Join(articleDir, "article.md")); err == nil {
			p.progress(d.SourceID, 0, "refresh")
			return p.opts.Refresher.RefreshArticleDir(ctx, articleDir, art.URL)
		}
	}

	if h := specialized.Match(p.handlers, art.URL); h != nil {
		p.progress(d.SourceID, 0, "placeholder")
		if _, err := h.WritePlaceholder(art, articleDir); err != nil {
			return err
		}
		return nil
	}

	p.progress(d.SourceID, 0, "content")
	if _, err := behavior.FetchArticle(ctx, art, articleDir); err != nil {
		return err
	}

	if d.SupportsComments && art.CommentURL != "" {
		p.progress(d.SourceID, 0, "comments")
		if err := p.fetcher.FetchComments(ctx, d, art.CommentURL, art.NormalizedTitle(), articleDir); err != nil {
			// Comment failures never fail the article.
			p.logger.Warn("comments fetch failed",
				slog.String("source_id", d.SourceID),
				slog.String("comment_url", art.CommentURL),
				slog.Any("error", err))
		}
	}
	return nil
}

func (p *Processor) progress(sourceID string, fraction float64, stage string) {
	if p.opts.Progress != nil {
		p.opts.Progress(sourceID, fraction, stage)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
