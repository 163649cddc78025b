// Package batch implements the parallel batch processor: for a
// set of sources it runs discovery in parallel, deduplicates article URLs
// across sources, materializes per-source output directories, fans article
// fetches out through bounded worker pools, and aggregates a run summary.
package batch

import (
	"context"

	"github.com/capcat/capcat/internal/discovery"
	"github.com/capcat/capcat/internal/domain/entity"
	"github.com/capcat/capcat/internal/registry"
)

// ContentFetcher is the collaborator that turns one discovered article
// into on-disk content (article.md plus media) inside the directory the
// processor hands it. The readability-backed default lives in
// internal/fetcher; tests substitute fakes.
type ContentFetcher interface {
	FetchArticle(ctx context.Context, source entity.SourceDescriptor, article entity.Article, articleDir string) (string, error)
	FetchComments(ctx context.Context, source entity.SourceDescriptor, commentURL, title, articleDir string) error
}

// ArticleRefresher is consulted for articles whose directory already
// exists from an earlier run today: it refreshes the existing archive
// (liveness check, Last Updated footer) without re-fetching or deleting
// the original content. Satisfied by update.Controller.
type ArticleRefresher interface {
	RefreshArticleDir(ctx context.Context, articleDir, articleURL string) error
}

// declarativeBehavior is the shared SourceBehavior implementation for
// data-driven sources: discovery runs the strategy selected by the
// descriptor, fetching delegates to the ContentFetcher.
type declarativeBehavior struct {
	source   entity.SourceDescriptor
	strategy discovery.Strategy
	fetcher  ContentFetcher
}

func (b *declarativeBehavior) Discover(ctx context.Context, count int, shouldSkip discovery.ShouldSkipFunc) ([]entity.Article, error) {
	return b.strategy.Discover(ctx, b.source, count, shouldSkip)
}

func (b *declarativeBehavior) FetchArticle(ctx context.Context, article entity.Article, outDir string) (string, error) {
	return b.fetcher.FetchArticle(ctx, b.source, article, outDir)
}

var _ registry.SourceBehavior = (*declarativeBehavior)(nil)
