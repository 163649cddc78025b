package registry

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/capcat/capcat/internal/discovery"
	"github.com/capcat/capcat/internal/domain/entity"
)

// VerifyFeeds dry-runs every RSS source's primary feed URL through the
// feed introspector: each URL is fetched once and must parse to at least
// one item. Returns the failures keyed by sourceID. A failing source is
// reported, not removed — a feed can be transiently down, and the
// discovery strategies have their own fallback chain for that.
func (r *Registry) VerifyFeeds(ctx context.Context, client *http.Client) map[string]error {
	failures := make(map[string]error)
	for _, d := range r.All() {
		if d.Kind == entity.KindSpecialized || d.Discovery != entity.DiscoveryRSS || d.RSS == nil || d.RSS.Primary == "" {
			continue
		}
		summary, err := discovery.IntrospectFeed(ctx, client, d.RSS.Primary)
		if err != nil {
			failures[d.SourceID] = err
			r.logger.Warn("feed verification failed",
				slog.String("source_id", d.SourceID),
				slog.String("url", d.RSS.Primary),
				slog.Any("error", err))
			continue
		}
		r.logger.Info("feed verified",
			slog.String("source_id", d.SourceID),
			slog.String("url", d.RSS.Primary),
			slog.Int("items", summary.ItemCount))
	}
	return failures
}
