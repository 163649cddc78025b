// Command capcat runs the multi-source acquisition pipeline: discover the
// most recent articles for the requested sources (or a bundle), fetch
// each article's content, and write the dated on-disk archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/capcat/capcat/internal/batch"
	"github.com/capcat/capcat/internal/config"
	"github.com/capcat/capcat/internal/discovery"
	"github.com/capcat/capcat/internal/domain/entity"
	"github.com/capcat/capcat/internal/fetcher"
	"github.com/capcat/capcat/internal/observability/logging"
	"github.com/capcat/capcat/internal/observability/tracing"
	"github.com/capcat/capcat/internal/ratelimit"
	"github.com/capcat/capcat/internal/registry"
	"github.com/capcat/capcat/internal/resilience/circuitbreaker"
	"github.com/capcat/capcat/internal/specialized"
	"github.com/capcat/capcat/internal/update"
)

const (
	exitOK = iota
	exitConfigError
	exitValidationError
	exitRunError
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		bundleName = flag.String("bundle", "", "run every source in the named bundle")
		count      = flag.Int("count", 0, "articles per source (0 = configured default)")
		outputDir  = flag.String("output", "", "archive root (overrides config)")
		sourcesDir = flag.String("sources", "", "sources directory (overrides config)")
		verify     = flag.Bool("verify", false, "dry-run: check each RSS source's primary feed and exit")
		verbose    = flag.Bool("verbose", false, "debug logging to text output")
	)
	flag.Parse()

	var logger *slog.Logger
	if *verbose {
		_ = os.Setenv("LOG_LEVEL", "debug")
		logger = logging.NewTextLogger()
	} else {
		logger = logging.NewLogger()
	}
	slog.SetDefault(logger)

	overrides := config.FlagOverrides{}
	if *outputDir != "" {
		overrides.OutputDir = outputDir
	}
	if *sourcesDir != "" {
		overrides.SourcesDir = sourcesDir
	}
	if *count > 0 {
		overrides.DefaultCount = count
	}

	shutdownTracing := tracing.Init()
	defer func() { _ = shutdownTracing(context.Background()) }()

	cfg, warnings := config.Load(*configPath, overrides, logger)
	for _, w := range warnings {
		logger.Warn("config warning", slog.String("warning", w))
	}

	bundles, err := registry.LoadBundleStore(cfg.BundleFile)
	if err != nil {
		logger.Error("cannot load bundle store", slog.Any("error", err))
		return exitConfigError
	}

	reg := registry.New(cfg.SourcesDir, bundles, logger)
	if err := reg.Load(); err != nil {
		logger.Error("cannot load source registry", slog.Any("error", err))
		return exitConfigError
	}

	sourceIDs, perSourceCount, code := resolveSources(reg, bundles, *bundleName, flag.Args(), cfg.DefaultCount, logger)
	if code != exitOK {
		return code
	}
	if *count > 0 {
		perSourceCount = *count
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        cfg.PoolConnections,
			MaxIdleConnsPerHost: cfg.PoolMaxSize,
			DialContext: (&net.Dialer{
				Timeout: cfg.ConnectTimeout,
			}).DialContext,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *verify {
		failures := reg.VerifyFeeds(ctx, client)
		if len(failures) > 0 {
			return exitValidationError
		}
		return exitOK
	}

	limiters := ratelimit.NewPool(ratelimit.DefaultConfig(), reg.RateLimitConfigs())
	breakers := circuitbreaker.NewPool(circuitbreaker.DefaultConfig("default"), reg.CircuitBreakerConfigs())

	rss := discovery.NewRSSStrategy(client, limiters, breakers)
	html := discovery.NewHTMLStrategy(client, limiters, breakers)
	contentFetcher := fetcher.New(client, limiters, breakers, logger)

	// Re-runs for the same day auto-update in fetch/bundle mode: the
	// controller classifies the day's on-disk state, and the processor
	// refreshes already-archived articles through it instead of
	// re-fetching them.
	controller := update.NewController(client, nil, logger)
	mode := update.ModeFetch
	if *bundleName != "" {
		mode = update.ModeBundle
	}
	action, code := decideDayAction(controller, mode, reg, cfg.OutputDir, sourceIDs, logger)
	if code != exitOK {
		return code
	}
	if action == update.ActionCancel {
		logger.Info("run cancelled")
		return exitOK
	}

	proc := batch.NewProcessor(reg, rss, html, contentFetcher, specialized.Handlers(), batch.Options{
		MaxDiscoveryWorkers: cfg.MaxDiscoveryWorkers,
		MaxFetchWorkers:     cfg.MaxWorkers,
		PerArticleTimeout:   cfg.PerArticleTimeout,
		MaxFilenameLength:   cfg.MaxFilenameLength,
		Refresher:           controller,
	}, logger)

	summary, err := proc.Run(ctx, batch.Request{
		SourceIDs:  sourceIDs,
		Count:      perSourceCount,
		OutputRoot: cfg.OutputDir,
	})
	fmt.Print(batch.FormatSummary(summary))
	if err != nil {
		logger.Error("run aborted", slog.Any("error", err))
		return exitRunError
	}
	return exitOK
}

// resolveSources turns the command line into the list of source IDs to
// process: an explicit bundle, explicit source arguments, or every
// registered source.
func resolveSources(reg *registry.Registry, bundles *registry.BundleStore, bundleName string, args []string, defaultCount int, logger *slog.Logger) ([]string, int, int) {
	if bundleName != "" {
		b, ok := bundles.Resolve(bundleName)
		if !ok {
			logger.Error("unknown bundle",
				slog.String("bundle", bundleName),
				slog.String("known", strings.Join(bundles.Names(), ", ")))
			return nil, 0, exitValidationError
		}
		count := b.DefaultCount
		if count <= 0 {
			count = defaultCount
		}
		return b.Sources, count, exitOK
	}

	if len(args) > 0 {
		return args, defaultCount, exitOK
	}

	all := reg.All()
	if len(all) == 0 {
		logger.Error("no sources registered")
		return nil, 0, exitValidationError
	}
	ids := make([]string, 0, len(all))
	for _, d := range all {
		ids = append(ids, d.SourceID)
	}
	return ids, defaultCount, exitOK
}

// decideDayAction classifies today's archive state for the requested
// sources and maps it to an action for the run.
func decideDayAction(c *update.Controller, mode update.Mode, reg *registry.Registry, root string, sourceIDs []string, logger *slog.Logger) (update.Action, int) {
	want := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		want[id] = true
	}
	var filtered []entity.SourceDescriptor
	for _, d := range reg.All() {
		if want[d.SourceID] {
			filtered = append(filtered, d)
		}
	}

	state, existing, missing := c.ClassifyDay(root, time.Now(), filtered)
	if state != update.StateNoPriorWork {
		logger.Info("archive already has output for today",
			slog.String("state", state.String()),
			slog.Int("existing", len(existing)),
			slog.Int("missing", len(missing)))
	}

	action, err := c.Decide(mode, state, len(existing), len(missing))
	if err != nil {
		logger.Error("cannot decide re-run action", slog.Any("error", err))
		return update.ActionCancel, exitRunError
	}
	return action, exitOK
}
