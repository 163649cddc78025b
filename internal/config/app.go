// Package config resolves the acquisition pipeline's process-wide
// Config object: CLI flags → environment variables → config file →
// built-in defaults, in that precedence order. It builds on
// internal/pkg/config's layered-loader primitives (LoadEnvWithFallback,
// ConfigLoadResult), which cover one value at a time, and assembles the
// batch processor's full knob set from them.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "github.com/capcat/capcat/internal/pkg/config"
)

// loadMetrics makes silently degraded configuration visible: fail-open
// loading never crashes the process, so the metrics are where fallbacks
// show up.
var loadMetrics = pkgconfig.NewConfigMetrics("capcat")

// Config is the resolved, validated, process-wide configuration for a
// run of the acquisition pipeline.
type Config struct {
	// MaxWorkers bounds the per-source fetch worker pool.
	MaxWorkers int `yaml:"max_workers"`

	// MaxDiscoveryWorkers bounds the parallel discovery pool.
	MaxDiscoveryWorkers int `yaml:"max_discovery_workers"`

	// DefaultCount is the per-source article count used when a caller
	// doesn't specify one.
	DefaultCount int `yaml:"default_count"`

	// OutputDir is the archive root OutputLayout paths are computed
	// under.
	OutputDir string `yaml:"output_dir"`

	// MaxFilenameLength caps sanitized directory-name segments (spec
	// §3 OutputPath contract, default 200).
	MaxFilenameLength int `yaml:"max_filename_length"`

	// PoolConnections and PoolMaxSize size the shared HTTP transport's
	// connection pool.
	PoolConnections int `yaml:"pool_connections"`
	PoolMaxSize     int `yaml:"pool_maxsize"`

	// ConnectTimeout bounds TCP connection establishment for the shared
	// HTTP client.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// PerArticleTimeout is the soft per-article fetch timeout. The batch-wide timeout is derived as
	// PerArticleTimeout * numArticles.
	PerArticleTimeout time.Duration `yaml:"per_article_timeout"`

	// SourcesDir is the directory tree the Source Registry scans.
	SourcesDir string `yaml:"sources_dir"`

	// BundleFile is the path to the bundle store document.
	BundleFile string `yaml:"bundle_file"`
}

// Default returns the built-in defaults every layer falls back to.
func Default() Config {
	return Config{
		MaxWorkers:          8,
		MaxDiscoveryWorkers: 4,
		DefaultCount:        10,
		OutputDir:           ".",
		MaxFilenameLength:   200,
		PoolConnections:     10,
		PoolMaxSize:         20,
		ConnectTimeout:      10 * time.Second,
		PerArticleTimeout:   60 * time.Second,
		SourcesDir:          "sources",
		BundleFile:          "sources/bundles.yaml",
	}
}

// Validate checks the same kind of invariants as the ratelimit/
// circuitbreaker configs: no negative durations, no non-positive counts.
func (c *Config) Validate() error {
	if err := pkgconfig.ValidateIntRange(c.MaxWorkers, 1, 256); err != nil {
		return fmt.Errorf("max_workers: %w", err)
	}
	if err := pkgconfig.ValidateIntRange(c.MaxDiscoveryWorkers, 1, 256); err != nil {
		return fmt.Errorf("max_discovery_workers: %w", err)
	}
	if err := pkgconfig.ValidateIntRange(c.DefaultCount, 1, 1000); err != nil {
		return fmt.Errorf("default_count: %w", err)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir: must not be empty")
	}
	if err := pkgconfig.ValidateIntRange(c.MaxFilenameLength, 10, 1000); err != nil {
		return fmt.Errorf("max_filename_length: %w", err)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.ConnectTimeout); err != nil {
		return fmt.Errorf("connect_timeout: %w", err)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.PerArticleTimeout); err != nil {
		return fmt.Errorf("per_article_timeout: %w", err)
	}
	return nil
}

// FlagOverrides represents the highest-precedence layer: values an
// external CLI collaborator parsed from command-line flags. A nil field
// means "flag not given", falling through to the next layer.
type FlagOverrides struct {
	MaxWorkers          *int
	MaxDiscoveryWorkers *int
	DefaultCount        *int
	OutputDir           *string
	SourcesDir          *string
}

// fileConfig mirrors Config for YAML decoding; every field is optional so
// a config file only needs to name the settings it wants to override.
type fileConfig struct {
	MaxWorkers          *int    `yaml:"max_workers"`
	MaxDiscoveryWorkers *int    `yaml:"max_discovery_workers"`
	DefaultCount        *int    `yaml:"default_count"`
	OutputDir           *string `yaml:"output_dir"`
	MaxFilenameLength   *int    `yaml:"max_filename_length"`
	PoolConnections     *int    `yaml:"pool_connections"`
	PoolMaxSize         *int    `yaml:"pool_maxsize"`
	ConnectTimeout      *string `yaml:"connect_timeout"`
	PerArticleTimeout   *string `yaml:"per_article_timeout"`
	SourcesDir          *string `yaml:"sources_dir"`
	BundleFile          *string `yaml:"bundle_file"`
}

// Load resolves Config from defaults, an optional YAML config file,
// environment variables, and finally flagOverrides, applied in that
// order so later layers win. Every fallback degrades to the prior
// layer's value and appends a warning; Load never returns an error for
// a bad file/env value. A structurally unreadable config file (missing,
// not YAML) is also a fallback, not a fatal error, for the same reason.
func Load(configFilePath string, flagOverrides FlagOverrides, logger *slog.Logger) (Config, []string) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := Default()
	var warnings []string

	if configFilePath != "" {
		if fc, err := loadFileConfig(configFilePath); err != nil {
			w := fmt.Sprintf("config file %s: %v (using defaults)", configFilePath, err)
			warnings = append(warnings, w)
			logger.Warn("config file load failed, falling back to defaults", slog.String("path", configFilePath), slog.Any("error", err))
		} else {
			applyFileConfig(&cfg, fc, &warnings)
		}
	}

	applyEnv(&cfg, &warnings, logger)

	if flagOverrides.MaxWorkers != nil {
		cfg.MaxWorkers = *flagOverrides.MaxWorkers
	}
	if flagOverrides.MaxDiscoveryWorkers != nil {
		cfg.MaxDiscoveryWorkers = *flagOverrides.MaxDiscoveryWorkers
	}
	if flagOverrides.DefaultCount != nil {
		cfg.DefaultCount = *flagOverrides.DefaultCount
	}
	if flagOverrides.OutputDir != nil {
		cfg.OutputDir = *flagOverrides.OutputDir
	}
	if flagOverrides.SourcesDir != nil {
		cfg.SourcesDir = *flagOverrides.SourcesDir
	}

	if err := cfg.Validate(); err != nil {
		warnings = append(warnings, fmt.Sprintf("resolved config invalid, reverting to defaults: %v", err))
		logger.Warn("resolved config failed validation, reverting to defaults", slog.Any("error", err))
		loadMetrics.RecordValidationError("resolved_config")
		cfg = Default()
	}

	loadMetrics.RecordLoadTimestamp()
	loadMetrics.SetFallbackActive("", len(warnings) > 0)

	return cfg, warnings
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

func applyFileConfig(cfg *Config, fc fileConfig, warnings *[]string) {
	if fc.MaxWorkers != nil {
		cfg.MaxWorkers = *fc.MaxWorkers
	}
	if fc.MaxDiscoveryWorkers != nil {
		cfg.MaxDiscoveryWorkers = *fc.MaxDiscoveryWorkers
	}
	if fc.DefaultCount != nil {
		cfg.DefaultCount = *fc.DefaultCount
	}
	if fc.OutputDir != nil {
		cfg.OutputDir = *fc.OutputDir
	}
	if fc.MaxFilenameLength != nil {
		cfg.MaxFilenameLength = *fc.MaxFilenameLength
	}
	if fc.PoolConnections != nil {
		cfg.PoolConnections = *fc.PoolConnections
	}
	if fc.PoolMaxSize != nil {
		cfg.PoolMaxSize = *fc.PoolMaxSize
	}
	if fc.ConnectTimeout != nil {
		if d, err := time.ParseDuration(*fc.ConnectTimeout); err == nil {
			cfg.ConnectTimeout = d
		} else {
			*warnings = append(*warnings, fmt.Sprintf("config file connect_timeout %q: %v (keeping %s)", *fc.ConnectTimeout, err, cfg.ConnectTimeout))
		}
	}
	if fc.PerArticleTimeout != nil {
		if d, err := time.ParseDuration(*fc.PerArticleTimeout); err == nil {
			cfg.PerArticleTimeout = d
		} else {
			*warnings = append(*warnings, fmt.Sprintf("config file per_article_timeout %q: %v (keeping %s)", *fc.PerArticleTimeout, err, cfg.PerArticleTimeout))
		}
	}
	if fc.SourcesDir != nil {
		cfg.SourcesDir = *fc.SourcesDir
	}
	if fc.BundleFile != nil {
		cfg.BundleFile = *fc.BundleFile
	}
}

func applyEnv(cfg *Config, warnings *[]string, logger *slog.Logger) {
	apply := func(field string, result pkgconfig.ConfigLoadResult) {
		if result.FallbackApplied {
			loadMetrics.RecordFallback(field, "default")
			for _, w := range result.Warnings {
				*warnings = append(*warnings, w)
				logger.Warn("env config fallback applied", slog.String("field", field), slog.String("warning", w))
			}
		}
	}

	r := pkgconfig.LoadEnvInt("CAPCAT_MAX_WORKERS", cfg.MaxWorkers, func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 256) })
	cfg.MaxWorkers = r.Value.(int)
	apply("max_workers", r)

	r = pkgconfig.LoadEnvInt("CAPCAT_MAX_DISCOVERY_WORKERS", cfg.MaxDiscoveryWorkers, func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 256) })
	cfg.MaxDiscoveryWorkers = r.Value.(int)
	apply("max_discovery_workers", r)

	r = pkgconfig.LoadEnvInt("CAPCAT_DEFAULT_COUNT", cfg.DefaultCount, func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 1000) })
	cfg.DefaultCount = r.Value.(int)
	apply("default_count", r)

	cfg.OutputDir = pkgconfig.LoadEnvString("CAPCAT_OUTPUT_DIR", cfg.OutputDir)
	cfg.SourcesDir = pkgconfig.LoadEnvString("CAPCAT_SOURCES_DIR", cfg.SourcesDir)

	r = pkgconfig.LoadEnvDuration("CAPCAT_CONNECT_TIMEOUT", cfg.ConnectTimeout, pkgconfig.ValidatePositiveDuration)
	cfg.ConnectTimeout = r.Value.(time.Duration)
	apply("connect_timeout", r)

	r = pkgconfig.LoadEnvDuration("CAPCAT_PER_ARTICLE_TIMEOUT", cfg.PerArticleTimeout, pkgconfig.ValidatePositiveDuration)
	cfg.PerArticleTimeout = r.Value.(time.Duration)
	apply("per_article_timeout", r)
}
