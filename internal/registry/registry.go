package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/capcat/capcat/internal/discovery"
	"github.com/capcat/capcat/internal/domain/entity"
)

// SourceBehavior is the two-operation contract every source satisfies
//. Declarative sources share one implementation
// parametrized by their descriptor; custom sources register their own.
type SourceBehavior interface {
	// Discover produces up to count Article references, preserving
	// discovery order and honoring shouldSkip.
	Discover(ctx context.Context, count int, shouldSkip discovery.ShouldSkipFunc) ([]entity.Article, error)

	// FetchArticle fetches one article's content into outDir and returns
	// the article folder path it wrote.
	FetchArticle(ctx context.Context, article entity.Article, outDir string) (string, error)
}

// BundleMembership is the narrow slice of the external bundle store the
// registry delegates bundle lookups to. Optional; a registry
// without one reports no memberships.
type BundleMembership interface {
	MembershipFor(sourceID string) []string
}

// Registry holds every validated source descriptor loaded from the
// sources directory. Descriptors are immutable after load; Reload swaps
// the whole set atomically.
type Registry struct {
	dir     string
	logger  *slog.Logger
	bundles BundleMembership

	mu        sync.RWMutex
	sources   map[string]entity.SourceDescriptor
	behaviors map[string]SourceBehavior
}

// New builds a Registry over dir without scanning it; call Load (or
// Reload) to populate. bundles may be nil.
func New(dir string, bundles BundleMembership, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		dir:       dir,
		logger:    logger,
		bundles:   bundles,
		sources:   make(map[string]entity.SourceDescriptor),
		behaviors: make(map[string]SourceBehavior),
	}
}

// Load scans the sources directory tree and registers every descriptor
// that passes validation. A descriptor failing validation is logged and
// omitted; other sources continue. Layout:
//
//	<dir>/*.yaml                    declarative sources
//	<dir>/custom/<id>/source.yaml   custom sources (behavior registered in code)
//	<dir>/specialized/<id>/source.yaml  specialized placeholder sources
//
// Load is idempotent: calling it again rescans from scratch.
func (r *Registry) Load() error {
	loaded := make(map[string]entity.SourceDescriptor)

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("%w: scan sources dir %s: %v", entity.ErrFileSystemError, r.dir, err)
	}

	for _, e := range entries {
		name := e.Name()
		switch {
		case !e.IsDir() && isDescriptorFile(name) && name != "bundles.yaml":
			r.loadInto(loaded, filepath.Join(r.dir, name), entity.KindDeclarative)
		case e.IsDir() && name == "custom":
			r.loadSubtree(loaded, filepath.Join(r.dir, name), entity.KindCustom)
		case e.IsDir() && name == "specialized":
			r.loadSubtree(loaded, filepath.Join(r.dir, name), entity.KindSpecialized)
		}
	}

	r.mu.Lock()
	r.sources = loaded
	r.mu.Unlock()

	r.logger.Info("source registry loaded",
		slog.String("dir", r.dir), slog.Int("sources", len(loaded)))
	return nil
}

// Reload rescans the sources directory, replacing the registered set.
func (r *Registry) Reload() error { return r.Load() }

func isDescriptorFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func (r *Registry) loadSubtree(dst map[string]entity.SourceDescriptor, dir string, kind entity.SourceKind) {
	subdirs, err := os.ReadDir(dir)
	if err != nil {
		r.logger.Warn("cannot scan source subtree", slog.String("dir", dir), slog.Any("error", err))
		return
	}
	for _, sd := range subdirs {
		if !sd.IsDir() {
			continue
		}
		path := filepath.Join(dir, sd.Name(), "source.yaml")
		if _, err := os.Stat(path); err != nil {
			r.logger.Warn("source subtree missing source.yaml", slog.String("dir", filepath.Join(dir, sd.Name())))
			continue
		}
		r.loadInto(dst, path, kind)
	}
}

func (r *Registry) loadInto(dst map[string]entity.SourceDescriptor, path string, kind entity.SourceKind) {
	d, err := parseDescriptorFile(path, kind)
	if err != nil {
		r.logger.Warn("descriptor rejected",
			slog.String("path", path), slog.Any("error", err))
		return
	}
	if _, exists := dst[d.SourceID]; exists {
		r.logger.Warn("duplicate source_id, keeping first",
			slog.String("source_id", d.SourceID), slog.String("path", path))
		return
	}
	dst[d.SourceID] = d
}

// RegisterBehavior attaches a native SourceBehavior implementation to a
// custom source. Called at wiring time, before any batch runs.
func (r *Registry) RegisterBehavior(sourceID string, behavior SourceBehavior) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.behaviors[sourceID] = behavior
}

// Behavior returns the registered custom behavior for sourceID, if any.
func (r *Registry) Behavior(sourceID string) (SourceBehavior, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.behaviors[sourceID]
	return b, ok
}

// Get returns the descriptor registered under sourceID.
func (r *Registry) Get(sourceID string) (entity.SourceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.sources[sourceID]
	return d, ok
}

// All returns every registered descriptor, sorted by sourceID so callers
// iterating the registry see a deterministic order.
func (r *Registry) All() []entity.SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.SourceDescriptor, 0, len(r.sources))
	for _, d := range r.sources {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// ByCategory returns every descriptor tagged with cat, sorted by sourceID.
func (r *Registry) ByCategory(cat string) []entity.SourceDescriptor {
	var out []entity.SourceDescriptor
	for _, d := range r.All() {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

// BundlesMembershipFor returns the names of every bundle sourceID belongs
// to, delegating to the external bundle store. Returns nil when no bundle
// store was provided.
func (r *Registry) BundlesMembershipFor(sourceID string) []string {
	if r.bundles == nil {
		return nil
	}
	return r.bundles.MembershipFor(sourceID)
}
