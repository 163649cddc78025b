package registry

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/capcat/capcat/internal/domain/entity"
)

// Bundle is a named set of source IDs with a per-bundle default article
// count.
type Bundle struct {
	Name         string
	Description  string   `yaml:"description"`
	DefaultCount int      `yaml:"default_count"`
	Sources      []string `yaml:"sources"`
}

// BundleStore is a read-only view over the bundle document. The core only
// ever resolves a bundle name to its source list; bundle CRUD stays with
// the CLI collaborator.
type BundleStore struct {
	bundles map[string]Bundle
}

type bundleFile struct {
	Bundles map[string]Bundle `yaml:"bundles"`
}

// LoadBundleStore reads the bundle document at path. A missing file is a
// valid empty store, matching the fail-open posture of the config loader:
// a user without bundles can still run individual sources.
func LoadBundleStore(path string) (*BundleStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &BundleStore{bundles: map[string]Bundle{}}, nil
		}
		return nil, fmt.Errorf("%w: read bundle store %s: %v", entity.ErrFileSystemError, path, err)
	}

	var f bundleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse bundle store %s: %w", path, err)
	}

	store := &BundleStore{bundles: make(map[string]Bundle, len(f.Bundles))}
	for name, b := range f.Bundles {
		b.Name = name
		store.bundles[name] = b
	}
	return store, nil
}

// Resolve returns the bundle registered under name.
func (s *BundleStore) Resolve(name string) (Bundle, bool) {
	b, ok := s.bundles[name]
	return b, ok
}

// Names returns every bundle name, sorted.
func (s *BundleStore) Names() []string {
	out := make([]string, 0, len(s.bundles))
	for name := range s.bundles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MembershipFor returns the names of every bundle containing sourceID,
// sorted. Implements the registry's BundleMembership interface.
func (s *BundleStore) MembershipFor(sourceID string) []string {
	var out []string
	for name, b := range s.bundles {
		for _, id := range b.Sources {
			if id == sourceID {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
