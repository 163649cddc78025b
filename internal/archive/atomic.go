// Package archive provides the atomic on-disk write primitive every
// article-writing collaborator (the default ContentFetcher adapter,
// specialized placeholder handlers, the Update Controller's footer
// rewrite) relies on: write to a temp path, then rename. A cancelled
// fetch task must leave either a complete article.md or none at all
//.
package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/capcat/capcat/internal/domain/entity"
)

// WriteFileAtomic writes data to path by first writing a sibling temp file
// in the same directory, then renaming it into place. Rename is atomic on
// POSIX filesystems, so a reader never observes a partially written file,
// and a cancellation between the write and the rename leaves the
// destination untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", entity.ErrFileSystemError, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %v", entity.ErrFileSystemError, dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write temp file: %v", entity.ErrFileSystemError, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", entity.ErrFileSystemError, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: chmod temp file: %v", entity.ErrFileSystemError, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename into place: %v", entity.ErrFileSystemError, err)
	}
	return nil
}

// EnsureDir creates dir (and parents) if it doesn't already exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", entity.ErrFileSystemError, dir, err)
	}
	return nil
}
