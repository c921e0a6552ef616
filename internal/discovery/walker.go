// Package discovery finds archives beneath a project root and watches the
// tree for new or rewritten ones.
package discovery

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/arabica/internal/debug"
	arerrors "github.com/standardbeagle/arabica/internal/errors"
)

// DefaultArchiveSuffix is used when a walker is built without suffixes.
const DefaultArchiveSuffix = ".jar"

// Walker collects archive files under a root directory.
type Walker struct {
	suffixes []string
	exclude  []string // doublestar patterns over root-relative slash paths
}

// NewWalker creates a walker matching files that end in one of suffixes and
// skipping paths matched by an exclude pattern.
func NewWalker(suffixes, exclude []string) *Walker {
	if len(suffixes) == 0 {
		suffixes = []string{DefaultArchiveSuffix}
	}
	return &Walker{
		suffixes: append([]string(nil), suffixes...),
		exclude:  append([]string(nil), exclude...),
	}
}

// IsHidden reports whether a file or directory name is hidden.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// IsArchive reports whether name ends in one of the archive suffixes.
func (w *Walker) IsArchive(name string) bool {
	for _, s := range w.suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Excluded reports whether path, which lies under root, matches an exclude
// pattern. Directories are also tried with a trailing slash so "build/" style
// patterns prune them.
func (w *Walker) Excluded(root, path string, isDir bool) bool {
	if len(w.exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range w.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if isDir {
			if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
				return true
			}
		}
	}
	return false
}

// FindArchives walks root and returns every non-hidden archive file in walk
// order. Hidden directories are not descended; the root itself is never
// treated as hidden. Any I/O error aborts the walk with *errors.WalkError.
func (w *Walker) FindArchives(ctx context.Context, root string) ([]string, error) {
	var archives []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return walkErr
		}

		if path == root {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if IsHidden(name) || w.Excluded(root, path, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if IsHidden(name) || !w.IsArchive(name) || w.Excluded(root, path, false) {
			return nil
		}
		if !isRegular(path, d) {
			return nil
		}

		archives = append(archives, path)
		return nil
	})
	if err != nil {
		failedAt := root
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			failedAt = pathErr.Path
		}
		return nil, arerrors.NewWalkError(root, failedAt, err)
	}

	debug.LogIndexing("found %d archives under %s\n", len(archives), root)
	return archives, nil
}

// isRegular accepts regular files and symlinks that resolve to one.
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
