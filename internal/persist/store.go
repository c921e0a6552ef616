package persist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/standardbeagle/arabica/internal/classindex"
	"github.com/standardbeagle/arabica/internal/debug"
	arerrors "github.com/standardbeagle/arabica/internal/errors"
)

// Options controls how a Store writes the state file.
type Options struct {
	CompressionLevel int  // gzip level, -1 for the default
	CreateDir        bool // create the parent directory on save when missing
}

// Store saves and loads the index at a fixed path.
type Store struct {
	path string
	opts Options
}

// NewStore creates a store for path.
func NewStore(path string, opts Options) *Store {
	return &Store{path: path, opts: opts}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Save writes idx to a temporary file next to the target, syncs it and
// renames it into place. The previous file is untouched on failure.
func (s *Store) Save(idx *classindex.Index) error {
	dir := filepath.Dir(s.path)
	if s.opts.CreateDir {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return arerrors.NewPersistError("create directory", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return arerrors.NewPersistError("create", s.path, err)
	}
	tmpPath := tmp.Name()

	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpPath) // Clean up temp file
		return arerrors.NewPersistError(op, s.path, err)
	}

	w := bufio.NewWriter(tmp)
	if err := Encode(w, idx, s.opts.CompressionLevel); err != nil {
		return fail("encode", err)
	}
	if err := w.Flush(); err != nil {
		return fail("write", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return arerrors.NewPersistError("close", s.path, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return arerrors.NewPersistError("rename", s.path, err)
	}

	debug.LogPersist("saved %d classes under %d names to %s\n", idx.Count(), idx.Len(), s.path)
	return nil
}

// Load reads the state file. On any failure it returns an empty index
// together with a *errors.PersistError, so callers can always proceed.
func (s *Store) Load() (*classindex.Index, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return classindex.New(), arerrors.NewPersistError("open", s.path, err)
	}
	defer f.Close()

	idx, err := Decode(bufio.NewReader(f))
	if err != nil {
		return classindex.New(), arerrors.NewPersistError("decode", s.path, err)
	}

	debug.LogPersist("loaded %d classes under %d names from %s\n", idx.Count(), idx.Len(), s.path)
	return idx, nil
}

// Stat describes the state file on disk.
func (s *Store) Stat() (os.FileInfo, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}
	return info, nil
}
