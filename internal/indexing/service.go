// Package indexing owns the class index for one session: it resolves the
// state file, loads it, merges archives into it and saves it back.
//
// A Service is not safe for concurrent use. The protocol loop calls it from
// a single goroutine and the MCP server serializes calls itself.
package indexing

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"runtime"
	rtdebug "runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/arabica/internal/archive"
	"github.com/standardbeagle/arabica/internal/classindex"
	"github.com/standardbeagle/arabica/internal/config"
	"github.com/standardbeagle/arabica/internal/debug"
	"github.com/standardbeagle/arabica/internal/discovery"
	arerrors "github.com/standardbeagle/arabica/internal/errors"
	"github.com/standardbeagle/arabica/internal/git"
	"github.com/standardbeagle/arabica/internal/persist"
)

// Progress receives the outcome of an index request as it happens.
// Begin is called once with the number of archives, then Archive once per
// archive in input order with done counting from 1.
type Progress interface {
	Begin(total int)
	Archive(done, total int, path string, err error)
}

// MergeResult summarizes one merge.
type MergeResult struct {
	Total    int           `json:"total"`
	Indexed  int           `json:"indexed"`
	Failed   int           `json:"failed"`
	Added    int           `json:"added"`
	Duration time.Duration `json:"duration_ns"`

	// Err collects the per-archive *errors.ArchiveError values in input
	// order as an *errors.MultiError. It is nil when every archive was read.
	Err error `json:"-"`
}

// Service is the session state: configuration, index and state file.
type Service struct {
	cfg        *config.Config
	resolution git.Resolution
	store      *persist.Store
	scanner    *archive.Scanner
	walker     *discovery.Walker
	index      *classindex.Index
}

// NewService creates a service with an empty index whose state file lives
// at res.Path. Call Load to read the persisted index.
func NewService(cfg *config.Config, res git.Resolution) *Service {
	createDir := !res.Fallback || cfg.Database.CreateMissingDir
	return &Service{
		cfg:        cfg,
		resolution: res,
		store: persist.NewStore(res.Path, persist.Options{
			CompressionLevel: cfg.Database.CompressionLevel,
			CreateDir:        createDir,
		}),
		scanner: archive.NewScanner(cfg.Archive.ClassSuffix),
		walker:  discovery.NewWalker(cfg.Archive.Suffixes, cfg.Exclude),
		index:   classindex.New(),
	}
}

// Resolve determines where the state file lives. An explicit
// database.path wins; otherwise git is asked for the repository top level
// of workDir.
func Resolve(ctx context.Context, cfg *config.Config, workDir string) git.Resolution {
	if cfg.Database.Path != "" {
		path := cfg.Database.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		return git.Resolution{Path: filepath.Clean(path)}
	}

	locator := git.NewLocator(workDir, git.Options{
		Binary:      cfg.Git.Binary,
		Timeout:     time.Duration(cfg.Git.TimeoutMs) * time.Millisecond,
		DatabaseDir: cfg.Database.Dir,
		FileName:    cfg.Database.FileName,
	})
	return locator.Resolve(ctx)
}

// Open resolves the state file for cfg.Project.Root and builds a service.
// Resolution problems are logged, never returned.
func Open(ctx context.Context, cfg *config.Config) *Service {
	res := Resolve(ctx, cfg, cfg.Project.Root)
	if res.Err != nil {
		log.Printf("Warning: could not locate repository, using %s: %v", res.Path, res.Err)
	}
	return NewService(cfg, res)
}

// Load replaces the in-memory index with the persisted one. On failure the
// index is empty and the *errors.PersistError is returned.
func (s *Service) Load() error {
	idx, err := s.store.Load()
	s.index = idx
	return err
}

// Save persists the index.
func (s *Service) Save() error {
	if s.resolution.Fallback {
		dir := filepath.Dir(s.store.Path())
		if _, err := os.Stat(dir); os.IsNotExist(err) && s.cfg.Database.CreateMissingDir {
			log.Printf("Warning: not inside a repository, creating %s", dir)
		}
	}
	return s.store.Save(s.index)
}

// Discover returns the archives under the project root.
func (s *Service) Discover(ctx context.Context) ([]string, error) {
	return s.walker.FindArchives(ctx, s.cfg.Project.Root)
}

// Index runs one full index request: discovered archives followed by the
// explicit ones, merged in that order, then saved. A walk failure aborts
// before anything is merged. A save failure is returned after the merge;
// the in-memory index keeps the merged names either way.
func (s *Service) Index(ctx context.Context, explicit []string, progress Progress) (MergeResult, error) {
	discovered, err := s.Discover(ctx)
	if err != nil {
		return MergeResult{}, err
	}

	paths := make([]string, 0, len(discovered)+len(explicit))
	paths = append(paths, discovered...)
	paths = append(paths, explicit...)

	result := s.Merge(ctx, paths, progress)
	saveErr := s.Save()

	if s.cfg.Performance.GCAfterIndex {
		runtime.GC()
		rtdebug.FreeOSMemory()
	}
	return result, saveErr
}

// Merge scans every path and adds its classes to the index. Per-archive
// failures go to progress and do not stop the rest. With more than one
// scan worker archives are read concurrently, but results are merged and
// reported strictly in input order on the calling goroutine.
func (s *Service) Merge(ctx context.Context, paths []string, progress Progress) MergeResult {
	start := time.Now()
	result := MergeResult{Total: len(paths)}
	if progress != nil {
		progress.Begin(len(paths))
	}

	var failures []error
	record := func(i int, names []string, err error) {
		if err == nil {
			result.Indexed++
			result.Added += s.index.AddAll(names)
		} else {
			result.Failed++
			failures = append(failures, err)
			debug.LogIndexing("skipping %s: %v\n", paths[i], err)
		}
		if progress != nil {
			progress.Archive(i+1, len(paths), paths[i], err)
		}
	}

	workers := s.cfg.Performance.ScanWorkers
	if workers <= 1 || len(paths) <= 1 {
		for i, p := range paths {
			names, err := s.scanner.Scan(p)
			record(i, names, err)
		}
	} else {
		s.mergeConcurrent(ctx, paths, workers, record)
	}

	result.Err = arerrors.NewMultiError(failures).ErrorOrNil()
	result.Duration = time.Since(start)
	debug.LogIndexing("merged %d archives (%d failed, %d new classes) in %v\n",
		result.Total, result.Failed, result.Added, result.Duration)
	return result
}

type scanResult struct {
	names []string
	err   error
	ready chan struct{}
}

func (s *Service) mergeConcurrent(ctx context.Context, paths []string, workers int, record func(int, []string, error)) {
	results := make([]scanResult, len(paths))
	for i := range results {
		results[i].ready = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// g.Go blocks once the limit is reached, so submission runs on its own
	// goroutine while this one consumes results in order.
	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		for i, p := range paths {
			r := &results[i]
			g.Go(func() error {
				defer close(r.ready)
				if err := gctx.Err(); err != nil {
					r.err = arerrors.NewArchiveError("scan archive", p, err)
					return nil
				}
				r.names, r.err = s.scanner.Scan(p)
				return nil
			})
		}
	}()

	for i := range results {
		<-results[i].ready
		record(i, results[i].names, results[i].err)
		results[i].names = nil
	}

	<-submitted
	_ = g.Wait()
}

// Select returns the fully-qualified names for an exact short name.
func (s *Service) Select(shortName string) []string {
	return s.index.Lookup(shortName)
}

// Suggest returns short names similar to name.
func (s *Service) Suggest(name string, limit int) []classindex.Suggestion {
	return s.index.Suggest(name, limit)
}

// Classes returns the live index.
func (s *Service) Classes() *classindex.Index {
	return s.index
}

// Config returns the session configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Resolution returns where the state file lives and how it was found.
func (s *Service) Resolution() git.Resolution {
	return s.resolution
}

// DatabasePath returns the state file path.
func (s *Service) DatabasePath() string {
	return s.store.Path()
}

// Store returns the state file store.
func (s *Service) Store() *persist.Store {
	return s.store
}
