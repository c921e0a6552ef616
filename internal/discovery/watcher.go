package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/arabica/internal/debug"
)

// Watcher reports archives that were created or rewritten under a root.
// Events are debounced and delivered as sorted batches on Batches().
// Removals are not reported.
type Watcher struct {
	watcher  *fsnotify.Watcher
	walker   *Walker
	root     string
	debounce time.Duration
	batches  chan []string
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Watch mode statistics
	statsMu         sync.RWMutex
	eventsProcessed int64
	batchesSent     int64
	errorCount      int64
	lastEventTime   time.Time
}

// WatchStats contains statistics about file watching operations
type WatchStats struct {
	EventsProcessed int64     `json:"events_processed"`
	BatchesSent     int64     `json:"batches_sent"`
	ErrorCount      int64     `json:"error_count"`
	LastEventTime   time.Time `json:"last_event_time,omitempty"`
	IsActive        bool      `json:"is_active"`
}

// NewWatcher creates a watcher for root using walker's archive and exclude
// rules. It does nothing until Start.
func NewWatcher(walker *Walker, root string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		watcher:  fsw,
		walker:   walker,
		root:     root,
		debounce: debounce,
		batches:  make(chan []string),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Batches delivers debounced archive paths. It is closed when the event
// loop started by Start exits.
func (w *Watcher) Batches() <-chan []string {
	return w.batches
}

// Start adds watches for every non-hidden, non-excluded directory and begins
// processing events.
func (w *Watcher) Start() error {
	debug.LogWatch("starting watcher for %s\n", w.root)

	if err := w.addWatches(w.root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", w.root, err)
	}

	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop closes the fsnotify watcher and waits for the event goroutine.
// Pending events that have not been flushed are dropped.
func (w *Watcher) Stop() error {
	var closeErr error
	w.stopOnce.Do(func() {
		w.cancel()
		closeErr = w.watcher.Close()
		w.wg.Wait()
		debug.LogWatch("watcher for %s stopped\n", w.root)
	})
	return closeErr
}

// addWatches recursively adds watches to all relevant directories
func (w *Watcher) addWatches(dir string) error {
	// Track visited directories to prevent infinite loops from symlink cycles
	visitedDirs := make(map[string]bool)

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil // Skip errors below the starting directory
		}
		if !d.IsDir() {
			return nil
		}

		if w.shouldIgnoreDirectory(path) {
			return filepath.SkipDir
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visitedDirs[realPath] {
			return filepath.SkipDir
		}
		visitedDirs[realPath] = true

		if err := w.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) shouldIgnoreDirectory(path string) bool {
	if path == w.root {
		return false
	}
	return IsHidden(filepath.Base(path)) || w.walker.Excluded(w.root, path, true)
}

func (w *Watcher) shouldProcessFile(path string) bool {
	name := filepath.Base(path)
	if IsHidden(name) || !w.walker.IsArchive(name) {
		return false
	}
	return !w.walker.Excluded(w.root, path, false)
}

// processEvents reads fsnotify events and flushes the pending set once no
// event has arrived for the debounce interval.
func (w *Watcher) processEvents() {
	defer w.wg.Done()
	defer close(w.batches)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.handleEvent(event, pending) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.incrementStats(0, 0, 1)
			log.Printf("File watcher error: %v", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			slices.Sort(batch)
			clear(pending)

			debug.LogWatch("flushing %d archives\n", len(batch))
			select {
			case w.batches <- batch:
				w.incrementStats(0, 1, 0)
			case <-w.ctx.Done():
				return
			}
		}
	}
}

// handleEvent records archive paths in pending and reports whether the
// debounce timer should restart.
func (w *Watcher) handleEvent(event fsnotify.Event, pending map[string]struct{}) bool {
	path := event.Name
	debug.LogWatch("received event %v for path %s\n", event.Op, path)

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if info.IsDir() {
		if !event.Has(fsnotify.Create) || w.shouldIgnoreDirectory(path) {
			return false
		}
		if err := w.addWatches(path); err != nil {
			log.Printf("Warning: failed to add watch for new directory %s: %v", path, err)
			return false
		}
		// Archives may have landed before the watch existed.
		found, err := w.walker.FindArchives(w.ctx, path)
		if err != nil {
			debug.LogWatch("scan of new directory %s failed: %v\n", path, err)
			return false
		}
		for _, p := range found {
			if !w.walker.Excluded(w.root, p, false) {
				pending[p] = struct{}{}
			}
		}
		w.incrementStats(1, 0, 0)
		return len(found) > 0
	}

	if !info.Mode().IsRegular() || !w.shouldProcessFile(path) {
		return false
	}

	pending[path] = struct{}{}
	w.incrementStats(1, 0, 0)
	return true
}

// incrementStats updates watch mode statistics
func (w *Watcher) incrementStats(events, batches, errors int64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.eventsProcessed += events
	w.batchesSent += batches
	w.errorCount += errors
	if events > 0 {
		w.lastEventTime = time.Now()
	}
}

// GetStats returns current watch mode statistics
func (w *Watcher) GetStats() WatchStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()

	return WatchStats{
		EventsProcessed: w.eventsProcessed,
		BatchesSent:     w.batchesSent,
		ErrorCount:      w.errorCount,
		LastEventTime:   w.lastEventTime,
		IsActive:        w.ctx.Err() == nil,
	}
}
