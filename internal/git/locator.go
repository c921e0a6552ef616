// Package git locates the repository that owns the working directory and
// derives the state file path from it.
package git

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/standardbeagle/arabica/internal/debug"
	arerrors "github.com/standardbeagle/arabica/internal/errors"
)

// Options controls how a Locator queries git and names the state file.
type Options struct {
	Binary      string        // git executable, "git" when empty
	Timeout     time.Duration // zero disables the timeout
	DatabaseDir string        // directory under the top level, ".git" when empty
	FileName    string        // "arabica.db" when empty
	Runner      Runner        // ExecRunner when nil
}

// Resolution is where the state file lives.
type Resolution struct {
	Path     string // absolute state file path
	Root     string // repository top level, "" when Fallback
	Fallback bool   // true when the repository could not be determined
	Err      error  // why resolution fell back
}

// Locator resolves the state file for a working directory.
type Locator struct {
	workDir string
	opts    Options
}

// NewLocator creates a locator for workDir.
func NewLocator(workDir string, opts Options) *Locator {
	if opts.Binary == "" {
		opts.Binary = "git"
	}
	if opts.DatabaseDir == "" {
		opts.DatabaseDir = ".git"
	}
	if opts.FileName == "" {
		opts.FileName = "arabica.db"
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}
	return &Locator{workDir: workDir, opts: opts}
}

// Resolve runs `git rev-parse --show-toplevel` and places the state file
// under the reported top level. Any failure falls back to the working
// directory and is recorded in Resolution.Err rather than returned.
func (l *Locator) Resolve(ctx context.Context) Resolution {
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	result := l.opts.Runner.Run(ctx, l.workDir, l.opts.Binary, "rev-parse", "--show-toplevel")
	top := strings.TrimSpace(result.FirstLine())

	if result.Success() && top != "" {
		top = filepath.Clean(top)
		debug.LogPersist("repository top level %s\n", top)
		return Resolution{
			Path: filepath.Join(top, l.opts.DatabaseDir, l.opts.FileName),
			Root: top,
		}
	}

	cause := result.Err
	if cause == nil {
		cause = errors.New("empty output")
	}
	resErr := arerrors.NewResolveError(result.Args, result.ExitCode, cause)
	debug.LogPersist("falling back to %s: %v\n", l.workDir, resErr)

	return Resolution{
		Path:     filepath.Join(l.workDir, l.opts.DatabaseDir, l.opts.FileName),
		Fallback: true,
		Err:      resErr,
	}
}

// WorkDir returns the absolute working directory.
func (l *Locator) WorkDir() string {
	return l.workDir
}
