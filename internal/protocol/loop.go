// Package protocol implements the line-oriented command protocol spoken on
// standard input and output.
//
// Each input line is trimmed and split on whitespace. "index <path>..."
// indexes the discovered archives plus the given ones, "select <name>"
// prints the matching names, and "exit" or end of input stops the loop.
// Empty lines, unknown commands and commands missing their argument are
// ignored.
package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/standardbeagle/arabica/internal/debug"
	arerrors "github.com/standardbeagle/arabica/internal/errors"
	"github.com/standardbeagle/arabica/internal/indexing"
)

// Protocol keywords
const (
	CmdIndex  = "index"
	CmdSelect = "select"
	CmdExit   = "exit"
)

// maxLineSize bounds a single input line.
const maxLineSize = 1 << 20

// Loop runs the protocol for one session.
type Loop struct {
	svc     *indexing.Service
	in      io.Reader
	out     *Printer
	batches <-chan []string
}

// NewLoop creates a loop reading commands from in and writing to out.
func NewLoop(svc *indexing.Service, in io.Reader, out io.Writer) *Loop {
	return &Loop{svc: svc, in: in, out: NewPrinter(out)}
}

// WatchBatches makes the loop merge archive batches from ch between
// commands. Batches produce no output.
func (l *Loop) WatchBatches(ch <-chan []string) {
	l.batches = ch
}

type readResult struct {
	line string
	err  error
}

// Run loads the persisted index and processes commands until exit, end of
// input or ctx cancellation. Only a failure to read input is returned.
func (l *Loop) Run(ctx context.Context) error {
	l.load()

	done := make(chan struct{})
	defer close(done)
	lines := l.readLines(done)

	batches := l.batches
	for {
		select {
		case <-ctx.Done():
			debug.LogProtocol("context done: %v\n", ctx.Err())
			return nil

		case r, ok := <-lines:
			if !ok {
				debug.LogProtocol("end of input\n")
				return nil
			}
			if r.err != nil {
				return fmt.Errorf("reading input: %w", r.err)
			}
			if !l.handle(ctx, r.line) {
				return nil
			}

		case batch, ok := <-batches:
			if !ok {
				batches = nil
				continue
			}
			l.mergeBatch(ctx, batch)
		}
	}
}

// readLines feeds input lines to the loop until input ends, fails, or done
// is closed.
func (l *Loop) readLines(done <-chan struct{}) <-chan readResult {
	lines := make(chan readResult)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(l.in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- readResult{line: scanner.Text()}:
			case <-done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case lines <- readResult{err: err}:
			case <-done:
			}
		}
	}()
	return lines
}

// handle executes one input line and reports whether the loop continues.
func (l *Loop) handle(ctx context.Context, raw string) bool {
	line := strings.TrimSpace(raw)
	if line == CmdExit {
		return false
	}
	if line == "" {
		return true
	}

	args := strings.Fields(line)
	debug.LogProtocol("command %q with %d args\n", args[0], len(args)-1)

	switch args[0] {
	case CmdIndex:
		if len(args) < 2 {
			return true
		}
		l.index(ctx, args[1:])
	case CmdSelect:
		if len(args) < 2 {
			return true
		}
		l.out.Names(l.svc.Select(args[1]))
	}
	return true
}

func (l *Loop) index(ctx context.Context, explicit []string) {
	_ = Index(ctx, l.svc, l.out, explicit)
}

func (l *Loop) load() {
	_ = Load(l.svc, l.out)
}

// Index runs one index request on svc with progress on p. A walk failure
// is reported as an indexing error and a save failure as a write error;
// either is also returned.
func Index(ctx context.Context, svc *indexing.Service, p *Printer, explicit []string) error {
	_, err := svc.Index(ctx, explicit, p)
	if err == nil {
		return nil
	}

	var walkErr *arerrors.WalkError
	if errors.As(err, &walkErr) {
		p.IndexError(walkErr.Root, err)
		return err
	}
	p.WriteError(svc.DatabasePath(), err)
	return err
}

// Load reads the persisted index into svc. A missing state file is
// reported as a warning on the standard logger, keeping stdout clean for
// the first session in a repository. Any other failure is reported on p
// and returned. svc holds an empty index after a failure.
func Load(svc *indexing.Service, p *Printer) error {
	err := svc.Load()
	if err == nil {
		return nil
	}

	var persistErr *arerrors.PersistError
	if errors.As(err, &persistErr) && persistErr.IsNotFound() {
		log.Printf("Warning: no state file at %s, starting empty", svc.DatabasePath())
		return nil
	}
	p.ReadError(svc.DatabasePath(), err)
	return err
}

func (l *Loop) mergeBatch(ctx context.Context, batch []string) {
	result := l.svc.Merge(ctx, batch, nil)
	debug.LogWatch("batch of %d archives: %d failed, %d new classes\n",
		result.Total, result.Failed, result.Added)
	if err := l.svc.Save(); err != nil {
		log.Printf("Warning: saving after watch batch failed: %v", err)
	}
}
