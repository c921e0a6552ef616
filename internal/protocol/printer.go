package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/standardbeagle/arabica/internal/debug"
	arerrors "github.com/standardbeagle/arabica/internal/errors"
)

// Printer writes protocol output lines and flushes after each one so a
// client reading the pipe sees progress immediately. It implements
// indexing.Progress.
type Printer struct {
	w   *bufio.Writer
	err error // first write error, kept for diagnostics only
}

// NewPrinter creates a printer on w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: bufio.NewWriter(w)}
}

func (p *Printer) line(format string, args ...any) {
	if _, err := fmt.Fprintf(p.w, format+"\n", args...); err != nil {
		p.fail(err)
		return
	}
	if err := p.w.Flush(); err != nil {
		p.fail(err)
	}
}

func (p *Printer) fail(err error) {
	if p.err == nil {
		p.err = err
		debug.LogProtocol("output failed: %v\n", err)
	}
}

// Err returns the first write error.
func (p *Printer) Err() error {
	return p.err
}

// Begin prints the number of archives about to be indexed.
func (p *Printer) Begin(total int) {
	p.line("%d", total)
}

// Archive prints one progress line.
func (p *Printer) Archive(done, total int, path string, err error) {
	if err != nil {
		p.line("[%d/%d] index %s: %s", done, total, path, err.Error())
		return
	}
	p.line("[%d/%d] index %s", done, total, path)
}

// Names prints a select result: the names space-joined, or an empty line.
func (p *Printer) Names(names []string) {
	p.line("%s", strings.Join(names, " "))
}

// IndexError reports a walk failure that aborted an index request.
func (p *Printer) IndexError(root string, err error) {
	p.line("error indexing %s: %s", root, message(err))
}

// WriteError reports a failed save.
func (p *Printer) WriteError(path string, err error) {
	p.line("error writing %s: %s", path, message(err))
}

// ReadError reports a failed load.
func (p *Printer) ReadError(path string, err error) {
	p.line("error reading %s: %s", path, message(err))
}

// message strips the operation and path a PersistError adds, since the
// output line already names the file.
func message(err error) string {
	var persistErr *arerrors.PersistError
	if errors.As(err, &persistErr) && persistErr.Underlying != nil {
		return persistErr.Underlying.Error()
	}
	return err.Error()
}
