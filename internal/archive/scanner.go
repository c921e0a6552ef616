// Package archive extracts fully-qualified class names from jar archives.
//
// Matching is purely name based: any zip entry ending in the class suffix
// counts as a class, and the archive is never inspected beyond its central
// directory.
package archive

import (
	"archive/zip"
	"strings"

	"github.com/standardbeagle/arabica/internal/classindex"
	"github.com/standardbeagle/arabica/internal/debug"
	arerrors "github.com/standardbeagle/arabica/internal/errors"
)

// DefaultClassSuffix marks compiled class entries.
const DefaultClassSuffix = ".class"

// Scanner reads class names out of archives.
type Scanner struct {
	classSuffix string
}

// NewScanner creates a scanner for entries ending in classSuffix. An empty
// suffix selects DefaultClassSuffix.
func NewScanner(classSuffix string) *Scanner {
	if classSuffix == "" {
		classSuffix = DefaultClassSuffix
	}
	return &Scanner{classSuffix: classSuffix}
}

// ClassName converts an entry name such as "a/b/C.class" to "a.b.C". ok is
// false for entries that are not classes, and for an entry named exactly
// ".class", whose empty name no select request could ever match.
func ClassName(entryName, classSuffix string) (string, bool) {
	if !strings.HasSuffix(entryName, classSuffix) || strings.HasSuffix(entryName, "/") {
		return "", false
	}
	name := strings.TrimSuffix(entryName, classSuffix)
	if name == "" {
		return "", false
	}
	return strings.ReplaceAll(name, "/", "."), true
}

// Scan returns the fully-qualified names of every class entry in the
// archive at path, in entry order. Failures are *errors.ArchiveError.
func (s *Scanner) Scan(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, arerrors.NewArchiveError("open archive", path, err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if name, ok := ClassName(f.Name, s.classSuffix); ok {
			names = append(names, name)
		}
	}

	debug.LogIndexing("%s: %d classes in %d entries\n", path, len(names), len(r.File))
	return names, nil
}

// ScanInto scans the archive and inserts its classes into idx, returning the
// number of names that were not already indexed. idx is left untouched when
// the archive cannot be read.
func (s *Scanner) ScanInto(path string, idx *classindex.Index) (int, error) {
	names, err := s.Scan(path)
	if err != nil {
		return 0, err
	}
	return idx.AddAll(names), nil
}
