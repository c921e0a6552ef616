// Package testhelpers provides shared utilities for testing arabica
package testhelpers

import (
	"archive/zip"
	"os"
	"path/filepath"
)

// WriteJar creates a zip archive at path whose entries carry the given
// names. Entries ending in "/" become directory entries; every other entry
// gets a small placeholder body. Parent directories are created as needed.
func WriteJar(path string, entries ...string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(f)
	for _, name := range entries {
		w, err := zw.Create(name)
		if err != nil {
			f.Close()
			return err
		}
		if name[len(name)-1] != '/' {
			if _, err := w.Write([]byte{0xCA, 0xFE, 0xBA, 0xBE}); err != nil {
				f.Close()
				return err
			}
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
