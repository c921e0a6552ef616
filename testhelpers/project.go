package testhelpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestProject lays out a throwaway project tree of jars and plain files
// under t.TempDir().
// Usage:
//
//	p := testhelpers.NewTestProject(t).
//		WithJar("lib/a.jar", "com/x/Foo.class").
//		WithFile("README.md", "hello")
//	root := p.Root
type TestProject struct {
	t    *testing.T
	Root string
}

// NewTestProject creates an empty project directory
func NewTestProject(t *testing.T) *TestProject {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return &TestProject{t: t, Root: root}
}

// Path joins rel onto the project root
func (p *TestProject) Path(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// WithJar writes a jar at rel containing the given entry names
func (p *TestProject) WithJar(rel string, entries ...string) *TestProject {
	p.t.Helper()
	require.NoError(p.t, WriteJar(p.Path(rel), entries...))
	return p
}

// WithFile writes a plain file at rel
func (p *TestProject) WithFile(rel, content string) *TestProject {
	p.t.Helper()
	path := p.Path(rel)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0644))
	return p
}

// WithDir creates an empty directory at rel
func (p *TestProject) WithDir(rel string) *TestProject {
	p.t.Helper()
	require.NoError(p.t, os.MkdirAll(p.Path(rel), 0755))
	return p
}
