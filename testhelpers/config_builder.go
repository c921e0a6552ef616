package testhelpers

import (
	"path/filepath"

	"github.com/standardbeagle/arabica/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configs with safe defaults
// Usage:
//
//	cfg := testhelpers.NewTestConfigBuilder(projectPath).
//		WithExclusions("**/fixtures/**").
//		WithWorkers(4).
//		Build()
type TestConfigBuilder struct {
	cfg *config.Config
}

// NewTestConfigBuilder creates a config rooted at projectRoot whose state file
// lives in projectRoot/.git/arabica.db, and which never runs git.
func NewTestConfigBuilder(projectRoot string) *TestConfigBuilder {
	cfg := config.Default(projectRoot)
	cfg.Database.Path = filepath.Join(projectRoot, config.DefaultDatabaseDir, config.DefaultDatabaseFileName)
	cfg.Performance.GCAfterIndex = false
	cfg.Watch.DebounceMs = 20
	return &TestConfigBuilder{cfg: cfg}
}

// WithExclusions adds additional exclusion patterns
func (b *TestConfigBuilder) WithExclusions(patterns ...string) *TestConfigBuilder {
	b.cfg.Exclude = append(b.cfg.Exclude, patterns...)
	return b
}

// WithArchiveSuffixes replaces the archive suffixes
func (b *TestConfigBuilder) WithArchiveSuffixes(suffixes ...string) *TestConfigBuilder {
	b.cfg.Archive.Suffixes = suffixes
	return b
}

// WithWorkers sets the number of archives read concurrently
func (b *TestConfigBuilder) WithWorkers(n int) *TestConfigBuilder {
	b.cfg.Performance.ScanWorkers = n
	return b
}

// WithDatabasePath overrides the state file location
func (b *TestConfigBuilder) WithDatabasePath(path string) *TestConfigBuilder {
	b.cfg.Database.Path = path
	return b
}

// WithWatch enables watch mode with the given debounce
func (b *TestConfigBuilder) WithWatch(debounceMs int) *TestConfigBuilder {
	b.cfg.Watch.Enabled = true
	b.cfg.Watch.DebounceMs = debounceMs
	return b
}

// Build returns the constructed config
func (b *TestConfigBuilder) Build() *config.Config {
	return b.cfg
}
