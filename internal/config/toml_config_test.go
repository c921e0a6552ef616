package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTOML_FullConfig(t *testing.T) {
	content := `
exclude = ["**/vendor/**"]

[project]
root = "."

[archive]
suffixes = [".jar", ".war"]

[database]
file_name = "index.db"
create_missing_dir = false
compression_level = 0

[performance]
scan_workers = 8

[watch]
enabled = true
`
	cfg, err := parseTOML([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Project.Root)
	assert.Equal(t, []string{".jar", ".war"}, cfg.Archive.Suffixes)
	assert.Equal(t, ".class", cfg.Archive.ClassSuffix)
	assert.Equal(t, "index.db", cfg.Database.FileName)
	assert.Equal(t, ".git", cfg.Database.Dir)
	assert.False(t, cfg.Database.CreateMissingDir)
	assert.Equal(t, 0, cfg.Database.CompressionLevel, "explicit zero must override the default")
	assert.Equal(t, 8, cfg.Performance.ScanWorkers)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, DefaultWatchDebounceMs, cfg.Watch.DebounceMs)
	assert.Equal(t, []string{"**/vendor/**"}, cfg.Exclude)
}

func TestParseTOML_Invalid(t *testing.T) {
	_, err := parseTOML([]byte("[database\nfile_name = 1"))
	assert.Error(t, err)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadTOML(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, TOMLFileName), []byte("[git]\ntimeout_ms = 100\n"), 0644))
	cfg, err = LoadTOML(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 100, cfg.Git.TimeoutMs)
}
