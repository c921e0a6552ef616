package config

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arerrors "github.com/standardbeagle/arabica/internal/errors"
)

func TestValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		section string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"empty root", func(c *Config) { c.Project.Root = "" }, "project"},
		{"empty archive suffix", func(c *Config) { c.Archive.Suffixes = []string{".jar", ""} }, "archive"},
		{"archive suffix with slash", func(c *Config) { c.Archive.Suffixes = []string{"lib/.jar"} }, "archive"},
		{"compression too high", func(c *Config) { c.Database.CompressionLevel = 10 }, "database"},
		{"compression too low", func(c *Config) { c.Database.CompressionLevel = -2 }, "database"},
		{"file name with slash", func(c *Config) { c.Database.FileName = "a/b.db" }, "database"},
		{"negative git timeout", func(c *Config) { c.Git.TimeoutMs = -1 }, "git"},
		{"negative workers", func(c *Config) { c.Performance.ScanWorkers = -3 }, "performance"},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMs = -1 }, "watch"},
		{"bad glob", func(c *Config) { c.Exclude = []string{"[unclosed"} }, "exclude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/project")
			tt.mutate(cfg)

			err := NewValidator().ValidateAndSetDefaults(cfg)
			if tt.section == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var cfgErr *arerrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.section, cfgErr.Field)
		})
	}
}

func TestSetSmartDefaults(t *testing.T) {
	cfg := &Config{Project: Project{Root: "/project"}}

	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, max(1, runtime.NumCPU()-1), cfg.Performance.ScanWorkers)
	assert.Equal(t, []string{DefaultArchiveSuffix}, cfg.Archive.Suffixes)
	assert.Equal(t, DefaultClassSuffix, cfg.Archive.ClassSuffix)
	assert.Equal(t, DefaultDatabaseDir, cfg.Database.Dir)
	assert.Equal(t, DefaultDatabaseFileName, cfg.Database.FileName)
	assert.Equal(t, DefaultGitBinary, cfg.Git.Binary)
	assert.Equal(t, DefaultGitTimeoutMs, cfg.Git.TimeoutMs)
	assert.Equal(t, DefaultWatchDebounceMs, cfg.Watch.DebounceMs)
	assert.NotNil(t, cfg.Exclude)
}

func BenchmarkValidateAndSetDefaults(b *testing.B) {
	validator := NewValidator()
	for i := 0; i < b.N; i++ {
		cfg := Default("/project")
		_ = validator.ValidateAndSetDefaults(cfg)
	}
}
