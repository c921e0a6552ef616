package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// tomlFile mirrors the KDL layout. Pointer fields distinguish an absent key
// from an explicit zero so partial files overlay the defaults.
type tomlFile struct {
	Project struct {
		Root *string `toml:"root"`
	} `toml:"project"`
	Archive struct {
		Suffixes    []string `toml:"suffixes"`
		ClassSuffix *string  `toml:"class_suffix"`
	} `toml:"archive"`
	Database struct {
		Path             *string `toml:"path"`
		Dir              *string `toml:"dir"`
		FileName         *string `toml:"file_name"`
		CreateMissingDir *bool   `toml:"create_missing_dir"`
		CompressionLevel *int    `toml:"compression_level"`
	} `toml:"database"`
	Git struct {
		Binary    *string `toml:"binary"`
		TimeoutMs *int    `toml:"timeout_ms"`
	} `toml:"git"`
	Performance struct {
		ScanWorkers  *int  `toml:"scan_workers"`
		GCAfterIndex *bool `toml:"gc_after_index"`
	} `toml:"performance"`
	Watch struct {
		Enabled    *bool `toml:"enabled"`
		DebounceMs *int  `toml:"debounce_ms"`
	} `toml:"watch"`
	Exclude []string `toml:"exclude"`
}

// LoadTOML attempts to load configuration from the .arabica.toml file in dir.
// It returns (nil, nil) when the file does not exist.
func LoadTOML(dir string) (*Config, error) {
	tomlPath := filepath.Join(dir, TOMLFileName)

	data, err := os.ReadFile(tomlPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TOMLFileName, err)
	}

	return parseTOML(data)
}

func parseTOML(data []byte) (*Config, error) {
	var f tomlFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg := Default("")
	setString(&cfg.Project.Root, f.Project.Root)

	if len(f.Archive.Suffixes) > 0 {
		cfg.Archive.Suffixes = f.Archive.Suffixes
	}
	setString(&cfg.Archive.ClassSuffix, f.Archive.ClassSuffix)

	setString(&cfg.Database.Path, f.Database.Path)
	setString(&cfg.Database.Dir, f.Database.Dir)
	setString(&cfg.Database.FileName, f.Database.FileName)
	setBool(&cfg.Database.CreateMissingDir, f.Database.CreateMissingDir)
	setInt(&cfg.Database.CompressionLevel, f.Database.CompressionLevel)

	setString(&cfg.Git.Binary, f.Git.Binary)
	setInt(&cfg.Git.TimeoutMs, f.Git.TimeoutMs)

	setInt(&cfg.Performance.ScanWorkers, f.Performance.ScanWorkers)
	setBool(&cfg.Performance.GCAfterIndex, f.Performance.GCAfterIndex)

	setBool(&cfg.Watch.Enabled, f.Watch.Enabled)
	setInt(&cfg.Watch.DebounceMs, f.Watch.DebounceMs)

	if f.Exclude != nil {
		cfg.Exclude = f.Exclude
	}
	return cfg, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
