package config

import (
	"os"
	"path/filepath"
	"slices"
)

// File names looked up in the project directory and the home directory.
const (
	KDLFileName  = ".arabica.kdl"
	TOMLFileName = ".arabica.toml"
)

// Defaults applied when no config file sets a value.
const (
	DefaultArchiveSuffix    = ".jar"
	DefaultClassSuffix      = ".class"
	DefaultDatabaseDir      = ".git"
	DefaultDatabaseFileName = "arabica.db"
	DefaultGitBinary        = "git"
	DefaultGitTimeoutMs     = 5000
	DefaultWatchDebounceMs  = 300
	DefaultSuggestLimit     = 10
	// DefaultCompressionLevel matches gzip.DefaultCompression
	DefaultCompressionLevel = -1
)

type Config struct {
	Version     int
	Project     Project
	Archive     Archive
	Database    Database
	Git         Git
	Performance Performance
	Watch       Watch
	Exclude     []string // doublestar globs relative to the project root
}

type Project struct {
	Root string
}

type Archive struct {
	Suffixes    []string // file name suffixes treated as archives (".jar")
	ClassSuffix string   // entry name suffix treated as a class (".class")
}

type Database struct {
	Path             string // explicit state file path, skips repository lookup
	Dir              string // directory under the repository root (".git")
	FileName         string // state file name ("arabica.db")
	CreateMissingDir bool   // create Dir when resolution fell back outside a repository
	CompressionLevel int    // gzip level, -1 for default
}

type Git struct {
	Binary    string
	TimeoutMs int
}

type Performance struct {
	ScanWorkers  int  // archives read concurrently; results are still merged in order
	GCAfterIndex bool // force a collection after each index request
}

type Watch struct {
	Enabled    bool
	DebounceMs int
}

// Default returns the built-in configuration rooted at root.
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Archive: Archive{
			Suffixes:    []string{DefaultArchiveSuffix},
			ClassSuffix: DefaultClassSuffix,
		},
		Database: Database{
			Dir:              DefaultDatabaseDir,
			FileName:         DefaultDatabaseFileName,
			CreateMissingDir: true,
			CompressionLevel: DefaultCompressionLevel,
		},
		Git: Git{
			Binary:    DefaultGitBinary,
			TimeoutMs: DefaultGitTimeoutMs,
		},
		Performance: Performance{
			ScanWorkers:  1,
			GCAfterIndex: true,
		},
		Watch: Watch{
			Enabled:    false,
			DebounceMs: DefaultWatchDebounceMs,
		},
		Exclude: []string{},
	}
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot loads the global config from the home directory, then the
// project config from rootDir (or the directory of path), and merges them.
// Project settings win; exclusions from both are kept. Without any file the
// defaults are returned.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	switch {
	case rootDir != "":
		searchDir = rootDir
	case path != "" && filepath.Base(path) != path:
		searchDir = filepath.Dir(path)
	}

	absDir, err := filepath.Abs(searchDir)
	if err != nil {
		absDir = searchDir
	}

	// Step 1: global base config from ~/.arabica.kdl or ~/.arabica.toml
	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != absDir {
		if globalCfg, err := loadFrom(homeDir, absDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	// Step 2: project config
	projectConfig, err := loadFrom(absDir, absDir)
	if err != nil {
		return nil, err
	}

	// Step 3: merge
	var cfg *Config
	switch {
	case baseConfig != nil && projectConfig != nil:
		cfg = mergeConfigs(baseConfig, projectConfig)
	case projectConfig != nil:
		cfg = projectConfig
	case baseConfig != nil:
		cfg = baseConfig
		cfg.Project.Root = absDir
	default:
		cfg = Default(absDir)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFrom reads the KDL file in dir, falling back to the TOML file. It
// returns (nil, nil) when neither exists. Relative project roots resolve
// against projectRoot.
func loadFrom(dir, projectRoot string) (*Config, error) {
	cfg, err := LoadKDL(dir)
	if err != nil || cfg != nil {
		return resolveRoot(cfg, projectRoot), err
	}
	cfg, err = LoadTOML(dir)
	return resolveRoot(cfg, projectRoot), err
}

func resolveRoot(cfg *Config, projectRoot string) *Config {
	if cfg == nil {
		return nil
	}
	switch {
	case cfg.Project.Root == "":
		cfg.Project.Root = projectRoot
	case !filepath.IsAbs(cfg.Project.Root):
		cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
	}
	return cfg
}

// mergeConfigs merges a base config with a project config.
// Project config takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(slices.Clone(base.Exclude), project.Exclude...))
	}

	return &merged
}

// DeduplicatePatterns removes repeated patterns, keeping first occurrences.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
