package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	arerrors "github.com/standardbeagle/arabica/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
// Returns an error if validation fails
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return arerrors.NewConfigError("project", "", err)
	}

	if err := v.validateArchiveConfig(&cfg.Archive); err != nil {
		return arerrors.NewConfigError("archive", "", err)
	}

	if err := v.validateDatabaseConfig(&cfg.Database); err != nil {
		return arerrors.NewConfigError("database", "", err)
	}

	if err := v.validateGitConfig(&cfg.Git); err != nil {
		return arerrors.NewConfigError("git", "", err)
	}

	if err := v.validatePerformanceConfig(&cfg.Performance); err != nil {
		return arerrors.NewConfigError("performance", "", err)
	}

	if cfg.Watch.DebounceMs < 0 {
		return arerrors.NewConfigError("watch", "debounce_ms",
			fmt.Errorf("debounce_ms cannot be negative, got %d", cfg.Watch.DebounceMs))
	}

	for _, pattern := range cfg.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return arerrors.NewConfigError("exclude", pattern, fmt.Errorf("invalid glob pattern %q", pattern))
		}
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateArchiveConfig(archive *Archive) error {
	for _, s := range archive.Suffixes {
		if s == "" {
			return errors.New("archive suffixes cannot contain an empty suffix")
		}
		if strings.ContainsRune(s, '/') {
			return fmt.Errorf("archive suffix %q cannot contain a path separator", s)
		}
	}
	if strings.ContainsRune(archive.ClassSuffix, '/') {
		return fmt.Errorf("class suffix %q cannot contain a path separator", archive.ClassSuffix)
	}
	return nil
}

func (v *Validator) validateDatabaseConfig(db *Database) error {
	if db.CompressionLevel < -1 || db.CompressionLevel > 9 {
		return fmt.Errorf("compression_level must be between -1 and 9, got %d", db.CompressionLevel)
	}
	if strings.ContainsRune(db.FileName, '/') {
		return fmt.Errorf("file_name %q cannot contain a path separator", db.FileName)
	}
	return nil
}

func (v *Validator) validateGitConfig(git *Git) error {
	if git.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms cannot be negative, got %d", git.TimeoutMs)
	}
	return nil
}

func (v *Validator) validatePerformanceConfig(perf *Performance) error {
	// ScanWorkers: 0 means auto-detect (will be set by smart defaults)
	if perf.ScanWorkers < 0 {
		return fmt.Errorf("scan_workers cannot be negative, got %d", perf.ScanWorkers)
	}
	return nil
}

// setSmartDefaults fills in values left empty by a partial config file.
func (v *Validator) setSmartDefaults(cfg *Config) {
	// Leave one core for the protocol loop, minimum of 1
	if cfg.Performance.ScanWorkers == 0 {
		cfg.Performance.ScanWorkers = max(1, runtime.NumCPU()-1)
	}

	if len(cfg.Archive.Suffixes) == 0 {
		cfg.Archive.Suffixes = []string{DefaultArchiveSuffix}
	}
	if cfg.Archive.ClassSuffix == "" {
		cfg.Archive.ClassSuffix = DefaultClassSuffix
	}

	if cfg.Database.Dir == "" {
		cfg.Database.Dir = DefaultDatabaseDir
	}
	if cfg.Database.FileName == "" {
		cfg.Database.FileName = DefaultDatabaseFileName
	}

	if cfg.Git.Binary == "" {
		cfg.Git.Binary = DefaultGitBinary
	}
	if cfg.Git.TimeoutMs == 0 {
		cfg.Git.TimeoutMs = DefaultGitTimeoutMs
	}

	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = DefaultWatchDebounceMs
	}

	if cfg.Exclude == nil {
		cfg.Exclude = []string{}
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
