package indexing

import (
	"time"

	"github.com/standardbeagle/arabica/internal/version"
)

// Status describes the session for the status command and the MCP
// index_status tool.
type Status struct {
	Version        string    `json:"version"`
	BuildID        string    `json:"build_id"`
	DatabasePath   string    `json:"database_path"`
	RepositoryRoot string    `json:"repository_root,omitempty"`
	Fallback       bool      `json:"fallback"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	ProjectRoot    string    `json:"project_root"`
	ShortNames     int       `json:"short_names"`
	Classes        int       `json:"classes"`
	FileExists     bool      `json:"file_exists"`
	FileSize       int64     `json:"file_size"`
	ModTime        time.Time `json:"mod_time,omitempty"`
}

// Status reports the index counts and the state file on disk.
func (s *Service) Status() Status {
	st := Status{
		Version:        version.Version,
		BuildID:        version.BuildID(),
		DatabasePath:   s.store.Path(),
		RepositoryRoot: s.resolution.Root,
		Fallback:       s.resolution.Fallback,
		ProjectRoot:    s.cfg.Project.Root,
		ShortNames:     s.index.Len(),
		Classes:        s.index.Count(),
	}
	if s.resolution.Err != nil {
		st.FallbackReason = s.resolution.Err.Error()
	}
	if info, err := s.store.Stat(); err == nil {
		st.FileExists = true
		st.FileSize = info.Size()
		st.ModTime = info.ModTime()
	}
	return st
}
