// Package mcp exposes the class index as Model Context Protocol tools over
// stdio. Tool calls share one indexing.Service and are serialized.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/arabica/internal/classindex"
	"github.com/standardbeagle/arabica/internal/config"
	"github.com/standardbeagle/arabica/internal/debug"
	"github.com/standardbeagle/arabica/internal/discovery"
	arerrors "github.com/standardbeagle/arabica/internal/errors"
	"github.com/standardbeagle/arabica/internal/indexing"
	"github.com/standardbeagle/arabica/internal/version"
)

// Tool names
const (
	ToolSelectClass   = "select_class"
	ToolIndexArchives = "index_archives"
	ToolSuggestClass  = "suggest_class"
	ToolIndexStatus   = "index_status"
)

// Server serves the index tools.
type Server struct {
	svc    *indexing.Service
	server *mcp.Server

	mu     sync.Mutex // guards svc and loaded
	loaded bool

	watcher *discovery.Watcher
}

// SelectParams are the select_class arguments.
type SelectParams struct {
	Name string `json:"name"`
}

// IndexParams are the index_archives arguments.
type IndexParams struct {
	Paths []string `json:"paths,omitempty"`
}

// SuggestParams are the suggest_class arguments.
type SuggestParams struct {
	Name  string `json:"name"`
	Limit int    `json:"limit,omitempty"`
}

// SelectResponse is the select_class result.
type SelectResponse struct {
	Name    string   `json:"name"`
	Matches []string `json:"matches"`
}

// ArchiveFailure names an archive that could not be read.
type ArchiveFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// IndexResponse is the index_archives result.
type IndexResponse struct {
	Success    bool             `json:"success"`
	Total      int              `json:"total"`
	Indexed    int              `json:"indexed"`
	Failed     int              `json:"failed"`
	Added      int              `json:"added"`
	DurationMs int64            `json:"duration_ms"`
	Failures   []ArchiveFailure `json:"failures,omitempty"`
	SaveError  string           `json:"save_error,omitempty"`
}

// StatusResponse is the index_status result. Watch is present only when
// a watcher is attached.
type StatusResponse struct {
	indexing.Status
	Watch *discovery.WatchStats `json:"watch,omitempty"`
}

// SuggestResponse is the suggest_class result.
type SuggestResponse struct {
	Name        string                  `json:"name"`
	Suggestions []classindex.Suggestion `json:"suggestions"`
}

// NewServer creates a server around svc and registers its tools.
func NewServer(svc *indexing.Service) (*Server, error) {
	if svc == nil {
		return nil, errors.New("indexing service is required")
	}

	s := &Server{svc: svc}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "arabica",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        ToolSelectClass,
		Description: "Look up the fully-qualified Java class names for a short class name, e.g. \"List\" -> java.util.List. Exact and case-sensitive.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {Type: "string", Description: "Short class name; nested classes keep their $ (Map$Entry)"},
			},
			Required: []string{"name"},
		},
	}, s.handleSelect)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolIndexArchives,
		Description: "Index every archive under the project root plus the given archive paths, then save the index.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"paths": {
					Type:        "array",
					Description: "Extra archive paths to index after the discovered ones",
					Items:       &jsonschema.Schema{Type: "string"},
				},
			},
		},
	}, s.handleIndex)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolSuggestClass,
		Description: "Suggest indexed short class names similar to a possibly misspelled name.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name":  {Type: "string", Description: "Short class name to match"},
				"limit": {Type: "integer", Description: fmt.Sprintf("Maximum suggestions (default: %d)", config.DefaultSuggestLimit)},
			},
			Required: []string{"name"},
		},
	}, s.handleSuggest)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolIndexStatus,
		Description: "Report the state file location and index size, plus file watching statistics when watch mode is on.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleStatus)
}

// Watch attaches a started watcher. Run merges its batches between tool
// calls and index_status reports its statistics. Call before Run.
func (s *Server) Watch(w *discovery.Watcher) {
	s.watcher = w
}

// Run loads the persisted index and serves tools on stdio until ctx ends
// or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ensureLoaded()
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if s.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.consumeBatches(ctx, s.watcher.Batches())
		}()
	}

	debug.LogMCP("serving %d tools\n", 4)
	err := s.server.Run(ctx, &mcp.StdioTransport{})
	cancel()
	wg.Wait()
	return err
}

// consumeBatches merges and saves each watcher batch until ch closes or
// ctx ends.
func (s *Server) consumeBatches(ctx context.Context, ch <-chan []string) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-ch:
			if !ok {
				return
			}
			s.mergeBatch(ctx, batch)
		}
	}
}

func (s *Server) mergeBatch(ctx context.Context, batch []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	result := s.svc.Merge(ctx, batch, nil)
	debug.LogMCP("watch batch of %d archives: %d failed, %d new classes\n",
		result.Total, result.Failed, result.Added)
	if err := s.svc.Save(); err != nil {
		log.Printf("Warning: saving after watch batch failed: %v", err)
	}
}

// ensureLoaded reads the state file once. Callers hold s.mu.
func (s *Server) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true

	err := s.svc.Load()
	if err == nil {
		return
	}
	var persistErr *arerrors.PersistError
	if errors.As(err, &persistErr) && persistErr.IsNotFound() {
		log.Printf("Warning: no state file at %s, starting empty", s.svc.DatabasePath())
		return
	}
	log.Printf("Warning: error reading %s, starting empty: %v", s.svc.DatabasePath(), err)
}

func (s *Server) handleSelect(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SelectParams
	if err := parseArguments(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(ToolSelectClass, err)
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return createErrorResponse(ToolSelectClass, errors.New("name is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	matches := s.svc.Select(name)
	if matches == nil {
		matches = []string{}
	}
	debug.LogMCP("select %q: %d matches\n", name, len(matches))
	return createJSONResponse(SelectResponse{Name: name, Matches: matches})
}

// archiveFailures lists the archives a merge could not read.
func archiveFailures(err error) []ArchiveFailure {
	var multiErr *arerrors.MultiError
	if !errors.As(err, &multiErr) {
		return nil
	}
	failures := make([]ArchiveFailure, 0, len(multiErr.Errors))
	for _, e := range multiErr.Errors {
		failure := ArchiveFailure{Error: e.Error()}
		var archiveErr *arerrors.ArchiveError
		if errors.As(e, &archiveErr) {
			failure.Path = archiveErr.Path
			failure.Error = archiveErr.Underlying.Error()
		}
		failures = append(failures, failure)
	}
	return failures
}

func (s *Server) handleIndex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params IndexParams
	if err := parseArguments(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(ToolIndexArchives, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	result, err := s.svc.Index(ctx, params.Paths, nil)

	var walkErr *arerrors.WalkError
	if errors.As(err, &walkErr) {
		return createErrorResponse(ToolIndexArchives, fmt.Errorf("indexing %s: %w", walkErr.Root, err))
	}

	resp := IndexResponse{
		Success:    err == nil,
		Total:      result.Total,
		Indexed:    result.Indexed,
		Failed:     result.Failed,
		Added:      result.Added,
		DurationMs: result.Duration.Milliseconds(),
		Failures:   archiveFailures(result.Err),
	}
	if err != nil {
		resp.SaveError = err.Error()
	}
	debug.LogMCP("index: %d archives, %d failed, %d new classes\n", resp.Total, resp.Failed, resp.Added)
	return createJSONResponse(resp)
}

func (s *Server) handleSuggest(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SuggestParams
	if err := parseArguments(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(ToolSuggestClass, err)
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return createErrorResponse(ToolSuggestClass, errors.New("name is required"))
	}
	if params.Limit < 0 {
		return createErrorResponse(ToolSuggestClass, fmt.Errorf("limit must be positive, got %d", params.Limit))
	}
	limit := params.Limit
	if limit == 0 {
		limit = config.DefaultSuggestLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	suggestions := s.svc.Suggest(name, limit)
	if suggestions == nil {
		suggestions = []classindex.Suggestion{}
	}
	return createJSONResponse(SuggestResponse{Name: name, Suggestions: suggestions})
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	resp := StatusResponse{Status: s.svc.Status()}
	if s.watcher != nil {
		stats := s.watcher.GetStats()
		resp.Watch = &stats
	}
	return createJSONResponse(resp)
}
