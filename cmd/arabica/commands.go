package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/standardbeagle/arabica/internal/config"
	"github.com/standardbeagle/arabica/internal/debug"
	"github.com/standardbeagle/arabica/internal/discovery"
	"github.com/standardbeagle/arabica/internal/indexing"
	"github.com/standardbeagle/arabica/internal/mcp"
	"github.com/standardbeagle/arabica/internal/protocol"

	"github.com/urfave/cli/v2"
)

// openService loads the configuration and resolves the state file.
func openService(c *cli.Context) (*indexing.Service, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	return indexing.Open(c.Context, cfg), nil
}

// startWatcher starts a watcher on the project root when watch mode is on.
// It returns nil when watching is off or could not start; the caller stops
// a non-nil watcher.
func startWatcher(cfg *config.Config) *discovery.Watcher {
	if !cfg.Watch.Enabled {
		return nil
	}
	walker := discovery.NewWalker(cfg.Archive.Suffixes, cfg.Exclude)
	debounce := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
	watcher, err := discovery.NewWatcher(walker, cfg.Project.Root, debounce)
	if err != nil {
		log.Printf("Warning: file watching disabled: %v", err)
		return nil
	}
	if err := watcher.Start(); err != nil {
		log.Printf("Warning: file watching disabled: %v", err)
		_ = watcher.Stop()
		return nil
	}
	debug.LogWatch("watching %s\n", cfg.Project.Root)
	return watcher
}

// serveCommand runs the protocol loop until exit or end of input
func serveCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}

	loop := protocol.NewLoop(svc, c.App.Reader, c.App.Writer)

	if watcher := startWatcher(svc.Config()); watcher != nil {
		defer func() {
			_ = watcher.Stop()
			stats := watcher.GetStats()
			debug.LogWatch("watch summary: %d events, %d batches, %d errors\n",
				stats.EventsProcessed, stats.BatchesSent, stats.ErrorCount)
		}()
		loop.WatchBatches(watcher.Batches())
	}

	return loop.Run(c.Context)
}

// indexCommand runs one index request with the protocol's output
func indexCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}

	printer := protocol.NewPrinter(c.App.Writer)
	if err := protocol.Load(svc, printer); err != nil {
		debug.LogPersist("continuing with an empty index\n")
	}
	if err := protocol.Index(c.Context, svc, printer, c.Args().Slice()); err != nil {
		return errReported
	}
	return nil
}

// selectCommand prints the names for one short name, space separated
func selectCommand(c *cli.Context) error {
	name := strings.TrimSpace(c.Args().First())
	if name == "" {
		return errors.New("select: a class name is required")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}

	printer := protocol.NewPrinter(c.App.Writer)
	if err := protocol.Load(svc, printer); err != nil {
		return errReported
	}
	printer.Names(svc.Select(name))
	return nil
}

// suggestCommand prints one line per similar short name
func suggestCommand(c *cli.Context) error {
	name := strings.TrimSpace(c.Args().First())
	if name == "" {
		return errors.New("suggest: a class name is required")
	}
	limit := c.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("suggest: limit must be positive, got %d", limit)
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}

	printer := protocol.NewPrinter(c.App.Writer)
	if err := protocol.Load(svc, printer); err != nil {
		return errReported
	}
	for _, s := range svc.Suggest(name, limit) {
		fmt.Fprintf(c.App.Writer, "%s %.3f %s\n", s.ShortName, s.Score, strings.Join(s.FullNames, " "))
	}
	return nil
}

// statusCommand shows where the state file lives and how large the index is
func statusCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}

	if err := svc.Load(); err != nil {
		debug.LogPersist("status without a loaded index: %v\n", err)
	}
	status := svc.Status()

	if c.Bool("json") {
		encoder := json.NewEncoder(c.App.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(status)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Version:     %s (build %s)\n", status.Version, status.BuildID)
	fmt.Fprintf(w, "Project:     %s\n", status.ProjectRoot)
	if status.Fallback {
		fmt.Fprintf(w, "Repository:  none (%s)\n", status.FallbackReason)
	} else if status.RepositoryRoot != "" {
		fmt.Fprintf(w, "Repository:  %s\n", status.RepositoryRoot)
	}
	fmt.Fprintf(w, "Database:    %s\n", status.DatabasePath)
	if status.FileExists {
		fmt.Fprintf(w, "File size:   %d bytes (modified %s)\n", status.FileSize, status.ModTime.Format(time.RFC3339))
	} else {
		fmt.Fprintf(w, "File size:   not written yet\n")
	}
	fmt.Fprintf(w, "Short names: %d\n", status.ShortNames)
	fmt.Fprintf(w, "Classes:     %d\n", status.Classes)
	return nil
}

// configShowCommand prints the effective configuration
func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(c.App.Writer, config.ToKDL(cfg))
	return err
}

// mcpCommand serves the MCP tools on stdio
func mcpCommand(c *cli.Context) error {
	// Debug output must never reach the MCP stream
	debug.SetMCPMode(true)

	svc, err := openService(c)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(svc)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	if watcher := startWatcher(svc.Config()); watcher != nil {
		defer watcher.Stop()
		server.Watch(watcher)
	}

	debug.LogMCP("starting MCP server for %s\n", svc.Config().Project.Root)
	if err := server.Run(c.Context); err != nil && c.Context.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
