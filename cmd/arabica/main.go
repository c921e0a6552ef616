package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/standardbeagle/arabica/internal/config"
	"github.com/standardbeagle/arabica/internal/debug"
	"github.com/standardbeagle/arabica/internal/version"

	"github.com/urfave/cli/v2"
)

// errReported marks a failure whose message already went to the output.
var errReported = errors.New("failure already reported")

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root != "" {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
		}
		root = absRoot
	}

	configPath := c.String("config")
	cfg, err := config.LoadWithRoot(configPath, root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if db := c.String("db"); db != "" {
		absDB, err := filepath.Abs(db)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path %q: %w", db, err)
		}
		cfg.Database.Path = absDB
	}
	if c.IsSet("workers") {
		cfg.Performance.ScanWorkers = c.Int("workers")
	}
	if c.Bool("watch") {
		cfg.Watch.Enabled = true
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = config.DeduplicatePatterns(append(cfg.Exclude, excludeFlags...))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp builds the command tree. Protocol output goes to out, diagnostics
// to errOut.
func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:                   "arabica",
		Usage:                  "Map short Java class names to fully-qualified names found in jars",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Reader:                 in,
		Writer:                 out,
		ErrWriter:              errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path; its directory is searched for .arabica.kdl or .arabica.toml",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root to search for archives (default: working directory)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "State file path, skips the repository lookup",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Archives read concurrently (0 = one per spare CPU)",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Re-index archives that change under the root while serving",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip paths matching glob patterns (e.g., --exclude '**/build/**')",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write debug output to a file under the temp directory",
			},
		},
		Before: setupDebug,
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Action: serveCommand,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the index/select protocol on stdin and stdout",
				Action: serveCommand,
			},
			{
				Name:      "index",
				Aliases:   []string{"i"},
				Usage:     "Index archives under the root plus any given archives",
				ArgsUsage: "[archive...]",
				Action:    indexCommand,
			},
			{
				Name:      "select",
				Usage:     "Print the fully-qualified names for a short class name",
				ArgsUsage: "<name>",
				Action:    selectCommand,
			},
			{
				Name:      "suggest",
				Usage:     "Print indexed short names similar to a name",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum suggestions",
						Value:   config.DefaultSuggestLimit,
					},
				},
				Action: suggestCommand,
			},
			{
				Name:  "status",
				Usage: "Show the state file location and index size",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: statusCommand,
			},
			{
				Name:  "config",
				Usage: "Inspect configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the effective configuration as KDL",
						Action: configShowCommand,
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the index as MCP tools over stdio",
				Action: mcpCommand,
			},
		},
	}
}

// setupDebug routes debug output and operator warnings away from stdout,
// which carries the protocol.
func setupDebug(c *cli.Context) error {
	log.SetOutput(c.App.ErrWriter)

	if !c.Bool("debug-log") {
		debug.SetDebugOutput(c.App.ErrWriter)
		return nil
	}

	path, err := debug.InitDebugLogFile()
	if err != nil {
		return err
	}
	debug.EnableDebug = "true"
	fmt.Fprintf(c.App.ErrWriter, "debug log: %s\n", path)
	return nil
}

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, version.FullInfo())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(os.Stdin, os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	stop()

	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
