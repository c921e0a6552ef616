package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from the .arabica.kdl file in dir.
// It returns (nil, nil) when the file does not exist.
func LoadKDL(dir string) (*Config, error) {
	kdlPath := filepath.Join(dir, KDLFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KDLFileName, err)
	}

	return parseKDL(string(content))
}

// parseKDL overlays the nodes of a KDL document on the defaults. Unknown
// nodes are ignored.
func parseKDL(content string) (*Config, error) {
	cfg := Default("")

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children { // project { root "." }
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
			}
		case "archive":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "suffixes":
					if s := collectStringArgs(cn); len(s) > 0 {
						cfg.Archive.Suffixes = s
					}
				case "class_suffix":
					if s, ok := firstStringArg(cn); ok {
						cfg.Archive.ClassSuffix = s
					}
				}
			}
		case "database":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "path":
					if s, ok := firstStringArg(cn); ok {
						cfg.Database.Path = s
					}
				case "dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Database.Dir = s
					}
				case "file_name":
					if s, ok := firstStringArg(cn); ok {
						cfg.Database.FileName = s
					}
				case "create_missing_dir":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Database.CreateMissingDir = b
					}
				case "compression_level":
					if v, ok := firstIntArg(cn); ok {
						cfg.Database.CompressionLevel = v
					}
				}
			}
		case "git":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "binary":
					if s, ok := firstStringArg(cn); ok {
						cfg.Git.Binary = s
					}
				case "timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Git.TimeoutMs = v
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "scan_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.ScanWorkers = v
					}
				case "gc_after_index":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Performance.GCAfterIndex = b
					}
				}
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watch.Enabled = b
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				}
			}
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		}
	}

	return cfg, nil
}

// Helper functions over the kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}
func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		log.Printf("WARNING: invalid integer value for '%s' in KDL config, got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}
func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	// Inline format: exclude "a" "b"
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block format: exclude { "pattern" }, where each string is a child node name
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}
func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// ToKDL renders cfg in the .arabica.kdl syntax understood by parseKDL.
func ToKDL(cfg *Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "project {\n    root %q\n}\n\n", cfg.Project.Root)

	b.WriteString("archive {\n    suffixes")
	for _, s := range cfg.Archive.Suffixes {
		fmt.Fprintf(&b, " %q", s)
	}
	fmt.Fprintf(&b, "\n    class_suffix %q\n}\n\n", cfg.Archive.ClassSuffix)

	b.WriteString("database {\n")
	if cfg.Database.Path != "" {
		fmt.Fprintf(&b, "    path %q\n", cfg.Database.Path)
	}
	fmt.Fprintf(&b, "    dir %q\n    file_name %q\n    create_missing_dir %t\n    compression_level %d\n}\n\n",
		cfg.Database.Dir, cfg.Database.FileName, cfg.Database.CreateMissingDir, cfg.Database.CompressionLevel)

	fmt.Fprintf(&b, "git {\n    binary %q\n    timeout_ms %d\n}\n\n", cfg.Git.Binary, cfg.Git.TimeoutMs)
	fmt.Fprintf(&b, "performance {\n    scan_workers %d\n    gc_after_index %t\n}\n\n",
		cfg.Performance.ScanWorkers, cfg.Performance.GCAfterIndex)
	fmt.Fprintf(&b, "watch {\n    enabled %t\n    debounce_ms %d\n}\n", cfg.Watch.Enabled, cfg.Watch.DebounceMs)

	if len(cfg.Exclude) > 0 {
		b.WriteString("\nexclude {\n")
		for _, p := range cfg.Exclude {
			fmt.Fprintf(&b, "    %q\n", p)
		}
		b.WriteString("}\n")
	}
	return b.String()
}
