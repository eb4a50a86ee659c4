package files

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/corvid-run/agentcore/pkg/models"
)

// maxListEntries caps the number of entries one listing returns.
const maxListEntries = 2000

// defaultListIgnore is the default ignore set for directory listings.
var defaultListIgnore = []string{".git", "node_modules", ".venv", "dist", "build"}

// ListTool enumerates directory contents breadth-first as a tree.
type ListTool struct {
	resolver Resolver
}

// NewListTool creates a list tool scoped to the workspace.
func NewListTool(cfg Config) *ListTool {
	return &ListTool{resolver: Resolver{Root: cfg.Workspace}}
}

// Name returns the tool name.
func (t *ListTool) Name() string { return "list" }

// Description returns the tool description.
func (t *ListTool) Description() string {
	return "List files and folders under a directory as a structured tree. " +
		"Supports depth limiting and ignore-name filters."
}

// Schema returns the JSON schema for the tool parameters.
func (t *ListTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory path to list, relative to the workspace.",
			},
			"depth": map[string]any{
				"type":        "integer",
				"description": "Maximum recursion depth. 0 means only the target directory itself.",
				"minimum":     0,
				"maximum":     16,
			},
			"ignore": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Directory or file names to ignore while traversing.",
			},
		},
	})
}

// Execute lists the directory.
func (t *ListTool) Execute(_ context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Path   string    `json:"path"`
		Depth  *int      `json:"depth"`
		Ignore *[]string `json:"ignore"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}
	depth := 2
	if input.Depth != nil {
		depth = *input.Depth
	}
	ignore := defaultListIgnore
	if input.Ignore != nil {
		ignore = *input.Ignore
	}

	listPath := strings.TrimSpace(input.Path)
	if listPath == "" {
		listPath = "."
	}
	root, err := t.resolver.Resolve(listPath)
	if err != nil {
		return models.ToolError(t.Name(), err.Error()), nil
	}
	info, err := os.Stat(root)
	if err != nil {
		return models.ToolErrorf(t.Name(), "path does not exist: %s", input.Path), nil
	}
	if !info.IsDir() {
		return models.ToolErrorf(t.Name(), "path is not a directory: %s", input.Path), nil
	}

	ignored := map[string]bool{}
	for _, name := range ignore {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			ignored[trimmed] = true
		}
	}

	type queued struct {
		path  string
		depth int
	}

	var entries []map[string]any
	var lines []string
	truncated := false

	rootLabel := filepath.ToSlash(t.resolver.Rel(root))
	lines = append(lines, rootLabel+"/")

	queue := []queued{{path: root, depth: 0}}
	for len(queue) > 0 && !truncated {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= depth {
			continue
		}

		children, err := os.ReadDir(current.path)
		if err != nil {
			return models.ToolErrorf(t.Name(), "failed to list '%s': %v",
				filepath.ToSlash(t.resolver.Rel(current.path)), err), nil
		}
		sort.Slice(children, func(i, j int) bool {
			if children[i].IsDir() != children[j].IsDir() {
				return children[i].IsDir()
			}
			return strings.ToLower(children[i].Name()) < strings.ToLower(children[j].Name())
		})

		for _, child := range children {
			if ignored[child.Name()] {
				continue
			}
			if len(entries) >= maxListEntries {
				truncated = true
				break
			}

			childPath := filepath.Join(current.path, child.Name())
			entryType := "file"
			var size any
			var mtime any
			if child.IsDir() {
				entryType = "directory"
			}
			if fi, err := child.Info(); err == nil {
				if !child.IsDir() {
					size = fi.Size()
				}
				mtime = fi.ModTime().UTC().Format(time.RFC3339)
			}

			entryDepth := current.depth + 1
			entries = append(entries, map[string]any{
				"path":  filepath.ToSlash(t.resolver.Rel(childPath)),
				"name":  child.Name(),
				"type":  entryType,
				"size":  size,
				"mtime": mtime,
				"depth": entryDepth,
			})
			suffix := ""
			if child.IsDir() {
				suffix = "/"
			}
			lines = append(lines, strings.Repeat("  ", entryDepth)+child.Name()+suffix)

			if child.IsDir() {
				queue = append(queue, queued{path: childPath, depth: entryDepth})
			}
		}
	}

	text := strings.Join(lines, "\n")
	if truncated {
		text += "\n... truncated at 2000 entries"
	}

	sortedIgnore := make([]string, 0, len(ignored))
	for name := range ignored {
		sortedIgnore = append(sortedIgnore, name)
	}
	sort.Strings(sortedIgnore)

	return models.ToolSuccess(t.Name(), text).
		WithData(map[string]any{
			"path":    rootLabel,
			"depth":   depth,
			"ignore":  sortedIgnore,
			"entries": entries,
		}).
		WithMeta(map[string]any{
			"entry_count": len(entries),
			"truncated":   truncated,
		}), nil
}
