package files

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/corvid-run/agentcore/pkg/models"
)

// maxGlobMatches caps the number of files a single glob returns.
const maxGlobMatches = 1000

// skipDirs is the common ignore set search tools never descend into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".idea":        true,
	".vscode":      true,
	"__pycache__":  true,
	"node_modules": true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// expandBraces expands bash-style {a,b} groups into separate glob patterns.
// Groups expand recursively, so "*.{go,{yml,yaml}}" yields three patterns.
func expandBraces(pattern string) []string {
	open := strings.IndexByte(pattern, '{')
	if open < 0 {
		return []string{pattern}
	}
	depth := 0
	for i := open; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				prefix, group, suffix := pattern[:open], pattern[open+1:i], pattern[i+1:]
				var out []string
				for _, alt := range splitTopLevel(group) {
					out = append(out, expandBraces(prefix+strings.TrimSpace(alt)+suffix)...)
				}
				return out
			}
		}
	}
	return []string{pattern}
}

// splitTopLevel splits on commas not nested inside inner braces.
func splitTopLevel(group string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(group); i++ {
		switch group[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, group[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, group[start:])
}

// matchGlob matches a forward-slash relative path against a glob pattern
// supporting "**" path segments.
func matchGlob(pattern, rel string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

func matchSegments(pattern, segments []string) bool {
	if len(pattern) == 0 {
		return len(segments) == 0
	}
	if pattern[0] == "**" {
		// "**" matches zero or more leading segments.
		for skip := 0; skip <= len(segments); skip++ {
			if matchSegments(pattern[1:], segments[skip:]) {
				return true
			}
		}
		return false
	}
	if len(segments) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], segments[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segments[1:])
}

// GlobTool finds workspace files by glob pattern.
type GlobTool struct {
	resolver Resolver
}

// NewGlobTool creates a glob tool scoped to the workspace.
func NewGlobTool(cfg Config) *GlobTool {
	return &GlobTool{resolver: Resolver{Root: cfg.Workspace}}
}

// Name returns the tool name.
func (t *GlobTool) Name() string { return "glob" }

// Description returns the tool description.
func (t *GlobTool) Description() string {
	return "Fast file pattern matching tool. Supports glob patterns like '**/*.go' or 'src/**/*.ts'. " +
		"Brace expansion is supported (e.g. '**/*.{go,md}'). " +
		"Returns matching file paths relative to the workspace root."
}

// Schema returns the JSON schema for the tool parameters.
func (t *GlobTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Glob pattern to match files against.",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Directory to search in. Omit or leave empty to use workspace root.",
			},
		},
		"required": []string{"pattern"},
	})
}

// Execute runs the pattern over the workspace tree.
func (t *GlobTool) Execute(_ context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}

	searchPath := strings.TrimSpace(input.Path)
	if searchPath == "" {
		searchPath = "."
	}
	base, err := t.resolver.Resolve(searchPath)
	if err != nil {
		return models.ToolError(t.Name(), err.Error()), nil
	}
	info, err := os.Stat(base)
	if err != nil {
		return models.ToolErrorf(t.Name(), "path '%s' does not exist", searchPath), nil
	}
	if !info.IsDir() {
		return models.ToolErrorf(t.Name(), "path '%s' is not a directory", searchPath), nil
	}

	patterns := expandBraces(input.Pattern)
	seen := map[string]bool{}
	var results []string
	truncated := false

	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if p != base && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(results) >= maxGlobMatches {
			truncated = true
			return fs.SkipAll
		}
		relToBase, relErr := filepath.Rel(base, p)
		if relErr != nil {
			return nil
		}
		slashRel := filepath.ToSlash(relToBase)
		matched := false
		for _, pattern := range patterns {
			if matchGlob(pattern, slashRel) {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}
		wsRel := filepath.ToSlash(t.resolver.Rel(p))
		if !seen[wsRel] {
			seen[wsRel] = true
			results = append(results, wsRel)
		}
		return nil
	})
	if err != nil {
		return models.ToolErrorf(t.Name(), "glob failed: %v", err), nil
	}

	sort.Strings(results)
	if len(results) == 0 {
		return models.ToolSuccess(t.Name(), "No files matched the pattern.").
			WithData(map[string]any{"paths": []string{}, "pattern": input.Pattern, "path": searchPath}).
			WithMeta(map[string]any{"match_count": 0, "truncated": false}), nil
	}
	return models.ToolSuccess(t.Name(), strings.Join(results, "\n")).
		WithData(map[string]any{"paths": results, "pattern": input.Pattern, "path": searchPath}).
		WithMeta(map[string]any{"match_count": len(results), "truncated": truncated}), nil
}
