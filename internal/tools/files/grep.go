package files

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/corvid-run/agentcore/pkg/models"
)

// maxGrepOutput caps the aggregate grep output in characters.
const maxGrepOutput = 50000

const grepTruncationSentinel = "... output truncated (50000 char limit)"

// GrepTool searches file contents with regular expressions.
type GrepTool struct {
	resolver Resolver
}

// NewGrepTool creates a grep tool scoped to the workspace.
func NewGrepTool(cfg Config) *GrepTool {
	return &GrepTool{resolver: Resolver{Root: cfg.Workspace}}
}

// Name returns the tool name.
func (t *GrepTool) Name() string { return "grep" }

// Description returns the tool description.
func (t *GrepTool) Description() string {
	return "Search for a regular expression pattern in file contents. " +
		"Returns matching lines in the format filepath:lineno:line_content."
}

// Schema returns the JSON schema for the tool parameters.
func (t *GrepTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Regular expression pattern to search for.",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "File or directory to search in. Defaults to workspace root.",
			},
			"glob_filter": map[string]any{
				"type":        "string",
				"description": "Glob pattern to filter which files are searched.",
			},
			"context": map[string]any{
				"type":        "integer",
				"description": "Number of context lines to show before and after each match.",
			},
		},
		"required": []string{"pattern"},
	})
}

// grepRun accumulates output entries up to the aggregate cap.
type grepRun struct {
	parts     []string
	totalLen  int
	count     int
	truncated bool
}

// add appends one entry; it reports false once the cap is hit and the
// sentinel has been appended.
func (g *grepRun) add(entry string) bool {
	g.parts = append(g.parts, entry)
	g.count++
	g.totalLen += len(entry) + 1
	if g.totalLen >= maxGrepOutput {
		g.parts = append(g.parts, grepTruncationSentinel)
		g.truncated = true
		return false
	}
	return true
}

// Execute searches the workspace.
func (t *GrepTool) Execute(_ context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Pattern    string `json:"pattern"`
		Path       string `json:"path"`
		GlobFilter string `json:"glob_filter"`
		Context    int    `json:"context"`
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
	if _, err := os.Stat(base); err != nil {
		return models.ToolErrorf(t.Name(), "path '%s' does not exist", input.Path), nil
	}

	regex, err := regexp.Compile(input.Pattern)
	if err != nil {
		return models.ToolErrorf(t.Name(), "invalid regex pattern: %v", err), nil
	}

	run := &grepRun{}
	for _, filePath := range t.candidateFiles(base, input.GlobFilter) {
		if isBinary(filePath) {
			continue
		}
		rel := filepath.ToSlash(t.resolver.Rel(filePath))
		var more bool
		if input.Context <= 0 {
			more = t.searchFile(filePath, rel, regex, run)
		} else {
			more = t.searchFileWithContext(filePath, rel, regex, input.Context, run)
		}
		if !more {
			break
		}
	}

	data := map[string]any{
		"pattern":     input.Pattern,
		"path":        searchPath,
		"glob_filter": input.GlobFilter,
		"context":     input.Context,
	}
	if len(run.parts) == 0 {
		return models.ToolSuccess(t.Name(), "No matches found.").
			WithData(data).
			WithMeta(map[string]any{"match_count": 0, "truncated": false}), nil
	}
	return models.ToolSuccess(t.Name(), strings.Join(run.parts, "\n")).
		WithData(data).
		WithMeta(map[string]any{"match_count": run.count, "truncated": run.truncated}), nil
}

// candidateFiles enumerates the files to search in deterministic order.
func (t *GrepTool) candidateFiles(base, globFilter string) []string {
	info, err := os.Stat(base)
	if err == nil && !info.IsDir() {
		return []string{base}
	}

	var files []string
	patterns := expandBraces(globFilter)
	filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if p != base && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if globFilter != "" {
			rel, relErr := filepath.Rel(base, p)
			if relErr != nil {
				return nil
			}
			matched := false
			for _, pattern := range patterns {
				if matchGlob(pattern, filepath.ToSlash(rel)) {
					matched = true
					break
				}
			}
			if !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	sort.Strings(files)
	return files
}

// isBinary probes the first 8 KiB for a NUL byte.
func isBinary(filePath string) bool {
	f, err := os.Open(filePath)
	if err != nil {
		return true
	}
	defer f.Close()
	buf := make([]byte, 8192)
	n, err := f.Read(buf)
	if n <= 0 && err != nil {
		return false
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

func (t *GrepTool) searchFile(filePath, rel string, regex *regexp.Regexp, run *grepRun) bool {
	f, err := os.Open(filePath)
	if err != nil {
		return true
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !regex.MatchString(line) {
			continue
		}
		if !run.add(rel + ":" + strconv.Itoa(lineNo) + ":" + strings.TrimRight(line, " \t")) {
			return false
		}
	}
	return true
}

// searchFileWithContext emits matches with N lines of surrounding context.
// Overlapping groups coalesce; a "--" separator closes each group once its
// trailing context is exhausted.
func (t *GrepTool) searchFileWithContext(filePath, rel string, regex *regexp.Regexp, contextLines int, run *grepRun) bool {
	f, err := os.Open(filePath)
	if err != nil {
		return true
	}
	defer f.Close()

	type numbered struct {
		no   int
		text string
	}
	var prev []numbered
	trailing := 0
	lastEmitted := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		stripped := strings.TrimRight(scanner.Text(), " \t")
		matched := regex.MatchString(scanner.Text())

		switch {
		case matched:
			for _, p := range prev {
				if p.no <= lastEmitted {
					continue
				}
				if !run.add(rel + ":" + strconv.Itoa(p.no) + ":" + p.text) {
					return false
				}
				lastEmitted = p.no
			}
			if lineNo > lastEmitted {
				if !run.add(rel + ":" + strconv.Itoa(lineNo) + ":" + stripped) {
					return false
				}
				lastEmitted = lineNo
			}
			trailing = contextLines
		case trailing > 0:
			if lineNo > lastEmitted {
				if !run.add(rel + ":" + strconv.Itoa(lineNo) + ":" + stripped) {
					return false
				}
				lastEmitted = lineNo
			}
			trailing--
			if trailing == 0 {
				run.parts = append(run.parts, "--")
				run.totalLen += 3
				if run.totalLen >= maxGrepOutput {
					run.parts = append(run.parts, grepTruncationSentinel)
					run.truncated = true
					return false
				}
			}
		}

		prev = append(prev, numbered{no: lineNo, text: stripped})
		if len(prev) > contextLines {
			prev = prev[1:]
		}
	}
	return true
}
