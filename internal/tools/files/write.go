package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/corvid-run/agentcore/pkg/models"
)

// WriteTool creates or replaces workspace files.
type WriteTool struct {
	resolver Resolver
}

// NewWriteTool creates a write tool scoped to the workspace.
func NewWriteTool(cfg Config) *WriteTool {
	return &WriteTool{resolver: Resolver{Root: cfg.Workspace}}
}

// Name returns the tool name.
func (t *WriteTool) Name() string { return "write" }

// Description returns the tool description.
func (t *WriteTool) Description() string {
	return "Create or overwrite a file in the workspace with the given " +
		"content. Parent directories are created automatically."
}

// Schema returns the JSON schema for the tool parameters.
func (t *WriteTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the file to write.",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Content to write to the file.",
			},
		},
		"required": []string{"file_path", "content"},
	})
}

// Execute writes the file. The replacement is atomic from a reader's
// viewpoint: content lands in a temp file first and is renamed into place.
func (t *WriteTool) Execute(_ context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}

	resolved, err := t.resolver.Resolve(input.FilePath)
	if err != nil {
		return models.ToolError(t.Name(), err.Error()), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return models.ToolErrorf(t.Name(), "writing file failed: %v", err), nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(resolved), ".write-*")
	if err != nil {
		return models.ToolErrorf(t.Name(), "writing file failed: %v", err), nil
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(input.Content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return models.ToolErrorf(t.Name(), "writing file failed: %v", err), nil
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return models.ToolErrorf(t.Name(), "writing file failed: %v", err), nil
	}
	if err := os.Rename(tmpName, resolved); err != nil {
		os.Remove(tmpName)
		return models.ToolErrorf(t.Name(), "writing file failed: %v", err), nil
	}

	chars := len([]rune(input.Content))
	return models.ToolSuccess(t.Name(),
		fmt.Sprintf("Successfully wrote %d characters to %s.", chars, input.FilePath)).
		WithData(map[string]any{
			"file_path":     input.FilePath,
			"chars_written": chars,
		}), nil
}
