package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/corvid-run/agentcore/pkg/models"
)

// EditTool performs exact-match find-and-replace on workspace files.
type EditTool struct {
	resolver Resolver
}

// NewEditTool creates an edit tool scoped to the workspace.
func NewEditTool(cfg Config) *EditTool {
	return &EditTool{resolver: Resolver{Root: cfg.Workspace}}
}

// Name returns the tool name.
func (t *EditTool) Name() string { return "edit" }

// Description returns the tool description.
func (t *EditTool) Description() string {
	return "Replace occurrences of a string in a file. By default the " +
		"target string must appear exactly once; set replace_all=true " +
		"to replace every occurrence."
}

// Schema returns the JSON schema for the tool parameters.
func (t *EditTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the file to edit.",
			},
			"old_string": map[string]any{
				"type":        "string",
				"description": "The exact text to find and replace.",
			},
			"new_string": map[string]any{
				"type":        "string",
				"description": "The replacement text.",
			},
			"replace_all": map[string]any{
				"type":        "boolean",
				"description": "If true, replace every occurrence; otherwise require exactly one match.",
			},
		},
		"required": []string{"file_path", "old_string", "new_string"},
	})
}

// Execute applies the replacement.
func (t *EditTool) Execute(_ context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		FilePath   string `json:"file_path"`
		OldString  string `json:"old_string"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}

	resolved, err := t.resolver.Resolve(input.FilePath)
	if err != nil {
		return models.ToolError(t.Name(), err.Error()), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return models.ToolErrorf(t.Name(), "file not found: %s", input.FilePath), nil
		}
		return models.ToolErrorf(t.Name(), "editing file failed: %v", err), nil
	}
	content := string(data)

	count := strings.Count(content, input.OldString)
	if count == 0 {
		return models.ToolError(t.Name(), "old_string not found in the file"), nil
	}
	if !input.ReplaceAll && count > 1 {
		return models.ToolErrorf(t.Name(),
			"old_string appears %d times. Use replace_all=true or provide a more unique string.", count), nil
	}

	limit := 1
	replacements := 1
	if input.ReplaceAll {
		limit = -1
		replacements = count
	}
	updated := strings.Replace(content, input.OldString, input.NewString, limit)

	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return models.ToolErrorf(t.Name(), "editing file failed: %v", err), nil
	}

	return models.ToolSuccess(t.Name(),
		fmt.Sprintf("Successfully replaced %d occurrence(s) in %s.", replacements, input.FilePath)).
		WithData(map[string]any{
			"file_path":    input.FilePath,
			"replacements": replacements,
			"replace_all":  input.ReplaceAll,
		}), nil
}
