package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/corvid-run/agentcore/internal/media"
	"github.com/corvid-run/agentcore/pkg/models"
)

// CodeInterpreterTool executes Python or JavaScript source in a temp file
// inside the workspace, then reports any media files the code produced as
// sandbox references.
type CodeInterpreterTool struct {
	manager *Manager
	scanner *media.Scanner
}

// NewCodeInterpreterTool creates a code interpreter backed by the manager.
func NewCodeInterpreterTool(manager *Manager) *CodeInterpreterTool {
	return &CodeInterpreterTool{
		manager: manager,
		scanner: media.NewScanner(manager.Workspace()),
	}
}

// Name returns the tool name.
func (t *CodeInterpreterTool) Name() string { return "code_interpreter" }

// Description returns the tool description.
func (t *CodeInterpreterTool) Description() string {
	return "Execute Python or JavaScript code and return the output."
}

// Schema returns the JSON schema for the tool parameters.
func (t *CodeInterpreterTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "The source code to execute.",
			},
			"language": map[string]any{
				"type":        "string",
				"enum":        []string{"python", "javascript"},
				"description": "The programming language to use.",
			},
		},
		"required": []string{"code"},
	})
}

// Execute writes the code to a temp file, runs it with a 30 second timeout,
// and appends sandbox references for newly created media.
func (t *CodeInterpreterTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Code     string `json:"code"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}

	language := strings.ToLower(strings.TrimSpace(input.Language))
	if language == "" {
		language = "python"
	}
	var suffix, program string
	switch language {
	case "python":
		suffix, program = ".py", "python3"
	case "javascript":
		suffix, program = ".js", "node"
	default:
		return models.ToolErrorf(t.Name(), "unsupported language: %s", input.Language), nil
	}

	if err := t.scanner.Prime(); err != nil {
		return models.ToolErrorf(t.Name(), "scanning workspace failed: %v", err), nil
	}

	tmp, err := os.CreateTemp(t.manager.Workspace(), "snippet-*"+suffix)
	if err != nil {
		return models.ToolErrorf(t.Name(), "executing code failed: %v", err), nil
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.WriteString(input.Code); err != nil {
		tmp.Close()
		return models.ToolErrorf(t.Name(), "executing code failed: %v", err), nil
	}
	if err := tmp.Close(); err != nil {
		return models.ToolErrorf(t.Name(), "executing code failed: %v", err), nil
	}

	run, err := t.manager.Run(ctx, 30, program, tmpName)
	if err != nil {
		return models.ToolErrorf(t.Name(), "executing code failed: %v", err), nil
	}
	if run.TimedOut {
		return models.ToolError(t.Name(), "Code execution timed out after 30 seconds"), nil
	}

	newFiles, err := t.scanner.DiffNew()
	if err != nil {
		newFiles = nil
	}
	mediaText, refs := media.FormatNew(newFiles)

	text := strings.TrimSpace(run.Combined() + mediaText)
	if text == "" {
		text = "(no output)"
	}
	data := map[string]any{
		"language":  language,
		"exit_code": run.ExitCode,
		"media":     media.RefsToData(refs),
	}
	meta := map[string]any{"truncated": run.Truncated}

	if run.ExitCode != 0 {
		return models.ToolError(t.Name(), fmt.Sprintf("code exited with status %d", run.ExitCode)).
			WithText(text).
			WithData(data).
			WithMeta(meta), nil
	}
	return models.ToolSuccess(t.Name(), text).
		WithData(data).
		WithMeta(meta), nil
}
