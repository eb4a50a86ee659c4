package exec

import (
	"context"
	"encoding/json"

	"github.com/corvid-run/agentcore/pkg/models"
)

// ShellTool executes shell commands in the workspace.
type ShellTool struct {
	manager *Manager
}

// NewShellTool creates a shell tool backed by the manager.
func NewShellTool(manager *Manager) *ShellTool {
	return &ShellTool{manager: manager}
}

// Name returns the tool name.
func (t *ShellTool) Name() string { return "shell" }

// Description returns the tool description.
func (t *ShellTool) Description() string {
	return "Execute a shell command in the workspace directory. " +
		"Use this to run programs, install packages, inspect the " +
		"filesystem, or perform any operation available from the " +
		"command line."
}

// Schema returns the JSON schema for the tool parameters.
func (t *ShellTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute.",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Maximum number of seconds the command is allowed to run.",
			},
		},
		"required": []string{"command"},
	})
}

// Execute runs the command and folds the outcome into the result envelope.
func (t *ShellTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Command string `json:"command"`
		Timeout int    `json:"timeout"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}
	if input.Timeout <= 0 {
		input.Timeout = 30
	}

	run, err := t.manager.RunShell(ctx, input.Command, input.Timeout)
	if err != nil {
		return models.ToolErrorf(t.Name(), "executing command failed: %v", err), nil
	}

	data := map[string]any{
		"exit_code": run.ExitCode,
		"stdout":    run.Stdout,
		"stderr":    run.Stderr,
	}

	if run.TimedOut {
		return models.ToolErrorf(t.Name(), "command timed out after %d seconds", input.Timeout).
			WithData(data).
			WithMeta(map[string]any{"timed_out": true}), nil
	}

	text := run.Combined()
	if text == "" {
		text = "(no output)"
	}
	meta := map[string]any{"truncated": run.Truncated}

	if run.ExitCode != 0 {
		return models.ToolErrorf(t.Name(), "command exited with status %d", run.ExitCode).
			WithText(text).
			WithData(data).
			WithMeta(meta), nil
	}
	return models.ToolSuccess(t.Name(), text).
		WithData(data).
		WithMeta(meta), nil
}

func mustSchema(schema map[string]any) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
