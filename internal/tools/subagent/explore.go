package subagent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/corvid-run/agentcore/internal/agent"
	"github.com/corvid-run/agentcore/pkg/models"
)

// ExploreTool delegates codebase exploration to a read-only subagent.
type ExploreTool struct {
	runner *Runner

	mu   sync.Mutex
	emit agent.EmitFunc
}

// NewExploreTool creates an explore tool backed by the runner.
func NewExploreTool(runner *Runner) *ExploreTool {
	return &ExploreTool{runner: runner}
}

// Name returns the tool name.
func (t *ExploreTool) Name() string { return "explore" }

// Description returns the tool description.
func (t *ExploreTool) Description() string {
	return "Delegate broad or deep codebase exploration to a specialized " +
		"read-only subagent and return its report. Prefer direct read/glob/grep " +
		"for simple, targeted lookups."
}

// Schema returns the JSON schema for the tool parameters.
func (t *ExploreTool) Schema() json.RawMessage {
	return exploreSchema(false)
}

// SetEventSink attaches the turn's emitter for subagent trace streaming.
func (t *ExploreTool) SetEventSink(emit agent.EmitFunc) {
	t.mu.Lock()
	t.emit = emit
	t.mu.Unlock()
}

func (t *ExploreTool) sink() agent.EventSink {
	t.mu.Lock()
	emit := t.emit
	t.mu.Unlock()
	if emit == nil {
		return nil
	}
	return agent.EventSinkFunc(emit)
}

// Execute runs the exploration.
func (t *ExploreTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Description string `json:"description"`
		Prompt      string `json:"prompt"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}
	if t.runner == nil {
		return models.ToolError(t.Name(), "explore runner is not configured"), nil
	}
	return t.runner.RunSubagent(ctx, "explore", "explore", input.Description, input.Prompt, t.sink()), nil
}

// TaskTool is the generic delegation entry point; it routes by
// subagent_type and currently supports only the explore subagent.
type TaskTool struct {
	runner *Runner

	mu   sync.Mutex
	emit agent.EmitFunc
}

// NewTaskTool creates a task tool backed by the runner.
func NewTaskTool(runner *Runner) *TaskTool {
	return &TaskTool{runner: runner}
}

// Name returns the tool name.
func (t *TaskTool) Name() string { return "task" }

// Description returns the tool description.
func (t *TaskTool) Description() string {
	return "Delegate a task to a specialized subagent and return its " +
		"report. Currently supports the read-only 'explore' subagent."
}

// Schema returns the JSON schema for the tool parameters.
func (t *TaskTool) Schema() json.RawMessage {
	return exploreSchema(true)
}

// SetEventSink attaches the turn's emitter for subagent trace streaming.
func (t *TaskTool) SetEventSink(emit agent.EmitFunc) {
	t.mu.Lock()
	t.emit = emit
	t.mu.Unlock()
}

func (t *TaskTool) sink() agent.EventSink {
	t.mu.Lock()
	emit := t.emit
	t.mu.Unlock()
	if emit == nil {
		return nil
	}
	return agent.EventSinkFunc(emit)
}

// Execute runs the delegation.
func (t *TaskTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		SubagentType string `json:"subagent_type"`
		Description  string `json:"description"`
		Prompt       string `json:"prompt"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}
	if t.runner == nil {
		return models.ToolError(t.Name(), "task runner is not configured"), nil
	}
	return t.runner.RunSubagent(ctx, "task", input.SubagentType, input.Description, input.Prompt, t.sink()), nil
}

func exploreSchema(withType bool) json.RawMessage {
	properties := map[string]any{
		"description": map[string]any{
			"type":        "string",
			"description": "A short 3-5 word summary of what the subagent should do.",
		},
		"prompt": map[string]any{
			"type":        "string",
			"description": "Detailed task instructions and context for the subagent, including scope, constraints, and expected output.",
		},
	}
	required := []string{"description", "prompt"}
	if withType {
		properties["subagent_type"] = map[string]any{
			"type":        "string",
			"description": "Subagent type to run. Currently supported: 'explore' (read-only codebase exploration).",
		}
		required = append([]string{"subagent_type"}, required...)
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
