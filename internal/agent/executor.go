package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corvid-run/agentcore/pkg/models"
)

// ToolExecutor runs the tool calls of one iteration. Execution is
// sequential in received order; the model may shape calls as parallel, but
// the results are fed back in the same order they were requested and later
// calls can observe the side effects of earlier ones.
type ToolExecutor struct {
	registry *ToolRegistry
	logger   *slog.Logger
}

// NewToolExecutor creates an executor over the given registry.
func NewToolExecutor(registry *ToolRegistry, logger *slog.Logger) *ToolExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolExecutor{
		registry: registry,
		logger:   logger.With("component", "tool_executor"),
	}
}

// Execute runs one tool call and always returns a result envelope. Unknown
// tools, invalid arguments, tool panics, and programmer-error returns are
// all folded into error envelopes; nothing propagates to the loop.
func (e *ToolExecutor) Execute(ctx context.Context, call models.ToolCall) *models.ToolResult {
	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return models.ToolErrorf(call.Name, "Unknown tool: %s", call.Name)
	}

	raw := call.RawArgs()
	if err := e.registry.validateArgs(call.Name, raw); err != nil {
		return models.ToolError(call.Name, err.Error())
	}

	start := time.Now()
	result, err := e.run(ctx, tool, call)
	elapsed := time.Since(start)

	toolExecutionSeconds.WithLabelValues(call.Name).Observe(elapsed.Seconds())

	switch {
	case err != nil:
		e.logger.Warn("tool returned an internal error",
			"tool", call.Name, "tool_call_id", call.ID, "error", err)
		result = models.ToolErrorf(call.Name, "Tool error: %v", err)
	case result == nil:
		result = models.ToolError(call.Name, "tool returned no result")
	}

	if truncated, _ := result.Meta["truncated"].(bool); truncated {
		toolTruncationsTotal.WithLabelValues(call.Name).Inc()
	}
	e.logger.Debug("tool executed",
		"tool", call.Name, "tool_call_id", call.ID,
		"success", result.Success, "duration", elapsed)
	return result
}

// run invokes the tool with panic recovery. A panic is a programmer error
// in the tool; it is reported as an execution failure instead of taking the
// conversation down.
func (e *ToolExecutor) run(ctx context.Context, tool Tool, call models.ToolCall) (result *models.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Execute(ctx, call.RawArgs())
}
