package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/corvid-run/agentcore/internal/agent"
	"github.com/corvid-run/agentcore/internal/config"
	"github.com/corvid-run/agentcore/pkg/models"
)

// ProviderFactory builds the child agent's LLM provider from the resolved
// subagent settings.
type ProviderFactory func(settings config.SubagentSettings) (agent.LLMProvider, error)

// Runner drives subagent executions for the task and explore tools.
//
// A single depth counter guards against recursion: while one child runs, a
// second delegation attempt from any path is rejected, so children cannot
// spawn grandchildren.
type Runner struct {
	parent    *config.AgentConfig
	base      *agent.ToolRegistry
	factory   ProviderFactory
	assembler PromptAssembler
	logger    *slog.Logger

	mu    sync.Mutex
	depth int
}

// NewRunner creates a runner over the parent's configuration and base tool
// set.
func NewRunner(parent *config.AgentConfig, base *agent.ToolRegistry, factory ProviderFactory, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		parent:    parent,
		base:      base,
		factory:   factory,
		assembler: CatalogueAssembler{},
		logger:    logger.With("component", "subagent"),
	}
}

// RunSubagent executes one bounded delegation and returns its envelope.
// resultKind names the envelope kind ("explore" for the explore tool,
// "task" for the generic task tool).
func (r *Runner) RunSubagent(ctx context.Context, resultKind, subagentType, description, prompt string, sink agent.EventSink) *models.ToolResult {
	subagentType = strings.ToLower(strings.TrimSpace(subagentType))
	if subagentType != "explore" {
		return models.ToolError(resultKind, fmt.Sprintf("unsupported subagent_type: %s", subagentType)).
			WithText("Error: only subagent_type='explore' is supported.")
	}

	settings, configured := r.parent.Subagent()
	if !configured {
		return models.ToolError(resultKind, "subagent model is not configured for this conversation")
	}

	r.mu.Lock()
	if r.depth > 0 {
		r.mu.Unlock()
		return models.ToolError(resultKind, "nested subagent invocation is disabled").
			WithText("Error: subagents cannot invoke subagents.")
	}
	r.depth++
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.depth--
		r.mu.Unlock()
	}()

	return r.runExplore(ctx, resultKind, settings, description, prompt, sink)
}

func (r *Runner) runExplore(ctx context.Context, resultKind string, settings config.SubagentSettings, description, prompt string, sink agent.EventSink) *models.ToolResult {
	tools := r.base.ReadOnlySubset("task", "explore")
	toolNames := tools.Names()
	if len(toolNames) == 0 {
		return models.ToolError(resultKind, "no read-only tools are available for explore subagent")
	}

	childCfg := &config.AgentConfig{
		ConversationID: r.parent.ConversationID + ":explore",
		Provider:       settings.Provider,
		Model:          settings.Model,
		APIKey:         settings.APIKey,
		EndpointURL:    settings.EndpointURL,
		SystemPrompt:   r.assembler.Assemble(ExplorePrompt, toolNames, r.parent.MCPServers),
		ToolsEnabled:   true,
		MCPServers:     r.parent.MCPServers,
		DeepThinking:   r.parent.DeepThinking,
	}

	provider, err := r.factory(settings)
	if err != nil {
		return models.ToolErrorf(resultKind, "building subagent provider failed: %v", err)
	}

	child := agent.New(childCfg, provider, tools, r.logger)
	taskPrompt := fmt.Sprintf("Task summary:\n%s\n\nDetailed prompt and context:\n%s", description, prompt)

	opts := &agent.TurnOptions{
		DeepThinking:   r.parent.DeepThinking,
		ThinkingBudget: settings.ThinkingBudget,
	}
	events, err := child.HandleMessage(ctx, taskPrompt, opts)
	if err != nil {
		return models.ToolErrorf(resultKind, "starting subagent failed: %v", err)
	}

	trace := &agent.Trace{}
	var finalContent, errorMsg string
	for event := range events {
		trace.Append(event)
		if sink != nil {
			if err := sink.Emit(ctx, event); err != nil {
				r.logger.Warn("subagent event sink rejected event", "error", err)
				sink = nil
			}
		}
		switch event.Type {
		case models.EventComplete:
			finalContent = event.Content
		case models.EventError:
			errorMsg = event.Message
			if errorMsg == "" {
				errorMsg = "subagent execution failed"
			}
		}
	}

	if errorMsg != "" {
		return models.ToolError(resultKind, errorMsg).
			WithData(map[string]any{
				"subagent_type": "explore",
				"description":   description,
				"trace":         trace.Entries(),
			})
	}

	text := strings.TrimSpace(finalContent)
	if text == "" {
		text = "(no output)"
	}
	return models.ToolSuccess(resultKind, text).
		WithData(map[string]any{
			"subagent_type": "explore",
			"description":   description,
			"summary":       text,
			"trace":         trace.Entries(),
		}).
		WithMeta(map[string]any{
			"trace_blocks":    trace.Len(),
			"read_only_tools": toolNames,
		})
}
