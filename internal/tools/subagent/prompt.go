// Package subagent implements bounded delegation to a read-only child
// agent: the task/explore tools, the runner that drives the child loop, and
// the trace the child's events are collected into.
package subagent

import (
	"fmt"
	"strings"

	"github.com/corvid-run/agentcore/internal/config"
)

// ExplorePrompt is the fixed preamble of the read-only explorer subagent.
const ExplorePrompt = `You are a file search specialist for this codebase. You excel at thoroughly
navigating and exploring repositories.

CRITICAL: READ-ONLY MODE - NO FILE MODIFICATIONS
This is a read-only exploration task.

You are strictly prohibited from:
- Creating new files.
- Modifying existing files.
- Deleting files.
- Moving or copying files.
- Creating temporary files anywhere (including /tmp).
- Running commands or tools that change system state.

Your role is exclusively to search and analyze existing code.
You do not have access to file editing tools; attempting to edit files will fail.

Your strengths:
- Rapidly finding files using glob patterns.
- Searching code and text with regex patterns.
- Reading and analyzing file contents.

Guidelines:
- Use glob for broad file pattern matching.
- Use grep for searching file contents with regex.
- Use read when you know the specific file path to inspect.
- Adapt your search approach based on the thoroughness requested by the caller.
- Return file paths as absolute paths in your final response.
- Communicate your final report directly as a regular message.
- For clear communication, avoid emojis.
- You are a fast agent: return useful output as quickly as possible.

To achieve this:
- Use tools efficiently and choose the shortest path to relevant evidence.
- Prefer multiple parallel tool calls when lookups are independent.
- Report findings clearly, and call out uncertainty when something cannot be confirmed.`

// PromptAssembler builds a child agent's system prompt from its tool
// catalogue. The preset text itself is supplied by the caller; assembling
// presets is otherwise outside this package's scope.
type PromptAssembler interface {
	Assemble(basePrompt string, toolNames []string, mcpServers []config.MCPServerSpec) string
}

// CatalogueAssembler appends a tool catalogue line per available tool and a
// note for each connected MCP server.
type CatalogueAssembler struct{}

// Assemble concatenates the base prompt with the tool and server lists.
func (CatalogueAssembler) Assemble(basePrompt string, toolNames []string, mcpServers []config.MCPServerSpec) string {
	parts := []string{basePrompt}

	if len(toolNames) > 0 {
		var sb strings.Builder
		sb.WriteString("# Available Tools\n")
		for _, name := range toolNames {
			fmt.Fprintf(&sb, "- %s\n", name)
		}
		parts = append(parts, strings.TrimRight(sb.String(), "\n"))
	}

	if len(mcpServers) > 0 {
		var sb strings.Builder
		sb.WriteString("# Connected MCP Servers\n")
		for _, server := range mcpServers {
			fmt.Fprintf(&sb, "- %s\n", server.Name)
		}
		parts = append(parts, strings.TrimRight(sb.String(), "\n"))
	}

	return strings.Join(parts, "\n\n")
}
