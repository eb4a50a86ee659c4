// Package config holds the per-conversation agent configuration and the
// small slice of process settings the worker reads from its environment.
package config

import (
	"fmt"
	"strings"
)

// DefaultSystemPrompt is used when an init message carries no system prompt.
const DefaultSystemPrompt = "You are a helpful AI assistant. You have access to tools that let you " +
	"interact with the user's workspace, run code, search the web, and more. " +
	"Use tools when they would help accomplish the user's request."

// HistoryEntry is one prior conversation message delivered in the init
// payload.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MCPServerSpec describes one MCP server the conversation may use.
//
// Either Command (stdio transport) or URL (streamable HTTP transport) is
// set. ReadOnlyOverrides maps tool short names to read-only flags; values
// may be booleans, numbers, or the strings 1/true/yes/y and 0/false/no/n.
type MCPServerSpec struct {
	Name              string            `json:"name" yaml:"name"`
	Command           string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args              []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env               map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL               string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers           map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	ReadOnlyOverrides map[string]any    `json:"read_only_overrides,omitempty" yaml:"read_only_overrides,omitempty"`
}

// AgentConfig is the immutable per-conversation configuration, constructed
// once from the inbound init message and never mutated afterwards.
type AgentConfig struct {
	ConversationID string `json:"conversation_id"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	APIKey         string `json:"api_key"`
	EndpointURL    string `json:"endpoint_url,omitempty"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	ToolsEnabled   bool   `json:"tools_enabled"`

	MCPServers []MCPServerSpec `json:"mcp_servers,omitempty"`
	History    []HistoryEntry  `json:"history,omitempty"`

	// Subagent settings fall back to the parent values when unset.
	SubagentProvider       string `json:"subagent_provider,omitempty"`
	SubagentModel          string `json:"subagent_model,omitempty"`
	SubagentAPIKey         string `json:"subagent_api_key,omitempty"`
	SubagentEndpointURL    string `json:"subagent_endpoint_url,omitempty"`
	SubagentThinkingBudget int    `json:"subagent_thinking_budget,omitempty"`

	DeepThinking bool `json:"deep_thinking,omitempty"`
}

// Validate checks the fields the runtime cannot default.
func (c *AgentConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("agent config is nil")
	}
	if strings.TrimSpace(c.ConversationID) == "" {
		return fmt.Errorf("conversation_id is required")
	}
	return nil
}

// ApplyDefaults fills defaultable fields in place. Called once at
// construction; the config is treated as frozen afterwards.
func (c *AgentConfig) ApplyDefaults() {
	if strings.TrimSpace(c.Provider) == "" {
		c.Provider = "openai"
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = "gpt-4o"
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
}

// SubagentSettings resolves the child-agent connection settings, falling
// back to the parent values for any field left unset.
type SubagentSettings struct {
	Provider       string
	Model          string
	APIKey         string
	EndpointURL    string
	ThinkingBudget int
}

// Subagent returns the resolved subagent settings and whether a subagent
// model is configured at all (explicitly or via parent fallback).
func (c *AgentConfig) Subagent() (SubagentSettings, bool) {
	s := SubagentSettings{
		Provider:       firstNonEmpty(c.SubagentProvider, c.Provider),
		Model:          firstNonEmpty(c.SubagentModel, c.Model),
		APIKey:         firstNonEmpty(c.SubagentAPIKey, c.APIKey),
		EndpointURL:    firstNonEmpty(c.SubagentEndpointURL, c.EndpointURL),
		ThinkingBudget: c.SubagentThinkingBudget,
	}
	return s, s.Provider != "" && s.Model != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
