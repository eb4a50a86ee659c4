package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/corvid-run/agentcore/internal/agent"
	"github.com/corvid-run/agentcore/internal/config"
	"github.com/corvid-run/agentcore/pkg/models"
)

var overrideFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "agentcore",
	Name:      "mcp_readonly_override_fallbacks_total",
	Help:      "Read-only overrides resolved through the globally-unique fallback instead of explicit server tagging.",
})

// serverNameSeparators are the prefixes separating a server name from a
// tool short name.
var serverNameSeparators = []string{".", "__", ":", "/"}

// RegisterTools bridges every tool of every connected client into the
// registry, tagged with source=mcp and the resolved read-only flag.
func RegisterTools(registry *agent.ToolRegistry, manager *Manager, specs []config.MCPServerSpec) {
	overrides := ParseReadOnlyOverrides(specs)
	unique := globalUniqueOverrides(overrides)
	known := knownServerNames(specs, overrides)

	for _, client := range manager.Clients() {
		for _, info := range client.Tools() {
			tool := &bridgedTool{client: client, info: info}
			server := serverIdentity(info, client.Name(), known)
			readOnly := resolveReadOnly(info, tool.Name(), server, overrides, unique, known)
			registry.Register(tool, agent.ToolCapabilities{
				Source:    agent.SourceMCP,
				ReadOnly:  readOnly,
				MCPServer: server,
			})
		}
	}
}

// bridgedTool adapts one MCP tool to the agent tool contract.
type bridgedTool struct {
	client *Client
	info   ToolInfo
}

// Name returns the advertised tool name.
func (t *bridgedTool) Name() string { return t.info.Name }

// Description returns the advertised description.
func (t *bridgedTool) Description() string {
	if t.info.Description != "" {
		return t.info.Description
	}
	return "MCP tool " + t.info.Name + " on server " + t.client.Name()
}

// Schema returns the advertised input schema.
func (t *bridgedTool) Schema() json.RawMessage {
	if len(t.info.InputSchema) > 0 {
		return t.info.InputSchema
	}
	return json.RawMessage(`{"type":"object"}`)
}

// Execute calls the tool on its server and folds the outcome into the
// result envelope.
func (t *bridgedTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	result, err := t.client.CallTool(ctx, t.info.Name, args)
	if err != nil {
		return models.ToolErrorf(t.Name(), "mcp call failed: %v", err), nil
	}

	text := result.Text()
	if result.IsError {
		message := text
		if message == "" {
			message = "mcp tool reported an error"
		}
		return models.ToolError(t.Name(), message), nil
	}
	if text == "" {
		text = "(no output)"
	}
	return models.ToolSuccess(t.Name(), text).
		WithData(map[string]any{"mcp_server": t.client.Name()}), nil
}

// AsBool coerces override values: booleans pass through, numbers are
// non-zero truth, and the strings 1/true/yes/y and 0/false/no/n (case
// insensitive) parse to their boolean. Anything else is indeterminate.
func AsBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case float64:
		return v != 0, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return false, false
		}
		return f != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y":
			return true, true
		case "0", "false", "no", "n":
			return false, true
		}
	}
	return false, false
}

// ParseReadOnlyOverrides extracts each server's read_only_overrides map,
// coercing values and dropping entries that do not parse.
func ParseReadOnlyOverrides(specs []config.MCPServerSpec) map[string]map[string]bool {
	parsed := map[string]map[string]bool{}
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" || spec.ReadOnlyOverrides == nil {
			continue
		}
		out := map[string]bool{}
		for key, value := range spec.ReadOnlyOverrides {
			if b, ok := AsBool(value); ok {
				out[key] = b
			}
		}
		parsed[name] = out
	}
	return parsed
}

// globalUniqueOverrides indexes override keys that appear in exactly one
// server's map. Keys shared by several servers are ambiguous and never used
// as a fallback.
func globalUniqueOverrides(overrides map[string]map[string]bool) map[string]bool {
	counts := map[string]int{}
	values := map[string]bool{}
	for _, serverMap := range overrides {
		for key, value := range serverMap {
			counts[key]++
			values[key] = value
		}
	}
	unique := map[string]bool{}
	for key, count := range counts {
		if count == 1 {
			unique[key] = values[key]
		}
	}
	return unique
}

func knownServerNames(specs []config.MCPServerSpec, overrides map[string]map[string]bool) map[string]bool {
	known := map[string]bool{}
	for name := range overrides {
		known[name] = true
	}
	for _, spec := range specs {
		if name := strings.TrimSpace(spec.Name); name != "" {
			known[name] = true
		}
	}
	return known
}

// serverIdentity determines which server a tool belongs to: metadata keys
// first, then a name-prefix probe against the known server set.
func serverIdentity(info ToolInfo, clientName string, known map[string]bool) string {
	for _, meta := range []map[string]any{info.Meta, info.Annotations} {
		for _, key := range []string{"mcp_server", "server_name", "server", "mcpServer"} {
			if value, ok := meta[key].(string); ok && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
	}

	toolName := strings.TrimSpace(info.Name)
	for server := range known {
		for _, sep := range serverNameSeparators {
			if strings.HasPrefix(toolName, server+sep) {
				return server
			}
		}
	}
	return clientName
}

// nameCandidates lists the override keys a tool may match: the raw name and
// the short name after any server prefix.
func nameCandidates(toolName, server string) []string {
	candidates := []string{toolName}
	if server != "" {
		for _, sep := range serverNameSeparators {
			prefix := server + sep
			if strings.HasPrefix(toolName, prefix) {
				if short := toolName[len(prefix):]; short != "" {
					candidates = append(candidates, short)
				}
			}
		}
	}
	return candidates
}

// resolveReadOnly applies the override chain: explicit server-level
// override, then a globally-unique override key, then the tool's own
// metadata, then false.
func resolveReadOnly(info ToolInfo, toolName, server string, overrides map[string]map[string]bool, unique map[string]bool, known map[string]bool) bool {
	if serverMap, ok := overrides[server]; ok {
		for _, candidate := range nameCandidates(toolName, server) {
			if value, ok := serverMap[candidate]; ok {
				return value
			}
		}
	}

	if len(unique) > 0 {
		candidates := nameCandidates(toolName, server)
		for knownServer := range known {
			candidates = append(candidates, nameCandidates(toolName, knownServer)...)
		}
		seen := map[string]bool{}
		for _, candidate := range candidates {
			if seen[candidate] {
				continue
			}
			seen[candidate] = true
			if value, ok := unique[candidate]; ok {
				// Heuristic match against another server's override map;
				// prefer explicit server tagging.
				overrideFallbacksTotal.Inc()
				slog.Default().Warn("read-only override resolved via globally-unique fallback",
					"component", "mcp", "tool", toolName, "mcp_server", server, "override_key", candidate)
				return value
			}
		}
	}

	if value, ok := metadataReadOnly(info); ok {
		return value
	}
	return false
}

// metadataReadOnly reads the tool's own read-only hints.
func metadataReadOnly(info ToolInfo) (bool, bool) {
	for _, key := range []string{"read_only", "readOnly", "readonly", "readOnlyHint"} {
		if value, ok := AsBool(info.Meta[key]); ok {
			return value, true
		}
	}
	for _, key := range []string{"readOnlyHint", "read_only", "readOnly"} {
		if value, ok := AsBool(info.Annotations[key]); ok {
			return value, true
		}
	}
	return false, false
}
