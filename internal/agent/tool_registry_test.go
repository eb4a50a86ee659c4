package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/corvid-run/agentcore/pkg/models"
)

type capsTool struct {
	name   string
	schema string
}

func (c *capsTool) Name() string        { return c.name }
func (c *capsTool) Description() string { return "test" }
func (c *capsTool) Schema() json.RawMessage {
	if c.schema == "" {
		return json.RawMessage(`{"type":"object"}`)
	}
	return json.RawMessage(c.schema)
}
func (c *capsTool) Execute(context.Context, json.RawMessage) (*models.ToolResult, error) {
	return models.ToolSuccess(c.name, "ok"), nil
}

func TestBuiltinReadOnlyClassification(t *testing.T) {
	registry := NewToolRegistry()
	for _, name := range []string{"read", "list", "glob", "grep", "web_fetch", "web_search", "shell", "write", "edit", "task"} {
		registry.RegisterBuiltin(&capsTool{name: name})
	}

	readOnly := map[string]bool{
		"read": true, "list": true, "glob": true, "grep": true,
		"web_fetch": true, "web_search": true,
	}
	for _, name := range registry.Names() {
		if got := registry.IsReadOnly(name); got != readOnly[name] {
			t.Errorf("IsReadOnly(%q) = %v, want %v", name, got, readOnly[name])
		}
		caps, _ := registry.Capabilities(name)
		if caps.Source != SourceBuiltin {
			t.Errorf("Source(%q) = %q", name, caps.Source)
		}
	}
}

func TestReadOnlySubsetExcludesTask(t *testing.T) {
	registry := NewToolRegistry()
	for _, name := range []string{"read", "grep", "shell", "task"} {
		registry.RegisterBuiltin(&capsTool{name: name})
	}
	// An MCP tool flagged read-only participates in the subset.
	registry.Register(&capsTool{name: "docs_search"}, ToolCapabilities{Source: SourceMCP, ReadOnly: true, MCPServer: "docs"})

	sub := registry.ReadOnlySubset("task")
	names := sub.Names()
	want := []string{"read", "grep", "docs_search"}
	if len(names) != len(want) {
		t.Fatalf("subset = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("subset[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestDefinitionsPreserveRegistrationOrder(t *testing.T) {
	registry := NewToolRegistry()
	registry.RegisterBuiltin(&capsTool{name: "shell"})
	registry.RegisterBuiltin(&capsTool{name: "read"})
	registry.RegisterBuiltin(&capsTool{name: "glob"})

	defs := registry.Definitions()
	if len(defs) != 3 || defs[0].Name != "shell" || defs[1].Name != "read" || defs[2].Name != "glob" {
		t.Errorf("definitions = %+v", defs)
	}
}

func TestExecutorValidatesArguments(t *testing.T) {
	registry := NewToolRegistry()
	registry.RegisterBuiltin(&capsTool{
		name:   "write",
		schema: `{"type":"object","properties":{"file_path":{"type":"string"},"content":{"type":"string"}},"required":["file_path","content"]}`,
	})
	executor := NewToolExecutor(registry, nil)

	result := executor.Execute(context.Background(), models.ToolCall{
		Name: "write",
		Args: map[string]any{"file_path": "a.txt"},
	})
	if result.Success {
		t.Fatal("missing required argument passed validation")
	}
	if !strings.Contains(result.ErrorMessage(), "invalid arguments") {
		t.Errorf("error = %q", result.ErrorMessage())
	}

	result = executor.Execute(context.Background(), models.ToolCall{
		Name: "write",
		Args: map[string]any{"file_path": "a.txt", "content": "hi"},
	})
	if !result.Success {
		t.Errorf("valid arguments rejected: %s", result.ErrorMessage())
	}
}

type panickyTool struct{ capsTool }

func (p *panickyTool) Execute(context.Context, json.RawMessage) (*models.ToolResult, error) {
	panic("boom")
}

func TestExecutorRecoversPanics(t *testing.T) {
	registry := NewToolRegistry()
	registry.RegisterBuiltin(&panickyTool{capsTool{name: "bad"}})
	executor := NewToolExecutor(registry, nil)

	result := executor.Execute(context.Background(), models.ToolCall{Name: "bad", Args: map[string]any{}})
	if result.Success {
		t.Fatal("panicking tool reported success")
	}
	if !strings.Contains(result.ErrorMessage(), "panic") {
		t.Errorf("error = %q", result.ErrorMessage())
	}
}

func TestExecutorUnknownTool(t *testing.T) {
	executor := NewToolExecutor(NewToolRegistry(), nil)
	result := executor.Execute(context.Background(), models.ToolCall{Name: "ghost"})
	if result.Success || !strings.Contains(result.ErrorMessage(), "Unknown tool") {
		t.Errorf("result = %+v", result)
	}
}
