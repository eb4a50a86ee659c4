package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolSource identifies where a tool comes from.
type ToolSource string

const (
	// SourceBuiltin marks tools compiled into the runtime.
	SourceBuiltin ToolSource = "builtin"

	// SourceMCP marks tools bridged from an MCP server.
	SourceMCP ToolSource = "mcp"
)

// ToolCapabilities is the per-tool metadata attached once at registration
// and treated as immutable afterwards.
type ToolCapabilities struct {
	Source    ToolSource `json:"source"`
	ReadOnly  bool       `json:"read_only"`
	MCPServer string     `json:"mcp_server,omitempty"`
}

// readOnlyBuiltins is the fixed set of built-in tools classified read-only.
var readOnlyBuiltins = map[string]bool{
	"read":       true,
	"list":       true,
	"glob":       true,
	"grep":       true,
	"web_fetch":  true,
	"web_search": true,
}

// registeredTool pairs a tool with its capability record and, lazily, its
// compiled argument schema.
type registeredTool struct {
	tool   Tool
	caps   ToolCapabilities
	schema *jsonschema.Schema
}

// ToolRegistry manages the tools available to one agent, preserving
// registration order for the provider-facing catalogue.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
	order []string
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*registeredTool)}
}

// RegisterBuiltin adds a built-in tool, deriving read-only classification
// from the fixed builtin set.
func (r *ToolRegistry) RegisterBuiltin(tool Tool) {
	r.Register(tool, ToolCapabilities{
		Source:   SourceBuiltin,
		ReadOnly: readOnlyBuiltins[tool.Name()],
	})
}

// Register adds a tool with an explicit capability record, replacing any
// tool with the same name.
func (r *ToolRegistry) Register(tool Tool, caps ToolCapabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = &registeredTool{tool: tool, caps: caps}
}

// Unregister removes a tool by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.tool, true
}

// Capabilities returns the capability record for a tool.
func (r *ToolRegistry) Capabilities(name string) (ToolCapabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return ToolCapabilities{}, false
	}
	return rt.caps, true
}

// IsReadOnly reports whether the named tool is classified read-only.
// Unknown tools are not read-only.
func (r *ToolRegistry) IsReadOnly(name string) bool {
	caps, ok := r.Capabilities(name)
	return ok && caps.ReadOnly
}

// Names returns the registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns the provider-facing tool catalogue in registration
// order.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, Definition(r.tools[name].tool))
	}
	return defs
}

// Tools returns the registered tools in registration order.
func (r *ToolRegistry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].tool)
	}
	return out
}

// ReadOnlySubset returns a new registry holding the read-only tools, minus
// any names in exclude. Used to build the tool set of an explore subagent.
func (r *ToolRegistry) ReadOnlySubset(exclude ...string) *ToolRegistry {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	sub := NewToolRegistry()
	for _, name := range r.order {
		rt := r.tools[name]
		if excluded[name] || !rt.caps.ReadOnly {
			continue
		}
		sub.Register(rt.tool, rt.caps)
	}
	return sub
}

// validateArgs checks raw arguments against the tool's declared schema.
// Schemas are compiled once per tool; a schema that fails to compile
// disables validation for that tool rather than blocking execution.
func (r *ToolRegistry) validateArgs(name string, args []byte) error {
	r.mu.Lock()
	rt, ok := r.tools[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("tool not found: %s", name)
	}
	if rt.schema == nil {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name+".json", bytes.NewReader(rt.tool.Schema())); err == nil {
			if schema, err := compiler.Compile(name + ".json"); err == nil {
				rt.schema = schema
			}
		}
	}
	schema := rt.schema
	r.mu.Unlock()

	if schema == nil {
		return nil
	}
	var decoded any
	if err := jsonUnmarshalLoose(args, &decoded); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("invalid arguments: %s", compactValidationError(err))
	}
	return nil
}

// jsonUnmarshalLoose decodes with json.Number so integer schema constraints
// validate exactly.
func jsonUnmarshalLoose(data []byte, v *any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func compactValidationError(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i > 0 {
		msg = msg[:i]
	}
	return msg
}
