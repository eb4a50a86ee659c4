package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corvid-run/agentcore/internal/agent"
	"github.com/corvid-run/agentcore/internal/config"
)

// fakeServer implements a minimal MCP endpoint over streamable HTTP.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req JSONRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request: %v", err)
			return
		}
		respond := func(result any) {
			raw, _ := json.Marshal(result)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: raw})
		}
		switch req.Method {
		case "initialize":
			respond(map[string]any{"protocolVersion": ProtocolVersion})
		case "tools/list":
			respond(map[string]any{"tools": []map[string]any{
				{
					"name":        "docs_search",
					"description": "Search the documentation index.",
					"inputSchema": map[string]any{"type": "object", "properties": map[string]any{"query": map[string]any{"type": "string"}}},
					"annotations": map[string]any{"readOnlyHint": true},
				},
				{
					"name": "docs_delete",
				},
			}})
		case "tools/call":
			params, _ := req.Params.(map[string]any)
			respond(map[string]any{"content": []map[string]any{
				{"type": "text", "text": fmt.Sprintf("called %v", params["name"])},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestManagerConfigureAndBridge(t *testing.T) {
	server := fakeServer(t)
	defer server.Close()

	specs := []config.MCPServerSpec{{
		Name: "docs",
		URL:  server.URL,
		ReadOnlyOverrides: map[string]any{
			"docs_delete": "false",
		},
	}}

	manager := NewManager(nil)
	defer manager.Close()
	manager.Configure(context.Background(), specs)

	clients := manager.Clients()
	if len(clients) != 1 {
		t.Fatalf("clients = %d, want 1", len(clients))
	}
	if len(clients[0].Tools()) != 2 {
		t.Fatalf("tools = %d, want 2", len(clients[0].Tools()))
	}

	registry := agent.NewToolRegistry()
	RegisterTools(registry, manager, specs)

	caps, ok := registry.Capabilities("docs_search")
	if !ok {
		t.Fatal("docs_search not registered")
	}
	if caps.Source != agent.SourceMCP || !caps.ReadOnly || caps.MCPServer != "docs" {
		t.Errorf("docs_search caps = %+v", caps)
	}
	if registry.IsReadOnly("docs_delete") {
		t.Error("docs_delete classified read-only despite explicit override")
	}

	tool, _ := registry.Get("docs_search")
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"agent loop"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Text != "called docs_search" {
		t.Errorf("result = %+v", result)
	}
}

func TestManagerReconfigureShutsDownOldClients(t *testing.T) {
	server := fakeServer(t)
	defer server.Close()

	manager := NewManager(nil)
	defer manager.Close()

	manager.Configure(context.Background(), []config.MCPServerSpec{{Name: "docs", URL: server.URL}})
	if len(manager.Clients()) != 1 {
		t.Fatal("first configure failed")
	}

	manager.Configure(context.Background(), nil)
	if len(manager.Clients()) != 0 {
		t.Error("reconfigure kept stale clients")
	}
}

func TestClientRequiresTransport(t *testing.T) {
	if _, err := NewClient(config.MCPServerSpec{Name: "empty"}); err == nil {
		t.Error("NewClient accepted a spec with neither command nor url")
	}
}
