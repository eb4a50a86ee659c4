package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/corvid-run/agentcore/internal/config"
)

// Client wraps one MCP server connection.
type Client struct {
	name      string
	transport Transport
	logger    *slog.Logger
	tools     []ToolInfo
}

// NewClient builds a client for a server entry, picking the transport from
// its fields: Command selects stdio, URL selects HTTP.
func NewClient(spec config.MCPServerSpec) (*Client, error) {
	var transport Transport
	switch {
	case spec.Command != "":
		transport = NewStdioTransport(spec.Name, spec.Command, spec.Args, spec.Env)
	case spec.URL != "":
		transport = NewHTTPTransport(spec.URL, spec.Headers)
	default:
		return nil, fmt.Errorf("mcp server %q has neither command nor url", spec.Name)
	}
	return &Client{
		name:      spec.Name,
		transport: transport,
		logger:    slog.Default().With("component", "mcp", "mcp_server", spec.Name),
	}, nil
}

// Name returns the server name.
func (c *Client) Name() string { return c.name }

// Connect establishes the transport, performs the initialize handshake, and
// caches the server's tool list.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", c.name, err)
	}

	_, err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "agentcore",
			"version": "1.0",
		},
	})
	if err != nil {
		return fmt.Errorf("initialize %s: %w", c.name, err)
	}

	raw, err := c.transport.Call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return fmt.Errorf("list tools on %s: %w", c.name, err)
	}
	var listed toolsListResult
	if err := json.Unmarshal(raw, &listed); err != nil {
		return fmt.Errorf("decode tool list from %s: %w", c.name, err)
	}
	c.tools = listed.Tools
	c.logger.Debug("mcp server connected", "tools", len(c.tools))
	return nil
}

// Tools returns the cached tool list.
func (c *Client) Tools() []ToolInfo {
	return c.tools
}

// CallTool invokes one tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (*CallResult, error) {
	params := map[string]any{"name": name}
	if len(args) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(args, &decoded); err != nil {
			return nil, fmt.Errorf("tool arguments are not an object: %w", err)
		}
		params["arguments"] = decoded
	}

	raw, err := c.transport.Call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}
	var result CallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode call result: %w", err)
	}
	return &result, nil
}

// Close shuts the transport down.
func (c *Client) Close() error {
	return c.transport.Close()
}
