package mcp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/corvid-run/agentcore/internal/config"
)

// Manager owns the MCP clients of one conversation.
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients []*Client
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger.With("component", "mcp")}
}

// Configure connects to the given servers. Any previously connected clients
// are shut down first, so reconfiguration never leaks old processes. A
// server that fails to connect is skipped with a warning; the rest of the
// set still comes up.
func (m *Manager) Configure(ctx context.Context, specs []config.MCPServerSpec) {
	m.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, spec := range specs {
		client, err := NewClient(spec)
		if err != nil {
			m.logger.Warn("skipping invalid mcp server", "mcp_server", spec.Name, "error", err)
			continue
		}
		if err := client.Connect(ctx); err != nil {
			m.logger.Warn("mcp server failed to connect", "mcp_server", spec.Name, "error", err)
			client.Close()
			continue
		}
		m.clients = append(m.clients, client)
	}
}

// Clients returns the connected clients.
func (m *Manager) Clients() []*Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Client, len(m.clients))
	copy(out, m.clients)
	return out
}

// Close shuts all clients down.
func (m *Manager) Close() {
	m.mu.Lock()
	clients := m.clients
	m.clients = nil
	m.mu.Unlock()
	for _, client := range clients {
		if err := client.Close(); err != nil {
			m.logger.Debug("closing mcp client", "mcp_server", client.Name(), "error", err)
		}
	}
}
