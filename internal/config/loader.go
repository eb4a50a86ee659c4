package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings are the process-level connection settings, read once at startup.
type Settings struct {
	// BackendWSURL is the control-channel endpoint.
	BackendWSURL string

	// ContainerToken authenticates the worker to the backend. May be a
	// JWT or an opaque bearer string.
	ContainerToken string

	// Workspace is the filesystem root all file-touching tools are
	// confined to.
	Workspace string

	// DefaultsFile optionally points at a YAML defaults file merged into
	// every conversation's configuration.
	DefaultsFile string
}

const (
	defaultBackendWSURL = "ws://host.docker.internal:3001/internal/ws"
	defaultWorkspace    = "/workspace"
)

// Load reads the process settings from the environment, applying defaults.
func Load() Settings {
	return Settings{
		BackendWSURL:   envOr("BACKEND_WS_URL", defaultBackendWSURL),
		ContainerToken: os.Getenv("CONTAINER_TOKEN"),
		Workspace:      envOr("WORKSPACE_ROOT", defaultWorkspace),
		DefaultsFile:   os.Getenv("AGENT_DEFAULTS_FILE"),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Defaults are optional worker-side defaults loaded from a YAML file. They
// supplement the init message: MCP servers listed here are appended to the
// servers the init payload carries.
type Defaults struct {
	MCPServers []MCPServerSpec `yaml:"mcp_servers,omitempty"`
}

// LoadDefaults parses a YAML defaults file. A missing file is not an error;
// it returns empty defaults.
func LoadDefaults(path string) (Defaults, error) {
	var d Defaults
	if strings.TrimSpace(path) == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return d, fmt.Errorf("read defaults file: %w", err)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse defaults file %s: %w", path, err)
	}
	return d, nil
}

// Merge folds file defaults into an agent config in place. Init-message
// values win; defaults only fill gaps and append MCP servers whose names
// are not already present.
func (d Defaults) Merge(cfg *AgentConfig) {
	if cfg == nil {
		return
	}
	known := make(map[string]bool, len(cfg.MCPServers))
	for _, s := range cfg.MCPServers {
		known[s.Name] = true
	}
	for _, s := range d.MCPServers {
		if s.Name == "" || known[s.Name] {
			continue
		}
		cfg.MCPServers = append(cfg.MCPServers, s)
	}
}
