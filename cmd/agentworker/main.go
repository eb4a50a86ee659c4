// Command agentworker is the execution runtime of a tool-using chat agent.
// It connects to the backend control channel, waits for an init message,
// and then drives one conversation: user messages stream through the agent
// loop, tool calls execute inside the workspace, and every event goes back
// over the websocket as JSON.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/corvid-run/agentcore/internal/agent"
	"github.com/corvid-run/agentcore/internal/agent/providers"
	"github.com/corvid-run/agentcore/internal/config"
	"github.com/corvid-run/agentcore/internal/mcp"
	"github.com/corvid-run/agentcore/internal/tools/exec"
	"github.com/corvid-run/agentcore/internal/tools/files"
	"github.com/corvid-run/agentcore/internal/tools/imagegen"
	"github.com/corvid-run/agentcore/internal/tools/question"
	"github.com/corvid-run/agentcore/internal/tools/subagent"
	"github.com/corvid-run/agentcore/internal/tools/web"
	"github.com/corvid-run/agentcore/pkg/models"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	settings := config.Load()
	logClaims(logger, settings.ContainerToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := settings.BackendWSURL + "?token=" + settings.ContainerToken
	logger.Info("connecting to backend", "url", settings.BackendWSURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		logger.Error("failed to connect to backend", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	worker := &worker{
		conn:     conn,
		settings: settings,
		logger:   logger,
		mcps:     mcp.NewManager(logger),
	}
	defer worker.mcps.Close()

	if err := worker.send(map[string]any{"type": "ready"}); err != nil {
		logger.Error("failed to send ready", "error", err)
		os.Exit(1)
	}
	logger.Info("agent ready, waiting for messages")

	worker.run(ctx)
}

// logClaims surfaces the container token's claims when it is a JWT; opaque
// tokens pass through silently.
func logClaims(logger *slog.Logger, token string) {
	if token == "" {
		return
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		logger.Debug("container token is an opaque bearer string")
		return
	}
	if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
		logger.Debug("container token claims", "sub", claims["sub"], "exp", claims["exp"])
	}
}

// inboundMessage is the union of all control-channel message payloads.
type inboundMessage struct {
	Type string `json:"type"`

	// user_message
	Content        string `json:"content"`
	DeepThinking   *bool  `json:"deep_thinking"`
	ThinkingBudget int    `json:"thinking_budget"`

	// answer
	QuestionnaireID string          `json:"questionnaire_id"`
	Answers         []models.Answer `json:"answers"`
}

// worker owns the control-channel connection and the current conversation.
type worker struct {
	conn     *websocket.Conn
	settings config.Settings
	logger   *slog.Logger
	mcps     *mcp.Manager

	writeMu sync.Mutex

	chat      *agent.Agent
	questions *question.Tool
}

func (w *worker) send(payload any) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(payload)
}

func (w *worker) sendEvent(event models.StreamEvent) {
	if err := w.send(event); err != nil {
		w.logger.Warn("failed to send event", "type", event.Type, "error", err)
	}
}

// run dispatches inbound messages until the connection closes. Dispatch
// errors become error events; the channel stays open.
func (w *worker) run(ctx context.Context) {
	for {
		var raw json.RawMessage
		if err := w.conn.ReadJSON(&raw); err != nil {
			w.logger.Info("control channel closed", "error", err)
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			w.sendEvent(models.ErrorEvent(models.ErrorCodeAgentError, "unparseable message: "+err.Error()))
			continue
		}

		switch msg.Type {
		case "init":
			w.handleInit(ctx, raw)
		case "user_message":
			w.handleUserMessage(ctx, msg)
		case "cancel":
			if w.chat != nil {
				w.chat.Cancel()
			}
		case "answer":
			if w.questions == nil || !w.questions.SubmitAnswer(msg.QuestionnaireID, msg.Answers) {
				w.logger.Debug("answer for unknown questionnaire", "questionnaire_id", msg.QuestionnaireID)
			}
		default:
			w.logger.Debug("ignoring unknown message type", "type", msg.Type)
		}
	}
}

func (w *worker) handleInit(ctx context.Context, raw json.RawMessage) {
	var cfg config.AgentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		w.sendEvent(models.ErrorEvent(models.ErrorCodeAgentError, "invalid init payload: "+err.Error()))
		return
	}
	cfg.ApplyDefaults()
	if defaults, err := config.LoadDefaults(w.settings.DefaultsFile); err != nil {
		w.logger.Warn("ignoring unreadable defaults file", "path", w.settings.DefaultsFile, "error", err)
	} else {
		defaults.Merge(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		w.sendEvent(models.ErrorEvent(models.ErrorCodeAgentError, err.Error()))
		return
	}

	provider, err := providers.New(providers.Config{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		EndpointURL: cfg.EndpointURL,
	})
	if err != nil {
		w.sendEvent(models.ErrorEvent(models.ErrorCodeAgentError, err.Error()))
		return
	}

	registry := w.buildRegistry(ctx, &cfg)
	w.chat = agent.New(&cfg, provider, registry, w.logger)
	w.logger.Info("initialized conversation", "conversation_id", cfg.ConversationID, "provider", cfg.Provider, "model", cfg.Model)
}

// buildRegistry wires the built-in tool set, the subagent tools, and any
// MCP servers the conversation declares.
func (w *worker) buildRegistry(ctx context.Context, cfg *config.AgentConfig) *agent.ToolRegistry {
	registry := agent.NewToolRegistry()
	if !cfg.ToolsEnabled {
		return registry
	}

	workspace := w.settings.Workspace
	fileCfg := files.Config{Workspace: workspace}
	manager := exec.NewManager(workspace)

	registry.RegisterBuiltin(exec.NewShellTool(manager))
	registry.RegisterBuiltin(files.NewReadTool(fileCfg))
	registry.RegisterBuiltin(files.NewWriteTool(fileCfg))
	registry.RegisterBuiltin(files.NewEditTool(fileCfg))
	registry.RegisterBuiltin(files.NewGlobTool(fileCfg))
	registry.RegisterBuiltin(files.NewGrepTool(fileCfg))
	registry.RegisterBuiltin(files.NewListTool(fileCfg))
	registry.RegisterBuiltin(web.NewFetchTool(nil))
	registry.RegisterBuiltin(web.NewSearchTool(nil, ""))
	registry.RegisterBuiltin(exec.NewCodeInterpreterTool(manager))

	var imageBackend imagegen.Backend
	if backend, err := imagegen.NewOpenAIBackend(cfg.APIKey, cfg.EndpointURL, cfg.Model); err == nil && cfg.Provider == "openai" {
		imageBackend = backend
	}
	registry.RegisterBuiltin(imagegen.New(workspace, imageBackend))

	w.questions = question.New()
	registry.RegisterBuiltin(w.questions)

	runner := subagent.NewRunner(cfg, registry, func(settings config.SubagentSettings) (agent.LLMProvider, error) {
		return providers.New(providers.Config{
			Provider:    settings.Provider,
			Model:       settings.Model,
			APIKey:      settings.APIKey,
			EndpointURL: settings.EndpointURL,
		})
	}, w.logger)
	registry.RegisterBuiltin(subagent.NewExploreTool(runner))
	registry.RegisterBuiltin(subagent.NewTaskTool(runner))

	w.mcps.Configure(ctx, cfg.MCPServers)
	mcp.RegisterTools(registry, w.mcps, cfg.MCPServers)

	return registry
}

func (w *worker) handleUserMessage(ctx context.Context, msg inboundMessage) {
	if w.chat == nil {
		w.sendEvent(models.ErrorEvent(models.ErrorCodeNotInitialized, "no conversation initialized"))
		return
	}

	opts := &agent.TurnOptions{ThinkingBudget: msg.ThinkingBudget}
	if msg.DeepThinking != nil {
		opts.DeepThinking = *msg.DeepThinking
	}

	events, err := w.chat.HandleMessage(ctx, msg.Content, opts)
	if err != nil {
		w.sendEvent(models.ErrorEvent(models.ErrorCodeAgentError, err.Error()))
		return
	}

	go func() {
		for event := range events {
			w.sendEvent(event)
		}
	}()
}
