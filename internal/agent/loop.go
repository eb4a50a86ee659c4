package agent

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/corvid-run/agentcore/internal/agent/contract"
	"github.com/corvid-run/agentcore/internal/config"
	"github.com/corvid-run/agentcore/pkg/models"
	"github.com/google/uuid"
)

// MaxIterations bounds the model/tool alternation within one handled
// message.
const MaxIterations = 20

// Default token budgets used when the caller supplies none.
const (
	defaultMaxTokens      = 4096
	defaultThinkingBudget = 8192
)

// TurnOptions carries the per-message generation options.
type TurnOptions struct {
	// DeepThinking enables extended thinking for this turn.
	DeepThinking bool

	// ThinkingBudget overrides the default thinking token budget.
	ThinkingBudget int
}

// Agent drives one conversation: it owns the message history, streams model
// turns, executes requested tools, and emits the event sequence the
// controller consumes.
//
// At most one message may be streaming at a time; HandleMessage rejects
// overlapping calls. Cancel may be called from any goroutine.
type Agent struct {
	cfg      *config.AgentConfig
	provider LLMProvider
	contract contract.Contract
	registry *ToolRegistry
	executor *ToolExecutor
	logger   *slog.Logger

	history   []models.Message
	cancelled atomic.Bool
	streaming atomic.Bool
}

// New creates an agent bound to a provider and tool set. The history is
// seeded with the system prompt and any prior entries the config carries.
func New(cfg *config.AgentConfig, provider LLMProvider, registry *ToolRegistry, logger *slog.Logger) *Agent {
	if registry == nil {
		registry = NewToolRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "agent", "conversation_id", cfg.ConversationID)

	history := []models.Message{models.SystemMessage(cfg.SystemPrompt)}
	for _, entry := range cfg.History {
		switch models.Role(entry.Role) {
		case models.RoleUser, models.RoleAssistant, models.RoleSystem:
			history = append(history, models.Message{Role: models.Role(entry.Role), Content: entry.Content})
		}
	}

	return &Agent{
		cfg:      cfg,
		provider: provider,
		contract: contract.New(cfg.Provider),
		registry: registry,
		executor: NewToolExecutor(registry, logger),
		logger:   logger,
		history:  history,
	}
}

// Config returns the conversation configuration.
func (a *Agent) Config() *config.AgentConfig { return a.cfg }

// Registry returns the agent's tool registry.
func (a *Agent) Registry() *ToolRegistry { return a.registry }

// History returns a copy of the message history.
func (a *Agent) History() []models.Message {
	out := make([]models.Message, len(a.history))
	copy(out, a.history)
	return out
}

// Cancel signals cooperative cancellation of the in-flight generation. The
// loop checks the flag at every event boundary; already-appended history is
// never rolled back. Duplicate calls are harmless.
func (a *Agent) Cancel() {
	a.cancelled.Store(true)
}

// HandleMessage processes one user message and returns the event stream
// describing the resulting assistant turn. The user message is appended to
// history before the first event is produced.
func (a *Agent) HandleMessage(ctx context.Context, content string, opts *TurnOptions) (<-chan models.StreamEvent, error) {
	if a.provider == nil {
		return nil, ErrNoProvider
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if !a.streaming.CompareAndSwap(false, true) {
		return nil, ErrStreamInFlight
	}

	a.cancelled.Store(false)
	a.history = append(a.history, models.UserMessage(content))

	if opts == nil {
		opts = &TurnOptions{}
	}
	// The channel is unbuffered: event delivery is awaited, so a slow
	// consumer backpressures the loop and cancellation takes effect at
	// the next event boundary.
	events := make(chan models.StreamEvent)

	go func() {
		defer close(events)
		defer a.streaming.Store(false)

		turn := &turnState{agent: a, ctx: ctx, events: events, opts: opts}
		if err := turn.run(); err != nil {
			turn.emit(errorEvent(err))
			turnsTotal.WithLabelValues("error").Inc()
		}
	}()

	return events, nil
}

// turnState carries the per-message loop state.
type turnState struct {
	agent  *Agent
	ctx    context.Context
	events chan<- models.StreamEvent
	opts   *TurnOptions

	usage models.TokenUsage
}

// emit delivers one event unless the turn was cancelled. It reports whether
// the event was accepted.
func (t *turnState) emit(event models.StreamEvent) bool {
	if t.agent.cancelled.Load() && event.Type != models.EventError {
		return false
	}
	select {
	case t.events <- event:
		return true
	case <-t.ctx.Done():
		return false
	}
}

// run executes the iteration protocol. A nil return means the event stream
// ended normally (complete emitted) or cancellation stopped it silently.
func (t *turnState) run() error {
	a := t.agent

	for iteration := 0; iteration < MaxIterations; iteration++ {
		if a.cancelled.Load() {
			turnsTotal.WithLabelValues("cancelled").Inc()
			return nil
		}

		outcome, err := t.streamIteration()
		if err != nil {
			return err
		}
		if outcome == nil {
			// Cancelled mid-stream or mid-tool; stop without complete.
			turnsTotal.WithLabelValues("cancelled").Inc()
			return nil
		}
		if outcome.finished {
			iterationsPerTurn.Observe(float64(iteration + 1))
			turnsTotal.WithLabelValues("complete").Inc()
			return nil
		}
	}

	return ErrMaxIterations
}

// iterationOutcome describes how one iteration ended.
type iterationOutcome struct {
	// finished is true when the model produced a turn with no tool calls
	// and the complete event was emitted.
	finished bool
}

// streamIteration runs one model call plus the execution of any captured
// tool calls. Returns (nil, nil) when cancellation stopped the turn.
func (t *turnState) streamIteration() (*iterationOutcome, error) {
	a := t.agent

	chunks, err := a.provider.Stream(t.ctx, t.buildRequest())
	if err != nil {
		return nil, err
	}

	// On early exit the remaining chunks are drained in the background so
	// the provider goroutine is never left blocked on its channel.
	streamDone := false
	defer func() {
		if !streamDone {
			go func() {
				for range chunks {
				}
			}()
		}
	}()

	acc := &toolCallAccumulator{}
	inter := &interleaver{}
	var full strings.Builder

	for chunk := range chunks {
		if a.cancelled.Load() {
			return nil, nil
		}
		if chunk.Err != nil {
			if t.ctx.Err() != nil {
				return nil, ErrCancelled
			}
			return nil, chunk.Err
		}

		for _, block := range chunk.Blocks {
			if delta := a.contract.ExtractTextDelta(block); delta != "" {
				full.WriteString(delta)
				inter.text(delta)
				if !t.emit(models.AssistantDeltaEvent(delta)) {
					return nil, nil
				}
			}
			for _, thinking := range a.contract.ExtractThinkingDeltas(block) {
				if thinking == "" {
					continue
				}
				if !t.emit(models.ThinkingDeltaEvent(thinking)) {
					return nil, nil
				}
			}
		}

		for _, tcc := range chunk.ToolCalls {
			inter.toolCall(tcc)
			acc.add(tcc)
		}
		if chunk.Usage != nil {
			t.usage.Prompt += chunk.Usage.Prompt
			t.usage.Completion += chunk.Usage.Completion
		}
	}

	streamDone = true
	content := full.String()
	calls := acc.completed()

	if len(calls) == 0 {
		a.history = append(a.history, models.AssistantMessage(content, nil))
		usage := t.usage
		if !t.emit(models.CompleteEvent(content, inter.render(acc), &usage)) {
			return nil, nil
		}
		return &iterationOutcome{finished: true}, nil
	}

	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = uuid.NewString()
		}
	}
	a.history = append(a.history, models.AssistantMessage(content, calls))

	for _, call := range calls {
		if a.cancelled.Load() {
			return nil, nil
		}
		if !t.emit(models.ToolCallEvent(call.ID, call.Name, call.Args)) {
			return nil, nil
		}

		result := t.executeCall(call)
		if !t.emit(models.ToolResultEvent(call.ID, result, !result.Success)) {
			return nil, nil
		}
		a.history = append(a.history, models.ToolMessage(result.ModelContent(), call.ID))
	}

	return &iterationOutcome{}, nil
}

// executeCall runs one tool call, attaching the turn's emitter to tools
// that stream their own events while they run.
func (t *turnState) executeCall(call models.ToolCall) *models.ToolResult {
	if tool, ok := t.agent.registry.Get(call.Name); ok {
		if sender, ok := tool.(RuntimeEventSender); ok {
			sender.SetEventSink(func(_ context.Context, event models.StreamEvent) error {
				if !t.emit(event) {
					return ErrCancelled
				}
				return nil
			})
			defer sender.SetEventSink(nil)
		}
	}
	return t.agent.executor.Execute(t.ctx, call)
}

// buildRequest assembles the provider request over the current history,
// normalizing persisted content blocks through the contract layer.
func (t *turnState) buildRequest() *CompletionRequest {
	a := t.agent

	messages := make([]models.Message, len(a.history))
	copy(messages, a.history)
	for i := range messages {
		normalized := a.contract.NormalizeHistoryContent(asBlocks(messages[i].Content))
		messages[i].Content = fromBlocks(normalized)
	}

	var tools []ToolDefinition
	if a.cfg.ToolsEnabled {
		tools = a.registry.Definitions()
	}

	deep := t.opts.DeepThinking || a.cfg.DeepThinking
	var params map[string]any
	if deep {
		budget := t.opts.ThinkingBudget
		if budget <= 0 {
			budget = defaultThinkingBudget
		}
		params = a.contract.BuildThinkingKwargs(budget)
	} else {
		params = a.contract.BuildBudgetKwargs(defaultMaxTokens)
	}

	return &CompletionRequest{
		Model:    a.cfg.Model,
		System:   a.cfg.SystemPrompt,
		Messages: messages,
		Tools:    tools,
		Params:   params,
	}
}

// asBlocks converts generic block-list content to the contract layer's
// Block shape; everything else passes through untouched.
func asBlocks(content any) any {
	list, ok := content.([]map[string]any)
	if !ok {
		return content
	}
	blocks := make([]contract.Block, len(list))
	for i, m := range list {
		blocks[i] = contract.Block(m)
	}
	return blocks
}

// fromBlocks converts normalized block lists back to the generic shape the
// provider layer consumes.
func fromBlocks(content any) any {
	blocks, ok := content.([]contract.Block)
	if !ok {
		return content
	}
	list := make([]map[string]any, len(blocks))
	for i, b := range blocks {
		list[i] = map[string]any(b)
	}
	return list
}

// interleaver records the order in which text and tool calls were observed
// within one model turn, for the replay blocks of the complete event.
type interleaver struct {
	slots []interleavedSlot
}

type interleavedSlot struct {
	isText    bool
	text      string
	callIndex int
}

func (in *interleaver) text(delta string) {
	if n := len(in.slots); n > 0 && in.slots[n-1].isText {
		in.slots[n-1].text += delta
		return
	}
	in.slots = append(in.slots, interleavedSlot{isText: true, text: delta})
}

func (in *interleaver) toolCall(chunk ToolCallChunk) {
	idx := 0
	if chunk.Index != nil {
		idx = *chunk.Index
	}
	for _, slot := range in.slots {
		if !slot.isText && slot.callIndex == idx {
			return
		}
	}
	in.slots = append(in.slots, interleavedSlot{callIndex: idx})
}

// render materializes the observed order into content blocks, dropping
// slots whose tool call was filtered as a ghost.
func (in *interleaver) render(acc *toolCallAccumulator) []models.ContentBlock {
	var blocks []models.ContentBlock
	for _, slot := range in.slots {
		if slot.isText {
			blocks = append(blocks, models.TextBlock(slot.text))
			continue
		}
		if slot.callIndex >= len(acc.calls) {
			continue
		}
		call := acc.calls[slot.callIndex]
		if call.Name == "" {
			continue
		}
		input := call.Args
		if input == nil {
			input = map[string]any{}
		}
		blocks = append(blocks, models.ToolCallBlock(call.ID, call.Name, input))
	}
	return blocks
}
