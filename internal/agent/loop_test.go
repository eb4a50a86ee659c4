package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/corvid-run/agentcore/internal/agent/contract"
	"github.com/corvid-run/agentcore/internal/config"
	"github.com/corvid-run/agentcore/pkg/models"
)

// scriptedProvider replays a fixed sequence of chunk batches, one batch per
// Stream call. The last batch repeats when calls outnumber batches.
type scriptedProvider struct {
	name    string
	batches [][]StreamChunk
	calls   int

	// lastRequest records the most recent request for assertions.
	lastRequest *CompletionRequest
}

func (p *scriptedProvider) Name() string {
	if p.name == "" {
		return "stub"
	}
	return p.name
}

func (p *scriptedProvider) Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error) {
	p.lastRequest = req
	batch := p.batches[min(p.calls, len(p.batches)-1)]
	p.calls++

	out := make(chan StreamChunk, len(batch)+1)
	go func() {
		defer close(out)
		for _, chunk := range batch {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func textChunk(text string) StreamChunk {
	return StreamChunk{Blocks: []contract.Block{{"type": "text", "text": text}}}
}

func thinkingChunk(text string) StreamChunk {
	return StreamChunk{Blocks: []contract.Block{{"type": "thinking", "thinking": text}}}
}

// echoTool records its invocations and returns a canned result.
type echoTool struct {
	name     string
	invoked  int
	lastArgs json.RawMessage
	result   *models.ToolResult
}

func (e *echoTool) Name() string        { return e.name }
func (e *echoTool) Description() string { return "test tool" }
func (e *echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}
func (e *echoTool) Execute(_ context.Context, args json.RawMessage) (*models.ToolResult, error) {
	e.invoked++
	e.lastArgs = args
	if e.result != nil {
		return e.result, nil
	}
	return models.ToolSuccess(e.name, "ok"), nil
}

func newTestAgent(t *testing.T, provider LLMProvider, tools ...Tool) *Agent {
	t.Helper()
	cfg := &config.AgentConfig{
		ConversationID: "conv-test",
		Provider:       "anthropic",
		Model:          "claude-sonnet-4-20250514",
		ToolsEnabled:   true,
	}
	cfg.ApplyDefaults()

	registry := NewToolRegistry()
	for _, tool := range tools {
		registry.RegisterBuiltin(tool)
	}
	return New(cfg, provider, registry, nil)
}

func collect(t *testing.T, events <-chan models.StreamEvent) []models.StreamEvent {
	t.Helper()
	var out []models.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for event stream to close")
		}
	}
}

func eventTypes(events []models.StreamEvent) []models.StreamEventType {
	types := make([]models.StreamEventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestEchoTurn(t *testing.T) {
	provider := &scriptedProvider{batches: [][]StreamChunk{
		{textChunk("Hi"), {Done: true}},
	}}
	a := newTestAgent(t, provider)

	events, err := a.HandleMessage(context.Background(), "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, events)

	want := []models.StreamEventType{models.EventAssistantDelta, models.EventComplete}
	if len(got) != len(want) {
		t.Fatalf("events = %v", eventTypes(got))
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i].Type, want[i])
		}
	}
	if got[0].Delta != "Hi" {
		t.Errorf("delta = %q", got[0].Delta)
	}
	if got[1].Content != "Hi" {
		t.Errorf("complete content = %q", got[1].Content)
	}

	history := a.History()
	if len(history) != 3 {
		t.Fatalf("history = %d messages, want 3", len(history))
	}
	if history[0].Role != models.RoleSystem ||
		history[1].Role != models.RoleUser || history[1].Text() != "hello" ||
		history[2].Role != models.RoleAssistant || history[2].Text() != "Hi" {
		t.Errorf("history = %+v", history)
	}
}

func TestOneToolCallTurn(t *testing.T) {
	provider := &scriptedProvider{batches: [][]StreamChunk{
		{{ToolCalls: []ToolCallChunk{{Index: intPtr(0), ID: "tc1", Name: "shell", Args: `{"command":"echo hi"}`}}}, {Done: true}},
		{textChunk("done"), {Done: true}},
	}}
	shell := &echoTool{
		name:   "shell",
		result: models.ToolSuccess("shell", "hi\n").WithData(map[string]any{"exit_code": 0, "stdout": "hi\n", "stderr": ""}),
	}
	a := newTestAgent(t, provider, shell)

	events, err := a.HandleMessage(context.Background(), "run it", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, events)

	want := []models.StreamEventType{
		models.EventToolCall, models.EventToolResult,
		models.EventAssistantDelta, models.EventComplete,
	}
	types := eventTypes(got)
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}

	if got[0].ToolCallID != "tc1" || got[0].ToolName != "shell" {
		t.Errorf("tool_call = %+v", got[0])
	}
	if got[0].ToolInput["command"] != "echo hi" {
		t.Errorf("tool_input = %v", got[0].ToolInput)
	}
	if got[1].ToolCallID != "tc1" || !got[1].Result.Success {
		t.Errorf("tool_result = %+v", got[1])
	}
	if stdout, _ := got[1].Result.Data["stdout"].(string); !strings.Contains(stdout, "hi") {
		t.Errorf("stdout = %q", stdout)
	}
	if shell.invoked != 1 {
		t.Errorf("tool invoked %d times", shell.invoked)
	}

	// History: system, user, assistant(tool_calls), tool, assistant.
	history := a.History()
	if len(history) != 5 {
		t.Fatalf("history = %d messages", len(history))
	}
	if history[2].Role != models.RoleAssistant || len(history[2].ToolCalls) != 1 {
		t.Errorf("assistant tool-call message = %+v", history[2])
	}
	if history[3].Role != models.RoleTool || history[3].ToolCallID != "tc1" {
		t.Errorf("tool message = %+v", history[3])
	}
}

func TestGhostIndexGap(t *testing.T) {
	provider := &scriptedProvider{batches: [][]StreamChunk{
		{
			textChunk("Sure"),
			{ToolCalls: []ToolCallChunk{{Index: intPtr(1), ID: "tc-real", Name: "shell", Args: `{"command":"echo ok"}`}}},
			{Done: true},
		},
		{textChunk("finished"), {Done: true}},
	}}
	shell := &echoTool{name: "shell"}
	a := newTestAgent(t, provider, shell)

	events, err := a.HandleMessage(context.Background(), "go", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, events)

	var toolCalls []models.StreamEvent
	for _, ev := range got {
		if ev.Type == models.EventToolCall {
			toolCalls = append(toolCalls, ev)
		}
		if ev.Type == models.EventError {
			t.Errorf("unexpected error event: %s %s", ev.Code, ev.Message)
		}
	}
	if len(toolCalls) != 1 {
		t.Fatalf("tool_call events = %d, want exactly 1", len(toolCalls))
	}
	if toolCalls[0].ToolCallID != "tc-real" {
		t.Errorf("tool_call_id = %q, want tc-real", toolCalls[0].ToolCallID)
	}
	if shell.invoked != 1 {
		t.Errorf("tool invoked %d times, want 1", shell.invoked)
	}
}

func TestMaxIterations(t *testing.T) {
	provider := &scriptedProvider{batches: [][]StreamChunk{
		{{ToolCalls: []ToolCallChunk{{Index: intPtr(0), ID: "tc", Name: "shell", Args: `{}`}}}, {Done: true}},
	}}
	a := newTestAgent(t, provider, &echoTool{name: "shell"})

	events, err := a.HandleMessage(context.Background(), "loop forever", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, events)

	last := got[len(got)-1]
	if last.Type != models.EventError || last.Code != models.ErrorCodeMaxIterations {
		t.Errorf("last event = %+v, want max_iterations error", last)
	}
	if provider.calls != MaxIterations {
		t.Errorf("provider calls = %d, want %d", provider.calls, MaxIterations)
	}
}

func TestCancellationMidStream(t *testing.T) {
	var chunks []StreamChunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, textChunk("x"))
	}
	chunks = append(chunks, StreamChunk{Done: true})
	provider := &scriptedProvider{batches: [][]StreamChunk{chunks}}
	a := newTestAgent(t, provider)

	events, err := a.HandleMessage(context.Background(), "talk", nil)
	if err != nil {
		t.Fatal(err)
	}

	var deltas int
	var sawComplete bool
	for ev := range events {
		if ev.Type == models.EventAssistantDelta {
			deltas++
			if deltas == 2 {
				a.Cancel()
			}
		}
		if ev.Type == models.EventComplete {
			sawComplete = true
		}
	}

	if deltas < 2 || deltas >= 10 {
		t.Errorf("deltas = %d, want at least 2 and fewer than 10", deltas)
	}
	if sawComplete {
		t.Error("complete event emitted after cancellation")
	}
}

func TestThinkingDeltasNotAccumulated(t *testing.T) {
	provider := &scriptedProvider{batches: [][]StreamChunk{
		{thinkingChunk("pondering"), textChunk("answer"), {Done: true}},
	}}
	a := newTestAgent(t, provider)

	events, err := a.HandleMessage(context.Background(), "think", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, events)

	var thinking, complete *models.StreamEvent
	for i := range got {
		switch got[i].Type {
		case models.EventThinkingDelta:
			thinking = &got[i]
		case models.EventComplete:
			complete = &got[i]
		}
	}
	if thinking == nil || thinking.Delta != "pondering" {
		t.Fatalf("thinking event = %+v", thinking)
	}
	if complete == nil || complete.Content != "answer" {
		t.Fatalf("complete = %+v", complete)
	}
	if strings.Contains(complete.Content, "pondering") {
		t.Error("thinking bytes leaked into complete content")
	}
	for _, msg := range a.History() {
		if s, ok := msg.Content.(string); ok && strings.Contains(s, "pondering") {
			t.Error("thinking bytes persisted to history")
		}
	}
}

func TestProviderErrorBecomesAgentError(t *testing.T) {
	provider := &scriptedProvider{batches: [][]StreamChunk{
		{textChunk("part"), {Err: errors.New("rate limited")}},
	}}
	a := newTestAgent(t, provider)

	events, err := a.HandleMessage(context.Background(), "fail", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, events)

	last := got[len(got)-1]
	if last.Type != models.EventError || last.Code != models.ErrorCodeAgentError {
		t.Errorf("last event = %+v, want agent_error", last)
	}
}

func TestUnknownToolReturnsErrorEnvelope(t *testing.T) {
	provider := &scriptedProvider{batches: [][]StreamChunk{
		{{ToolCalls: []ToolCallChunk{{Index: intPtr(0), ID: "tc1", Name: "nope", Args: `{}`}}}, {Done: true}},
		{textChunk("recovered"), {Done: true}},
	}}
	a := newTestAgent(t, provider)

	events, err := a.HandleMessage(context.Background(), "call it", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, events)

	var result *models.StreamEvent
	for i := range got {
		if got[i].Type == models.EventToolResult {
			result = &got[i]
		}
	}
	if result == nil {
		t.Fatal("no tool_result event")
	}
	if !result.IsError || result.Result.Success {
		t.Errorf("tool_result = %+v, want error envelope", result.Result)
	}
	if !strings.Contains(result.Result.ErrorMessage(), "Unknown tool") {
		t.Errorf("error = %q", result.Result.ErrorMessage())
	}
	// The turn still completes; tool failures never end the loop.
	if got[len(got)-1].Type != models.EventComplete {
		t.Errorf("last event = %s, want complete", got[len(got)-1].Type)
	}
}

func TestRejectsOverlappingMessages(t *testing.T) {
	block := make(chan struct{})
	provider := &blockingProvider{release: block}
	a := newTestAgent(t, provider)

	events, err := a.HandleMessage(context.Background(), "first", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.HandleMessage(context.Background(), "second", nil); !errors.Is(err, ErrStreamInFlight) {
		t.Errorf("second HandleMessage error = %v, want ErrStreamInFlight", err)
	}

	close(block)
	collect(t, events)
}

func TestRejectsEmptyMessage(t *testing.T) {
	a := newTestAgent(t, &scriptedProvider{batches: [][]StreamChunk{{{Done: true}}}})
	if _, err := a.HandleMessage(context.Background(), "  ", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("error = %v, want ErrEmptyMessage", err)
	}
}

func TestTokenUsageFlowsToComplete(t *testing.T) {
	provider := &scriptedProvider{batches: [][]StreamChunk{
		{textChunk("hi"), {Done: true, Usage: &models.TokenUsage{Prompt: 12, Completion: 7}}},
	}}
	a := newTestAgent(t, provider)

	events, err := a.HandleMessage(context.Background(), "count", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, events)

	complete := got[len(got)-1]
	if complete.Type != models.EventComplete {
		t.Fatalf("last event = %s", complete.Type)
	}
	if complete.TokenUsage == nil || complete.TokenUsage.Prompt != 12 || complete.TokenUsage.Completion != 7 {
		t.Errorf("token_usage = %+v", complete.TokenUsage)
	}
}

func TestDeepThinkingBuildsThinkingParams(t *testing.T) {
	provider := &scriptedProvider{batches: [][]StreamChunk{
		{textChunk("ok"), {Done: true}},
	}}
	a := newTestAgent(t, provider)

	events, err := a.HandleMessage(context.Background(), "think hard", &TurnOptions{DeepThinking: true, ThinkingBudget: 2048})
	if err != nil {
		t.Fatal(err)
	}
	collect(t, events)

	params := provider.lastRequest.Params
	thinking, ok := params["thinking"].(map[string]any)
	if !ok {
		t.Fatalf("params = %v, want anthropic thinking kwargs", params)
	}
	if thinking["budget_tokens"] != 2047 {
		t.Errorf("budget_tokens = %v, want 2047", thinking["budget_tokens"])
	}
	if params["max_tokens"] != 2048 {
		t.Errorf("max_tokens = %v, want 2048", params["max_tokens"])
	}
}

// blockingProvider holds its stream open until released, for in-flight
// rejection tests.
type blockingProvider struct {
	release <-chan struct{}
}

func (p *blockingProvider) Name() string { return "stub" }

func (p *blockingProvider) Stream(ctx context.Context, _ *CompletionRequest) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		select {
		case <-p.release:
		case <-ctx.Done():
		}
		out <- StreamChunk{Done: true}
	}()
	return out, nil
}
