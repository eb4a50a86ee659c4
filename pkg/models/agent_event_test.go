package models

import (
	"encoding/json"
	"testing"
)

func mustMarshal(t *testing.T, e StreamEvent) map[string]any {
	t.Helper()
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal %s event: %v", e.Type, err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal %s event: %v", e.Type, err)
	}
	return decoded
}

func TestStreamEventWireShapes(t *testing.T) {
	tests := []struct {
		name  string
		event StreamEvent
		keys  []string
	}{
		{
			name:  "assistant delta",
			event: AssistantDeltaEvent("Hi"),
			keys:  []string{"type", "delta"},
		},
		{
			name:  "thinking delta",
			event: ThinkingDeltaEvent("hmm"),
			keys:  []string{"type", "delta"},
		},
		{
			name:  "tool call",
			event: ToolCallEvent("tc1", "shell", map[string]any{"command": "echo hi"}),
			keys:  []string{"type", "tool_call_id", "tool_name", "tool_input"},
		},
		{
			name:  "tool result",
			event: ToolResultEvent("tc1", ToolSuccess("shell", "hi"), false),
			keys:  []string{"type", "tool_call_id", "result", "is_error"},
		},
		{
			name:  "complete",
			event: CompleteEvent("done", nil, &TokenUsage{Prompt: 10, Completion: 3}),
			keys:  []string{"type", "content", "tool_calls", "token_usage"},
		},
		{
			name:  "error",
			event: ErrorEvent(ErrorCodeMaxIterations, "limit reached"),
			keys:  []string{"type", "code", "message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := mustMarshal(t, tt.event)
			for _, key := range tt.keys {
				if _, ok := decoded[key]; !ok {
					t.Errorf("missing key %q in %v", key, decoded)
				}
			}
			if decoded["type"] != string(tt.event.Type) {
				t.Errorf("type = %v, want %s", decoded["type"], tt.event.Type)
			}
		})
	}
}

func TestCompleteEventDefaultsTokenUsage(t *testing.T) {
	decoded := mustMarshal(t, CompleteEvent("", nil, nil))

	usage, ok := decoded["token_usage"].(map[string]any)
	if !ok {
		t.Fatalf("token_usage = %T, want object", decoded["token_usage"])
	}
	if usage["prompt"] != float64(0) || usage["completion"] != float64(0) {
		t.Errorf("token_usage = %v, want zero counts", usage)
	}
	if decoded["tool_calls"] != nil {
		t.Errorf("tool_calls = %v, want null", decoded["tool_calls"])
	}
	if content, ok := decoded["content"]; !ok || content != "" {
		t.Errorf("content = %v, want empty string present", content)
	}
}

func TestToolResultEventStripsLLMContent(t *testing.T) {
	res := ToolSuccess("read", "img").WithLLMContent([]map[string]any{{"type": "text", "text": "x"}})
	decoded := mustMarshal(t, ToolResultEvent("tc1", res, false))

	result, ok := decoded["result"].(map[string]any)
	if !ok {
		t.Fatalf("result = %T, want object", decoded["result"])
	}
	if _, leaked := result["llm_content"]; leaked {
		t.Error("tool_result event leaked llm_content to the channel")
	}
}

func TestInterleavedBlocks(t *testing.T) {
	blocks := []ContentBlock{
		TextBlock("Sure,"),
		ToolCallBlock("tc1", "shell", map[string]any{"command": "ls"}),
		TextBlock("done"),
	}
	decoded := mustMarshal(t, CompleteEvent("Sure,done", blocks, nil))

	list, ok := decoded["tool_calls"].([]any)
	if !ok || len(list) != 3 {
		t.Fatalf("tool_calls = %v, want 3 blocks", decoded["tool_calls"])
	}
	first := list[0].(map[string]any)
	if first["type"] != "text" || first["content"] != "Sure," {
		t.Errorf("block 0 = %v", first)
	}
	second := list[1].(map[string]any)
	if second["type"] != "tool_call" || second["name"] != "shell" {
		t.Errorf("block 1 = %v", second)
	}
}

func TestTraceEntryShapes(t *testing.T) {
	pending := TraceEntry{Type: "tool_call", ID: "tc1", Name: "grep", Input: map[string]any{"pattern": "x"}}
	raw, err := json.Marshal(pending)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if result, ok := decoded["result"]; !ok || result != nil {
		t.Errorf("pending tool_call result = %v, want explicit null", result)
	}
	if decoded["isError"] != false {
		t.Errorf("isError = %v, want false", decoded["isError"])
	}

	text := TraceEntry{Type: "text", Content: "found it"}
	raw, err = json.Marshal(text)
	if err != nil {
		t.Fatal(err)
	}
	decoded = map[string]any{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, has := decoded["result"]; has {
		t.Error("text entry carries a result key")
	}
	if decoded["content"] != "found it" {
		t.Errorf("content = %v", decoded["content"])
	}
}
