package agent

import (
	"testing"

	"github.com/corvid-run/agentcore/pkg/models"
)

func TestTraceCoalescesDeltas(t *testing.T) {
	trace := &Trace{}
	trace.Append(models.AssistantDeltaEvent("Hel"))
	trace.Append(models.AssistantDeltaEvent("lo"))
	trace.Append(models.ThinkingDeltaEvent("hm"))
	trace.Append(models.ThinkingDeltaEvent("m"))
	trace.Append(models.AssistantDeltaEvent("again"))

	entries := trace.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Type != "text" || entries[0].Content != "Hello" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Type != "thinking" || entries[1].Content != "hmm" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if entries[2].Type != "text" || entries[2].Content != "again" {
		t.Errorf("entry 2 = %+v", entries[2])
	}
}

func TestTraceFillsToolResultByID(t *testing.T) {
	trace := &Trace{}
	trace.Append(models.ToolCallEvent("tc1", "grep", map[string]any{"pattern": "x"}))
	trace.Append(models.ToolCallEvent("tc2", "read", map[string]any{"file_path": "a"}))

	result := models.ToolError("read", "file not found: a")
	trace.Append(models.ToolResultEvent("tc2", result, true))

	entries := trace.Entries()
	if entries[0].Result != nil {
		t.Error("unmatched tool call got a result")
	}
	if entries[1].Result == nil || !entries[1].IsError {
		t.Errorf("entry 1 = %+v, want filled error result", entries[1])
	}
}

func TestTraceStripsLLMContentFromResults(t *testing.T) {
	trace := &Trace{}
	trace.Append(models.ToolCallEvent("tc1", "read", nil))
	rich := models.ToolSuccess("read", "img").WithLLMContent([]map[string]any{{"type": "text", "text": "x"}})
	trace.Append(models.ToolResultEvent("tc1", rich, false))

	if trace.Entries()[0].Result.LLMContent != nil {
		t.Error("trace kept llm_content in a tool result")
	}
}

func TestTraceIgnoresEmptyDeltasAndTerminalEvents(t *testing.T) {
	trace := &Trace{}
	trace.Append(models.AssistantDeltaEvent(""))
	trace.Append(models.CompleteEvent("done", nil, nil))
	trace.Append(models.ErrorEvent(models.ErrorCodeAgentError, "x"))

	if trace.Len() != 0 {
		t.Errorf("entries = %d, want 0", trace.Len())
	}
}
