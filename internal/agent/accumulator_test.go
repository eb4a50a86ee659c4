package agent

import (
	"testing"
)

func intPtr(v int) *int { return &v }

func TestAccumulatorAssemblesFragments(t *testing.T) {
	acc := &toolCallAccumulator{}
	acc.add(ToolCallChunk{Index: intPtr(0), ID: "tc1", Name: "shell"})
	acc.add(ToolCallChunk{Index: intPtr(0), Args: `{"comm`})
	acc.add(ToolCallChunk{Index: intPtr(0), Args: `and":"echo hi"}`})

	calls := acc.completed()
	if len(calls) != 1 {
		t.Fatalf("completed = %d calls, want 1", len(calls))
	}
	call := calls[0]
	if call.ID != "tc1" || call.Name != "shell" {
		t.Errorf("call = %+v", call)
	}
	if call.Args["command"] != "echo hi" {
		t.Errorf("Args = %v", call.Args)
	}
	if !call.Complete() {
		t.Error("call not complete after full args")
	}
}

func TestAccumulatorNilIndexMeansZero(t *testing.T) {
	acc := &toolCallAccumulator{}
	acc.add(ToolCallChunk{Name: "glob"})
	acc.add(ToolCallChunk{Args: `{"pattern":"*.go"}`})

	calls := acc.completed()
	if len(calls) != 1 || calls[0].Name != "glob" {
		t.Fatalf("completed = %+v", calls)
	}
	if calls[0].Args["pattern"] != "*.go" {
		t.Errorf("Args = %v", calls[0].Args)
	}
}

func TestAccumulatorGhostFiltering(t *testing.T) {
	// Providers may begin streaming at index 1, leaving an uncommitted
	// placeholder at index 0. It must not reach execution.
	acc := &toolCallAccumulator{}
	acc.add(ToolCallChunk{Index: intPtr(1), ID: "tc-real", Name: "shell", Args: `{"command":"echo ok"}`})

	if len(acc.calls) != 2 {
		t.Fatalf("dense list = %d entries, want 2", len(acc.calls))
	}
	calls := acc.completed()
	if len(calls) != 1 {
		t.Fatalf("completed = %d calls, want 1 after ghost filtering", len(calls))
	}
	if calls[0].ID != "tc-real" {
		t.Errorf("ID = %q, want tc-real", calls[0].ID)
	}
}

func TestAccumulatorLateNameOverride(t *testing.T) {
	acc := &toolCallAccumulator{}
	acc.add(ToolCallChunk{Index: intPtr(0), Name: "shel"})
	acc.add(ToolCallChunk{Index: intPtr(0), Name: "shell"})
	acc.add(ToolCallChunk{Index: intPtr(0), ID: ""})

	calls := acc.completed()
	if len(calls) != 1 || calls[0].Name != "shell" {
		t.Errorf("completed = %+v", calls)
	}
}

func TestAccumulatorPartialArgsStayUnparsed(t *testing.T) {
	acc := &toolCallAccumulator{}
	acc.add(ToolCallChunk{Index: intPtr(0), Name: "write", Args: `{"file_path":"a.txt", "content": "unterminated`})

	if acc.calls[0].Args != nil {
		t.Error("partial JSON parsed prematurely")
	}
	// completed() still returns the call with empty args so a protocol
	// violation surfaces as a tool validation error, not a crash.
	calls := acc.completed()
	if len(calls) != 1 || calls[0].Args == nil {
		t.Errorf("completed = %+v", calls)
	}
}

func TestAccumulatorMultipleCalls(t *testing.T) {
	acc := &toolCallAccumulator{}
	acc.add(ToolCallChunk{Index: intPtr(0), ID: "a", Name: "read", Args: `{"file_path":"x"}`})
	acc.add(ToolCallChunk{Index: intPtr(1), ID: "b", Name: "grep", Args: `{"pattern":"y"}`})

	calls := acc.completed()
	if len(calls) != 2 {
		t.Fatalf("completed = %d, want 2", len(calls))
	}
	if calls[0].Name != "read" || calls[1].Name != "grep" {
		t.Errorf("order = %q, %q", calls[0].Name, calls[1].Name)
	}
}
