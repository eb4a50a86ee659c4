package agent

import (
	"github.com/corvid-run/agentcore/pkg/models"
)

// Trace collects the stream events of one subagent run into replayable
// blocks. Consecutive assistant deltas coalesce into a single text entry
// and consecutive thinking deltas into a single thinking entry; tool calls
// get one entry each, completed in place when the matching result arrives.
//
// A trace belongs to one run and is not safe for concurrent use.
type Trace struct {
	entries []models.TraceEntry
}

// Append folds one stream event into the trace. Events that carry no trace
// information (complete, error, question) are ignored.
func (t *Trace) Append(event models.StreamEvent) {
	switch event.Type {
	case models.EventAssistantDelta:
		t.appendDelta("text", event.Delta)
	case models.EventThinkingDelta:
		t.appendDelta("thinking", event.Delta)
	case models.EventToolCall:
		t.entries = append(t.entries, models.TraceEntry{
			Type:  "tool_call",
			ID:    event.ToolCallID,
			Name:  event.ToolName,
			Input: event.ToolInput,
		})
	case models.EventToolResult:
		for i := range t.entries {
			entry := &t.entries[i]
			if entry.Type == "tool_call" && entry.ID == event.ToolCallID {
				entry.Result = event.Result.ForChannel()
				entry.IsError = event.IsError
				return
			}
		}
	}
}

func (t *Trace) appendDelta(entryType, delta string) {
	if delta == "" {
		return
	}
	if n := len(t.entries); n > 0 && t.entries[n-1].Type == entryType {
		t.entries[n-1].Content += delta
		return
	}
	t.entries = append(t.entries, models.TraceEntry{Type: entryType, Content: delta})
}

// Entries returns the collected blocks.
func (t *Trace) Entries() []models.TraceEntry {
	return t.entries
}

// Len returns the number of collected blocks.
func (t *Trace) Len() int {
	return len(t.entries)
}
