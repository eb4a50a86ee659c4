package models

import "encoding/json"

// TraceEntry is one block of a subagent execution trace.
//
// Text and thinking entries hold coalesced streaming deltas; tool_call
// entries record one invocation with its eventual result filled in when the
// matching tool_result event arrives.
type TraceEntry struct {
	Type    string
	Content string
	ID      string
	Name    string
	Input   map[string]any
	Result  *ToolResult
	IsError bool
}

// MarshalJSON renders text/thinking entries as {type, content} and
// tool_call entries with their full invocation record, including a null
// result while the call is still pending.
func (t TraceEntry) MarshalJSON() ([]byte, error) {
	if t.Type == "tool_call" {
		return json.Marshal(map[string]any{
			"type":    t.Type,
			"id":      t.ID,
			"name":    t.Name,
			"input":   orEmptyMap(t.Input),
			"result":  t.Result.ForChannel(),
			"isError": t.IsError,
		})
	}
	return json.Marshal(map[string]any{
		"type":    t.Type,
		"content": t.Content,
	})
}
