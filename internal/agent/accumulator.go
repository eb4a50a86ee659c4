package agent

import (
	"encoding/json"

	"github.com/corvid-run/agentcore/pkg/models"
)

// toolCallAccumulator assembles streamed tool-call fragments into complete
// calls. Fragments arrive tagged with the integer index of the call they
// belong to; the accumulator maintains a dense list and fills gaps with
// empty placeholders.
type toolCallAccumulator struct {
	calls []models.ToolCall
}

// add routes one fragment into the accumulator. A nil index means call 0.
// ID and name are assigned on first non-empty observation; later non-empty
// values override. Argument fragments concatenate, and the buffer is
// re-parsed after every append so Args is available as soon as the JSON is
// complete.
func (a *toolCallAccumulator) add(chunk ToolCallChunk) {
	idx := 0
	if chunk.Index != nil {
		idx = *chunk.Index
	}
	if idx < 0 {
		idx = 0
	}

	for len(a.calls) <= idx {
		a.calls = append(a.calls, models.ToolCall{Index: len(a.calls)})
	}

	tc := &a.calls[idx]
	if chunk.ID != "" {
		tc.ID = chunk.ID
	}
	if chunk.Name != "" {
		tc.Name = chunk.Name
	}
	if chunk.Args != "" {
		tc.ArgsStr += chunk.Args
		var parsed map[string]any
		if err := json.Unmarshal([]byte(tc.ArgsStr), &parsed); err == nil {
			tc.Args = parsed
		}
	}
}

// completed returns the captured calls with ghost placeholders filtered
// out. Providers that begin streaming at index 1 leave an uncommitted slot
// at index 0; any entry without a name is discarded before execution.
func (a *toolCallAccumulator) completed() []models.ToolCall {
	var out []models.ToolCall
	for _, tc := range a.calls {
		if tc.Name == "" {
			continue
		}
		if tc.Args == nil {
			tc.Args = map[string]any{}
		}
		out = append(out, tc)
	}
	return out
}

// empty reports whether any fragment committed a named call.
func (a *toolCallAccumulator) empty() bool {
	for _, tc := range a.calls {
		if tc.Name != "" {
			return false
		}
	}
	return true
}
