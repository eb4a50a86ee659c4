package models

import "fmt"

// ToolResult is the uniform envelope every tool returns.
//
// Tools never surface Go errors to the agent loop for user-facing failures;
// those are folded into Success/Error here. Error is non-nil exactly when
// Success is false.
type ToolResult struct {
	// Kind matches the declared name of the tool that produced the result.
	Kind string `json:"kind"`

	// Success reports whether the tool action completed.
	Success bool `json:"success"`

	// Error holds the failure message; nil iff Success.
	Error *string `json:"error"`

	// Text is the rendered human-readable summary. Always present.
	Text string `json:"text"`

	// Data is the tool-specific structured payload. Never nil; an empty
	// map is permitted.
	Data map[string]any `json:"data"`

	// Meta carries diagnostics such as truncated, timed_out, match_count.
	Meta map[string]any `json:"meta"`

	// LLMContent is alternate content to feed back to the model in the
	// tool reply (e.g. multimodal image blocks). Internal only: it must
	// be stripped from events sent to the controller and from persisted
	// history. See ToolResult.ForChannel.
	LLMContent []map[string]any `json:"llm_content,omitempty"`
}

// ToolSuccess builds a success envelope for the named tool.
func ToolSuccess(kind, text string) *ToolResult {
	return &ToolResult{
		Kind:    kind,
		Success: true,
		Text:    text,
		Data:    map[string]any{},
		Meta:    map[string]any{},
	}
}

// ToolError builds a failure envelope for the named tool. The rendered text
// defaults to "Error: <message>".
func ToolError(kind, message string) *ToolResult {
	msg := message
	return &ToolResult{
		Kind:  kind,
		Error: &msg,
		Text:  "Error: " + message,
		Data:  map[string]any{},
		Meta:  map[string]any{},
	}
}

// ToolErrorf builds a failure envelope with a formatted message.
func ToolErrorf(kind, format string, args ...any) *ToolResult {
	return ToolError(kind, fmt.Sprintf(format, args...))
}

// WithText overrides the rendered text.
func (r *ToolResult) WithText(text string) *ToolResult {
	r.Text = text
	return r
}

// WithData merges entries into the structured payload.
func (r *ToolResult) WithData(data map[string]any) *ToolResult {
	for k, v := range data {
		r.Data[k] = v
	}
	return r
}

// WithMeta merges entries into the diagnostics map.
func (r *ToolResult) WithMeta(meta map[string]any) *ToolResult {
	for k, v := range meta {
		r.Meta[k] = v
	}
	return r
}

// WithLLMContent attaches model-only reply content.
func (r *ToolResult) WithLLMContent(blocks []map[string]any) *ToolResult {
	r.LLMContent = blocks
	return r
}

// ErrorMessage returns the failure message, or "" on success.
func (r *ToolResult) ErrorMessage() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return *r.Error
}

// ForChannel returns a shallow copy safe to emit to the controller and to
// persist: the internal LLMContent key is stripped.
func (r *ToolResult) ForChannel() *ToolResult {
	if r == nil {
		return nil
	}
	clean := *r
	clean.LLMContent = nil
	return &clean
}

// ModelContent returns the content to feed back to the model in the tool
// reply: LLMContent when present, the rendered text otherwise.
func (r *ToolResult) ModelContent() any {
	if r == nil {
		return ""
	}
	if len(r.LLMContent) > 0 {
		return r.LLMContent
	}
	return r.Text
}
