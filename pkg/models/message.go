// Package models provides domain types for the agentcore runtime.
package models

import "encoding/json"

// Role identifies who produced a message in the conversation.
type Role string

const (
	// RoleSystem is the system prompt message.
	RoleSystem Role = "system"

	// RoleUser is a human-authored message.
	RoleUser Role = "user"

	// RoleAssistant is a model-authored message, possibly carrying tool calls.
	RoleAssistant Role = "assistant"

	// RoleTool is a tool reply answering one assistant tool call.
	RoleTool Role = "tool"
)

// Message is one entry of the conversation history.
//
// The history is append-only: the agent loop appends a user message before
// streaming, at most one assistant message per iteration, and one tool
// message per executed tool call. Messages are never edited or removed.
type Message struct {
	// Role discriminates the message variant.
	Role Role `json:"role"`

	// Content is the message body. Usually a string; tool messages may
	// instead carry a structured block list when the tool produced
	// multimodal content for model replay.
	Content any `json:"content"`

	// ToolCalls holds the pending tool calls of an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool message to the assistant tool call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Text returns the message content as a string, or "" when the content is
// a structured block list.
func (m Message) Text() string {
	s, _ := m.Content.(string)
	return s
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message with optional tool calls.
func AssistantMessage(content string, toolCalls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls}
}

// ToolMessage builds a tool-role message answering toolCallID.
// content is a string or a structured block list.
func ToolMessage(content any, toolCallID string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// ToolCall is the accumulation record for one streamed tool call within a
// single assistant turn.
//
// During streaming, providers deliver tool calls as fragments tagged with an
// integer index. ArgsStr collects the raw JSON argument buffer as fragments
// arrive; Args is populated once the buffer parses as a JSON object. A call
// is complete when it has a non-empty Name and parseable Args.
type ToolCall struct {
	// Index is the call's position within the turn.
	Index int `json:"index"`

	// ID is the opaque call identifier chosen by the model.
	ID string `json:"id"`

	// Name is the tool to invoke.
	Name string `json:"name"`

	// ArgsStr is the as-yet-unparsed JSON argument buffer.
	ArgsStr string `json:"-"`

	// Args is the parsed argument object, present only once ArgsStr is
	// valid JSON.
	Args map[string]any `json:"args,omitempty"`
}

// Complete reports whether the call has a name and parseable arguments.
func (tc ToolCall) Complete() bool {
	return tc.Name != "" && tc.Args != nil
}

// RawArgs returns the call arguments as raw JSON for schema validation and
// tool dispatch. Falls back to an empty object when nothing parsed.
func (tc ToolCall) RawArgs() json.RawMessage {
	if tc.Args == nil {
		return json.RawMessage(`{}`)
	}
	raw, err := json.Marshal(tc.Args)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
