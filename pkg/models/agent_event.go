package models

import "encoding/json"

// StreamEventType identifies the kind of stream event.
type StreamEventType string

const (
	// EventAssistantDelta carries an incremental piece of assistant text.
	EventAssistantDelta StreamEventType = "assistant_delta"

	// EventThinkingDelta carries an incremental piece of model reasoning.
	// Thinking deltas are streamed to the controller but never persisted.
	EventThinkingDelta StreamEventType = "thinking_delta"

	// EventToolCall announces a tool invocation about to execute.
	EventToolCall StreamEventType = "tool_call"

	// EventToolResult carries the envelope of a finished tool invocation.
	EventToolResult StreamEventType = "tool_result"

	// EventQuestion asks the user to answer a questionnaire.
	EventQuestion StreamEventType = "question"

	// EventComplete ends a turn that produced no further tool calls.
	EventComplete StreamEventType = "complete"

	// EventError ends a turn abnormally.
	EventError StreamEventType = "error"
)

// Error codes carried by EventError events.
const (
	ErrorCodeNotInitialized = "not_initialized"
	ErrorCodeCancelled      = "cancelled"
	ErrorCodeAgentError     = "agent_error"
	ErrorCodeMaxIterations  = "max_iterations"
)

// TokenUsage reports token accounting for one completed turn.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// ContentBlock is one entry of the interleaved replay blocks attached to a
// complete event: alternating text and tool_call entries in the exact order
// they were observed in the final turn.
type ContentBlock struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name,omitempty"`
	Input   map[string]any `json:"input,omitempty"`
}

// TextBlock builds an interleaved text block.
func TextBlock(content string) ContentBlock {
	return ContentBlock{Type: "text", Content: content}
}

// ToolCallBlock builds an interleaved tool_call block.
func ToolCallBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: "tool_call", ID: id, Name: name, Input: input}
}

// Question is one entry of a questionnaire emitted by the question tool.
type Question struct {
	ID          string   `json:"id"`
	Header      string   `json:"header,omitempty"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Placeholder string   `json:"placeholder,omitempty"`
	Multiple    bool     `json:"multiple"`
	Required    bool     `json:"required"`
}

// Answer is one user answer to a questionnaire question.
type Answer struct {
	ID              string   `json:"id"`
	Question        string   `json:"question"`
	SelectedOptions []string `json:"selected_options"`
	FreeText        string   `json:"free_text"`
	Notes           string   `json:"notes"`
}

// StreamEvent is one event of the lazy sequence a handled message produces.
//
// Exactly the fields relevant to Type are populated; the JSON wire shape is
// flat, with the type discriminator alongside the payload fields.
type StreamEvent struct {
	Type StreamEventType

	// assistant_delta / thinking_delta
	Delta string

	// tool_call / tool_result
	ToolCallID string
	ToolName   string
	ToolInput  map[string]any
	Result     *ToolResult
	IsError    bool

	// question
	QuestionnaireID string
	Title           string
	Questions       []Question

	// complete
	Content    string
	ToolCalls  []ContentBlock
	TokenUsage *TokenUsage

	// error
	Code    string
	Message string
}

// MarshalJSON renders the flat wire shape for the event's type. Fields the
// protocol declares as always-present (content, is_error, token_usage) are
// included even when zero.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	payload := map[string]any{"type": e.Type}
	switch e.Type {
	case EventAssistantDelta, EventThinkingDelta:
		payload["delta"] = e.Delta
	case EventToolCall:
		payload["tool_call_id"] = e.ToolCallID
		payload["tool_name"] = e.ToolName
		payload["tool_input"] = orEmptyMap(e.ToolInput)
	case EventToolResult:
		payload["tool_call_id"] = e.ToolCallID
		payload["result"] = e.Result.ForChannel()
		payload["is_error"] = e.IsError
	case EventQuestion:
		payload["questionnaire_id"] = e.QuestionnaireID
		if e.Title != "" {
			payload["title"] = e.Title
		}
		payload["questions"] = e.Questions
	case EventComplete:
		payload["content"] = e.Content
		if e.ToolCalls != nil {
			payload["tool_calls"] = e.ToolCalls
		} else {
			payload["tool_calls"] = nil
		}
		usage := e.TokenUsage
		if usage == nil {
			usage = &TokenUsage{}
		}
		payload["token_usage"] = usage
	case EventError:
		payload["code"] = e.Code
		payload["message"] = e.Message
	}
	return json.Marshal(payload)
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// AssistantDeltaEvent builds an assistant_delta event.
func AssistantDeltaEvent(delta string) StreamEvent {
	return StreamEvent{Type: EventAssistantDelta, Delta: delta}
}

// ThinkingDeltaEvent builds a thinking_delta event.
func ThinkingDeltaEvent(delta string) StreamEvent {
	return StreamEvent{Type: EventThinkingDelta, Delta: delta}
}

// ToolCallEvent builds a tool_call event.
func ToolCallEvent(id, name string, input map[string]any) StreamEvent {
	return StreamEvent{Type: EventToolCall, ToolCallID: id, ToolName: name, ToolInput: input}
}

// ToolResultEvent builds a tool_result event. The result is stripped of
// model-only content at marshal time.
func ToolResultEvent(id string, result *ToolResult, isError bool) StreamEvent {
	return StreamEvent{Type: EventToolResult, ToolCallID: id, Result: result, IsError: isError}
}

// QuestionEvent builds a question event.
func QuestionEvent(questionnaireID, title string, questions []Question) StreamEvent {
	return StreamEvent{Type: EventQuestion, QuestionnaireID: questionnaireID, Title: title, Questions: questions}
}

// CompleteEvent builds a complete event.
func CompleteEvent(content string, toolCalls []ContentBlock, usage *TokenUsage) StreamEvent {
	return StreamEvent{Type: EventComplete, Content: content, ToolCalls: toolCalls, TokenUsage: usage}
}

// ErrorEvent builds an error event with one of the protocol error codes.
func ErrorEvent(code, message string) StreamEvent {
	return StreamEvent{Type: EventError, Code: code, Message: message}
}
