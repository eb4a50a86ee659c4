// Package agent implements the execution runtime of a tool-using chat
// agent: the streaming loop between a pluggable LLM provider, the tool
// layer, and the event stream consumed by the controller.
package agent

import (
	"context"
	"encoding/json"

	"github.com/corvid-run/agentcore/internal/agent/contract"
	"github.com/corvid-run/agentcore/pkg/models"
)

// LLMProvider is the streaming interface every model backend implements.
//
// Implementations translate the provider-agnostic request into their SDK's
// wire format and emit StreamChunks as the response arrives. They must be
// safe for concurrent use across conversations.
type LLMProvider interface {
	// Name returns the normalized provider name (openai, anthropic, ...).
	Name() string

	// Stream opens a streaming completion. The returned channel is closed
	// when the response ends or fails; a failure is delivered as a final
	// chunk with Err set.
	Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error)
}

// CompletionRequest is one streaming call over the current message list.
type CompletionRequest struct {
	// Model is the model identifier to use.
	Model string

	// System is the system prompt, carried separately from messages.
	System string

	// Messages is the conversation history in chronological order.
	Messages []models.Message

	// Tools describes the tools the model may call.
	Tools []ToolDefinition

	// Params carries the provider-specific kwargs built by the contract
	// layer: the token-budget parameter and, when thinking is enabled,
	// the thinking/reasoning configuration.
	Params map[string]any
}

// StreamChunk is one fragment of a streaming model response.
type StreamChunk struct {
	// Blocks holds structured content blocks: text deltas, thinking
	// deltas, and provider-specific reasoning shapes. The contract layer
	// extracts text and thinking strings from them.
	Blocks []contract.Block

	// ToolCalls holds tool-call fragments, each tagged with the index of
	// the call it belongs to within the turn.
	ToolCalls []ToolCallChunk

	// Done marks the final chunk of a successful stream.
	Done bool

	// Usage reports token accounting, populated on the final chunk when
	// the upstream API provides it.
	Usage *models.TokenUsage

	// Err terminates the stream abnormally.
	Err error
}

// ToolCallChunk is one streamed fragment of a pending tool call. A nil
// Index means the fragment belongs to call 0.
type ToolCallChunk struct {
	Index *int
	ID    string
	Name  string
	Args  string
}

// ToolDefinition is the provider-facing description of one tool.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Tool is the uniform contract every executable tool implements.
//
// Execute returns the result envelope; user-facing failures are folded into
// the envelope, never returned as a Go error. A non-nil error return is
// reserved for programmer-error conditions and is converted to an error
// envelope by ToolExecutor.Execute.
type Tool interface {
	// Name returns the stable tool name used for dispatch.
	Name() string

	// Description returns the free-text description shown to the model.
	Description() string

	// Schema returns the JSON Schema for the tool's arguments.
	Schema() json.RawMessage

	// Execute runs the tool with schema-valid JSON arguments.
	Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error)
}

// EmitFunc delivers one stream event to the turn's consumer. It returns an
// error when the turn has been cancelled and no further events will be
// accepted.
type EmitFunc func(ctx context.Context, event models.StreamEvent) error

// RuntimeEventSender is implemented by tools that emit their own stream
// events mid-execution (the question tool, the explore tool's trace
// forwarding). The loop attaches the turn's emitter before executing such a
// tool and detaches it afterwards.
type RuntimeEventSender interface {
	SetEventSink(emit EmitFunc)
}

// Definition builds the provider-facing definition of a tool.
func Definition(t Tool) ToolDefinition {
	return ToolDefinition{Name: t.Name(), Description: t.Description(), Schema: t.Schema()}
}
