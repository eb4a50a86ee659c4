package agent

import (
	"context"
	"errors"

	"github.com/corvid-run/agentcore/pkg/models"
)

// Sentinel errors for agent operations.
var (
	// ErrMaxIterations indicates the agent loop exceeded its iteration limit.
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrNotInitialized indicates a message arrived before an init.
	ErrNotInitialized = errors.New("agent not initialized")

	// ErrStreamInFlight indicates HandleMessage was called while a prior
	// message was still streaming.
	ErrStreamInFlight = errors.New("another message is already streaming")

	// ErrEmptyMessage indicates an empty user message.
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrNoProvider indicates no LLM provider is configured.
	ErrNoProvider = errors.New("no provider configured")

	// ErrNestedSubagent indicates a subagent tried to spawn a subagent.
	ErrNestedSubagent = errors.New("nested subagent invocation is disabled")

	// ErrCancelled indicates the provider stream raised a cancellation.
	ErrCancelled = errors.New("generation cancelled")
)

// errorEvent converts a loop-level error to the protocol error event.
// Cancellation raised by the underlying stream maps to the cancelled code;
// everything else is an agent_error.
func errorEvent(err error) models.StreamEvent {
	switch {
	case errors.Is(err, ErrMaxIterations):
		return models.ErrorEvent(models.ErrorCodeMaxIterations, "Agent reached maximum iteration limit")
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return models.ErrorEvent(models.ErrorCodeCancelled, "Generation cancelled")
	default:
		return models.ErrorEvent(models.ErrorCodeAgentError, err.Error())
	}
}
