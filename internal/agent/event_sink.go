package agent

import (
	"context"

	"github.com/corvid-run/agentcore/pkg/models"
)

// EventSink receives stream events outside the turn's primary channel. The
// subagent runtime uses it to forward a child's events to the controller
// while the parent turn is suspended inside the task tool.
//
// Emit is awaited: a slow sink backpressures the producing loop, which is
// intentional.
type EventSink interface {
	Emit(ctx context.Context, event models.StreamEvent) error
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, event models.StreamEvent) error

// Emit calls the function.
func (f EventSinkFunc) Emit(ctx context.Context, event models.StreamEvent) error {
	return f(ctx, event)
}

// NopSink discards events.
type NopSink struct{}

// Emit discards the event.
func (NopSink) Emit(context.Context, models.StreamEvent) error { return nil }
