package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

type (
	// Handler processes the payload of a single task type.
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	TaskHandlerFunc[T any] func(ctx context.Context, payload T) error
)

// NewTaskHandler creates a handler for payloads of type T.
// The handler name is derived from T and matches the task name the
// Enqueuer assigns to T payloads.
func NewTaskHandler[T any](handler TaskHandlerFunc[T]) Handler {
	var payload T
	return &taskHandler[T]{
		name:    qualifiedStructName(payload),
		handler: handler,
	}
}

// NewNamedTaskHandler creates a handler for tasks enqueued WithTaskName(name).
func NewNamedTaskHandler[T any](name string, handler TaskHandlerFunc[T]) Handler {
	return &taskHandler[T]{
		name:    name,
		handler: handler,
	}
}

type taskHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

func (h *taskHandler[T]) Name() string {
	return h.name
}

// Handle decodes the payload; an undecodable payload never succeeds on retry.
func (h *taskHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return Permanent(fmt.Errorf("failed to decode payload for %s: %w", h.name, err))
	}
	return h.handler(ctx, t)
}
