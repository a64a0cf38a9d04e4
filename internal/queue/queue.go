// Package queue carries pipeline step messages between step handlers.
// Each step hands the next one off through a Dispatcher, so the hand-off
// is observable and can be moved out of process.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/tubebench/internal/domain"
)

var (
	// ErrClosed is returned when dispatching to a dispatcher that has been shut down.
	ErrClosed = errors.New("dispatcher closed")
	// ErrQueueFull is returned by the local dispatcher when its buffer is full.
	ErrQueueFull = errors.New("queue full")
)

// Message asks a worker to run one step for one task.
type Message struct {
	Step      domain.StepName `json:"step"`
	ChannelID string          `json:"channel_id"`
	TaskID    string          `json:"task_id"`
}

// Validate checks the message can be routed to a step handler.
func (m Message) Validate() error {
	if !m.Step.Valid() {
		return fmt.Errorf("unknown step %q", m.Step)
	}
	if m.TaskID == "" {
		return fmt.Errorf("message for step %s has no task id", m.Step)
	}
	return nil
}

// Handler processes one message. A returned error means the message could not
// be processed at all; step outcomes are recorded on the task, not returned.
type Handler func(ctx context.Context, msg Message) error

// Dispatcher enqueues a message for asynchronous processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}
