package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/timmy/tubebench/internal/logger"
)

// Inline runs messages on the dispatching goroutine. Messages dispatched while a
// handler is running are queued and run after it returns, so a step always
// finishes before the next one starts. Used by the CLI and tests.
type Inline struct {
	logger *logger.Logger

	mu       sync.Mutex
	handler  Handler
	pending  []Message
	draining bool
}

// NewInline creates a new inline dispatcher. SetHandler must be called before Dispatch.
func NewInline(log *logger.Logger) *Inline {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Inline{logger: log}
}

// SetHandler installs the message handler.
func (d *Inline) SetHandler(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

// Dispatch queues msg and, unless a drain is already in progress, runs the queue
// until it is empty.
func (d *Inline) Dispatch(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	if d.handler == nil {
		d.mu.Unlock()
		return errors.New("inline dispatcher has no handler")
	}
	d.pending = append(d.pending, msg)
	if d.draining {
		d.mu.Unlock()
		return nil
	}
	d.draining = true

	for len(d.pending) > 0 {
		next := d.pending[0]
		d.pending = d.pending[1:]
		h := d.handler
		d.mu.Unlock()

		if err := h(ctx, next); err != nil {
			d.logger.WithFields(logger.Fields{
				logger.FieldStep:   string(next.Step),
				logger.FieldTaskID: next.TaskID,
			}).WithError(err).Error("Failed to process step message")
		}

		d.mu.Lock()
	}
	d.draining = false
	d.mu.Unlock()
	return nil
}
