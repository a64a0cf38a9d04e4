package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/timmy/tubebench/internal/logger"
)

// Local is an in-process dispatcher backed by a buffered channel and a worker pool.
type Local struct {
	msgs    chan Message
	workers int
	logger  *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewLocal creates a new local dispatcher.
// Parameters:
//   - workers: number of goroutines processing messages; values below 1 mean 1.
//   - buffer: channel capacity; values below 1 mean workers*2.
//   - log: logger for worker errors; nil uses the default logger.
//
// Returns:
//   - *Local: dispatcher ready for Start.
func NewLocal(workers, buffer int, log *logger.Logger) *Local {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = workers * 2
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Local{
		msgs:    make(chan Message, buffer),
		workers: workers,
		logger:  log,
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled or Close is called.
func (l *Local) Start(ctx context.Context, h Handler) {
	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go func(workerID int) {
			defer l.wg.Done()
			l.worker(ctx, workerID, h)
		}(i)
	}
}

// Dispatch enqueues msg without blocking. A full buffer returns ErrQueueFull so a
// worker handing off to the next step can never deadlock on its own queue.
func (l *Local) Dispatch(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	select {
	case l.msgs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages, lets workers drain the buffer and waits for them.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.msgs)
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

func (l *Local) worker(ctx context.Context, workerID int, h Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-l.msgs:
			if !ok {
				return
			}
			if err := l.handle(ctx, h, msg); err != nil {
				l.logger.WithFields(logger.Fields{
					"worker_id":           workerID,
					logger.FieldStep:      string(msg.Step),
					logger.FieldTaskID:    msg.TaskID,
					logger.FieldChannelID: msg.ChannelID,
				}).WithError(err).Error("Failed to process step message")
			}
		}
	}
}

func (l *Local) handle(ctx context.Context, h Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, msg)
}
