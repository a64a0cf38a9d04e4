package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/logger"
)

type ackOutcome struct {
	acked   bool
	requeue bool
}

// recordingAcker captures how each delivery tag was settled.
type recordingAcker struct {
	mu      sync.Mutex
	settled map[uint64]ackOutcome
}

func newRecordingAcker() *recordingAcker {
	return &recordingAcker{settled: map[uint64]ackOutcome{}}
}

func (a *recordingAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settled[tag] = ackOutcome{acked: true}
	return nil
}

func (a *recordingAcker) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settled[tag] = ackOutcome{requeue: requeue}
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *recordingAcker) get(tag uint64) (ackOutcome, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out, ok := a.settled[tag]
	return out, ok
}

func stepDelivery(t *testing.T, acker amqp.Acknowledger, tag uint64, taskID string, redelivered bool) amqp.Delivery {
	t.Helper()
	body, err := encodeMessage(Message{Step: domain.StepRecentVideos, ChannelID: "UCx", TaskID: taskID})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: acker, DeliveryTag: tag, Body: body, Redelivered: redelivered}
}

func TestRabbitMQ_ConsumeRunsPrefetchWorkers(t *testing.T) {
	const workers = 3
	q := &RabbitMQ{logger: logger.NewDiscard(), prefetch: workers}
	acker := newRecordingAcker()

	deliveries := make(chan amqp.Delivery, workers)
	for i := 1; i <= workers; i++ {
		deliveries <- stepDelivery(t, acker, uint64(i), "t", false)
	}
	close(deliveries)

	var (
		mu       sync.Mutex
		inFlight int
		release  = make(chan struct{})
	)
	h := func(ctx context.Context, msg Message) error {
		mu.Lock()
		inFlight++
		if inFlight == workers {
			close(release)
		}
		mu.Unlock()

		select {
		case <-release:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("messages were not handled concurrently")
		}
	}

	err := q.consumeDeliveries(context.Background(), deliveries, workers, h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery channel closed")

	for tag := uint64(1); tag <= workers; tag++ {
		out, ok := acker.get(tag)
		require.True(t, ok, "tag %d not settled", tag)
		assert.True(t, out.acked, "tag %d", tag)
	}
}

func TestRabbitMQ_ProcessSettlesDeliveries(t *testing.T) {
	q := &RabbitMQ{logger: logger.NewDiscard()}
	acker := newRecordingAcker()
	failing := func(context.Context, Message) error { return errors.New("db down") }

	q.process(context.Background(), stepDelivery(t, acker, 1, "t1", false), failing)
	q.process(context.Background(), stepDelivery(t, acker, 2, "t1", true), failing)
	q.process(context.Background(), amqp.Delivery{Acknowledger: acker, DeliveryTag: 3, Body: []byte("not json")}, failing)

	first, _ := acker.get(1)
	assert.Equal(t, ackOutcome{requeue: true}, first)
	second, _ := acker.get(2)
	assert.Equal(t, ackOutcome{requeue: false}, second)
	malformed, ok := acker.get(3)
	require.True(t, ok)
	assert.Equal(t, ackOutcome{requeue: false}, malformed)
}

func TestRabbitMQ_ConsumeStopsOnCancel(t *testing.T) {
	q := &RabbitMQ{logger: logger.NewDiscard()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.consumeDeliveries(ctx, make(chan amqp.Delivery), 2, func(context.Context, Message) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
