package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/timmy/tubebench/internal/logger"
)

// RabbitMQConfig holds the broker settings.
type RabbitMQConfig struct {
	URL      string
	Queue    string
	Prefetch int
}

// RabbitMQ publishes step messages to a durable queue and consumes them with manual ack.
type RabbitMQ struct {
	conn     *amqp.Connection
	pub      *amqp.Channel
	pubMu    sync.Mutex
	queue    string
	prefetch int
	logger   *logger.Logger
}

// NewRabbitMQ connects to the broker and declares the step queue.
// Parameters:
//   - cfg: broker URL, queue name and consumer prefetch.
//   - log: logger; nil uses the default logger.
//
// Returns:
//   - *RabbitMQ: connected dispatcher.
//   - error: non-nil if the connection, channel or queue declaration fails.
func NewRabbitMQ(cfg RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	if log == nil {
		log = logger.GetDefault()
	}
	if cfg.Queue == "" {
		cfg.Queue = "enrichment.steps"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	if err := declareQueue(ch, cfg.Queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log.WithFields(logger.Fields{
		logger.FieldComponent: "queue.rabbitmq",
		"queue":               cfg.Queue,
	}).Info("RabbitMQ dispatcher initialized")

	return &RabbitMQ{
		conn:     conn,
		pub:      ch,
		queue:    cfg.Queue,
		prefetch: cfg.Prefetch,
		logger:   log,
	}, nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

// Dispatch publishes msg as a persistent JSON message.
func (q *RabbitMQ) Dispatch(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	err = q.pub.PublishWithContext(ctx,
		"",      // exchange (default direct)
		q.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         string(msg.Step),
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Consume processes deliveries until ctx is cancelled or the delivery channel closes.
// Up to prefetch messages are handled concurrently. Malformed messages are dropped;
// handler errors are requeued once.
func (q *RabbitMQ) Consume(ctx context.Context, h Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if q.prefetch > 0 {
		if err := ch.Qos(q.prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}
	if err := declareQueue(ch, q.queue); err != nil {
		return err
	}

	deliveries, err := ch.Consume(
		q.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}

	workers := q.prefetch
	if workers < 1 {
		workers = 1
	}
	q.logger.WithFields(logger.Fields{
		"queue":    q.queue,
		"prefetch": q.prefetch,
		"workers":  workers,
	}).Info("RabbitMQ consumer started")

	return q.consumeDeliveries(ctx, deliveries, workers, h)
}

// consumeDeliveries runs workers goroutines over deliveries so up to prefetch
// unacked messages are processed at once. It returns after every in-flight
// message has been acked or nacked.
func (q *RabbitMQ) consumeDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery, workers int, h Handler) error {
	var (
		wg     sync.WaitGroup
		closed atomic.Bool
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						closed.Store(true)
						return
					}
					q.process(ctx, d, h)
				}
			}
		}()
	}
	wg.Wait()

	if closed.Load() && ctx.Err() == nil {
		return fmt.Errorf("delivery channel closed")
	}
	return ctx.Err()
}

func (q *RabbitMQ) process(ctx context.Context, d amqp.Delivery, h Handler) {
	start := time.Now()
	msg, err := decodeMessage(d.Body)
	if err != nil {
		q.logger.WithError(err).Error("Dropping malformed step message")
		if nackErr := d.Nack(false, false); nackErr != nil {
			q.logger.WithError(nackErr).Error("Failed to nack message")
		}
		return
	}

	log := q.logger.WithFields(logger.Fields{
		logger.FieldStep:      string(msg.Step),
		logger.FieldTaskID:    msg.TaskID,
		logger.FieldChannelID: msg.ChannelID,
	})

	if err := h(ctx, msg); err != nil {
		requeue := !d.Redelivered
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			log.WithError(nackErr).Error("Failed to nack message")
		}
		log.WithError(err).WithField("requeued", requeue).Error("Step message processing failed")
		return
	}

	if err := d.Ack(false); err != nil {
		log.WithError(err).Error("Failed to ack message")
	}
	log.WithField(logger.FieldDurationMs, time.Since(start).Milliseconds()).Debug("Step message processed")
}

// Close closes the publishing channel and the connection.
func (q *RabbitMQ) Close() error {
	if q.pub != nil {
		q.pub.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

func encodeMessage(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return body, nil
}

func decodeMessage(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}
