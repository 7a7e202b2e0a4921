package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"shelterlink/backend/internal/logging"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultQueue = "shelterlink.notifications"

// AMQPSink publishes records as persistent JSON messages to a durable queue
// on the default exchange. The connection is opened lazily and reopened
// after a failure.
type AMQPSink struct {
	URL   string
	Queue string

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *zap.Logger
}

func NewAMQPSink(url, queue string, logger *zap.Logger) *AMQPSink {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPSink{URL: url, Queue: queue, logger: logging.OrNop(logger).Named("amqp")}
}

// channel returns an open channel with the queue declared. Caller holds mu.
func (s *AMQPSink) channel() (*amqp.Channel, error) {
	if s.ch != nil && !s.ch.IsClosed() {
		return s.ch, nil
	}
	s.reset()

	conn, err := amqp.Dial(s.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(s.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare %s: %w", s.Queue, err)
	}
	s.conn, s.ch = conn, ch
	s.logger.Info("amqp connected", zap.String("queue", s.Queue))
	return ch, nil
}

func (s *AMQPSink) reset() {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *AMQPSink) Publish(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch, err := s.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", s.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         rec.Event.Type,
		Body:         body,
	})
	if err != nil {
		s.reset()
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close releases the connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

var _ Sink = (*AMQPSink)(nil)
