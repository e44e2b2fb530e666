package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrBadMessage = errors.New("malformed job message")

// Consumer receives job deliveries with manual acks. Retries go out on the
// same connection through an embedded Publisher.
type Consumer struct {
	*Publisher
	deliveries <-chan amqp.Delivery
}

// NewConsumer starts consuming queue with at most prefetch unacked
// deliveries in flight.
func NewConsumer(url, queue string, prefetch int) (*Consumer, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{
		Publisher:  &Publisher{conn: conn, ch: ch, queue: queue},
		deliveries: msgs,
	}, nil
}

func (c *Consumer) Deliveries() <-chan amqp.Delivery { return c.deliveries }

// Decode parses a delivery body. Messages from older publishers carry no
// attempt counter and count as the first attempt.
func Decode(d amqp.Delivery) (JobMessage, error) {
	var m JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
		return JobMessage{}, ErrBadMessage
	}
	if m.Attempt <= 0 {
		m.Attempt = 1
	}
	return m, nil
}

// Retry schedules the next attempt of m after delay via the retry queue.
func (c *Consumer) Retry(ctx context.Context, m JobMessage, delay time.Duration) error {
	m.Attempt++
	return c.publish(ctx, retryQueue(c.queue), m, delay)
}
