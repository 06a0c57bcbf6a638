// AngelaMos | 2026
// amqp.go

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// AMQPPublisher hands events to the bot process over a durable queue.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAMQPPublisher(url, queue string, logger *slog.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		url:    url,
		queue:  queue,
		logger: logger.With("component", "amqp_publisher"),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *AMQPPublisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close() //nolint:errcheck // cleanup on setup failure
		return fmt.Errorf("open amqp channel: %w", err)
	}

	if _, err := declareQueue(ch, p.queue); err != nil {
		_ = ch.Close()   //nolint:errcheck // cleanup on setup failure
		_ = conn.Close() //nolint:errcheck // cleanup on setup failure
		return err
	}

	p.conn = conn
	p.channel = ch
	return nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return q, nil
}

// Notify publishes e as a persistent JSON message. A broken channel is
// reopened once before giving up.
func (p *AMQPPublisher) Notify(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publishLocked(ctx, e, body)
	if err == nil {
		return nil
	}

	p.logger.Warn("publish failed, reconnecting", "error", err)
	p.closeLocked()
	if connErr := p.connectLocked(); connErr != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, connErr)
	}

	return p.publishLocked(ctx, e, body)
}

func (p *AMQPPublisher) publishLocked(ctx context.Context, e Event, body []byte) error {
	if p.channel == nil || p.channel.IsClosed() {
		return fmt.Errorf("amqp channel closed")
	}

	err := p.channel.PublishWithContext(ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID,
			Type:         string(e.Kind),
			Timestamp:    e.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	return nil
}

func (p *AMQPPublisher) closeLocked() {
	if p.channel != nil {
		_ = p.channel.Close() //nolint:errcheck // best-effort close
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close() //nolint:errcheck // best-effort close
		p.conn = nil
	}
}

// Ping reports whether the broker connection is currently open.
func (p *AMQPPublisher) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}
