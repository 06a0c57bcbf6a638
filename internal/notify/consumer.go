// AngelaMos | 2026
// consumer.go

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

const (
	reconnectDelay       = 5 * time.Second
	maxReconnectAttempts = 10
	handleTimeout        = 30 * time.Second
)

type ConsumerConfig struct {
	URL      string
	Queue    string
	Prefetch int
	Workers  int
}

// Consumer drains the notification queue in the bot process and forwards
// each event to a Notifier. Messages are acked after delivery; malformed
// ones are dropped.
type Consumer struct {
	cfg    ConsumerConfig
	target Notifier
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	wg sync.WaitGroup
}

func NewConsumer(cfg ConsumerConfig, target Notifier, logger *slog.Logger) *Consumer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Prefetch < 1 {
		cfg.Prefetch = cfg.Workers
	}

	return &Consumer{
		cfg:    cfg,
		target: target,
		logger: logger.With("component", "notify_consumer", "queue", cfg.Queue),
	}
}

func (c *Consumer) connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close() //nolint:errcheck // cleanup on setup failure
		return fmt.Errorf("open amqp channel: %w", err)
	}

	if _, err := declareQueue(ch, c.cfg.Queue); err != nil {
		_ = ch.Close()   //nolint:errcheck // cleanup on setup failure
		_ = conn.Close() //nolint:errcheck // cleanup on setup failure
		return err
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()   //nolint:errcheck // cleanup on setup failure
		_ = conn.Close() //nolint:errcheck // cleanup on setup failure
		return fmt.Errorf("set qos: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to amqp", "prefetch", c.cfg.Prefetch)
	return nil
}

// Run consumes until ctx is cancelled, reconnecting with a linear backoff
// when the broker connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.connect(); err != nil {
		return err
	}
	defer c.close()

	for {
		closed, err := c.consume(ctx)
		if err != nil {
			return err
		}
		if !closed {
			return nil
		}

		if err := c.reconnect(ctx); err != nil {
			return err
		}
	}
}

// consume runs the workers on the current channel. It reports closed=true
// when the connection dropped underneath it.
func (c *Consumer) consume(ctx context.Context) (bool, error) {
	c.mu.RLock()
	conn, ch := c.conn, c.channel
	c.mu.RUnlock()

	msgs, err := ch.Consume(
		c.cfg.Queue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return false, fmt.Errorf("start consuming: %w", err)
	}

	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

	workerCtx, cancel := context.WithCancel(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(workerCtx, msgs, i)
	}

	var closed bool
	select {
	case <-ctx.Done():
	case amqpErr := <-notifyClose:
		if amqpErr != nil {
			c.logger.Error("amqp connection closed unexpectedly", "error", amqpErr)
		}
		closed = true
	}

	cancel()
	c.wg.Wait()
	return closed, nil
}

func (c *Consumer) reconnect(ctx context.Context) error {
	c.close()

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		if err := c.connect(); err == nil {
			c.logger.Info("reconnected to amqp", "attempt", attempt)
			return nil
		}

		delay := reconnectDelay * time.Duration(attempt)
		c.logger.Warn("reconnection failed, retrying",
			"attempt", attempt,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("amqp: gave up after %d reconnect attempts", maxReconnectAttempts)
}

func (c *Consumer) worker(ctx context.Context, msgs <-chan amqp.Delivery, id int) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.process(ctx, msg, id)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg amqp.Delivery, workerID int) {
	switch c.Handle(ctx, msg.Body) {
	case OutcomeAck:
		if err := msg.Ack(false); err != nil {
			c.logger.Error("ack failed", "worker", workerID, "error", err)
		}
	case OutcomeDrop:
		if err := msg.Nack(false, false); err != nil {
			c.logger.Error("nack failed", "worker", workerID, "error", err)
		}
	case OutcomeRetry:
		if err := msg.Nack(false, !msg.Redelivered); err != nil {
			c.logger.Error("nack failed", "worker", workerID, "error", err)
		}
	}
}

type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeDrop
	OutcomeRetry
)

// Handle decodes one message and delivers it. A failed delivery is
// requeued once; anything undecodable is dropped.
func (c *Consumer) Handle(ctx context.Context, body []byte) Outcome {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		c.logger.Error("malformed notification", "error", err)
		return OutcomeDrop
	}
	if err := e.Validate(); err != nil {
		c.logger.Error("invalid notification", "error", err)
		return OutcomeDrop
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	if err := c.target.Notify(ctx, e); err != nil {
		c.logger.Warn("notification delivery failed",
			"kind", e.Kind,
			"event_id", e.ID,
			"user_id", e.UserID,
			"error", err,
		)
		return OutcomeRetry
	}

	c.logger.Debug("notification delivered", "kind", e.Kind, "event_id", e.ID)
	return OutcomeAck
}

func (c *Consumer) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		_ = c.channel.Close() //nolint:errcheck // best-effort close
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close() //nolint:errcheck // best-effort close
		c.conn = nil
	}
}
