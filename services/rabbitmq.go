package services

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"feedgraph/config"
)

// Queues the feed engine submits work to. Fan-out units of work go to the
// publish queues; the notification hook emits to the notify queue.
const (
	QueueFanoutFollowers = "feed_publish_followers"
	QueueFanoutMentions  = "feed_publish_mentions"
	QueueNotify          = "feed_notify"
)

// Transport is the asynchronous job transport over RabbitMQ. A nil or
// disabled transport makes every fan-out run synchronously in-process.
type Transport struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	feed    bool
}

// InitTransport dials RabbitMQ and declares the engine's queues. Returns a
// nil transport without error when the transport is disabled in config.
func InitTransport() (*Transport, error) {
	if config.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is not loaded")
	}
	conf := config.AppConfig.RabbitMQ
	if !conf.Enabled {
		return nil, nil
	}

	conn, err := amqp.Dial(conf.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	t := &Transport{conn: conn, channel: channel, feed: conf.Feed}
	for _, queue := range []string{QueueFanoutFollowers, QueueFanoutMentions, QueueNotify} {
		if _, err := channel.QueueDeclare(
			queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,   // args
		); err != nil {
			return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}
	zap.L().Info("rabbitmq transport initialized", zap.String("url", conf.URL))
	return t, nil
}

// Enabled reports whether work may be submitted asynchronously.
func (t *Transport) Enabled() bool {
	return t != nil && t.channel != nil
}

// FeedNotifications reports whether feed notifications should be emitted.
func (t *Transport) FeedNotifications() bool {
	return t.Enabled() && t.feed
}

// Submit publishes a unit of work to the named queue, fire-and-forget from
// the caller's perspective.
func (t *Transport) Submit(ctx context.Context, queue string, payload interface{}) error {
	if !t.Enabled() {
		return fmt.Errorf("transport is not enabled")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return t.channel.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// Consume attaches a handler to the named queue in a background goroutine.
func (t *Transport) Consume(ctx context.Context, queue string, handler func(context.Context, []byte)) error {
	if !t.Enabled() {
		return fmt.Errorf("transport is not enabled")
	}
	msgs, err := t.channel.Consume(
		queue,
		"",    // consumer tag
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer on %s: %w", queue, err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				handler(ctx, msg.Body)
			}
		}
	}()
	return nil
}

// Close tears the transport down.
func (t *Transport) Close() error {
	if t == nil || t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
