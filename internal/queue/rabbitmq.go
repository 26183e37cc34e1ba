package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pkgmodels "chatflow/pkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection owns an AMQP connection and one channel with the outbound
// queue declared on it.
type Connection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

func Dial(url, queue string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Connection{conn: conn, channel: channel, queue: queue}, nil
}

func (c *Connection) Channel() *amqp.Channel { return c.channel }

func (c *Connection) Queue() string { return c.queue }

func (c *Connection) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Publishing is the part of an AMQP channel the publisher uses.
type Publishing interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher hands outgoing messages to the worker through the outbound queue.
type Publisher struct {
	channel Publishing
	queue   string
}

func NewPublisher(channel Publishing, queue string) *Publisher {
	return &Publisher{channel: channel, queue: queue}
}

// Dispatch publishes msg as a persistent JSON message. Delivery happens later
// in the worker, so the result only reports that it was queued.
func (p *Publisher) Dispatch(ctx context.Context, msg pkgmodels.OutboundMessage) (pkgmodels.DeliveryResult, error) {
	if err := msg.Validate(); err != nil {
		return pkgmodels.DeliveryResult{}, fmt.Errorf("invalid outbound message: %w", err)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return pkgmodels.DeliveryResult{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.MessageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return pkgmodels.DeliveryResult{}, fmt.Errorf("failed to publish message: %w", err)
	}
	return pkgmodels.DeliveryResult{Queued: true}, nil
}
