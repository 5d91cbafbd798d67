package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/user-authenticator/internal/config"
	"github.com/iliyamo/user-authenticator/internal/mail"
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher implements mail.Sender by publishing PasswordResetMail events
// to a durable queue. Delivery happens in the consumer.
type Publisher struct {
	queue string
	open  func() (channel, func(), error)
	now   func() time.Time
}

// NewPublisher dials cfg.URL per publish, bounded by timeout.
func NewPublisher(cfg config.AMQPConfig, timeout time.Duration) *Publisher {
	p := &Publisher{queue: cfg.Queue, now: time.Now}
	p.open = func() (channel, func(), error) {
		conn, err := amqp.DialConfig(cfg.URL, amqp.Config{Dial: amqp.DefaultDial(timeout)})
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
		}
		return ch, func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	}
	return p
}

// Send publishes msg as a persistent JSON message. An error means the mail
// was not queued.
func (p *Publisher) Send(ctx context.Context, msg mail.Message) error {
	ch, closeFn, err := p.open()
	if err != nil {
		return err
	}
	defer closeFn()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := json.Marshal(newPasswordResetMail(msg, p.now()))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
