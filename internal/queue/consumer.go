package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/user-authenticator/internal/config"
	"github.com/iliyamo/user-authenticator/internal/mail"
)

const maxBackoff = 30 * time.Second

// A mail whose delivery fails is republished with attemptsHeader bumped
// until it has been tried maxDeliveryAttempts times.
const (
	maxDeliveryAttempts = 5
	attemptsHeader      = "x-delivery-attempts"
)

// retryDelay is the pause before attempt n is republished.
var retryDelay = func(n int) time.Duration { return time.Duration(n) * time.Second }

// errUndeliverable marks events no retry can fix.
var errUndeliverable = errors.New("undeliverable event")

// StartMailConsumer connects to the broker, declares the mail queue and
// delivers every PasswordResetMail through sender. It reconnects with
// exponential backoff and returns only when ctx is cancelled.
func StartMailConsumer(ctx context.Context, cfg config.AMQPConfig, sender mail.Sender, log *slog.Logger) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Warn("mail consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, cfg.Queue, sender, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("mail consumer: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, sender mail.Sender, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Warn("mail consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			settle(ctx, ch, queue, d, handleMessage(ctx, d.Body, sender), log)
		}
	}
}

func handleMessage(ctx context.Context, body []byte, sender mail.Sender) error {
	var ev PasswordResetMail
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", errUndeliverable, err)
	}
	if ev.To == "" {
		return fmt.Errorf("%w: no recipient", errUndeliverable)
	}
	if err := sender.Send(ctx, ev.Message()); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	return nil
}

// settle acks or rejects d according to the outcome of handling it.
// Undeliverable events are dropped. A failed delivery is republished with
// its attempt count until maxDeliveryAttempts, then dropped; if the
// republish itself fails the original is requeued.
func settle(ctx context.Context, ch channel, queue string, d amqp.Delivery, err error, log *slog.Logger) {
	if err == nil {
		_ = d.Ack(false)
		return
	}
	if errors.Is(err, errUndeliverable) {
		log.Error("mail consumer: dropping message", "err", err)
		_ = d.Nack(false, false)
		return
	}

	attempt := deliveryAttempts(d.Headers) + 1
	if attempt >= maxDeliveryAttempts {
		log.Error("mail consumer: giving up on message", "attempts", attempt, "err", err)
		_ = d.Nack(false, false)
		return
	}
	log.Warn("mail consumer: delivery failed, retrying", "attempt", attempt, "err", err)
	if !sleep(ctx, retryDelay(attempt)) {
		_ = d.Nack(false, true)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptsHeader] = int32(attempt)
	pub := amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    d.Timestamp,
		Headers:      headers,
		Body:         d.Body,
	}
	if perr := ch.PublishWithContext(ctx, "", queue, false, false, pub); perr != nil {
		log.Warn("mail consumer: republish failed, requeueing", "err", perr)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// deliveryAttempts reads attemptsHeader; absent or malformed counts as 0.
func deliveryAttempts(h amqp.Table) int {
	switch v := h[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	default:
		return 0
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
