package main

import (
	"context"
	"log/slog"

	"github.com/iliyamo/user-authenticator/internal/config"
	"github.com/iliyamo/user-authenticator/internal/mail"
	"github.com/iliyamo/user-authenticator/internal/queue"
)

// newMailer picks the reset-mail transport. With the queue transport the
// request path only publishes; this process also runs the consumer that
// performs the SMTP delivery.
func newMailer(ctx context.Context, cfg config.Config, log *slog.Logger) mail.Sender {
	switch cfg.Mail.Transport {
	case config.MailLog:
		return mail.NewLogSender(log)
	case config.MailQueue:
		smtp := mail.NewSMTPSender(cfg.Mail)
		go func() {
			if err := queue.StartMailConsumer(ctx, cfg.AMQP, smtp, log); err != nil && ctx.Err() == nil {
				log.Error("mail consumer exited", "err", err)
			}
		}()
		return queue.NewPublisher(cfg.AMQP, cfg.Mail.Timeout)
	default:
		return mail.NewSMTPSender(cfg.Mail)
	}
}
