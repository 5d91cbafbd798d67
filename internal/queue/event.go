// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/user-authenticator/internal/mail"
)

// PasswordResetMail is published when a user asks for a reset link. It
// carries the fully rendered message so the consumer never touches the
// primary database.
type PasswordResetMail struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	HTML        string `json:"html"`
	Link        string `json:"link,omitempty"`
	RequestedAt string `json:"requested_at"`
}

func newPasswordResetMail(msg mail.Message, at time.Time) PasswordResetMail {
	return PasswordResetMail{
		From:        msg.From,
		To:          msg.To,
		Subject:     msg.Subject,
		HTML:        msg.HTML,
		Link:        msg.Link,
		RequestedAt: at.UTC().Format(time.RFC3339),
	}
}

// Message converts the event back into a mail.Message.
func (ev PasswordResetMail) Message() mail.Message {
	return mail.Message{From: ev.From, To: ev.To, Subject: ev.Subject, HTML: ev.HTML, Link: ev.Link}
}
