// Package mail builds the outbound password-reset message and delivers it
// over SMTP or, in development, to the log.
package mail

import (
	"context"
	"fmt"
)

// ResetSubject is the subject line of the password-reset mail.
const ResetSubject = "Reset Your Password"

// Message is one outbound mail. Link is the reset link embedded in HTML.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Link    string `json:"link,omitempty"`
}

// Sender delivers a Message. Implementations must honour ctx's deadline.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResetLink is {base}/pages/auth/reset-password/{uid}/{token}.
func ResetLink(base, userID, token string) string {
	return fmt.Sprintf("%s/pages/auth/reset-password/%s/%s", base, userID, token)
}

// PasswordResetMessage addresses the reset link for userID to the user.
func PasswordResetMessage(from, to, base, userID, token string) Message {
	link := ResetLink(base, userID, token)
	return Message{
		From:    from,
		To:      to,
		Subject: ResetSubject,
		HTML:    "Please click on the link to reset your password, " + link,
		Link:    link,
	}
}
