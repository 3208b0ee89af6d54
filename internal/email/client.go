// Package email defines the interface for transactional email delivery and
// provides an SMTP-backed implementation plus the HTML bodies of every
// notification.
package email

import (
	"context"
	"errors"
)

// Message is one rendered email.
type Message struct {
	FromName string // display name, e.g. "UniTrade Orders"
	To       string // recipient email address
	Subject  string
	HTML     string
}

// ErrNoRecipient is returned by Send when Message.To is empty.
var ErrNoRecipient = errors.New("email: message has no recipient")

// Sender is the interface the notifiers use to send email.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	// Send delivers m and returns the Message-ID the relay accepted.
	Send(ctx context.Context, m Message) (string, error)
}
