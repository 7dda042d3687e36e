// Package mailer sends transactional ticket emails through an external mail
// provider. Two implementations exist: the Resend HTTP API (production) and
// AWS SES. Both expose the same single-shot Send operation; retry policy
// belongs to the email queue, not to the sender.
package mailer

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when the provider credential is absent. The
// dispatch gateway treats it like any send failure: the email goes to the
// queue instead of being lost.
var ErrNotConfigured = errors.New("mail provider not configured")

// Message is one outbound email.
type Message struct {
	From    string // "Name <addr>" display form
	To      string
	Subject string
	HTML    string
}

// Sender delivers a single message. Implementations make exactly one
// attempt; the caller owns retries.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}
