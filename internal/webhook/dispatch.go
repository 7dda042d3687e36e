package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfdaybr/validapass/internal/domain"
	"github.com/wolfdaybr/validapass/internal/mailer"
	"github.com/wolfdaybr/validapass/internal/pkg/logger"
)

type emailQueueStore interface {
	Enqueue(ctx context.Context, e *domain.EmailQueueEntry) error
}

// TicketDispatcher delivers the ticket confirmation email for a freshly
// provisioned sale. It makes at most one inline send attempt; on any
// failure, including an unconfigured sender, the email is queued for the
// background processor instead of retried in the request path.
type TicketDispatcher struct {
	builder    *mailer.TicketEmailBuilder
	sender     mailer.Sender
	from       string
	queue      emailQueueStore
	maxRetries int
}

// NewTicketDispatcher builds a dispatcher. maxRetries caps queue attempts
// for emails that fall back to the queue; 0 applies the default.
func NewTicketDispatcher(builder *mailer.TicketEmailBuilder, sender mailer.Sender, from string, queue emailQueueStore, maxRetries int) *TicketDispatcher {
	if maxRetries <= 0 {
		maxRetries = domain.DefaultMaxRetries
	}
	return &TicketDispatcher{builder: builder, sender: sender, from: from, queue: queue, maxRetries: maxRetries}
}

// Dispatch sends the ticket email for p, falling back to the queue. It
// returns whether the inline attempt succeeded; an error means the email
// could be neither sent nor queued.
func (d *TicketDispatcher) Dispatch(ctx context.Context, p domain.Participant) (bool, error) {
	subject, html, err := d.builder.Build(p)
	if err != nil {
		return false, fmt.Errorf("build ticket email: %w", err)
	}

	sendErr := d.sender.Send(ctx, &mailer.Message{
		From:    d.from,
		To:      p.Email,
		Subject: subject,
		HTML:    html,
	})
	if sendErr == nil {
		logger.Info("ticket email sent inline", "participant_id", p.ID, "email", p.Email)
		return true, nil
	}

	logger.Warn("inline send failed, queueing",
		"participant_id", p.ID, "email", p.Email, "error", sendErr.Error())

	entry := &domain.EmailQueueEntry{
		ParticipantID: p.ID,
		Email:         p.Email,
		Subject:       subject,
		HTMLContent:   html,
		Status:        domain.EmailPending,
		MaxRetries:    d.maxRetries,
		ScheduledAt:   time.Now(),
	}
	if err := d.queue.Enqueue(ctx, entry); err != nil {
		return false, fmt.Errorf("queue ticket email: %w", err)
	}
	return false, nil
}
