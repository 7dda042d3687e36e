package domain

import "time"

// EmailStatus enumerates the lifecycle states of a queue entry.
type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailSending EmailStatus = "sending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
)

// DefaultMaxRetries caps attempts per queue entry before it is terminally
// failed and only recoverable through the operator bulk reset.
const DefaultMaxRetries = 3

// EmailQueueEntry is one deferred email send with bounded retry. Entries are
// append-only history: they are created by registration flows and by the
// dispatch gateway on send failure, mutated only by the queue processor, and
// never deleted.
type EmailQueueEntry struct {
	ID            string      `json:"id" db:"id"`
	ParticipantID string      `json:"participant_id" db:"participant_id"`
	Email         string      `json:"email" db:"email"`
	Subject       string      `json:"subject" db:"subject"`
	HTMLContent   string      `json:"html_content" db:"html_content"`
	Status        EmailStatus `json:"status" db:"status"`
	RetryCount    int         `json:"retry_count" db:"retry_count"`
	MaxRetries    int         `json:"max_retries" db:"max_retries"`
	ErrorMessage  *string     `json:"error_message" db:"error_message"`
	ScheduledAt   time.Time   `json:"scheduled_at" db:"scheduled_at"`
	SentAt        *time.Time  `json:"sent_at" db:"sent_at"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// Exhausted reports whether the entry has used up its retry budget.
func (e EmailQueueEntry) Exhausted() bool {
	return e.RetryCount >= e.MaxRetries
}
