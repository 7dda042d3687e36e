package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfdaybr/validapass/internal/domain"
)

// EmailQueueRepo implements email queue storage. Entries are append-only
// history: status transitions update rows in place, nothing is deleted.
type EmailQueueRepo struct{ db *sql.DB }

// NewEmailQueueRepo creates a Postgres-backed email queue repository.
func NewEmailQueueRepo(db *sql.DB) *EmailQueueRepo { return &EmailQueueRepo{db: db} }

// Enqueue inserts a new pending entry scheduled at the given time.
func (r *EmailQueueRepo) Enqueue(ctx context.Context, e *domain.EmailQueueEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = domain.EmailPending
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = domain.DefaultMaxRetries
	}
	if e.ScheduledAt.IsZero() {
		e.ScheduledAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_queue
			(id, participant_id, email, subject, html_content,
			 status, retry_count, max_retries, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`, e.ID, e.ParticipantID, e.Email, e.Subject, e.HTMLContent,
		e.Status, e.RetryCount, e.MaxRetries, e.ScheduledAt)
	if err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

// FetchDue returns pending entries whose schedule has arrived, oldest first,
// capped at batchSize. Entries that exhausted their retries never match.
func (r *EmailQueueRepo) FetchDue(ctx context.Context, batchSize int) ([]domain.EmailQueueEntry, error) {
	if batchSize <= 0 {
		batchSize = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, participant_id, email, subject, html_content,
		       status, retry_count, max_retries, error_message,
		       scheduled_at, sent_at, created_at, updated_at
		FROM email_queue
		WHERE status = 'pending'
		  AND scheduled_at <= NOW()
		  AND retry_count < max_retries
		ORDER BY scheduled_at ASC
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch due emails: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailQueueEntry
	for rows.Next() {
		var e domain.EmailQueueEntry
		if err := rows.Scan(
			&e.ID, &e.ParticipantID, &e.Email, &e.Subject, &e.HTMLContent,
			&e.Status, &e.RetryCount, &e.MaxRetries, &e.ErrorMessage,
			&e.ScheduledAt, &e.SentAt, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkSending transitions an entry to "sending" before the attempt, so a
// crash mid-send is visible in the table.
func (r *EmailQueueRepo) MarkSending(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_queue
		SET status = 'sending', updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark sending: %w", err)
	}
	return nil
}

// MarkSent records a successful delivery.
func (r *EmailQueueRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_queue
		SET status = 'sent', sent_at = $2, updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// MarkFailure records one failed attempt. The caller decides whether the
// entry goes back to pending (with a pushed-out schedule) or is terminally
// failed once the retry budget is gone.
func (r *EmailQueueRepo) MarkFailure(ctx context.Context, id string, retryCount int,
	status domain.EmailStatus, errMsg string, scheduledAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_queue
		SET status = $2, retry_count = $3, error_message = $4,
		    scheduled_at = $5, updated_at = NOW()
		WHERE id = $1
	`, id, status, retryCount, errMsg, scheduledAt)
	if err != nil {
		return fmt.Errorf("mark failure: %w", err)
	}
	return nil
}

// ResetFailed is the operator bulk recovery: every terminally failed entry
// goes back to pending with a fresh retry budget.
func (r *EmailQueueRepo) ResetFailed(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_queue
		SET status = 'pending', retry_count = 0, error_message = NULL,
		    scheduled_at = NOW(), updated_at = NOW()
		WHERE status = 'failed'
	`)
	if err != nil {
		return 0, fmt.Errorf("reset failed emails: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ReclaimStuckSending requeues rows stuck in "sending" longer than staleAge
// (worker likely crashed mid-send), charging one retry for the lost attempt.
func (r *EmailQueueRepo) ReclaimStuckSending(ctx context.Context, staleAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_queue
		SET status = 'pending', retry_count = retry_count + 1, updated_at = NOW()
		WHERE status = 'sending'
		  AND updated_at < NOW() - $1::interval
		  AND retry_count < max_retries
	`, staleAge.String())
	if err != nil {
		return 0, fmt.Errorf("reclaim stuck sending: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// FailExhausted terminally fails any non-sent row that has used its budget.
func (r *EmailQueueRepo) FailExhausted(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_queue
		SET status = 'failed', updated_at = NOW()
		WHERE status IN ('pending', 'sending')
		  AND retry_count >= max_retries
	`)
	if err != nil {
		return 0, fmt.Errorf("fail exhausted: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// List returns queue entries, newest first, with the total count for paging.
func (r *EmailQueueRepo) List(ctx context.Context, f ListFilter) ([]domain.EmailQueueEntry, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM email_queue`
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		countQ += fmt.Sprintf(" WHERE status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count queue entries: %w", err)
	}

	q := `
		SELECT id, participant_id, email, subject, html_content,
		       status, retry_count, max_retries, error_message,
		       scheduled_at, sent_at, created_at, updated_at
		FROM email_queue`
	qArgs := []interface{}{}
	qIdx := 1
	if f.Status != "" {
		q += fmt.Sprintf(" WHERE status = $%d", qIdx)
		qArgs = append(qArgs, f.Status)
		qIdx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", qIdx, qIdx+1)
	qArgs = append(qArgs, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailQueueEntry
	for rows.Next() {
		var e domain.EmailQueueEntry
		if err := rows.Scan(
			&e.ID, &e.ParticipantID, &e.Email, &e.Subject, &e.HTMLContent,
			&e.Status, &e.RetryCount, &e.MaxRetries, &e.ErrorMessage,
			&e.ScheduledAt, &e.SentAt, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan queue entry: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
