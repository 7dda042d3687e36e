package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfdaybr/validapass/internal/domain"
)

// TicketRepo implements ticket storage.
type TicketRepo struct{ db *sql.DB }

// NewTicketRepo creates a Postgres-backed ticket repository.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

func (r *TicketRepo) scanOne(row *sql.Row) (*domain.Ticket, error) {
	t := &domain.Ticket{}
	err := row.Scan(&t.ID, &t.ParticipantID, &t.QRCode, &t.IsValidated,
		&t.ValidatedAt, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	return t, nil
}

// GetByParticipant returns the participant's ticket.
func (r *TicketRepo) GetByParticipant(ctx context.Context, participantID string) (*domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, participant_id, qr_code, is_validated, validated_at, created_at, updated_at
		FROM tickets
		WHERE participant_id = $1
	`, participantID)
	return r.scanOne(row)
}

// GetByQRCode resolves a scanned QR payload to its ticket.
func (r *TicketRepo) GetByQRCode(ctx context.Context, qrCode string) (*domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, participant_id, qr_code, is_validated, validated_at, created_at, updated_at
		FROM tickets
		WHERE qr_code = $1
	`, qrCode)
	return r.scanOne(row)
}

// Create inserts a new ticket. Generates the id when empty.
func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tickets (id, participant_id, qr_code, is_validated, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, NOW(), NOW())
	`, t.ID, t.ParticipantID, t.QRCode)
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// MarkValidated sets the validated flag and timestamp.
func (r *TicketRepo) MarkValidated(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tickets
		SET is_validated = TRUE, validated_at = $2, updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark validated: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
