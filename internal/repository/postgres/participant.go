// Package postgres implements the persistence layer against PostgreSQL.
// One repository struct per aggregate, hand-written SQL, discrete
// independently-committed statements (no cross-aggregate transactions: the
// webhook pipeline is deliberately best-effort per step).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfdaybr/validapass/internal/domain"
)

// ErrNotFound is returned when a point lookup matches no row.
var ErrNotFound = errors.New("not found")

// ParticipantRepo implements participant storage.
type ParticipantRepo struct{ db *sql.DB }

// NewParticipantRepo creates a Postgres-backed participant repository.
func NewParticipantRepo(db *sql.DB) *ParticipantRepo { return &ParticipantRepo{db: db} }

func (r *ParticipantRepo) scanOne(row *sql.Row) (*domain.Participant, error) {
	p := &domain.Participant{}
	var presences []byte
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Category,
		&presences, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	if len(presences) > 0 {
		if err := json.Unmarshal(presences, &p.Presences); err != nil {
			return nil, fmt.Errorf("decode presences: %w", err)
		}
	}
	return p, nil
}

// GetByEmail returns the participant owning the given email.
func (r *ParticipantRepo) GetByEmail(ctx context.Context, email string) (*domain.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, COALESCE(phone,''), category,
		       COALESCE(presencas,'{}'::jsonb), created_at, updated_at
		FROM participants
		WHERE email = $1
	`, email)
	return r.scanOne(row)
}

// GetByID returns the participant with the given id.
func (r *ParticipantRepo) GetByID(ctx context.Context, id string) (*domain.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, COALESCE(phone,''), category,
		       COALESCE(presencas,'{}'::jsonb), created_at, updated_at
		FROM participants
		WHERE id = $1
	`, id)
	return r.scanOne(row)
}

// Create inserts a new participant. Generates the id when empty.
func (r *ParticipantRepo) Create(ctx context.Context, p *domain.Participant) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	presences := p.Presences
	if presences == nil {
		presences = map[string]bool{}
	}
	data, err := json.Marshal(presences)
	if err != nil {
		return fmt.Errorf("encode presences: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO participants (id, name, email, phone, category, presencas, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, p.ID, p.Name, p.Email, p.Phone, p.Category, data)
	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

// BackfillPhone sets the phone only when the stored value is empty. Manual
// corrections made through the UI are never overwritten.
func (r *ParticipantRepo) BackfillPhone(ctx context.Context, id, phone string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE participants
		SET phone = $2, updated_at = NOW()
		WHERE id = $1 AND (phone IS NULL OR phone = '')
	`, id, phone)
	if err != nil {
		return false, fmt.Errorf("backfill phone: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkPresence flips the presence flag for one calendar date on.
func (r *ParticipantRepo) MarkPresence(ctx context.Context, id, date string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE participants
		SET presencas = jsonb_set(COALESCE(presencas,'{}'::jsonb), ARRAY[$2], 'true'::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`, id, date)
	if err != nil {
		return fmt.Errorf("mark presence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
