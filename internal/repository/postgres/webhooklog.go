package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfdaybr/validapass/internal/domain"
)

// WebhookLogRepo implements the audit trail: one webhook_sales_logs row per
// invocation plus an unconditional raw-event copy for forensic replay.
type WebhookLogRepo struct{ db *sql.DB }

// NewWebhookLogRepo creates a Postgres-backed webhook log repository.
func NewWebhookLogRepo(db *sql.DB) *WebhookLogRepo { return &WebhookLogRepo{db: db} }

// InsertLog writes one audit row.
func (r *WebhookLogRepo) InsertLog(ctx context.Context, l *domain.WebhookLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_sales_logs
			(id, origin, status, raw_payload, buyer_name, buyer_email,
			 offer_id, offer_name_v2, product_id, product_name,
			 assigned_category, participant_id, amount_cents,
			 name_source, phone_source, error_message, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
	`, l.ID, l.Origin, l.Status, []byte(l.RawPayload), l.BuyerName, l.BuyerEmail,
		l.OfferID, l.OfferNameV2, l.ProductID, l.ProductName,
		l.AssignedCategory, l.ParticipantID, l.AmountCents,
		l.NameSource, l.PhoneSource, l.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	return nil
}

// InsertRawEvent writes the verbatim payload copy.
func (r *WebhookLogRepo) InsertRawEvent(ctx context.Context, e *domain.RawEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sale_raw_events (id, provider, type, transaction_id, payload, received_at)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, NOW())
	`, e.ID, e.Provider, e.Type, e.TransactionID, []byte(e.Payload))
	if err != nil {
		return fmt.Errorf("insert raw event: %w", err)
	}
	return nil
}

// LogFilter narrows List results.
type LogFilter struct {
	Status string
	Origin string
	Limit  int
}

// List returns audit rows, newest first.
func (r *WebhookLogRepo) List(ctx context.Context, f LogFilter) ([]domain.WebhookLog, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	q := `
		SELECT id, origin, status, raw_payload,
		       COALESCE(buyer_name,''), COALESCE(buyer_email,''),
		       COALESCE(offer_id,''), COALESCE(offer_name_v2,''),
		       COALESCE(product_id,''), COALESCE(product_name,''),
		       COALESCE(assigned_category,''), participant_id,
		       COALESCE(amount_cents,0), COALESCE(name_source,''),
		       COALESCE(phone_source,''), error_message, processed_at, created_at
		FROM webhook_sales_logs
		WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Origin != "" {
		q += fmt.Sprintf(" AND origin = $%d", idx)
		args = append(args, f.Origin)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhook logs: %w", err)
	}
	defer rows.Close()

	var out []domain.WebhookLog
	for rows.Next() {
		var l domain.WebhookLog
		var raw []byte
		if err := rows.Scan(
			&l.ID, &l.Origin, &l.Status, &raw,
			&l.BuyerName, &l.BuyerEmail,
			&l.OfferID, &l.OfferNameV2,
			&l.ProductID, &l.ProductName,
			&l.AssignedCategory, &l.ParticipantID,
			&l.AmountCents, &l.NameSource,
			&l.PhoneSource, &l.ErrorMessage, &l.ProcessedAt, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook log: %w", err)
		}
		l.RawPayload = raw
		out = append(out, l)
	}
	return out, rows.Err()
}
