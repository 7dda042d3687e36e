package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wolfdaybr/validapass/internal/domain"
)

// SaleRepo implements sale-record storage. The transaction id carries a
// unique constraint, so dedup is an upsert-or-ignore rather than a
// check-then-insert with a race window.
type SaleRepo struct{ db *sql.DB }

// NewSaleRepo creates a Postgres-backed sale repository.
func NewSaleRepo(db *sql.DB) *SaleRepo { return &SaleRepo{db: db} }

// Record inserts the sale unless its transaction id already exists.
// Returns true when a new row was written, false on redelivery.
func (r *SaleRepo) Record(ctx context.Context, s *domain.Sale) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO wolf_sales
			(transaction_id, user_email, user_name, user_phone,
			 offer_name, product_name, amount_cents, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (transaction_id) DO NOTHING
	`, s.TransactionID, s.Email, s.Name, s.Phone,
		s.OfferName, s.ProductName, s.AmountCents, s.PaidAt)
	if err != nil {
		return false, fmt.Errorf("record sale: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Get returns the sale recorded under the given transaction id.
func (r *SaleRepo) Get(ctx context.Context, transactionID string) (*domain.Sale, error) {
	s := &domain.Sale{}
	err := r.db.QueryRowContext(ctx, `
		SELECT transaction_id, user_email, COALESCE(user_name,''), COALESCE(user_phone,''),
		       COALESCE(offer_name,''), COALESCE(product_name,''),
		       COALESCE(amount_cents,0), paid_at, created_at
		FROM wolf_sales
		WHERE transaction_id = $1
	`, transactionID).Scan(
		&s.TransactionID, &s.Email, &s.Name, &s.Phone,
		&s.OfferName, &s.ProductName, &s.AmountCents, &s.PaidAt, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return s, nil
}
