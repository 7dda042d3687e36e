package domain

import (
	"encoding/json"
	"time"
)

// Sale is the de-duplicated record of one payment transaction. The
// transaction id is the unique key and the sole dedup anchor: redelivery of
// the same id must never produce a second row.
type Sale struct {
	TransactionID string     `json:"transaction_id" db:"transaction_id"`
	Email         string     `json:"user_email" db:"user_email"`
	Name          string     `json:"user_name" db:"user_name"`
	Phone         string     `json:"user_phone" db:"user_phone"`
	OfferName     string     `json:"offer_name" db:"offer_name"`
	ProductName   string     `json:"product_name" db:"product_name"`
	AmountCents   int64      `json:"amount_cents" db:"amount_cents"`
	PaidAt        *time.Time `json:"paid_at" db:"paid_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// WebhookStatus classifies the outcome of one webhook invocation.
type WebhookStatus string

const (
	WebhookSuccess       WebhookStatus = "success"
	WebhookDuplicate     WebhookStatus = "duplicate"
	WebhookSkipped       WebhookStatus = "skipped"
	WebhookSkippedUnpaid WebhookStatus = "skipped_unpaid"
	WebhookError         WebhookStatus = "error"
)

// WebhookLog is the audit row written exactly once per webhook invocation,
// whatever the outcome. NameSource and PhoneSource record which resolution
// tier produced the stored value, so misresolutions are diagnosable without
// replaying the raw payload.
type WebhookLog struct {
	ID               string          `json:"id" db:"id"`
	Origin           string          `json:"origin" db:"origin"`
	Status           WebhookStatus   `json:"status" db:"status"`
	RawPayload       json.RawMessage `json:"raw_payload" db:"raw_payload"`
	BuyerName        string          `json:"buyer_name" db:"buyer_name"`
	BuyerEmail       string          `json:"buyer_email" db:"buyer_email"`
	OfferID          string          `json:"offer_id" db:"offer_id"`
	OfferNameV2      string          `json:"offer_name_v2" db:"offer_name_v2"`
	ProductID        string          `json:"product_id" db:"product_id"`
	ProductName      string          `json:"product_name" db:"product_name"`
	AssignedCategory string          `json:"assigned_category" db:"assigned_category"`
	ParticipantID    *string         `json:"participant_id" db:"participant_id"`
	AmountCents      int64           `json:"amount_cents" db:"amount_cents"`
	NameSource       string          `json:"name_source" db:"name_source"`
	PhoneSource      string          `json:"phone_source" db:"phone_source"`
	ErrorMessage     *string         `json:"error_message" db:"error_message"`
	ProcessedAt      time.Time       `json:"processed_at" db:"processed_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// RawEvent is the unconditional forensic copy of every parsed payload,
// written before any business logic runs.
type RawEvent struct {
	ID            string          `json:"id" db:"id"`
	Provider      string          `json:"provider" db:"provider"`
	Type          string          `json:"type" db:"type"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	Payload       json.RawMessage `json:"payload" db:"payload"`
	ReceivedAt    time.Time       `json:"received_at" db:"received_at"`
}
