package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wolfdaybr/validapass/internal/domain"
	"github.com/wolfdaybr/validapass/internal/pkg/logger"
	"github.com/wolfdaybr/validapass/internal/repository/postgres"
)

type participantStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.Participant, error)
	Create(ctx context.Context, p *domain.Participant) error
	BackfillPhone(ctx context.Context, id, phone string) (bool, error)
}

type ticketStore interface {
	GetByParticipant(ctx context.Context, participantID string) (*domain.Ticket, error)
	Create(ctx context.Context, t *domain.Ticket) error
}

type saleStore interface {
	Record(ctx context.Context, s *domain.Sale) (bool, error)
}

type auditStore interface {
	InsertLog(ctx context.Context, l *domain.WebhookLog) error
	InsertRawEvent(ctx context.Context, e *domain.RawEvent) error
}

// Outcome is the result of processing one webhook event, echoed back to the
// provider in the response body.
type Outcome struct {
	Status        domain.WebhookStatus
	ParticipantID string
	EmailSent     bool
}

// Pipeline runs a parsed sale event through resolution, dedup, participant
// and ticket provisioning, and email dispatch. Exactly one audit row is
// written per invocation regardless of outcome.
type Pipeline struct {
	resolver     *Resolver
	categories   *CategoryMapper
	participants participantStore
	tickets      ticketStore
	sales        saleStore
	audit        auditStore
	dispatcher   *TicketDispatcher
}

func NewPipeline(
	resolver *Resolver,
	categories *CategoryMapper,
	participants participantStore,
	tickets ticketStore,
	sales saleStore,
	audit auditStore,
	dispatcher *TicketDispatcher,
) *Pipeline {
	return &Pipeline{
		resolver:     resolver,
		categories:   categories,
		participants: participants,
		tickets:      tickets,
		sales:        sales,
		audit:        audit,
		dispatcher:   dispatcher,
	}
}

// Process handles one webhook event. It never returns an error: every
// failure mode collapses into an Outcome status so the HTTP layer can keep
// its always-200 contract with the providers.
func (pl *Pipeline) Process(ctx context.Context, origin string, raw json.RawMessage, payload Payload) Outcome {
	res := pl.resolver.Resolve(origin, payload)

	// Forensic copy first, before any gate can drop the event.
	rawEvent := &domain.RawEvent{
		ID:            uuid.New().String(),
		Provider:      origin,
		Type:          res.EventType,
		TransactionID: res.TransactionID,
		Payload:       raw,
		ReceivedAt:    time.Now(),
	}
	if err := pl.audit.InsertRawEvent(ctx, rawEvent); err != nil {
		logger.Error("raw event insert failed", "origin", origin, "error", err.Error())
	}

	auditRow := &domain.WebhookLog{
		ID:          uuid.New().String(),
		Origin:      origin,
		RawPayload:  raw,
		BuyerName:   res.Name,
		BuyerEmail:  res.Email,
		OfferID:     res.OfferID,
		OfferNameV2: res.OfferNameV2,
		ProductID:   res.ProductID,
		ProductName: res.ProductName,
		AmountCents: res.AmountCents,
		NameSource:  res.NameSource,
		PhoneSource: res.PhoneSource,
		ProcessedAt: time.Now(),
	}
	if res.OfferNameV2 == "" {
		auditRow.OfferNameV2 = res.OfferName
	}

	outcome := pl.run(ctx, res, auditRow)

	auditRow.Status = outcome.Status
	if outcome.ParticipantID != "" {
		auditRow.ParticipantID = &outcome.ParticipantID
	}
	if err := pl.audit.InsertLog(ctx, auditRow); err != nil {
		logger.Error("audit log insert failed",
			"origin", origin, "transaction_id", res.TransactionID, "error", err.Error())
	}

	return outcome
}

func (pl *Pipeline) run(ctx context.Context, res Resolved, auditRow *domain.WebhookLog) Outcome {
	if res.Email == "" || res.TransactionID == "" {
		logger.Info("incomplete event skipped",
			"transaction_id", res.TransactionID, "has_email", res.Email != "")
		return Outcome{Status: domain.WebhookSkipped}
	}

	if !res.Paid {
		logger.Info("unpaid event skipped", "transaction_id", res.TransactionID)
		return Outcome{Status: domain.WebhookSkippedUnpaid}
	}

	category := pl.categories.Assign(res)
	auditRow.AssignedCategory = string(category)

	newSale, err := pl.sales.Record(ctx, &domain.Sale{
		TransactionID: res.TransactionID,
		Email:         res.Email,
		Name:          res.Name,
		Phone:         res.Phone,
		OfferName:     firstNonEmpty(res.OfferNameV2, res.OfferName),
		ProductName:   res.ProductName,
		AmountCents:   res.AmountCents,
		PaidAt:        res.PaidAt,
	})
	if err != nil {
		// Provisioning is idempotent, so a failed dedup check is safer
		// treated as a new sale than as a drop.
		logger.Error("sale record failed", "transaction_id", res.TransactionID, "error", err.Error())
		newSale = true
	}

	participant, err := pl.provisionParticipant(ctx, res, category)
	if err != nil {
		msg := err.Error()
		auditRow.ErrorMessage = &msg
		logger.Error("participant provisioning failed",
			"transaction_id", res.TransactionID, "error", msg)
		return Outcome{Status: domain.WebhookError}
	}

	newTicket := pl.ensureTicket(ctx, participant.ID)

	if !newSale && !newTicket {
		return Outcome{Status: domain.WebhookDuplicate, ParticipantID: participant.ID}
	}

	sent, err := pl.dispatcher.Dispatch(ctx, *participant)
	if err != nil {
		msg := err.Error()
		auditRow.ErrorMessage = &msg
		return Outcome{Status: domain.WebhookError, ParticipantID: participant.ID}
	}

	status := domain.WebhookSuccess
	if !newSale {
		status = domain.WebhookDuplicate
	}
	return Outcome{Status: status, ParticipantID: participant.ID, EmailSent: sent}
}

// provisionParticipant finds the participant by email or creates one. An
// existing participant with no phone gets the resolved phone backfilled;
// a stored phone is never overwritten.
func (pl *Pipeline) provisionParticipant(ctx context.Context, res Resolved, category domain.Category) (*domain.Participant, error) {
	existing, err := pl.participants.GetByEmail(ctx, res.Email)
	switch {
	case err == nil:
		if res.Phone != "" {
			if updated, err := pl.participants.BackfillPhone(ctx, existing.ID, res.Phone); err != nil {
				logger.Warn("phone backfill failed", "participant_id", existing.ID, "error", err.Error())
			} else if updated {
				existing.Phone = res.Phone
			}
		}
		return existing, nil
	case errors.Is(err, postgres.ErrNotFound):
		p := &domain.Participant{
			Name:     domain.TitleCaseName(res.Name),
			Email:    res.Email,
			Phone:    res.Phone,
			Category: category,
		}
		if err := pl.participants.Create(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, err
	}
}

// ensureTicket creates the participant's ticket if missing, with the
// participant id as QR payload. Ticket failures do not fail the event; the
// next redelivery retries.
func (pl *Pipeline) ensureTicket(ctx context.Context, participantID string) bool {
	_, err := pl.tickets.GetByParticipant(ctx, participantID)
	if err == nil {
		return false
	}
	if !errors.Is(err, postgres.ErrNotFound) {
		logger.Warn("ticket lookup failed", "participant_id", participantID, "error", err.Error())
		return false
	}
	t := &domain.Ticket{ParticipantID: participantID, QRCode: participantID}
	if err := pl.tickets.Create(ctx, t); err != nil {
		logger.Warn("ticket create failed", "participant_id", participantID, "error", err.Error())
		return false
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
