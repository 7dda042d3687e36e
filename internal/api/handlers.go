package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/wolfdaybr/validapass/internal/domain"
	"github.com/wolfdaybr/validapass/internal/pkg/httputil"
	"github.com/wolfdaybr/validapass/internal/pkg/logger"
	"github.com/wolfdaybr/validapass/internal/queue"
	"github.com/wolfdaybr/validapass/internal/repository/postgres"
)

type queueProcessor interface {
	ProcessBatch(ctx context.Context) (queue.Result, error)
	ResetFailed(ctx context.Context) (int64, error)
}

type emailQueueReader interface {
	List(ctx context.Context, f postgres.ListFilter) ([]domain.EmailQueueEntry, int, error)
}

type webhookLogReader interface {
	List(ctx context.Context, f postgres.LogFilter) ([]domain.WebhookLog, error)
}

type participantReader interface {
	GetByID(ctx context.Context, id string) (*domain.Participant, error)
	MarkPresence(ctx context.Context, id, date string) error
}

type ticketValidator interface {
	GetByQRCode(ctx context.Context, qrCode string) (*domain.Ticket, error)
	MarkValidated(ctx context.Context, id string, at time.Time) error
}

type ticketDispatcher interface {
	Dispatch(ctx context.Context, p domain.Participant) (bool, error)
}

// Handlers holds the operator API endpoints.
type Handlers struct {
	processor    queueProcessor
	emailQueue   emailQueueReader
	webhookLogs  webhookLogReader
	participants participantReader
	tickets      ticketValidator
	dispatcher   ticketDispatcher
}

func NewHandlers(
	processor queueProcessor,
	emailQueue emailQueueReader,
	webhookLogs webhookLogReader,
	participants participantReader,
	tickets ticketValidator,
	dispatcher ticketDispatcher,
) *Handlers {
	return &Handlers{
		processor:    processor,
		emailQueue:   emailQueue,
		webhookLogs:  webhookLogs,
		participants: participants,
		tickets:      tickets,
		dispatcher:   dispatcher,
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok", "service": "validapass"})
}

type validateRequest struct {
	QRCode string `json:"qr_code"`
	Date   string `json:"date"`
}

type validateResponse struct {
	Valid            bool                `json:"valid"`
	AlreadyValidated bool                `json:"already_validated"`
	Participant      *domain.Participant `json:"participant,omitempty"`
}

// ValidateTicket checks in a participant at the door. The QR payload is the
// participant id; validation marks the ticket used and records presence for
// the given date (today when absent). A second scan answers with
// already_validated instead of rejecting, so the gate staff sees who it was.
func (h *Handlers) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.QRCode == "" {
		httputil.BadRequest(w, "qr_code is required")
		return
	}
	date := req.Date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	ticket, err := h.tickets.GetByQRCode(r.Context(), req.QRCode)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.JSON(w, http.StatusNotFound, validateResponse{Valid: false})
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	participant, err := h.participants.GetByID(r.Context(), ticket.ParticipantID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if ticket.IsValidated {
		httputil.OK(w, validateResponse{Valid: true, AlreadyValidated: true, Participant: participant})
		return
	}

	if err := h.tickets.MarkValidated(r.Context(), ticket.ID, time.Now()); err != nil {
		httputil.InternalError(w, err)
		return
	}
	if err := h.participants.MarkPresence(r.Context(), participant.ID, date); err != nil {
		logger.Warn("presence mark failed", "participant_id", participant.ID, "error", err.Error())
	}

	httputil.OK(w, validateResponse{Valid: true, Participant: participant})
}

// ProcessEmailQueue manually triggers one queue pass. Safe to call while the
// background worker runs; the two share a lock.
func (h *Handlers) ProcessEmailQueue(w http.ResponseWriter, r *http.Request) {
	res, err := h.processor.ProcessBatch(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, res)
}

// ResetFailedEmails returns all terminally failed queue entries to pending.
func (h *Handlers) ResetFailedEmails(w http.ResponseWriter, r *http.Request) {
	n, err := h.processor.ResetFailed(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]int64{"reset": n})
}

// ListEmailQueue pages through queue entries for the admin panel.
func (h *Handlers) ListEmailQueue(w http.ResponseWriter, r *http.Request) {
	f := postgres.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	entries, total, err := h.emailQueue.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.EmailQueueEntry{}
	}
	httputil.OK(w, map[string]interface{}{"entries": entries, "total": total})
}

// ListWebhookLogs returns the audit trail, newest first.
func (h *Handlers) ListWebhookLogs(w http.ResponseWriter, r *http.Request) {
	f := postgres.LogFilter{
		Status: r.URL.Query().Get("status"),
		Origin: r.URL.Query().Get("origin"),
		Limit:  queryInt(r, "limit"),
	}
	logs, err := h.webhookLogs.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if logs == nil {
		logs = []domain.WebhookLog{}
	}
	httputil.OK(w, map[string]interface{}{"logs": logs})
}

type sendTicketRequest struct {
	ParticipantID string `json:"participant_id"`
}

// SendTicketEmail re-sends the ticket email for one participant, with the
// same inline-then-queue behavior as webhook provisioning.
func (h *Handlers) SendTicketEmail(w http.ResponseWriter, r *http.Request) {
	var req sendTicketRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.ParticipantID == "" {
		httputil.BadRequest(w, "participant_id is required")
		return
	}

	participant, err := h.participants.GetByID(r.Context(), req.ParticipantID)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "participant not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	sent, err := h.dispatcher.Dispatch(r.Context(), *participant)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]bool{"sent": sent, "queued": !sent})
}

func queryInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}
