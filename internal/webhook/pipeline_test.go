package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/wolfdaybr/validapass/internal/domain"
	"github.com/wolfdaybr/validapass/internal/mailer"
	"github.com/wolfdaybr/validapass/internal/repository/postgres"
)

type fakeParticipants struct {
	byEmail    map[string]*domain.Participant
	created    []*domain.Participant
	backfilled map[string]string
}

func newFakeParticipants() *fakeParticipants {
	return &fakeParticipants{byEmail: map[string]*domain.Participant{}, backfilled: map[string]string{}}
}

func (f *fakeParticipants) GetByEmail(_ context.Context, email string) (*domain.Participant, error) {
	if p, ok := f.byEmail[email]; ok {
		return p, nil
	}
	return nil, postgres.ErrNotFound
}

func (f *fakeParticipants) Create(_ context.Context, p *domain.Participant) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	f.byEmail[p.Email] = p
	f.created = append(f.created, p)
	return nil
}

func (f *fakeParticipants) BackfillPhone(_ context.Context, id, phone string) (bool, error) {
	for _, p := range f.byEmail {
		if p.ID == id {
			if p.Phone != "" {
				return false, nil
			}
			p.Phone = phone
			f.backfilled[id] = phone
			return true, nil
		}
	}
	return false, nil
}

type fakeTickets struct {
	byParticipant map[string]*domain.Ticket
	created       []*domain.Ticket
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{byParticipant: map[string]*domain.Ticket{}}
}

func (f *fakeTickets) GetByParticipant(_ context.Context, participantID string) (*domain.Ticket, error) {
	if t, ok := f.byParticipant[participantID]; ok {
		return t, nil
	}
	return nil, postgres.ErrNotFound
}

func (f *fakeTickets) Create(_ context.Context, t *domain.Ticket) error {
	f.byParticipant[t.ParticipantID] = t
	f.created = append(f.created, t)
	return nil
}

type fakeSales struct {
	seen map[string]bool
	err  error
}

func newFakeSales() *fakeSales { return &fakeSales{seen: map[string]bool{}} }

func (f *fakeSales) Record(_ context.Context, s *domain.Sale) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[s.TransactionID] {
		return false, nil
	}
	f.seen[s.TransactionID] = true
	return true, nil
}

type fakeAudit struct {
	logs []domain.WebhookLog
	raws []domain.RawEvent
}

func (f *fakeAudit) InsertLog(_ context.Context, l *domain.WebhookLog) error {
	f.logs = append(f.logs, *l)
	return nil
}

func (f *fakeAudit) InsertRawEvent(_ context.Context, e *domain.RawEvent) error {
	f.raws = append(f.raws, *e)
	return nil
}

type fakeQueue struct {
	entries []domain.EmailQueueEntry
}

func (f *fakeQueue) Enqueue(_ context.Context, e *domain.EmailQueueEntry) error {
	f.entries = append(f.entries, *e)
	return nil
}

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, m *mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, *m)
	return nil
}

type pipelineFixture struct {
	pipeline     *Pipeline
	participants *fakeParticipants
	tickets      *fakeTickets
	sales        *fakeSales
	audit        *fakeAudit
	queue        *fakeQueue
	sender       *fakeSender
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		participants: newFakeParticipants(),
		tickets:      newFakeTickets(),
		sales:        newFakeSales(),
		audit:        &fakeAudit{},
		queue:        &fakeQueue{},
		sender:       &fakeSender{},
	}
	dispatcher := NewTicketDispatcher(
		mailer.NewTicketEmailBuilder("https://validapass.com.br", "https://api.qrserver.com/v1/create-qr-code/"),
		f.sender,
		mailer.FromAddress("Wolf Day Brazil", "noreply@wolfdaybr.com.br"),
		f.queue,
		0,
	)
	f.pipeline = NewPipeline(
		NewResolver(),
		NewCategoryMapper(nil, "Camarote"),
		f.participants, f.tickets, f.sales, f.audit, dispatcher,
	)
	return f
}

func (f *pipelineFixture) process(t *testing.T, body string) Outcome {
	t.Helper()
	var payload Payload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return f.pipeline.Process(context.Background(), DetectOrigin(payload), json.RawMessage(body), payload)
}

const hublaPaid = `{
	"type": "invoice.payment_succeeded",
	"event": {
		"user": {"name": "MARIA DOS SANTOS", "email": "maria@example.com", "phone": "11 91234-5678"},
		"invoice": {"id": "tx-100", "status": "paid", "amount": {"totalCents": 30000}},
		"offer": {"id": "off-1", "name": "Wolf Gold Lote 1"}
	}
}`

func TestPipelineProvisionsNewSale(t *testing.T) {
	f := newPipelineFixture()
	out := f.process(t, hublaPaid)

	if out.Status != domain.WebhookSuccess {
		t.Fatalf("status = %q, want success", out.Status)
	}
	if len(f.participants.created) != 1 {
		t.Fatalf("created %d participants, want 1", len(f.participants.created))
	}
	p := f.participants.created[0]
	if p.Name != "Maria dos Santos" {
		t.Errorf("name = %q, want title-cased with lowercase preposition", p.Name)
	}
	if p.Category != domain.CategoryGold {
		t.Errorf("category = %q", p.Category)
	}
	ticket := f.tickets.byParticipant[p.ID]
	if ticket == nil || ticket.QRCode != p.ID {
		t.Fatalf("ticket qr = %+v, want participant id payload", ticket)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("sent %d emails, want 1 inline", len(f.sender.sent))
	}
	if !out.EmailSent {
		t.Error("outcome should report inline send")
	}

	if len(f.audit.logs) != 1 || len(f.audit.raws) != 1 {
		t.Fatalf("audit rows = %d, raw rows = %d, want 1 each", len(f.audit.logs), len(f.audit.raws))
	}
	row := f.audit.logs[0]
	if row.Status != domain.WebhookSuccess || row.ParticipantID == nil {
		t.Errorf("audit row = %+v", row)
	}
	if row.NameSource != SourceUserName {
		t.Errorf("name source = %q", row.NameSource)
	}
}

func TestPipelineRedeliveryIsIdempotent(t *testing.T) {
	f := newPipelineFixture()
	f.process(t, hublaPaid)
	out := f.process(t, hublaPaid)

	if out.Status != domain.WebhookDuplicate {
		t.Fatalf("status = %q, want duplicate", out.Status)
	}
	if len(f.participants.created) != 1 {
		t.Errorf("created %d participants after redelivery", len(f.participants.created))
	}
	if len(f.tickets.created) != 1 {
		t.Errorf("created %d tickets after redelivery", len(f.tickets.created))
	}
	// No second email for a pure duplicate.
	if len(f.sender.sent) != 1 {
		t.Errorf("sent %d emails after redelivery", len(f.sender.sent))
	}
	// Both invocations still audited.
	if len(f.audit.logs) != 2 || len(f.audit.raws) != 2 {
		t.Errorf("audit rows = %d, raw rows = %d, want 2 each", len(f.audit.logs), len(f.audit.raws))
	}
}

func TestPipelineSkipsIncomplete(t *testing.T) {
	f := newPipelineFixture()

	out := f.process(t, `{"event": {"invoice": {"id": "tx-1"}}}`)
	if out.Status != domain.WebhookSkipped {
		t.Errorf("missing email: status = %q, want skipped", out.Status)
	}
	out = f.process(t, `{"userEmail": "a@b.com"}`)
	if out.Status != domain.WebhookSkipped {
		t.Errorf("missing transaction id: status = %q, want skipped", out.Status)
	}
	if len(f.participants.created) != 0 || len(f.sender.sent) != 0 {
		t.Error("incomplete events must not provision or send")
	}
	if len(f.audit.logs) != 2 {
		t.Errorf("audit rows = %d, want one per invocation", len(f.audit.logs))
	}
}

func TestPipelineSkipsUnpaid(t *testing.T) {
	f := newPipelineFixture()
	out := f.process(t, `{
		"event": {
			"user": {"email": "x@y.com"},
			"invoice": {"id": "tx-2", "status": "refunded"}
		}
	}`)

	if out.Status != domain.WebhookSkippedUnpaid {
		t.Fatalf("status = %q, want skipped_unpaid", out.Status)
	}
	if len(f.participants.created) != 0 {
		t.Error("unpaid event must not provision")
	}
	if f.audit.logs[0].Status != domain.WebhookSkippedUnpaid {
		t.Errorf("audit status = %q", f.audit.logs[0].Status)
	}
}

func TestPipelineBackfillsPhone(t *testing.T) {
	f := newPipelineFixture()
	f.participants.byEmail["maria@example.com"] = &domain.Participant{
		ID: "p-1", Name: "Maria", Email: "maria@example.com",
	}

	out := f.process(t, hublaPaid)
	if out.Status != domain.WebhookSuccess {
		t.Fatalf("status = %q", out.Status)
	}
	if got := f.participants.backfilled["p-1"]; got != "11912345678" {
		t.Errorf("backfilled phone = %q", got)
	}
	if len(f.participants.created) != 0 {
		t.Error("existing participant must be reused, not recreated")
	}
}

func TestPipelineDoesNotOverwritePhone(t *testing.T) {
	f := newPipelineFixture()
	f.participants.byEmail["maria@example.com"] = &domain.Participant{
		ID: "p-1", Name: "Maria", Email: "maria@example.com", Phone: "31900000000",
	}

	f.process(t, hublaPaid)
	if f.participants.byEmail["maria@example.com"].Phone != "31900000000" {
		t.Error("stored phone was overwritten")
	}
}

func TestPipelineQueuesOnSendFailure(t *testing.T) {
	f := newPipelineFixture()
	f.sender.err = errors.New("provider down")

	out := f.process(t, hublaPaid)
	if out.Status != domain.WebhookSuccess {
		t.Fatalf("status = %q, send failure must not fail the event", out.Status)
	}
	if out.EmailSent {
		t.Error("outcome claims inline send after failure")
	}
	if len(f.queue.entries) != 1 {
		t.Fatalf("queued %d entries, want 1", len(f.queue.entries))
	}
	e := f.queue.entries[0]
	if e.Status != domain.EmailPending || e.MaxRetries != domain.DefaultMaxRetries {
		t.Errorf("queued entry = %+v", e)
	}
	if e.Email != "maria@example.com" || e.Subject == "" || e.HTMLContent == "" {
		t.Errorf("queued entry missing content: %+v", e)
	}
}

func TestDispatcherUsesConfiguredMaxRetries(t *testing.T) {
	queue := &fakeQueue{}
	d := NewTicketDispatcher(
		mailer.NewTicketEmailBuilder("https://validapass.com.br", "https://api.qrserver.com/v1/create-qr-code/"),
		&fakeSender{err: errors.New("provider down")},
		mailer.FromAddress("Wolf Day Brazil", "noreply@wolfdaybr.com.br"),
		queue,
		5,
	)

	p := domain.Participant{ID: "p-1", Name: "Maria", Email: "maria@example.com", Category: domain.CategoryGold}
	if sent, err := d.Dispatch(context.Background(), p); err != nil || sent {
		t.Fatalf("Dispatch = (%v, %v), want queued fallback", sent, err)
	}
	if len(queue.entries) != 1 || queue.entries[0].MaxRetries != 5 {
		t.Fatalf("queued entries = %+v, want MaxRetries 5", queue.entries)
	}
}

func TestPipelineSaleRecordFailureStillProvisions(t *testing.T) {
	f := newPipelineFixture()
	f.sales.err = errors.New("db down")

	out := f.process(t, hublaPaid)
	if out.Status != domain.WebhookSuccess {
		t.Fatalf("status = %q, dedup outage must not drop the sale", out.Status)
	}
	if len(f.participants.created) != 1 {
		t.Errorf("created %d participants", len(f.participants.created))
	}
}
