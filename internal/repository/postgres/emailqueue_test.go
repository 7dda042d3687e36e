package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/wolfdaybr/validapass/internal/domain"
)

func TestEnqueueFillsDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO email_queue").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewEmailQueueRepo(db)
	e := &domain.EmailQueueEntry{
		ParticipantID: "p-1",
		Email:         "maria@example.com",
		Subject:       "subject",
		HTMLContent:   "<p>hi</p>",
	}
	if err := repo.Enqueue(context.Background(), e); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if e.ID == "" || e.Status != domain.EmailPending || e.MaxRetries != domain.DefaultMaxRetries {
		t.Errorf("defaults not applied: %+v", e)
	}
	if e.ScheduledAt.IsZero() {
		t.Error("scheduled_at not defaulted")
	}
}

func TestFetchDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "participant_id", "email", "subject", "html_content",
		"status", "retry_count", "max_retries", "error_message",
		"scheduled_at", "sent_at", "created_at", "updated_at",
	}).AddRow("e-1", "p-1", "maria@example.com", "subject", "<p>hi</p>",
		"pending", 1, 3, "timeout", now, nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM email_queue").
		WithArgs(10).
		WillReturnRows(rows)

	repo := NewEmailQueueRepo(db)
	entries, err := repo.FetchDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchDue: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.ID != "e-1" || e.RetryCount != 1 || e.ErrorMessage == nil || *e.ErrorMessage != "timeout" {
		t.Errorf("entry = %+v", e)
	}
}

func TestMarkFailureWritesSchedule(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	next := time.Now().Add(10 * time.Minute)
	mock.ExpectExec("UPDATE email_queue").
		WithArgs("e-1", "pending", 2, "timeout", next).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewEmailQueueRepo(db)
	err = repo.MarkFailure(context.Background(), "e-1", 2, domain.EmailPending, "timeout", next)
	if err != nil {
		t.Fatalf("MarkFailure: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestResetFailedCountsRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE email_queue").
		WillReturnResult(sqlmock.NewResult(0, 4))

	repo := NewEmailQueueRepo(db)
	n, err := repo.ResetFailed(context.Background())
	if err != nil {
		t.Fatalf("ResetFailed: %v", err)
	}
	if n != 4 {
		t.Errorf("reset %d rows", n)
	}
}

func TestReclaimStuckSending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE email_queue").
		WithArgs("10m0s").
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := NewEmailQueueRepo(db)
	n, err := repo.ReclaimStuckSending(context.Background(), 10*time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStuckSending: %v", err)
	}
	if n != 2 {
		t.Errorf("reclaimed %d rows", n)
	}
}
