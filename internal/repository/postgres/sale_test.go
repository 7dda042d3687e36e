package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/wolfdaybr/validapass/internal/domain"
)

func TestSaleRecordInsertsNew(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO wolf_sales").
		WithArgs("tx-1", "maria@example.com", "Maria", "11999990000",
			"Wolf Gold", "Wolf Day Brazil", int64(25000), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSaleRepo(db)
	inserted, err := repo.Record(context.Background(), &domain.Sale{
		TransactionID: "tx-1",
		Email:         "maria@example.com",
		Name:          "Maria",
		Phone:         "11999990000",
		OfferName:     "Wolf Gold",
		ProductName:   "Wolf Day Brazil",
		AmountCents:   25000,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !inserted {
		t.Error("first insert should report a new row")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaleRecordRedeliveryNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	// ON CONFLICT DO NOTHING affects zero rows on redelivery.
	mock.ExpectExec("INSERT INTO wolf_sales").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewSaleRepo(db)
	inserted, err := repo.Record(context.Background(), &domain.Sale{TransactionID: "tx-1"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if inserted {
		t.Error("redelivery must not report a new row")
	}
}

func TestSaleGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM wolf_sales").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id"}))

	repo := NewSaleRepo(db)
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
