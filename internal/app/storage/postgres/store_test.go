package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/freelancebill/freelancebill/internal/app/domain/client"
	"github.com/freelancebill/freelancebill/internal/app/domain/invoice"
	"github.com/freelancebill/freelancebill/internal/app/domain/user"
	"github.com/freelancebill/freelancebill/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func userRows(username string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "username", "password_hash", "verified", "token",
		"name", "business_name", "email", "phone", "address", "tax_number",
		"created_at", "updated_at",
	}).AddRow("u1", username, sql.NullString{String: "hash", Valid: true}, true, sql.NullString{},
		"Alice", "", username, "", "", "", now, now)
}

func TestGetUserByUsername(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
		WithArgs("alice@example.com").
		WillReturnRows(userRows("alice@example.com"))

	u, err := store.GetUserByUsername(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u.ID != "u1" || u.PasswordHash != "hash" || u.Token != "" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetUserByUsernameNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetUserByUsername(context.Background(), "nobody@example.com")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserByEmptyToken(t *testing.T) {
	store, _ := newMockStore(t)

	// an empty token must never match the users whose token column is null
	_, err := store.GetUserByToken(context.Background(), "")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserNullsEmptyCredentials(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs("u1").
		WillReturnRows(userRows("alice@example.com"))
	// cleared hash and token columns receive NULL, not ''
	mock.ExpectExec("UPDATE users").
		WithArgs("u1", "alice@example.com", nil, true, nil,
			"Alice", "", "alice@example.com", "", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := user.User{
		ID:       "u1",
		Username: "alice@example.com",
		Verified: true,
	}
	u.Profile.Name = "Alice"
	u.Profile.Email = "alice@example.com"

	if _, err := store.UpdateUser(context.Background(), u); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateClientAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO clients").
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := store.CreateClient(context.Background(), client.Client{UserID: "u1", Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if c.ID == "" {
		t.Fatalf("expected a generated ID")
	}
	if c.CreatedAt.IsZero() || c.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}
}

func TestCreateUserUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreateUser(context.Background(), user.User{Username: "alice@example.com"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateInvoiceTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invoices").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO invoice_items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inv := invoice.Invoice{
		UserID:        "u1",
		ClientID:      "c1",
		Number:        "1",
		IssueDate:     time.Now(),
		DueDate:       time.Now().AddDate(0, 1, 0),
		Currency:      invoice.CurrencyUSD,
		Status:        invoice.StatusUnpaid,
		PaymentMethod: invoice.PaymentBankTransfer,
	}
	items := []invoice.Item{invoice.NewItem("Consulting", 2, invoice.UnitHours, 50, 10)}

	created, err := store.CreateInvoice(context.Background(), inv, items)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected a generated ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateInvoiceRollsBackOnItemFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invoices").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO invoice_items").
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	inv := invoice.Invoice{UserID: "u1", ClientID: "c1", Number: "1"}
	items := []invoice.Item{invoice.NewItem("Consulting", 2, invoice.UnitHours, 50, 10)}

	if _, err := store.CreateInvoice(context.Background(), inv, items); err == nil {
		t.Fatalf("expected failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLastInvoiceNumberEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT invoice_number FROM invoices").
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	number, err := store.LastInvoiceNumber(context.Background(), "u1")
	if err != nil {
		t.Fatalf("LastInvoiceNumber: %v", err)
	}
	if number != "" {
		t.Fatalf("expected empty number, got %q", number)
	}
}

func TestDeleteInvoiceItemNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM invoice_items").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteInvoiceItem(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
