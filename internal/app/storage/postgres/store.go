package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/freelancebill/freelancebill/internal/app/domain/client"
	"github.com/freelancebill/freelancebill/internal/app/domain/invoice"
	"github.com/freelancebill/freelancebill/internal/app/domain/user"
	"github.com/freelancebill/freelancebill/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ClientStore = (*Store)(nil)
var _ storage.InvoiceStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// uniqueViolation is the PostgreSQL error code for duplicate unique fields.
const uniqueViolation = "23505"

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return storage.ErrConflict
	}
	return err
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, verified, token, name, business_name, email, phone, address, tax_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, u.ID, u.Username, toNullString(u.PasswordHash), u.Verified, toNullString(u.Token),
		u.Profile.Name, u.Profile.BusinessName, u.Profile.Email, u.Profile.Phone, u.Profile.Address, u.Profile.TaxNumber,
		u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = $2, password_hash = $3, verified = $4, token = $5,
		    name = $6, business_name = $7, email = $8, phone = $9, address = $10, tax_number = $11,
		    updated_at = $12
		WHERE id = $1
	`, u.ID, u.Username, toNullString(u.PasswordHash), u.Verified, toNullString(u.Token),
		u.Profile.Name, u.Profile.BusinessName, u.Profile.Email, u.Profile.Phone, u.Profile.Address, u.Profile.TaxNumber,
		u.UpdatedAt)
	if err != nil {
		return user.User{}, translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

const userColumns = `id, username, password_hash, verified, token, name, business_name, email, phone, address, tax_number, created_at, updated_at`

func scanUser(row *sql.Row) (user.User, error) {
	var (
		u     user.User
		hash  sql.NullString
		token sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &hash, &u.Verified, &token,
		&u.Profile.Name, &u.Profile.BusinessName, &u.Profile.Email, &u.Profile.Phone, &u.Profile.Address, &u.Profile.TaxNumber,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return user.User{}, translate(err)
	}
	u.PasswordHash = hash.String
	u.Token = token.String
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE username = $1
	`, username))
}

func (s *Store) GetUserByToken(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, storage.ErrNotFound
	}
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE token = $1
	`, token))
}

// --- ClientStore ------------------------------------------------------------

func (s *Store) CreateClient(ctx context.Context, c client.Client) (client.Client, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, user_id, name, business_name, email, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.UserID, c.Name, c.BusinessName, c.Email, c.Phone, c.Address, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return client.Client{}, translate(err)
	}
	return c, nil
}

func (s *Store) UpdateClient(ctx context.Context, c client.Client) (client.Client, error) {
	existing, err := s.GetClient(ctx, c.ID)
	if err != nil {
		return client.Client{}, err
	}
	c.UserID = existing.UserID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET name = $2, business_name = $3, email = $4, phone = $5, address = $6, updated_at = $7
		WHERE id = $1
	`, c.ID, c.Name, c.BusinessName, c.Email, c.Phone, c.Address, c.UpdatedAt)
	if err != nil {
		return client.Client{}, translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return client.Client{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (client.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, business_name, email, phone, address, created_at, updated_at
		FROM clients WHERE id = $1
	`, id)

	var c client.Client
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.BusinessName, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return client.Client{}, translate(err)
	}
	return c, nil
}

func (s *Store) ListClients(ctx context.Context, userID string) ([]client.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, business_name, email, phone, address, created_at, updated_at
		FROM clients
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []client.Client
	for rows.Next() {
		var c client.Client
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.BusinessName, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// --- InvoiceStore -----------------------------------------------------------

const invoiceColumns = `id, user_id, client_id, invoice_number, issue_date, due_date, currency, tax_rate, subtotal, total_discount, tax_amount, total_amount, status, payment_method, payment_date, created_at, updated_at`

func (s *Store) CreateInvoice(ctx context.Context, inv invoice.Invoice, items []invoice.Item) (invoice.Invoice, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return invoice.Invoice{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, inv.ID, inv.UserID, inv.ClientID, inv.Number, inv.IssueDate, inv.DueDate, string(inv.Currency),
		inv.TaxRate, inv.Subtotal, inv.TotalDiscount, inv.TaxAmount, inv.TotalAmount,
		string(inv.Status), string(inv.PaymentMethod), toNullTime(inv.PaymentDate), inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return invoice.Invoice{}, translate(err)
	}

	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoice_items (id, invoice_id, description, quantity, unit, rate, discount, gross_amount, net_amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, item.ID, inv.ID, item.Description, item.Quantity, string(item.Unit), item.Rate, item.Discount,
			item.GrossAmount, item.NetAmount, now)
		if err != nil {
			return invoice.Invoice{}, translate(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return invoice.Invoice{}, err
	}
	return inv, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	existing, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		return invoice.Invoice{}, err
	}
	inv.UserID = existing.UserID
	inv.ClientID = existing.ClientID
	inv.Number = existing.Number
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET issue_date = $2, due_date = $3, currency = $4, tax_rate = $5,
		    subtotal = $6, total_discount = $7, tax_amount = $8, total_amount = $9,
		    status = $10, payment_method = $11, payment_date = $12, updated_at = $13
		WHERE id = $1
	`, inv.ID, inv.IssueDate, inv.DueDate, string(inv.Currency), inv.TaxRate,
		inv.Subtotal, inv.TotalDiscount, inv.TaxAmount, inv.TotalAmount,
		string(inv.Status), string(inv.PaymentMethod), toNullTime(inv.PaymentDate), inv.UpdatedAt)
	if err != nil {
		return invoice.Invoice{}, translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return invoice.Invoice{}, storage.ErrNotFound
	}
	return inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (invoice.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices WHERE id = $1
	`, id)

	var (
		inv         invoice.Invoice
		paymentDate sql.NullTime
	)
	if err := row.Scan(&inv.ID, &inv.UserID, &inv.ClientID, &inv.Number, &inv.IssueDate, &inv.DueDate,
		&inv.Currency, &inv.TaxRate, &inv.Subtotal, &inv.TotalDiscount, &inv.TaxAmount, &inv.TotalAmount,
		&inv.Status, &inv.PaymentMethod, &paymentDate, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return invoice.Invoice{}, translate(err)
	}
	if paymentDate.Valid {
		inv.PaymentDate = paymentDate.Time.UTC()
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, userID string) ([]invoice.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []invoice.Invoice
	for rows.Next() {
		var (
			inv         invoice.Invoice
			paymentDate sql.NullTime
		)
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.ClientID, &inv.Number, &inv.IssueDate, &inv.DueDate,
			&inv.Currency, &inv.TaxRate, &inv.Subtotal, &inv.TotalDiscount, &inv.TaxAmount, &inv.TotalAmount,
			&inv.Status, &inv.PaymentMethod, &paymentDate, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		if paymentDate.Valid {
			inv.PaymentDate = paymentDate.Time.UTC()
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func (s *Store) LastInvoiceNumber(ctx context.Context, userID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT invoice_number FROM invoices
		WHERE user_id = $1
		ORDER BY created_at DESC, invoice_number DESC
		LIMIT 1
	`, userID)

	var number string
	if err := row.Scan(&number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return number, nil
}

func (s *Store) CreateInvoiceItem(ctx context.Context, item invoice.Item) (invoice.Item, error) {
	if item.InvoiceID == "" {
		return invoice.Item{}, fmt.Errorf("invoice_id required")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoice_items (id, invoice_id, description, quantity, unit, rate, discount, gross_amount, net_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, item.ID, item.InvoiceID, item.Description, item.Quantity, string(item.Unit), item.Rate, item.Discount,
		item.GrossAmount, item.NetAmount, item.CreatedAt)
	if err != nil {
		return invoice.Item{}, translate(err)
	}
	return item, nil
}

func (s *Store) GetInvoiceItem(ctx context.Context, id string) (invoice.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, invoice_id, description, quantity, unit, rate, discount, gross_amount, net_amount, created_at
		FROM invoice_items WHERE id = $1
	`, id)

	var item invoice.Item
	if err := row.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Quantity, &item.Unit,
		&item.Rate, &item.Discount, &item.GrossAmount, &item.NetAmount, &item.CreatedAt); err != nil {
		return invoice.Item{}, translate(err)
	}
	return item, nil
}

func (s *Store) DeleteInvoiceItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM invoice_items WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListInvoiceItems(ctx context.Context, invoiceID string) ([]invoice.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, description, quantity, unit, rate, discount, gross_amount, net_amount, created_at
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY created_at
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []invoice.Item
	for rows.Next() {
		var item invoice.Item
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Quantity, &item.Unit,
			&item.Rate, &item.Discount, &item.GrossAmount, &item.NetAmount, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
