package storage

import (
	"context"
	"errors"

	"github.com/freelancebill/freelancebill/internal/app/domain/client"
	"github.com/freelancebill/freelancebill/internal/app/domain/invoice"
	"github.com/freelancebill/freelancebill/internal/app/domain/user"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique constraint is violated.
var ErrConflict = errors.New("already exists")

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	GetUserByToken(ctx context.Context, token string) (user.User, error)
}

// ClientStore persists client records.
type ClientStore interface {
	CreateClient(ctx context.Context, c client.Client) (client.Client, error)
	UpdateClient(ctx context.Context, c client.Client) (client.Client, error)
	GetClient(ctx context.Context, id string) (client.Client, error)
	ListClients(ctx context.Context, userID string) ([]client.Client, error)
}

// InvoiceStore persists invoices and their line items.
type InvoiceStore interface {
	// CreateInvoice persists an invoice and all of its items as one atomic
	// unit.
	CreateInvoice(ctx context.Context, inv invoice.Invoice, items []invoice.Item) (invoice.Invoice, error)
	UpdateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error)
	GetInvoice(ctx context.Context, id string) (invoice.Invoice, error)
	ListInvoices(ctx context.Context, userID string) ([]invoice.Invoice, error)
	// LastInvoiceNumber returns the most recently created invoice number for
	// the user, or "" when the user has none.
	LastInvoiceNumber(ctx context.Context, userID string) (string, error)

	CreateInvoiceItem(ctx context.Context, item invoice.Item) (invoice.Item, error)
	GetInvoiceItem(ctx context.Context, id string) (invoice.Item, error)
	DeleteInvoiceItem(ctx context.Context, id string) error
	ListInvoiceItems(ctx context.Context, invoiceID string) ([]invoice.Item, error)
}
