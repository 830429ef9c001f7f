// Package invoices implements the invoice ledger: numbering, totals,
// line items and status transitions.
package invoices

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/freelancebill/freelancebill/internal/app/domain/invoice"
	"github.com/freelancebill/freelancebill/internal/app/metrics"
	"github.com/freelancebill/freelancebill/internal/app/storage"
	apperrors "github.com/freelancebill/freelancebill/internal/errors"
	"github.com/freelancebill/freelancebill/pkg/logger"
)

// Service manages invoices and their line items.
type Service struct {
	users    storage.UserStore
	clients  storage.ClientStore
	invoices storage.InvoiceStore
	log      *logger.Logger

	now func() time.Time
}

// New constructs an invoice service.
func New(users storage.UserStore, clients storage.ClientStore, invoices storage.InvoiceStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("invoices")
	}
	return &Service{
		users:    users,
		clients:  clients,
		invoices: invoices,
		log:      log,
		now:      time.Now,
	}
}

// ItemInput is one line item on an invoice create or add-item request.
// Quantity and Rate are pointers so a missing field is distinguishable from
// an explicit zero.
type ItemInput struct {
	Description string
	Quantity    *float64
	Unit        string
	Rate        *float64
	Discount    float64
}

// CreateInput carries an invoice create request. Dates are textual in the
// 2006-01-02 format.
type CreateInput struct {
	ClientID      string
	IssueDate     string
	DueDate       string
	Currency      string
	TaxRate       float64
	PaymentMethod string
	Status        string
	Items         []ItemInput
}

// ItemView is the wire representation of a line item.
type ItemView struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Rate        float64 `json:"rate"`
	Discount    float64 `json:"discount"`
	GrossAmount float64 `json:"gross_amount"`
	NetAmount   float64 `json:"net_amount"`
}

// View is the wire representation of an invoice, items included.
type View struct {
	ID            string     `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	ClientID      string     `json:"client_id"`
	ClientName    string     `json:"client_name"`
	IssueDate     string     `json:"issue_date"`
	DueDate       string     `json:"due_date"`
	Currency      string     `json:"currency"`
	TaxRate       float64    `json:"tax_rate"`
	Subtotal      float64    `json:"subtotal"`
	TotalDiscount float64    `json:"total_discount"`
	TaxAmount     float64    `json:"tax_amount"`
	TotalAmount   float64    `json:"total_amount"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	PaymentDate   *string    `json:"payment_date"`
	Items         []ItemView `json:"items"`
}

func (s *Service) owner(ctx context.Context, username string) (string, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", apperrors.Unauthorized("unknown user")
		}
		return "", err
	}
	return u.ID, nil
}

func parseItem(in ItemInput) (invoice.Item, error) {
	if strings.TrimSpace(in.Description) == "" {
		return invoice.Item{}, apperrors.Validation("item description is required")
	}
	unit, err := invoice.ParseUnit(in.Unit)
	if err != nil {
		return invoice.Item{}, apperrors.Validation(err.Error())
	}
	if in.Quantity == nil || in.Rate == nil {
		return invoice.Item{}, apperrors.Validation("item quantity and rate are required")
	}
	if *in.Quantity < 0 || *in.Rate < 0 {
		return invoice.Item{}, apperrors.Validation("item quantity and rate must not be negative")
	}
	if in.Discount < 0 || in.Discount > 100 {
		return invoice.Item{}, apperrors.Validation("item discount must be between 0 and 100")
	}
	return invoice.NewItem(strings.TrimSpace(in.Description), *in.Quantity, unit, *in.Rate, in.Discount), nil
}

// nextNumber derives the next invoice number for a user. Numbers are plain
// decimal strings, incremented from the most recently created invoice.
func (s *Service) nextNumber(ctx context.Context, userID string) (string, error) {
	last, err := s.invoices.LastInvoiceNumber(ctx, userID)
	if err != nil {
		return "", err
	}
	if last == "" {
		return "1", nil
	}
	n, err := strconv.Atoi(last)
	if err != nil {
		return "", apperrors.Internal("malformed invoice number "+last, err)
	}
	return strconv.Itoa(n + 1), nil
}

// Create validates and persists an invoice with its line items and computed
// totals.
func (s *Service) Create(ctx context.Context, username string, in CreateInput) (View, error) {
	userID, err := s.owner(ctx, username)
	if err != nil {
		return View{}, err
	}

	cl, err := s.clients.GetClient(ctx, in.ClientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return View{}, apperrors.NotFound("client not found")
		}
		return View{}, err
	}
	if cl.UserID != userID {
		return View{}, apperrors.NotFound("client not found")
	}

	issue, err := time.Parse(invoice.DateFormat, in.IssueDate)
	if err != nil {
		return View{}, apperrors.Validation("issue_date must be in YYYY-MM-DD format")
	}
	due, err := time.Parse(invoice.DateFormat, in.DueDate)
	if err != nil {
		return View{}, apperrors.Validation("due_date must be in YYYY-MM-DD format")
	}
	if due.Before(issue) {
		return View{}, apperrors.Validation("due_date must not be before issue_date")
	}
	currency, err := invoice.ParseCurrency(in.Currency)
	if err != nil {
		return View{}, apperrors.Validation(err.Error())
	}
	method, err := invoice.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return View{}, apperrors.Validation(err.Error())
	}
	if in.TaxRate < 0 {
		return View{}, apperrors.Validation("tax_rate must not be negative")
	}
	status := invoice.StatusUnpaid
	if strings.TrimSpace(in.Status) != "" {
		status, err = invoice.ParseStatus(in.Status)
		if err != nil {
			return View{}, apperrors.Validation(err.Error())
		}
	}

	items := make([]invoice.Item, 0, len(in.Items))
	for _, raw := range in.Items {
		item, err := parseItem(raw)
		if err != nil {
			return View{}, err
		}
		items = append(items, item)
	}

	number, err := s.nextNumber(ctx, userID)
	if err != nil {
		return View{}, err
	}

	subtotal, discount, tax, total := invoice.Totals(items, in.TaxRate)
	inv := invoice.Invoice{
		UserID:        userID,
		ClientID:      cl.ID,
		Number:        number,
		IssueDate:     issue,
		DueDate:       due,
		Currency:      currency,
		TaxRate:       in.TaxRate,
		Subtotal:      subtotal,
		TotalDiscount: discount,
		TaxAmount:     tax,
		TotalAmount:   total,
		Status:        status,
		PaymentMethod: method,
	}

	created, err := s.invoices.CreateInvoice(ctx, inv, items)
	if err != nil {
		return View{}, err
	}

	metrics.RecordInvoiceCreated()
	s.log.WithField("invoice_id", created.ID).WithField("number", created.Number).Info("invoice created")
	return s.view(ctx, created)
}

// List returns all the user's invoices, applying the lazy overdue promotion
// before rendering.
func (s *Service) List(ctx context.Context, username string) ([]View, error) {
	userID, err := s.owner(ctx, username)
	if err != nil {
		return nil, err
	}

	invs, err := s.invoices.ListInvoices(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(invs))
	for _, inv := range invs {
		promoted, err := s.promote(ctx, inv)
		if err != nil {
			return nil, err
		}
		v, err := s.view(ctx, promoted)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Get returns one invoice by ID, applying the lazy overdue promotion.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	inv, err := s.invoices.GetInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return View{}, apperrors.NotFound("invoice not found")
		}
		return View{}, err
	}

	promoted, err := s.promote(ctx, inv)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, promoted)
}

// AddItem appends a line item to an invoice. The stored totals are not
// recomputed.
func (s *Service) AddItem(ctx context.Context, invoiceID string, in ItemInput) (ItemView, error) {
	if _, err := s.invoices.GetInvoice(ctx, invoiceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ItemView{}, apperrors.NotFound("invoice not found")
		}
		return ItemView{}, err
	}

	item, err := parseItem(in)
	if err != nil {
		return ItemView{}, err
	}
	item.InvoiceID = invoiceID

	created, err := s.invoices.CreateInvoiceItem(ctx, item)
	if err != nil {
		return ItemView{}, err
	}

	s.log.WithField("invoice_id", invoiceID).WithField("item_id", created.ID).Info("invoice item added")
	return itemView(created), nil
}

// DeleteItem removes a line item. The stored totals are not recomputed.
func (s *Service) DeleteItem(ctx context.Context, itemID string) error {
	if err := s.invoices.DeleteInvoiceItem(ctx, itemID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("invoice item not found")
		}
		return err
	}
	s.log.WithField("item_id", itemID).Info("invoice item deleted")
	return nil
}

// MarkPaid sets an invoice to Paid with today's date as the payment date.
func (s *Service) MarkPaid(ctx context.Context, id string) (View, error) {
	inv, err := s.invoices.GetInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return View{}, apperrors.NotFound("invoice not found")
		}
		return View{}, err
	}

	inv.Status = invoice.StatusPaid
	inv.PaymentDate = s.now()
	updated, err := s.invoices.UpdateInvoice(ctx, inv)
	if err != nil {
		return View{}, err
	}

	s.log.WithField("invoice_id", id).Info("invoice marked paid")
	return s.view(ctx, updated)
}

// Cancel sets an Unpaid or Overdue invoice to Cancelled.
func (s *Service) Cancel(ctx context.Context, id string) (View, error) {
	inv, err := s.invoices.GetInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return View{}, apperrors.NotFound("invoice not found")
		}
		return View{}, err
	}

	if !inv.Status.Cancellable() {
		return View{}, apperrors.InvalidTransition("only unpaid or overdue invoices can be cancelled")
	}

	inv.Status = invoice.StatusCancelled
	updated, err := s.invoices.UpdateInvoice(ctx, inv)
	if err != nil {
		return View{}, err
	}

	s.log.WithField("invoice_id", id).Info("invoice cancelled")
	return s.view(ctx, updated)
}

func (s *Service) promote(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	promoted, changed := invoice.Promote(inv, s.now())
	if !changed {
		return inv, nil
	}
	updated, err := s.invoices.UpdateInvoice(ctx, promoted)
	if err != nil {
		return invoice.Invoice{}, err
	}
	metrics.RecordOverduePromotion()
	s.log.WithField("invoice_id", inv.ID).Info("invoice promoted to overdue")
	return updated, nil
}

func (s *Service) view(ctx context.Context, inv invoice.Invoice) (View, error) {
	items, err := s.invoices.ListInvoiceItems(ctx, inv.ID)
	if err != nil {
		return View{}, err
	}

	clientName := ""
	if cl, err := s.clients.GetClient(ctx, inv.ClientID); err == nil {
		clientName = cl.Name
	}

	v := View{
		ID:            inv.ID,
		InvoiceNumber: inv.Number,
		ClientID:      inv.ClientID,
		ClientName:    clientName,
		IssueDate:     inv.IssueDate.Format(invoice.DateFormat),
		DueDate:       inv.DueDate.Format(invoice.DateFormat),
		Currency:      string(inv.Currency),
		TaxRate:       inv.TaxRate,
		Subtotal:      inv.Subtotal,
		TotalDiscount: inv.TotalDiscount,
		TaxAmount:     inv.TaxAmount,
		TotalAmount:   inv.TotalAmount,
		Status:        string(inv.Status),
		PaymentMethod: string(inv.PaymentMethod),
		Items:         make([]ItemView, 0, len(items)),
	}
	if !inv.PaymentDate.IsZero() {
		paid := inv.PaymentDate.Format(invoice.DateFormat)
		v.PaymentDate = &paid
	}
	for _, it := range items {
		v.Items = append(v.Items, itemView(it))
	}
	return v, nil
}

func itemView(it invoice.Item) ItemView {
	return ItemView{
		ID:          it.ID,
		Description: it.Description,
		Quantity:    it.Quantity,
		Unit:        string(it.Unit),
		Rate:        it.Rate,
		Discount:    it.Discount,
		GrossAmount: it.GrossAmount,
		NetAmount:   it.NetAmount,
	}
}
