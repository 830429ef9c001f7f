// Package invoice holds the invoice ledger domain model: enumerated types,
// line item arithmetic and the status transition rules.
package invoice

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the textual date format used on the wire and in storage.
const DateFormat = "2006-01-02"

// Currency is the closed set of supported invoice currencies.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCHF Currency = "CHF"
	CurrencyPLN Currency = "PLN"
)

// Currencies lists every supported currency.
func Currencies() []Currency {
	return []Currency{CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyCHF, CurrencyPLN}
}

// ParseCurrency resolves a case-insensitive currency code.
func ParseCurrency(s string) (Currency, error) {
	code := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, c := range Currencies() {
		if c == code {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", s)
}

// Status is the closed set of invoice states. Paid and Cancelled are
// terminal.
type Status string

const (
	StatusUnpaid    Status = "Unpaid"
	StatusOverdue   Status = "Overdue"
	StatusPaid      Status = "Paid"
	StatusCancelled Status = "Cancelled"
)

// ParseStatus resolves a case-insensitive status name.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UNPAID":
		return StatusUnpaid, nil
	case "OVERDUE":
		return StatusOverdue, nil
	case "PAID":
		return StatusPaid, nil
	case "CANCELLED":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Cancellable reports whether the status admits a transition to Cancelled.
func (s Status) Cancellable() bool {
	return s == StatusUnpaid || s == StatusOverdue
}

// PaymentMethod is the closed set of known settlement methods, matched by
// display value.
type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "Bank Transfer"
	PaymentCash         PaymentMethod = "Cash"
	PaymentCreditCard   PaymentMethod = "Credit Card"
	PaymentPayPal       PaymentMethod = "PayPal"
)

// PaymentMethods lists every known payment method.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentBankTransfer, PaymentCash, PaymentCreditCard, PaymentPayPal}
}

// ParsePaymentMethod resolves a method by its display value.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	trimmed := strings.TrimSpace(s)
	for _, m := range PaymentMethods() {
		if string(m) == trimmed {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", s)
}

// Unit is the closed set of line item quantity units, matched by name.
type Unit string

const (
	UnitHours  Unit = "HOURS"
	UnitDays   Unit = "DAYS"
	UnitPieces Unit = "PIECES"
	UnitUnits  Unit = "UNITS"
)

// Units lists every supported unit.
func Units() []Unit {
	return []Unit{UnitHours, UnitDays, UnitPieces, UnitUnits}
}

// ParseUnit resolves a unit by its name.
func ParseUnit(s string) (Unit, error) {
	name := Unit(strings.ToUpper(strings.TrimSpace(s)))
	for _, u := range Units() {
		if u == name {
			return u, nil
		}
	}
	return "", fmt.Errorf("invalid unit %q", s)
}

// Item is one line of an invoice. Gross and net amounts are derived at
// construction and stored alongside the raw fields.
type Item struct {
	ID          string
	InvoiceID   string
	Description string
	Quantity    float64
	Unit        Unit
	Rate        float64
	Discount    float64
	GrossAmount float64
	NetAmount   float64
	CreatedAt   time.Time
}

// NewItem derives the gross and net amounts for a line item.
// gross = quantity x rate, net = gross x (1 - discount/100).
func NewItem(description string, quantity float64, unit Unit, rate, discount float64) Item {
	gross := quantity * rate
	return Item{
		Description: description,
		Quantity:    quantity,
		Unit:        unit,
		Rate:        rate,
		Discount:    discount,
		GrossAmount: gross,
		NetAmount:   gross * (1 - discount/100),
	}
}

// Invoice is a billed document owned by one user and addressed to one client.
type Invoice struct {
	ID            string
	UserID        string
	ClientID      string
	Number        string
	IssueDate     time.Time
	DueDate       time.Time
	Currency      Currency
	TaxRate       float64
	Subtotal      float64
	TotalDiscount float64
	TaxAmount     float64
	TotalAmount   float64
	Status        Status
	PaymentMethod PaymentMethod
	// PaymentDate is zero until the invoice is marked paid.
	PaymentDate time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Totals aggregates line items into the invoice amounts.
// subtotal is the sum of gross amounts, totalDiscount the sum of the
// per-item discount portions, tax = tax_rate/100 x (subtotal - discount),
// total = subtotal - discount + tax.
func Totals(items []Item, taxRate float64) (subtotal, totalDiscount, taxAmount, totalAmount float64) {
	for _, it := range items {
		subtotal += it.GrossAmount
		totalDiscount += it.GrossAmount * (it.Discount / 100)
	}
	discounted := subtotal - totalDiscount
	taxAmount = (taxRate / 100) * discounted
	totalAmount = discounted + taxAmount
	return subtotal, totalDiscount, taxAmount, totalAmount
}

// Promote applies the lazy Unpaid-to-Overdue transition. It is a pure
// function: callers persist the returned invoice when promoted is true.
func Promote(inv Invoice, today time.Time) (Invoice, bool) {
	if inv.Status != StatusUnpaid {
		return inv, false
	}
	due := inv.DueDate.Truncate(24 * time.Hour)
	day := today.Truncate(24 * time.Hour)
	if due.Before(day) {
		inv.Status = StatusOverdue
		return inv, true
	}
	return inv, false
}
