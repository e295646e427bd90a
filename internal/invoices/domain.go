package invoices

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

// Status enumerates invoice lifecycle states.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusIssued    Status = "ISSUED"
	StatusSent      Status = "SENT"
	StatusPaid      Status = "PAID"
	StatusOverdue   Status = "OVERDUE"
	StatusCancelled Status = "CANCELLED"
)

// transitions lists the allowed target states per source state.
var transitions = map[Status][]Status{
	StatusDraft:   {StatusIssued, StatusSent, StatusCancelled},
	StatusIssued:  {StatusSent, StatusPaid, StatusOverdue, StatusCancelled},
	StatusSent:    {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue: {StatusPaid, StatusCancelled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Final reports whether the status no longer accepts edits.
func (s Status) Final() bool {
	return s == StatusPaid || s == StatusCancelled
}

// holdsStock reports whether an invoice in this status must have its stock reserved.
func (s Status) holdsStock() bool {
	return s != StatusDraft && s != StatusCancelled
}

// LineItem is one invoice line. InventoryID nil means no stock link.
type LineItem struct {
	LineNo      int             `json:"line_no"`
	InventoryID *int64          `json:"inventory_id"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

// Totals are the derived money fields of an invoice.
type Totals struct {
	TaxRate    decimal.Decimal `json:"tax_rate"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxTotal   decimal.Decimal `json:"tax_total"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Invoice is a customer invoice of one company.
type Invoice struct {
	ID           int64     `json:"id"`
	CompanyID    int64     `json:"company_id"`
	Number       string    `json:"number"`
	CustomerName string    `json:"customer_name"`
	IssueDate    time.Time `json:"issue_date"`
	DueDate      time.Time `json:"due_date"`
	Totals
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Status        Status          `json:"status"`
	StockReserved bool            `json:"stock_reserved"`
	Notes         string          `json:"notes"`
	Lines         []LineItem      `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Outstanding returns the unpaid part of the grand total.
func (inv Invoice) Outstanding() decimal.Decimal {
	return inv.GrandTotal.Sub(inv.AmountPaid)
}

// CreateInput describes a new invoice.
type CreateInput struct {
	CompanyID    int64
	CustomerName string
	IssueDate    time.Time
	DueDate      time.Time
	TaxRate      *decimal.Decimal
	Status       Status
	Notes        string
	Items        []LineItem
	ActorID      int64
}

// UpdateInput carries optional changes. Nil Items leaves the lines untouched.
type UpdateInput struct {
	CustomerName *string
	DueDate      *time.Time
	TaxRate      *decimal.Decimal
	Status       *Status
	Notes        *string
	Items        []LineItem
	ActorID      int64
}

// ListFilter narrows List. Page and PerPage default to 1 and 20.
type ListFilter struct {
	Status  Status
	Page    int
	PerPage int
}

// InconsistentTotalsError reports a caller-supplied line total that does not
// equal quantity times price.
type InconsistentTotalsError struct {
	LineNo   int
	Expected decimal.Decimal
	Given    decimal.Decimal
}

func (e *InconsistentTotalsError) Error() string {
	return fmt.Sprintf("line %d: total %s does not match quantity x price %s", e.LineNo, e.Given, e.Expected)
}

// Is reports shared.ErrValidation equivalence.
func (e *InconsistentTotalsError) Is(target error) bool {
	return target == shared.ErrValidation
}

var (
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = fmt.Errorf("invoices: invoice %w", shared.ErrNotFound)
	// ErrInvalidStatus indicates the invoice status forbids the operation.
	ErrInvalidStatus = fmt.Errorf("invoices: operation not allowed in current status: %w", shared.ErrConflict)
	// ErrInvalidTransition indicates a disallowed status change.
	ErrInvalidTransition = fmt.Errorf("invoices: invalid status transition: %w", shared.ErrConflict)
)
