package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/inventory"
	"github.com/odyssey-erp/bizcore/internal/shared"
	"github.com/odyssey-erp/bizcore/jobs"
)

// RepositoryPort abstracts invoice persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id int64) (Invoice, error)
	List(ctx context.Context, companyID int64, filter ListFilter, limit, offset int) ([]Invoice, int, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	NextID(ctx context.Context) (int64, error)
	Insert(ctx context.Context, inv Invoice) (Invoice, error)
	GetForUpdate(ctx context.Context, companyID, id int64) (Invoice, error)
	UpdateHeader(ctx context.Context, inv Invoice) error
	ReplaceLines(ctx context.Context, invoiceID int64, lines []LineItem) error
	Stock() inventory.StockStore
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LowStockNotifier queues reorder alerts after a reservation commits.
type LowStockNotifier interface {
	EnqueueLowStock(ctx context.Context, payload jobs.LowStockPayload) error
}

// ServiceConfig tunes invoice defaults. A nil DefaultTaxRate uses the
// package DefaultTaxRate.
type ServiceConfig struct {
	DefaultTaxRate *decimal.Decimal
	PaymentTerms   time.Duration
}

// Service runs the invoice lifecycle and keeps stock consistent with it.
type Service struct {
	repo     RepositoryPort
	ledger   *inventory.Ledger
	audit    AuditPort
	notifier LowStockNotifier
	cfg      ServiceConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.DefaultTaxRate == nil {
		rate := DefaultTaxRate
		cfg.DefaultTaxRate = &rate
	}
	if cfg.PaymentTerms <= 0 {
		cfg.PaymentTerms = 30 * 24 * time.Hour
	}
	if ledger == nil {
		ledger = inventory.NewLedger(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, cfg: cfg, logger: logger, now: time.Now}
}

// SetAudit injects the audit logger.
func (s *Service) SetAudit(audit AuditPort) { s.audit = audit }

// SetNotifier injects the low stock notifier.
func (s *Service) SetNotifier(n LowStockNotifier) { s.notifier = n }

// FormatNumber renders the invoice number for an id issued at date.
func FormatNumber(issueDate time.Time, id int64) string {
	return fmt.Sprintf("INV-%s-%04d", issueDate.Format("200601"), id)
}

// Create persists a new invoice. A non-draft invoice reserves its stock in
// the same transaction; any shortage aborts the whole creation.
func (s *Service) Create(ctx context.Context, input CreateInput) (Invoice, error) {
	status := input.Status
	if status == "" {
		status = StatusDraft
	}
	if status != StatusDraft && status != StatusIssued && status != StatusSent {
		return Invoice{}, shared.Invalid("status", "must be DRAFT, ISSUED or SENT")
	}
	customer := strings.TrimSpace(input.CustomerName)
	if customer == "" {
		return Invoice{}, shared.Invalid("customer_name", "is required")
	}
	issue := dateOf(input.IssueDate)
	if input.IssueDate.IsZero() {
		issue = dateOf(s.now())
	}
	due := dateOf(input.DueDate)
	if input.DueDate.IsZero() {
		due = dateOf(issue.Add(s.cfg.PaymentTerms))
	}
	if due.Before(issue) {
		return Invoice{}, shared.Invalid("due_date", "must not be before issue_date")
	}
	totals, lines, err := RecomputeTotals(input.Items, s.rateOr(input.TaxRate))
	if err != nil {
		return Invoice{}, err
	}

	inv := Invoice{
		CompanyID:     input.CompanyID,
		CustomerName:  customer,
		IssueDate:     issue,
		DueDate:       due,
		Totals:        totals,
		AmountPaid:    decimal.Zero,
		Status:        status,
		StockReserved: status.holdsStock(),
		Notes:         strings.TrimSpace(input.Notes),
		Lines:         lines,
	}
	var low []inventory.LowStock
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.NextID(ctx)
		if err != nil {
			return err
		}
		inv.ID = id
		inv.Number = FormatNumber(issue, id)
		saved, err := tx.Insert(ctx, inv)
		if err != nil {
			return err
		}
		inv = saved
		if inv.StockReserved {
			low, err = s.ledger.Reserve(ctx, tx.Stock(), inv.CompanyID, inv.ID, stockLines(inv.Lines))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.logger.Info("invoice created",
		slog.Int64("invoice_id", inv.ID),
		slog.String("number", inv.Number),
		slog.String("status", string(inv.Status)),
		slog.String("grand_total", inv.GrandTotal.String()))
	s.record(ctx, inv.CompanyID, input.ActorID, "invoice.created", inv.ID, map[string]any{"status": inv.Status})
	s.notifyLowStock(ctx, low)
	return inv, nil
}

// Update edits an invoice that is not PAID or CANCELLED. Changing items or
// the tax rate recomputes totals; on a reserved invoice changed items release
// the old lines and reserve the new ones in the same transaction.
func (s *Service) Update(ctx context.Context, companyID, id int64, input UpdateInput) (Invoice, error) {
	var (
		inv Invoice
		low []inventory.LowStock
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.Status.Final() {
			return ErrInvalidStatus
		}
		next := current
		if input.CustomerName != nil {
			next.CustomerName = strings.TrimSpace(*input.CustomerName)
			if next.CustomerName == "" {
				return shared.Invalid("customer_name", "must not be empty")
			}
		}
		if input.DueDate != nil {
			next.DueDate = dateOf(*input.DueDate)
			if next.DueDate.Before(next.IssueDate) {
				return shared.Invalid("due_date", "must not be before issue_date")
			}
		}
		if input.Notes != nil {
			next.Notes = strings.TrimSpace(*input.Notes)
		}
		itemsChanged := input.Items != nil
		if itemsChanged || input.TaxRate != nil {
			items := current.Lines
			if itemsChanged {
				items = input.Items
			}
			rate := current.TaxRate
			if input.TaxRate != nil {
				rate = *input.TaxRate
			}
			totals, lines, err := RecomputeTotals(items, &rate)
			if err != nil {
				return err
			}
			next.Totals = totals
			next.Lines = lines
		}
		if input.Status != nil && *input.Status != current.Status {
			if !CanTransition(current.Status, *input.Status) {
				return ErrInvalidTransition
			}
			next.Status = *input.Status
		}
		if next.Status == StatusPaid && next.AmountPaid.LessThan(next.GrandTotal) {
			next.AmountPaid = next.GrandTotal
		}

		low, err = s.syncStock(ctx, tx, current, &next, itemsChanged)
		if err != nil {
			return err
		}
		if itemsChanged {
			if err := tx.ReplaceLines(ctx, next.ID, next.Lines); err != nil {
				return err
			}
		}
		if err := tx.UpdateHeader(ctx, next); err != nil {
			return err
		}
		inv = next
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, companyID, input.ActorID, "invoice.updated", id, map[string]any{"status": inv.Status})
	s.notifyLowStock(ctx, low)
	return s.repo.Get(ctx, companyID, id)
}

// Transition moves an invoice to another status. Cancelling a reserved
// invoice restocks its lines; leaving DRAFT reserves them.
func (s *Service) Transition(ctx context.Context, companyID, id int64, to Status, actorID int64) (Invoice, error) {
	var (
		inv  Invoice
		from Status
		low  []inventory.LowStock
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		from = current.Status
		if !CanTransition(current.Status, to) {
			return ErrInvalidTransition
		}
		next := current
		next.Status = to
		if to == StatusPaid && next.AmountPaid.LessThan(next.GrandTotal) {
			next.AmountPaid = next.GrandTotal
		}
		low, err = s.syncStock(ctx, tx, current, &next, false)
		if err != nil {
			return err
		}
		if err := tx.UpdateHeader(ctx, next); err != nil {
			return err
		}
		inv = next
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.logger.Info("invoice status changed",
		slog.Int64("invoice_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	s.record(ctx, companyID, actorID, "invoice.status_changed", id, map[string]any{"from": from, "to": to})
	s.notifyLowStock(ctx, low)
	return inv, nil
}

// RecordPayment adds a payment. The invoice becomes PAID once the paid
// amount covers the grand total.
func (s *Service) RecordPayment(ctx context.Context, companyID, id int64, amount decimal.Decimal, actorID int64) (Invoice, error) {
	if !amount.IsPositive() {
		return Invoice{}, shared.Invalid("amount", "must be greater than 0")
	}
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		switch current.Status {
		case StatusIssued, StatusSent, StatusOverdue:
		default:
			return ErrInvalidStatus
		}
		if amount.GreaterThan(current.Outstanding()) {
			return shared.Invalid("amount", "exceeds outstanding balance "+current.Outstanding().String())
		}
		current.AmountPaid = current.AmountPaid.Add(amount)
		if current.AmountPaid.GreaterThanOrEqual(current.GrandTotal) {
			current.Status = StatusPaid
		}
		if err := tx.UpdateHeader(ctx, current); err != nil {
			return err
		}
		inv = current
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, companyID, actorID, "invoice.payment_recorded", id, map[string]any{
		"amount": amount.String(),
		"status": inv.Status,
	})
	return inv, nil
}

// MarkOverdue flips ISSUED and SENT invoices due before asOf to OVERDUE.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	count, err := s.repo.MarkOverdue(ctx, dateOf(asOf))
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("invoices marked overdue", slog.Int("count", count))
	}
	return count, nil
}

// Get returns one invoice with its lines.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Invoice, error) {
	return s.repo.Get(ctx, companyID, id)
}

// List returns one page of the invoices of a company, optionally filtered by status.
func (s *Service) List(ctx context.Context, companyID int64, filter ListFilter) ([]Invoice, shared.Pagination, error) {
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	items, total, err := s.repo.List(ctx, companyID, filter, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// syncStock reconciles reservations between current and next. It releases
// held stock when next no longer holds it or its lines changed, then reserves
// when next must hold stock that is not yet reserved.
func (s *Service) syncStock(ctx context.Context, tx TxRepository, current Invoice, next *Invoice, itemsChanged bool) ([]inventory.LowStock, error) {
	reserved := current.StockReserved
	if reserved && (itemsChanged || !next.Status.holdsStock()) {
		if err := s.ledger.Release(ctx, tx.Stock(), current.CompanyID, current.ID, stockLines(current.Lines)); err != nil {
			return nil, err
		}
		reserved = false
	}
	var low []inventory.LowStock
	if !reserved && next.Status.holdsStock() {
		var err error
		low, err = s.ledger.Reserve(ctx, tx.Stock(), current.CompanyID, current.ID, stockLines(next.Lines))
		if err != nil {
			return nil, err
		}
		reserved = true
	}
	next.StockReserved = reserved
	return low, nil
}

func (s *Service) rateOr(rate *decimal.Decimal) *decimal.Decimal {
	if rate != nil {
		return rate
	}
	r := *s.cfg.DefaultTaxRate
	return &r
}

func (s *Service) notifyLowStock(ctx context.Context, low []inventory.LowStock) {
	if s.notifier == nil {
		return
	}
	for _, item := range low {
		err := s.notifier.EnqueueLowStock(ctx, jobs.LowStockPayload{
			CompanyID:      item.CompanyID,
			ItemID:         item.ItemID,
			SKU:            item.SKU,
			Name:           item.Name,
			QuantityOnHand: item.QuantityOnHand,
			ReorderLevel:   item.ReorderLevel,
		})
		if err != nil {
			s.logger.Warn("enqueue low stock alert", slog.Int64("item_id", item.ItemID), slog.Any("error", err))
		}
	}
}

func (s *Service) record(ctx context.Context, companyID, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "invoice",
		EntityID:  strconv.FormatInt(id, 10),
		Meta:      meta,
		At:        s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
