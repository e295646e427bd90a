package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	jobmetrics "github.com/odyssey-erp/bizcore/internal/jobs"
)

// OverdueMarker flips unpaid invoices past their due date to OVERDUE.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// Handlers processes the bizcore task types.
type Handlers struct {
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	overdue OverdueMarker
	printer *message.Printer
	clock   func() time.Time
}

// NewHandlers builds task handlers. overdue may be nil when the worker does not sweep invoices.
func NewHandlers(logger *slog.Logger, metrics *jobmetrics.Metrics, overdue OverdueMarker) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		logger:  logger,
		metrics: metrics,
		overdue: overdue,
		printer: message.NewPrinter(language.English),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// TaskHandlers lists the handlers for worker registration.
func (h *Handlers) TaskHandlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskLowStock, Handler: h.HandleLowStock},
		{Type: TaskPayslipNotice, Handler: h.HandlePayslipNotice},
		{Type: TaskOverdueSweep, Handler: h.HandleOverdueSweep},
	}
}

// HandleLowStock logs a reorder warning. Delivery to purchasing is external.
func (h *Handlers) HandleLowStock(ctx context.Context, t *asynq.Task) (err error) {
	tracker := h.metrics.Track(TaskLowStock)
	defer func() { err = tracker.End(err) }()

	var payload LowStockPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("low stock payload: %v: %w", err, asynq.SkipRetry)
	}
	h.logger.Warn("inventory item at reorder level",
		slog.Int64("company_id", payload.CompanyID),
		slog.Int64("item_id", payload.ItemID),
		slog.String("sku", payload.SKU),
		slog.Int64("quantity_on_hand", payload.QuantityOnHand),
		slog.Int64("reorder_level", payload.ReorderLevel))
	return nil
}

// HandlePayslipNotice renders the payslip notice. E-mail delivery is external.
func (h *Handlers) HandlePayslipNotice(ctx context.Context, t *asynq.Task) (err error) {
	tracker := h.metrics.Track(TaskPayslipNotice)
	defer func() { err = tracker.End(err) }()

	var payload PayslipNoticePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("payslip payload: %v: %w", err, asynq.SkipRetry)
	}
	body, err := h.PayslipText(payload)
	if err != nil {
		return fmt.Errorf("payslip amount: %v: %w", err, asynq.SkipRetry)
	}
	h.logger.Info("payslip notice",
		slog.Int64("employee_id", payload.EmployeeID),
		slog.String("reference", payload.Reference),
		slog.String("to", payload.Email),
		slog.String("body", body))
	return nil
}

// PayslipText formats the notice sent to the employee.
func (h *Handlers) PayslipText(payload PayslipNoticePayload) (string, error) {
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		return "", err
	}
	value, _ := amount.Round(2).Float64()
	return h.printer.Sprintf("Hello %s, your salary for %s of %.2f has been paid (ref %s).",
		payload.EmployeeName, payload.Period, value, payload.Reference), nil
}

// HandleOverdueSweep marks ISSUED and SENT invoices past due as OVERDUE.
func (h *Handlers) HandleOverdueSweep(ctx context.Context, t *asynq.Task) (err error) {
	tracker := h.metrics.Track(TaskOverdueSweep)
	defer func() { err = tracker.End(err) }()

	if h.overdue == nil {
		return errors.New("overdue sweep: invoice service not configured")
	}
	var payload OverdueSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("overdue payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = h.clock()
	}
	count, err := h.overdue.MarkOverdue(ctx, asOf)
	if err != nil {
		return err
	}
	h.metrics.AddItems(TaskOverdueSweep, count)
	h.logger.Info("overdue sweep finished", slog.Int("marked", count), slog.Time("as_of", asOf))
	return nil
}
