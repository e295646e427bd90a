package inventory

import (
	"context"
	"errors"
	"fmt"
)

// StockStore is the persistence contract of the ledger. Implementations run
// inside the caller's transaction so a failed reservation rolls back every
// earlier decrement of the same call.
type StockStore interface {
	// ConditionalDecrement subtracts qty iff quantity_on_hand >= qty. ok is
	// false when the row is missing or the stock is short.
	ConditionalDecrement(ctx context.Context, companyID, itemID, qty int64) (item Item, ok bool, err error)
	Increment(ctx context.Context, companyID, itemID, qty int64) (Item, error)
	GetItem(ctx context.Context, companyID, itemID int64) (Item, error)
	InsertMovement(ctx context.Context, m Movement) error
}

// MetricsRecorder counts reservation outcomes.
type MetricsRecorder interface {
	ObserveStockReservation(result string)
}

// Ledger reserves and releases stock for invoices.
type Ledger struct {
	metrics MetricsRecorder
}

// NewLedger constructs a Ledger. metrics may be nil.
func NewLedger(metrics MetricsRecorder) *Ledger {
	return &Ledger{metrics: metrics}
}

// Reserve decrements stock for every linked line. The first failure aborts the
// call; the caller must roll back its transaction. Items left at or below
// their reorder level are returned once each.
func (l *Ledger) Reserve(ctx context.Context, store StockStore, companyID, invoiceID int64, lines []StockLine) ([]LowStock, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	var low []LowStock
	seen := make(map[int64]int)
	for _, line := range lines {
		if line.ItemID == 0 {
			continue
		}
		item, ok, err := store.ConditionalDecrement(ctx, companyID, line.ItemID, line.Quantity)
		if err != nil {
			l.observe("error")
			return nil, fmt.Errorf("inventory: reserve item %d: %w", line.ItemID, err)
		}
		if !ok {
			err := l.shortage(ctx, store, companyID, line)
			if errors.Is(err, ErrItemNotFound) {
				l.observe("not_found")
			} else {
				l.observe("insufficient")
			}
			return nil, err
		}
		if err := store.InsertMovement(ctx, Movement{
			CompanyID: companyID,
			ItemID:    line.ItemID,
			InvoiceID: &invoiceID,
			Quantity:  -line.Quantity,
			Reason:    ReasonInvoiceReserve,
		}); err != nil {
			l.observe("error")
			return nil, err
		}
		if item.AtReorderLevel() {
			if idx, dup := seen[item.ID]; dup {
				low[idx] = lowStockOf(item)
			} else {
				seen[item.ID] = len(low)
				low = append(low, lowStockOf(item))
			}
		}
	}
	l.observe("reserved")
	return low, nil
}

// Release returns the stock of every linked line, compensating an earlier Reserve.
func (l *Ledger) Release(ctx context.Context, store StockStore, companyID, invoiceID int64, lines []StockLine) error {
	if err := validateLines(lines); err != nil {
		return err
	}
	for _, line := range lines {
		if line.ItemID == 0 {
			continue
		}
		if _, err := store.Increment(ctx, companyID, line.ItemID, line.Quantity); err != nil {
			return fmt.Errorf("inventory: release item %d: %w", line.ItemID, err)
		}
		if err := store.InsertMovement(ctx, Movement{
			CompanyID: companyID,
			ItemID:    line.ItemID,
			InvoiceID: &invoiceID,
			Quantity:  line.Quantity,
			Reason:    ReasonInvoiceRelease,
		}); err != nil {
			return err
		}
	}
	l.observe("released")
	return nil
}

func (l *Ledger) shortage(ctx context.Context, store StockStore, companyID int64, line StockLine) error {
	item, err := store.GetItem(ctx, companyID, line.ItemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return fmt.Errorf("%w: %q references item %d", ErrItemNotFound, line.Description, line.ItemID)
		}
		return err
	}
	desc := line.Description
	if desc == "" {
		desc = item.Name
	}
	return &InsufficientStockError{
		ItemID:      line.ItemID,
		Description: desc,
		Requested:   line.Quantity,
		Available:   item.QuantityOnHand,
	}
}

func (l *Ledger) observe(result string) {
	if l == nil || l.metrics == nil {
		return
	}
	l.metrics.ObserveStockReservation(result)
}

func validateLines(lines []StockLine) error {
	for _, line := range lines {
		if line.ItemID != 0 && line.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}
