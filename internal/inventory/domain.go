package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

// MovementReason labels a stock movement.
type MovementReason string

const (
	// ReasonInvoiceReserve decrements stock for a non-draft invoice line.
	ReasonInvoiceReserve MovementReason = "INVOICE_RESERVE"
	// ReasonInvoiceRelease returns previously reserved stock.
	ReasonInvoiceRelease MovementReason = "INVOICE_RELEASE"
	// ReasonRestock records a manual positive adjustment.
	ReasonRestock MovementReason = "RESTOCK"
)

// Item is a stocked product of one company.
type Item struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	QuantityOnHand int64           `json:"quantity_on_hand"`
	ReorderLevel   int64           `json:"reorder_level"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AtReorderLevel reports whether on-hand stock reached the reorder level.
func (i Item) AtReorderLevel() bool {
	return i.QuantityOnHand <= i.ReorderLevel
}

// StockLine is one quantity of an item requested by an invoice line.
type StockLine struct {
	ItemID      int64
	Quantity    int64
	Description string
}

// LowStock reports an item that reached its reorder level.
type LowStock struct {
	CompanyID      int64  `json:"company_id"`
	ItemID         int64  `json:"item_id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	QuantityOnHand int64  `json:"quantity_on_hand"`
	ReorderLevel   int64  `json:"reorder_level"`
}

func lowStockOf(item Item) LowStock {
	return LowStock{
		CompanyID:      item.CompanyID,
		ItemID:         item.ID,
		SKU:            item.SKU,
		Name:           item.Name,
		QuantityOnHand: item.QuantityOnHand,
		ReorderLevel:   item.ReorderLevel,
	}
}

// Movement is an append-only record of a quantity change.
type Movement struct {
	CompanyID int64
	ItemID    int64
	InvoiceID *int64
	Quantity  int64
	Reason    MovementReason
}

// CreateItemInput describes a new inventory item.
type CreateItemInput struct {
	CompanyID      int64
	SKU            string
	Name           string
	QuantityOnHand int64
	ReorderLevel   int64
	UnitPrice      decimal.Decimal
}

// RestockInput adds stock to an item.
type RestockInput struct {
	CompanyID int64
	ItemID    int64
	Quantity  int64
	ActorID   int64
}

// InsufficientStockError reports a line that cannot be covered by on-hand stock.
type InsufficientStockError struct {
	ItemID      int64
	Description string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.Description, e.Requested, e.Available)
}

// Is reports shared.ErrConflict equivalence.
func (e *InsufficientStockError) Is(target error) bool {
	return target == shared.ErrConflict
}

var (
	// ErrItemNotFound indicates a missing inventory item.
	ErrItemNotFound = fmt.Errorf("inventory: item %w", shared.ErrNotFound)
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = shared.Invalid("quantity", "must be greater than zero")
)
