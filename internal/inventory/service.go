package inventory

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertItem(ctx context.Context, item Item) (Item, error)
	GetItem(ctx context.Context, companyID, id int64) (Item, error)
	ListItems(ctx context.Context, companyID int64) ([]Item, error)
	ListLowStock(ctx context.Context, companyID int64) ([]Item, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages inventory items and manual stock adjustments.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// CreateItem registers an item. SKUs are unique per company.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	item := Item{
		CompanyID:      input.CompanyID,
		SKU:            strings.ToUpper(strings.TrimSpace(input.SKU)),
		Name:           strings.TrimSpace(input.Name),
		QuantityOnHand: input.QuantityOnHand,
		ReorderLevel:   input.ReorderLevel,
		UnitPrice:      input.UnitPrice,
	}
	switch {
	case item.SKU == "":
		return Item{}, shared.Invalid("sku", "is required")
	case item.Name == "":
		return Item{}, shared.Invalid("name", "is required")
	case item.QuantityOnHand < 0:
		return Item{}, shared.Invalid("quantity_on_hand", "must not be negative")
	case item.ReorderLevel < 0:
		return Item{}, shared.Invalid("reorder_level", "must not be negative")
	case item.UnitPrice.IsNegative():
		return Item{}, shared.Invalid("unit_price", "must not be negative")
	}
	return s.repo.InsertItem(ctx, item)
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, companyID, id int64) (Item, error) {
	return s.repo.GetItem(ctx, companyID, id)
}

// ListItems returns all items of a company.
func (s *Service) ListItems(ctx context.Context, companyID int64) ([]Item, error) {
	return s.repo.ListItems(ctx, companyID)
}

// ListLowStock returns items at or below their reorder level.
func (s *Service) ListLowStock(ctx context.Context, companyID int64) ([]LowStock, error) {
	items, err := s.repo.ListLowStock(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]LowStock, 0, len(items))
	for _, item := range items {
		out = append(out, lowStockOf(item))
	}
	return out, nil
}

// Restock adds a positive quantity and records the movement.
func (s *Service) Restock(ctx context.Context, input RestockInput) (Item, error) {
	if input.Quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		updated, err := tx.Increment(ctx, input.CompanyID, input.ItemID, input.Quantity)
		if err != nil {
			return err
		}
		item = updated
		return tx.InsertMovement(ctx, Movement{
			CompanyID: input.CompanyID,
			ItemID:    input.ItemID,
			Quantity:  input.Quantity,
			Reason:    ReasonRestock,
		})
	})
	if err != nil {
		return Item{}, err
	}
	s.logger.Info("inventory restocked",
		slog.Int64("item_id", item.ID),
		slog.Int64("quantity", input.Quantity),
		slog.Int64("quantity_on_hand", item.QuantityOnHand))
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			CompanyID: input.CompanyID,
			ActorID:   input.ActorID,
			Action:    "inventory.restocked",
			Entity:    "inventory_item",
			EntityID:  strconv.FormatInt(item.ID, 10),
			Meta:      map[string]any{"quantity": input.Quantity},
			At:        s.now(),
		}); err != nil {
			s.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
	return item, nil
}
