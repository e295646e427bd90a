package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bizcore/internal/platform/db"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	q    queries
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: queries{db: pool}}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	StockStore
}

// NewStockStore binds a StockStore to a pool or an open transaction.
func NewStockStore(conn db.DBTX) StockStore {
	return queries{db: conn}
}

// WithTx runs fn in a read-committed transaction so conditional row updates
// re-check their predicate after waiting on a concurrent writer.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, queries{db: tx})
	})
}

// InsertItem stores a new item.
func (r *Repository) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO inventory_items (company_id, sku, name, quantity_on_hand, reorder_level, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		item.CompanyID, item.SKU, item.Name, item.QuantityOnHand, item.ReorderLevel, db.Numeric(item.UnitPrice),
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Item{}, fmt.Errorf("inventory: sku %q: %w", item.SKU, shared.ErrDuplicate)
		}
		return Item{}, fmt.Errorf("inventory: insert item: %w", err)
	}
	return item, nil
}

// GetItem loads one item.
func (r *Repository) GetItem(ctx context.Context, companyID, id int64) (Item, error) {
	return r.q.GetItem(ctx, companyID, id)
}

// ListItems lists the items of a company ordered by SKU.
func (r *Repository) ListItems(ctx context.Context, companyID int64) ([]Item, error) {
	return r.list(ctx, selectItem+` WHERE company_id = $1 ORDER BY sku`, companyID)
}

// ListLowStock lists items at or below their reorder level.
func (r *Repository) ListLowStock(ctx context.Context, companyID int64) ([]Item, error) {
	return r.list(ctx, selectItem+` WHERE company_id = $1 AND quantity_on_hand <= reorder_level ORDER BY quantity_on_hand, sku`, companyID)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: list items: %w", err)
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type queries struct {
	db db.DBTX
}

const selectItem = `
	SELECT id, company_id, sku, name, quantity_on_hand, reorder_level, unit_price, created_at, updated_at
	FROM inventory_items`

const returningItem = `
	RETURNING id, company_id, sku, name, quantity_on_hand, reorder_level, unit_price, created_at, updated_at`

func (q queries) ConditionalDecrement(ctx context.Context, companyID, itemID, qty int64) (Item, bool, error) {
	item, err := scanItem(q.db.QueryRow(ctx, `
		UPDATE inventory_items
		SET quantity_on_hand = quantity_on_hand - $3, updated_at = NOW()
		WHERE id = $1 AND company_id = $2 AND quantity_on_hand >= $3`+returningItem,
		itemID, companyID, qty))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, false, nil
		}
		return Item{}, false, err
	}
	return item, true, nil
}

func (q queries) Increment(ctx context.Context, companyID, itemID, qty int64) (Item, error) {
	item, err := scanItem(q.db.QueryRow(ctx, `
		UPDATE inventory_items
		SET quantity_on_hand = quantity_on_hand + $3, updated_at = NOW()
		WHERE id = $1 AND company_id = $2`+returningItem,
		itemID, companyID, qty))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func (q queries) GetItem(ctx context.Context, companyID, itemID int64) (Item, error) {
	item, err := scanItem(q.db.QueryRow(ctx, selectItem+` WHERE id = $1 AND company_id = $2`, itemID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("inventory: get item: %w", err)
	}
	return item, nil
}

func (q queries) InsertMovement(ctx context.Context, m Movement) error {
	_, err := q.db.Exec(ctx, `INSERT INTO inventory_movements (company_id, item_id, invoice_id, quantity, reason) VALUES ($1, $2, $3, $4, $5)`,
		m.CompanyID, m.ItemID, m.InvoiceID, m.Quantity, string(m.Reason))
	if err != nil {
		return fmt.Errorf("inventory: insert movement: %w", err)
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var price pgtype.Numeric
	if err := row.Scan(&item.ID, &item.CompanyID, &item.SKU, &item.Name, &item.QuantityOnHand,
		&item.ReorderLevel, &price, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Item{}, err
	}
	item.UnitPrice = db.Decimal(price)
	return item, nil
}
