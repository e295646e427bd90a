package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

// memoryRepo is an in-memory RepositoryPort. WithTx works on a copy that is
// committed only when the callback succeeds.
type memoryRepo struct {
	mu        sync.Mutex
	items     map[int64]Item
	movements []Movement
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item)}
}

func (r *memoryRepo) seed(item Item) Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	item.ID = r.nextID
	if item.CompanyID == 0 {
		item.CompanyID = 1
	}
	r.items[item.ID] = item
	return item
}

func (r *memoryRepo) qty(id int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].QuantityOnHand
}

func (r *memoryRepo) InsertItem(ctx context.Context, item Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.CompanyID == item.CompanyID && existing.SKU == item.SKU {
			return Item{}, fmt.Errorf("inventory: sku %q: %w", item.SKU, shared.ErrDuplicate)
		}
	}
	r.nextID++
	item.ID = r.nextID
	item.CreatedAt = time.Now()
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) GetItem(ctx context.Context, companyID, id int64) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return getItem(r.items, companyID, id)
}

func (r *memoryRepo) ListItems(ctx context.Context, companyID int64) ([]Item, error) {
	return r.filter(companyID, func(Item) bool { return true }), nil
}

func (r *memoryRepo) ListLowStock(ctx context.Context, companyID int64) ([]Item, error) {
	return r.filter(companyID, Item.AtReorderLevel), nil
}

func (r *memoryRepo) filter(companyID int64, keep func(Item) bool) []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Item{}
	for id := int64(1); id <= r.nextID; id++ {
		item, ok := r.items[id]
		if ok && item.CompanyID == companyID && keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{items: make(map[int64]Item, len(r.items))}
	for id, item := range r.items {
		tx.items[id] = item
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.items = tx.items
	r.movements = append(r.movements, tx.movements...)
	return nil
}

type memoryTx struct {
	items     map[int64]Item
	movements []Movement
}

func (tx *memoryTx) ConditionalDecrement(ctx context.Context, companyID, itemID, qty int64) (Item, bool, error) {
	item, ok := tx.items[itemID]
	if !ok || item.CompanyID != companyID || item.QuantityOnHand < qty {
		return Item{}, false, nil
	}
	item.QuantityOnHand -= qty
	tx.items[itemID] = item
	return item, true, nil
}

func (tx *memoryTx) Increment(ctx context.Context, companyID, itemID, qty int64) (Item, error) {
	item, err := getItem(tx.items, companyID, itemID)
	if err != nil {
		return Item{}, err
	}
	item.QuantityOnHand += qty
	tx.items[itemID] = item
	return item, nil
}

func (tx *memoryTx) GetItem(ctx context.Context, companyID, itemID int64) (Item, error) {
	return getItem(tx.items, companyID, itemID)
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) error {
	tx.movements = append(tx.movements, m)
	return nil
}

func getItem(items map[int64]Item, companyID, id int64) (Item, error) {
	item, ok := items[id]
	if !ok || item.CompanyID != companyID {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}
