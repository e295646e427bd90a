package invoices

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/bizcore/internal/inventory"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// memoryRepo keeps invoices and stock in maps. WithTx mutates a copy that
// replaces the committed state only when the callback succeeds.
type memoryRepo struct {
	mu        sync.Mutex
	invoices  map[int64]Invoice
	items     map[int64]inventory.Item
	movements []inventory.Movement
	seq       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{invoices: map[int64]Invoice{}, items: map[int64]inventory.Item{}}
}

func (r *memoryRepo) seedItem(item inventory.Item) inventory.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = int64(len(r.items) + 1)
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

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invoices)
}

func (r *memoryRepo) Get(ctx context.Context, companyID, id int64) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lookup(r.invoices, companyID, id)
}

func (r *memoryRepo) List(ctx context.Context, companyID int64, filter ListFilter, limit, offset int) ([]Invoice, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Invoice{}
	for _, inv := range r.invoices {
		if inv.CompanyID != companyID || (filter.Status != "" && inv.Status != filter.Status) {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if offset >= total {
		return []Invoice{}, total, nil
	}
	return out[offset:min(offset+limit, total)], total, nil
}

func (r *memoryRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, inv := range r.invoices {
		if (inv.Status == StatusIssued || inv.Status == StatusSent) && inv.DueDate.Before(asOf) {
			inv.Status = StatusOverdue
			r.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{
		invoices: make(map[int64]Invoice, len(r.invoices)),
		items:    make(map[int64]inventory.Item, len(r.items)),
		seq:      r.seq,
	}
	for id, inv := range r.invoices {
		tx.invoices[id] = cloneInvoice(inv)
	}
	for id, item := range r.items {
		tx.items[id] = item
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.invoices = tx.invoices
	r.items = tx.items
	r.movements = append(r.movements, tx.movements...)
	r.seq = tx.seq
	return nil
}

type memoryTx struct {
	invoices  map[int64]Invoice
	items     map[int64]inventory.Item
	movements []inventory.Movement
	seq       int64
}

func (tx *memoryTx) NextID(ctx context.Context) (int64, error) {
	tx.seq++
	return tx.seq, nil
}

func (tx *memoryTx) Insert(ctx context.Context, inv Invoice) (Invoice, error) {
	for _, existing := range tx.invoices {
		if existing.CompanyID == inv.CompanyID && existing.Number == inv.Number {
			return Invoice{}, fmt.Errorf("invoices: number %s: %w", inv.Number, shared.ErrDuplicate)
		}
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	tx.invoices[inv.ID] = cloneInvoice(inv)
	return inv, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, companyID, id int64) (Invoice, error) {
	return lookup(tx.invoices, companyID, id)
}

func (tx *memoryTx) UpdateHeader(ctx context.Context, inv Invoice) error {
	current, err := lookup(tx.invoices, inv.CompanyID, inv.ID)
	if err != nil {
		return err
	}
	lines := current.Lines
	current = inv
	current.Lines = lines
	current.UpdatedAt = time.Now()
	tx.invoices[inv.ID] = current
	return nil
}

func (tx *memoryTx) ReplaceLines(ctx context.Context, invoiceID int64, lines []LineItem) error {
	inv, ok := tx.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Lines = append([]LineItem(nil), lines...)
	tx.invoices[invoiceID] = inv
	return nil
}

func (tx *memoryTx) Stock() inventory.StockStore { return tx }

func (tx *memoryTx) ConditionalDecrement(ctx context.Context, companyID, itemID, qty int64) (inventory.Item, bool, error) {
	item, ok := tx.items[itemID]
	if !ok || item.CompanyID != companyID || item.QuantityOnHand < qty {
		return inventory.Item{}, false, nil
	}
	item.QuantityOnHand -= qty
	tx.items[itemID] = item
	return item, true, nil
}

func (tx *memoryTx) Increment(ctx context.Context, companyID, itemID, qty int64) (inventory.Item, error) {
	item, err := tx.GetItem(ctx, companyID, itemID)
	if err != nil {
		return inventory.Item{}, err
	}
	item.QuantityOnHand += qty
	tx.items[itemID] = item
	return item, nil
}

func (tx *memoryTx) GetItem(ctx context.Context, companyID, itemID int64) (inventory.Item, error) {
	item, ok := tx.items[itemID]
	if !ok || item.CompanyID != companyID {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	return item, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m inventory.Movement) error {
	tx.movements = append(tx.movements, m)
	return nil
}

func lookup(invoices map[int64]Invoice, companyID, id int64) (Invoice, error) {
	inv, ok := invoices[id]
	if !ok || inv.CompanyID != companyID {
		return Invoice{}, ErrInvoiceNotFound
	}
	return cloneInvoice(inv), nil
}

func cloneInvoice(inv Invoice) Invoice {
	inv.Lines = append([]LineItem(nil), inv.Lines...)
	return inv
}
