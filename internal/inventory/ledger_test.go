package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) ObserveStockReservation(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[result]++
}

func reserve(t *testing.T, repo *memoryRepo, ledger *Ledger, invoiceID int64, lines []StockLine) ([]LowStock, error) {
	t.Helper()
	var low []LowStock
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		var err error
		low, err = ledger.Reserve(ctx, tx, 1, invoiceID, lines)
		return err
	})
	return low, err
}

func TestReserveRejectsInsufficientStockWithoutMutation(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.seed(Item{SKU: "W-1", Name: "Widget", QuantityOnHand: 5})
	metrics := &countingMetrics{counts: map[string]int{}}

	_, err := reserve(t, repo, NewLedger(metrics), 7, []StockLine{{ItemID: item.ID, Quantity: 6, Description: "Widget x6"}})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, "Widget x6", stockErr.Description)
	require.EqualValues(t, 6, stockErr.Requested)
	require.EqualValues(t, 5, stockErr.Available)
	require.EqualValues(t, 5, repo.qty(item.ID))
	require.Empty(t, repo.movements)
	require.Equal(t, 1, metrics.counts["insufficient"])
}

func TestReserveIsAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.seed(Item{SKU: "A", Name: "Alpha", QuantityOnHand: 10})
	b := repo.seed(Item{SKU: "B", Name: "Beta", QuantityOnHand: 1})

	_, err := reserve(t, repo, NewLedger(nil), 1, []StockLine{
		{ItemID: a.ID, Quantity: 4, Description: "alpha"},
		{ItemID: b.ID, Quantity: 2, Description: "beta"},
	})

	require.ErrorIs(t, err, shared.ErrConflict)
	require.EqualValues(t, 10, repo.qty(a.ID))
	require.EqualValues(t, 1, repo.qty(b.ID))
	require.Empty(t, repo.movements)
}

func TestReserveDecrementsOnceAndRecordsMovements(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.seed(Item{SKU: "A", Name: "Alpha", QuantityOnHand: 10, ReorderLevel: 5})
	b := repo.seed(Item{SKU: "B", Name: "Beta", QuantityOnHand: 3})

	low, err := reserve(t, repo, NewLedger(nil), 42, []StockLine{
		{ItemID: a.ID, Quantity: 3},
		{Description: "consulting", Quantity: 1},
		{ItemID: a.ID, Quantity: 2},
		{ItemID: b.ID, Quantity: 1},
	})

	require.NoError(t, err)
	require.EqualValues(t, 5, repo.qty(a.ID))
	require.EqualValues(t, 2, repo.qty(b.ID))
	require.Len(t, repo.movements, 3)
	for _, m := range repo.movements {
		require.Equal(t, ReasonInvoiceReserve, m.Reason)
		require.EqualValues(t, 42, *m.InvoiceID)
		require.Negative(t, m.Quantity)
	}
	require.Len(t, low, 1)
	require.Equal(t, a.ID, low[0].ItemID)
	require.EqualValues(t, 5, low[0].QuantityOnHand)
}

func TestReserveUnknownItemIsNotFound(t *testing.T) {
	repo := newMemoryRepo()

	_, err := reserve(t, repo, NewLedger(nil), 1, []StockLine{{ItemID: 99, Quantity: 1, Description: "ghost"}})

	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, err.Error(), "ghost")
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.seed(Item{SKU: "A", Name: "Alpha", QuantityOnHand: 10})

	_, err := reserve(t, repo, NewLedger(nil), 1, []StockLine{{ItemID: a.ID, Quantity: 0}})

	require.ErrorIs(t, err, shared.ErrValidation)
	require.EqualValues(t, 10, repo.qty(a.ID))
}

func TestReleaseRestoresStock(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.seed(Item{SKU: "A", Name: "Alpha", QuantityOnHand: 10})
	lines := []StockLine{{ItemID: a.ID, Quantity: 4}}
	ledger := NewLedger(nil)

	_, err := reserve(t, repo, ledger, 3, lines)
	require.NoError(t, err)
	require.EqualValues(t, 6, repo.qty(a.ID))

	err = repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		return ledger.Release(ctx, tx, 1, 3, lines)
	})
	require.NoError(t, err)
	require.EqualValues(t, 10, repo.qty(a.ID))

	var net int64
	for _, m := range repo.movements {
		net += m.Quantity
	}
	require.Zero(t, net)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.seed(Item{SKU: "A", Name: "Alpha", QuantityOnHand: 5})
	ledger := NewLedger(nil)

	var ok, short atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(invoiceID int64) {
			defer wg.Done()
			_, err := reserve(t, repo, ledger, invoiceID, []StockLine{{ItemID: a.ID, Quantity: 1}})
			var stockErr *InsufficientStockError
			switch {
			case err == nil:
				ok.Add(1)
			case errors.As(err, &stockErr):
				short.Add(1)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	require.EqualValues(t, 5, ok.Load())
	require.EqualValues(t, 15, short.Load())
	require.Zero(t, repo.qty(a.ID))
}
