package kitchencost

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(items ...InventoryItem) (*Ledger, *MemoryInventory) {
	store := NewMemoryInventory()
	for _, item := range items {
		store.PutItem(item)
	}
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewLedger(store, store, WithClock(func() time.Time { return fixed })), store
}

func TestLedger_PurchaseWeightedAverage(t *testing.T) {
	ledger, store := newTestLedger(InventoryItem{ID: "flour", CurrentStock: 10, PricePerUnit: 5, Currency: "USD"})

	tx, err := ledger.LogTransaction(context.Background(), LogRequest{
		ItemID: "flour", Type: TransactionPurchase, Quantity: 10, CostPerUnit: ptr(7), Currency: "USD", Reference: "PO-7",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, "PO-7", tx.Reference)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), tx.CreatedAt)

	item, _ := store.Item("flour")
	assert.Equal(t, 20.0, item.CurrentStock)
	assert.Equal(t, 6.0, item.PricePerUnit)
}

func TestLedger_PurchaseRoundsAndTakesCurrency(t *testing.T) {
	ledger, store := newTestLedger(InventoryItem{ID: "oil", CurrentStock: 3, PricePerUnit: 1, Currency: "USD"})

	_, err := ledger.LogTransaction(context.Background(), LogRequest{
		ItemID: "oil", Type: TransactionPurchase, Quantity: 3, CostPerUnit: ptr(2.015), Currency: "EUR",
	})
	require.NoError(t, err)

	item, _ := store.Item("oil")
	assert.Equal(t, 6.0, item.CurrentStock)
	assert.Equal(t, 1.51, item.PricePerUnit)
	assert.Equal(t, "EUR", item.Currency)
}

func TestLedger_PurchaseIntoNegativeStockUsesCost(t *testing.T) {
	ledger, store := newTestLedger(InventoryItem{ID: "eggs", CurrentStock: -12, PricePerUnit: 0.2, Currency: "USD"})

	_, err := ledger.LogTransaction(context.Background(), LogRequest{
		ItemID: "eggs", Type: TransactionPurchase, Quantity: 6, CostPerUnit: ptr(0.25), Currency: "USD",
	})
	require.NoError(t, err)

	item, _ := store.Item("eggs")
	assert.Equal(t, -6.0, item.CurrentStock)
	assert.Equal(t, 0.25, item.PricePerUnit)
}

func TestLedger_PurchaseWithoutCostKeepsPrice(t *testing.T) {
	ledger, store := newTestLedger(InventoryItem{ID: "salt", CurrentStock: 1, PricePerUnit: 3, Currency: "USD"})

	_, err := ledger.LogTransaction(context.Background(), LogRequest{ItemID: "salt", Type: TransactionPurchase, Quantity: -4})
	require.NoError(t, err)

	item, _ := store.Item("salt")
	assert.Equal(t, 5.0, item.CurrentStock)
	assert.Equal(t, 3.0, item.PricePerUnit)
}

func TestLedger_Adjustment(t *testing.T) {
	ledger, store := newTestLedger(InventoryItem{ID: "rice", CurrentStock: 50, PricePerUnit: 2, Currency: "USD"})

	_, err := ledger.LogTransaction(context.Background(), LogRequest{
		ItemID: "rice", Type: TransactionAdjustment, Quantity: 47, CostPerUnit: ptr(9), Currency: "EUR",
	})
	require.NoError(t, err)

	item, _ := store.Item("rice")
	assert.Equal(t, 47.0, item.CurrentStock)
	assert.Equal(t, 2.0, item.PricePerUnit)
	assert.Equal(t, "USD", item.Currency)
}

func TestLedger_UsageAndWasteAllowOverdraft(t *testing.T) {
	ledger, store := newTestLedger(InventoryItem{ID: "milk", CurrentStock: 5, PricePerUnit: 1, Currency: "USD", MinStockLevel: 2})

	_, err := ledger.LogTransaction(context.Background(), LogRequest{ItemID: "milk", Type: TransactionUsage, Quantity: 10})
	require.NoError(t, err)
	item, _ := store.Item("milk")
	assert.Equal(t, -5.0, item.CurrentStock)
	assert.True(t, item.IsBelowMinimum())

	_, err = ledger.LogTransaction(context.Background(), LogRequest{ItemID: "milk", Type: TransactionWaste, Quantity: -1})
	require.NoError(t, err)
	item, _ = store.Item("milk")
	assert.Equal(t, -6.0, item.CurrentStock)
	assert.Equal(t, 1.0, item.PricePerUnit)
}

func TestLedger_AppendsOneRecordPerCall(t *testing.T) {
	ledger, _ := newTestLedger(InventoryItem{ID: "flour", CurrentStock: 10, PricePerUnit: 5, Currency: "USD"})
	ctx := context.Background()

	reqs := []LogRequest{
		{ItemID: "flour", Type: TransactionPurchase, Quantity: 5, CostPerUnit: ptr(5), Currency: "USD"},
		{ItemID: "flour", Type: TransactionUsage, Quantity: 2, Notes: "lunch"},
		{ItemID: "flour", Type: TransactionWaste, Quantity: 1},
		{ItemID: "flour", Type: TransactionAdjustment, Quantity: 11},
	}
	for _, req := range reqs {
		_, err := ledger.LogTransaction(ctx, req)
		require.NoError(t, err)
	}

	history, err := ledger.History(ctx, "flour")
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, tx := range history {
		assert.Equal(t, reqs[i].Type, tx.Type)
		assert.Equal(t, reqs[i].Quantity, tx.Quantity)
	}
	assert.Equal(t, "lunch", history[1].Notes)
}

func TestLedger_Validation(t *testing.T) {
	ledger, _ := newTestLedger(InventoryItem{ID: "flour"})

	_, err := ledger.LogTransaction(context.Background(), LogRequest{ItemID: "flour", Type: "gift", Quantity: 1})
	assert.ErrorContains(t, err, "invalid transaction")

	_, err = ledger.LogTransaction(context.Background(), LogRequest{Type: TransactionUsage, Quantity: 1})
	assert.ErrorContains(t, err, "invalid transaction")

	_, err = ledger.LogTransaction(context.Background(), LogRequest{ItemID: "flour", Type: TransactionPurchase, Quantity: 1, CostPerUnit: ptr(-1), Currency: "USD"})
	assert.ErrorContains(t, err, "invalid transaction")
}

func TestLedger_UnknownItem(t *testing.T) {
	ledger, store := newTestLedger()

	_, err := ledger.LogTransaction(context.Background(), LogRequest{ItemID: "ghost", Type: TransactionUsage, Quantity: 1})
	assert.ErrorIs(t, err, ErrItemNotFound)

	history, err := store.Transactions(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLedger_ConcurrentPurchasesSerialize(t *testing.T) {
	ledger, store := newTestLedger(InventoryItem{ID: "flour", CurrentStock: 0, PricePerUnit: 0, Currency: "USD"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.LogTransaction(context.Background(), LogRequest{
				ItemID: "flour", Type: TransactionPurchase, Quantity: 2, CostPerUnit: ptr(4), Currency: "USD",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	item, _ := store.Item("flour")
	assert.Equal(t, 100.0, item.CurrentStock)
	assert.Equal(t, 4.0, item.PricePerUnit)
}

type updaterStore struct {
	*MemoryInventory
	updates int
}

func (u *updaterStore) UpdateItem(ctx context.Context, itemID string, fn func(ItemState) (ItemState, error)) error {
	u.updates++
	cur, err := u.ReadItem(ctx, itemID)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	return u.WriteItem(ctx, itemID, next)
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, errors.New("locker should not be used")
}

func TestLedger_PrefersItemUpdater(t *testing.T) {
	store := &updaterStore{MemoryInventory: NewMemoryInventory()}
	store.PutItem(InventoryItem{ID: "flour", CurrentStock: 10, PricePerUnit: 5, Currency: "USD"})
	ledger := NewLedger(store, store, WithLocker(failingLocker{}))

	_, err := ledger.LogTransaction(context.Background(), LogRequest{
		ItemID: "flour", Type: TransactionPurchase, Quantity: 10, CostPerUnit: ptr(7), Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.updates)

	item, _ := store.Item("flour")
	assert.Equal(t, 6.0, item.PricePerUnit)
}

func TestLedger_LockFailureWritesNothing(t *testing.T) {
	store := NewMemoryInventory()
	store.PutItem(InventoryItem{ID: "flour", CurrentStock: 10})
	ledger := NewLedger(store, store, WithLocker(failingLocker{}))

	_, err := ledger.LogTransaction(context.Background(), LogRequest{ItemID: "flour", Type: TransactionUsage, Quantity: 1})
	require.Error(t, err)

	item, _ := store.Item("flour")
	assert.Equal(t, 10.0, item.CurrentStock)
	history, _ := store.Transactions(context.Background(), "flour")
	assert.Empty(t, history)
}

func TestTransactionType_Delta(t *testing.T) {
	d, ok := TransactionPurchase.Delta(-3)
	assert.True(t, ok)
	assert.Equal(t, 3.0, d)

	d, ok = TransactionWaste.Delta(3)
	assert.True(t, ok)
	assert.Equal(t, -3.0, d)

	_, ok = TransactionAdjustment.Delta(3)
	assert.False(t, ok)
	assert.False(t, TransactionType("gift").Valid())
}

type failingLedgerStore struct{}

func (failingLedgerStore) AppendTransaction(context.Context, InventoryTransaction) (*InventoryTransaction, error) {
	return nil, errors.New("ledger unavailable")
}

func TestLedger_FailedAppendRestoresItem(t *testing.T) {
	store := NewMemoryInventory()
	store.PutItem(InventoryItem{ID: "flour", CurrentStock: 10, PricePerUnit: 5, Currency: "USD"})
	ledger := NewLedger(store, failingLedgerStore{})

	_, err := ledger.LogTransaction(context.Background(), LogRequest{ItemID: "flour", Type: TransactionUsage, Quantity: 4})
	assert.EqualError(t, err, "ledger unavailable")

	item, _ := store.Item("flour")
	assert.Equal(t, 10.0, item.CurrentStock)
}

func TestLedger_FailedAppendRestoresItemWithUpdater(t *testing.T) {
	store := &updaterStore{MemoryInventory: NewMemoryInventory()}
	store.PutItem(InventoryItem{ID: "flour", CurrentStock: 10, PricePerUnit: 5, Currency: "USD"})
	ledger := NewLedger(store, failingLedgerStore{})

	_, err := ledger.LogTransaction(context.Background(), LogRequest{
		ItemID: "flour", Type: TransactionPurchase, Quantity: 10, CostPerUnit: ptr(7), Currency: "EUR",
	})
	require.Error(t, err)
	assert.Equal(t, 2, store.updates)

	item, _ := store.Item("flour")
	assert.Equal(t, 10.0, item.CurrentStock)
	assert.Equal(t, 5.0, item.PricePerUnit)
	assert.Equal(t, "USD", item.Currency)
}

func TestLedger_NegativePurchaseQuantityUsesMagnitude(t *testing.T) {
	ledger, store := newTestLedger(InventoryItem{ID: "flour", CurrentStock: 10, PricePerUnit: 5, Currency: "USD"})

	_, err := ledger.LogTransaction(context.Background(), LogRequest{
		ItemID: "flour", Type: TransactionPurchase, Quantity: -10, CostPerUnit: ptr(7), Currency: "USD",
	})
	require.NoError(t, err)

	item, _ := store.Item("flour")
	assert.Equal(t, 20.0, item.CurrentStock)
	assert.Equal(t, 6.0, item.PricePerUnit)
}
