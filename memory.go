package kitchencost

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCatalog is an in-process RecipeLookup.
type MemoryCatalog struct {
	mutex       sync.RWMutex
	recipes     map[string]Recipe
	ingredients map[string]Ingredient
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		recipes:     make(map[string]Recipe),
		ingredients: make(map[string]Ingredient),
	}
}

func (m *MemoryCatalog) PutRecipe(r Recipe) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.recipes[r.ID] = r
}

func (m *MemoryCatalog) PutIngredient(i Ingredient) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ingredients[i.ID] = i
}

func (m *MemoryCatalog) Recipe(_ context.Context, id string) (*Recipe, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, ok := m.recipes[id]
	if !ok {
		return nil, ErrRecipeNotFound
	}
	r.Components = append([]RecipeComponent(nil), r.Components...)
	return &r, nil
}

func (m *MemoryCatalog) Ingredient(_ context.Context, id string) (*Ingredient, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	i, ok := m.ingredients[id]
	if !ok {
		return nil, ErrIngredientNotFound
	}
	return &i, nil
}

// MemoryInventory is an in-process ItemStore, LedgerStore and LedgerReader.
type MemoryInventory struct {
	mutex        sync.Mutex
	items        map[string]InventoryItem
	transactions []InventoryTransaction
}

func NewMemoryInventory() *MemoryInventory {
	return &MemoryInventory{items: make(map[string]InventoryItem)}
}

func (m *MemoryInventory) PutItem(item InventoryItem) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.items[item.ID] = item
}

func (m *MemoryInventory) Item(id string) (InventoryItem, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	item, ok := m.items[id]
	return item, ok
}

func (m *MemoryInventory) ReadItem(_ context.Context, itemID string) (ItemState, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return ItemState{}, ErrItemNotFound
	}
	return ItemState{
		Stock:         item.CurrentStock,
		Price:         item.PricePerUnit,
		Currency:      item.Currency,
		MinStockLevel: item.MinStockLevel,
	}, nil
}

func (m *MemoryInventory) WriteItem(_ context.Context, itemID string, state ItemState) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	item.CurrentStock = state.Stock
	item.PricePerUnit = state.Price
	item.Currency = state.Currency
	m.items[itemID] = item
	return nil
}

func (m *MemoryInventory) AppendTransaction(_ context.Context, tx InventoryTransaction) (*InventoryTransaction, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	m.transactions = append(m.transactions, tx)
	return &tx, nil
}

func (m *MemoryInventory) Transactions(_ context.Context, itemID string) ([]InventoryTransaction, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var out []InventoryTransaction
	for _, tx := range m.transactions {
		if tx.ItemID == itemID {
			out = append(out, tx)
		}
	}
	return out, nil
}
