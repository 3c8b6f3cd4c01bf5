package kitchencost

import (
	"math"
	"time"
)

type TransactionType string

const (
	TransactionPurchase   TransactionType = "purchase"
	TransactionUsage      TransactionType = "usage"
	TransactionWaste      TransactionType = "waste"
	TransactionAdjustment TransactionType = "adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionPurchase, TransactionUsage, TransactionWaste, TransactionAdjustment:
		return true
	}
	return false
}

// Delta is the signed stock change of a transaction. Adjustments are absolute
// counts, not deltas, and report ok=false.
func (t TransactionType) Delta(quantity float64) (delta float64, ok bool) {
	switch t {
	case TransactionPurchase:
		return math.Abs(quantity), true
	case TransactionUsage, TransactionWaste:
		return -math.Abs(quantity), true
	}
	return 0, false
}

type InventoryItem struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	CurrentStock  float64 `json:"current_stock"`
	PricePerUnit  float64 `json:"price_per_unit"`
	Currency      string  `json:"currency"`
	MinStockLevel float64 `json:"min_stock_level"`
	UnitOfMeasure string  `json:"unit_of_measure"`
}

// IsBelowMinimum reports low stock. Negative stock is always below minimum.
func (i InventoryItem) IsBelowMinimum() bool {
	return i.CurrentStock < i.MinStockLevel || i.CurrentStock < 0
}

// ItemState is the mutable part of an item the ledger reads and writes.
// MinStockLevel is read-only for the ledger.
type ItemState struct {
	Stock         float64
	Price         float64
	Currency      string
	MinStockLevel float64
}

// InventoryTransaction is an immutable ledger record.
type InventoryTransaction struct {
	ID          string          `json:"id"`
	ItemID      string          `json:"item_id"`
	Type        TransactionType `json:"type"`
	Quantity    float64         `json:"quantity"`
	CostPerUnit *float64        `json:"cost_per_unit,omitempty"`
	Currency    string          `json:"currency,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
