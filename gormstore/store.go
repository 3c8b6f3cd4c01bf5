// Package gormstore persists inventory items, the transaction ledger and
// exchange rates through GORM. Item updates run inside a database transaction
// holding a row lock, so concurrent ledger writers on one item serialize in
// the database.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kitchencost"
)

type Item struct {
	ID            string          `gorm:"primaryKey;size:64" json:"id"`
	Name          string          `gorm:"size:255" json:"name"`
	CurrentStock  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_stock"`
	PricePerUnit  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price_per_unit"`
	Currency      string          `gorm:"size:3" json:"currency"`
	MinStockLevel decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"min_stock_level"`
	UnitOfMeasure string          `gorm:"size:20" json:"unit_of_measure"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Item) TableName() string { return "inventory_items" }

type Transaction struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	ItemID      string           `gorm:"index;size:64;not null" json:"item_id"`
	Type        string           `gorm:"size:20;not null" json:"type"`
	Quantity    decimal.Decimal  `gorm:"type:decimal(20,4)" json:"quantity"`
	CostPerUnit *decimal.Decimal `gorm:"type:decimal(20,4)" json:"cost_per_unit"`
	Currency    string           `gorm:"size:3" json:"currency"`
	Reference   string           `gorm:"size:255" json:"reference"`
	Notes       string           `gorm:"size:1000" json:"notes"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
}

func (Transaction) TableName() string { return "inventory_transactions" }

type ExchangeRate struct {
	FromCurrency string          `gorm:"primaryKey;size:3" json:"from_currency"`
	ToCurrency   string          `gorm:"primaryKey;size:3" json:"to_currency"`
	Rate         decimal.Decimal `gorm:"type:decimal(20,8)" json:"rate"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type Store struct {
	db *gorm.DB
}

func OpenMySQL(dsn string) (*Store, error) {
	return Open(mysql.Open(dsn))
}

func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Item{}, &Transaction{}, &ExchangeRate{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) PutItem(ctx context.Context, item kitchencost.InventoryItem) error {
	row := Item{
		ID:            item.ID,
		Name:          item.Name,
		CurrentStock:  decimal.NewFromFloat(item.CurrentStock),
		PricePerUnit:  decimal.NewFromFloat(item.PricePerUnit),
		Currency:      item.Currency,
		MinStockLevel: decimal.NewFromFloat(item.MinStockLevel),
		UnitOfMeasure: item.UnitOfMeasure,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *Store) ReadItem(ctx context.Context, itemID string) (kitchencost.ItemState, error) {
	var item Item
	if err := s.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		return kitchencost.ItemState{}, notFound(err)
	}
	return toState(item), nil
}

func (s *Store) WriteItem(ctx context.Context, itemID string, state kitchencost.ItemState) error {
	return writeItem(s.db.WithContext(ctx), itemID, state)
}

// UpdateItem runs fn against the item's current state under SELECT ... FOR UPDATE.
func (s *Store) UpdateItem(ctx context.Context, itemID string, fn func(kitchencost.ItemState) (kitchencost.ItemState, error)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item Item
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, "id = ?", itemID).Error; err != nil {
			return notFound(err)
		}
		cur := toState(item)
		next, err := fn(cur)
		if err != nil {
			return err
		}
		if next == cur {
			return nil
		}
		return writeItem(tx, itemID, next)
	})
}

func writeItem(db *gorm.DB, itemID string, state kitchencost.ItemState) error {
	res := db.Model(&Item{}).Where("id = ?", itemID).Updates(map[string]interface{}{
		"current_stock":  decimal.NewFromFloat(state.Stock),
		"price_per_unit": decimal.NewFromFloat(state.Price),
		"currency":       state.Currency,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return kitchencost.ErrItemNotFound
	}
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx kitchencost.InventoryTransaction) (*kitchencost.InventoryTransaction, error) {
	if tx.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		tx.ID = id.String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	row := Transaction{
		ID:        tx.ID,
		ItemID:    tx.ItemID,
		Type:      string(tx.Type),
		Quantity:  decimal.NewFromFloat(tx.Quantity),
		Currency:  tx.Currency,
		Reference: tx.Reference,
		Notes:     tx.Notes,
		CreatedAt: tx.CreatedAt,
	}
	if tx.CostPerUnit != nil {
		c := decimal.NewFromFloat(*tx.CostPerUnit)
		row.CostPerUnit = &c
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) Transactions(ctx context.Context, itemID string) ([]kitchencost.InventoryTransaction, error) {
	var rows []Transaction
	err := s.db.WithContext(ctx).Where("item_id = ?", itemID).Order("created_at").Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]kitchencost.InventoryTransaction, 0, len(rows))
	for _, r := range rows {
		tx := kitchencost.InventoryTransaction{
			ID:        r.ID,
			ItemID:    r.ItemID,
			Type:      kitchencost.TransactionType(r.Type),
			Quantity:  r.Quantity.InexactFloat64(),
			Currency:  r.Currency,
			Reference: r.Reference,
			Notes:     r.Notes,
			CreatedAt: r.CreatedAt,
		}
		if r.CostPerUnit != nil {
			c := r.CostPerUnit.InexactFloat64()
			tx.CostPerUnit = &c
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Store) SetRate(ctx context.Context, fromCurrency, toCurrency string, rate float64) error {
	row := ExchangeRate{
		FromCurrency: strings.ToUpper(fromCurrency),
		ToCurrency:   strings.ToUpper(toCurrency),
		Rate:         decimal.NewFromFloat(rate),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *Store) LookupRate(ctx context.Context, from, to string) (*kitchencost.Rate, error) {
	var row ExchangeRate
	err := s.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ?", strings.ToUpper(from), strings.ToUpper(to)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &kitchencost.Rate{From: row.FromCurrency, To: row.ToCurrency, Rate: row.Rate.InexactFloat64()}, nil
}

func toState(item Item) kitchencost.ItemState {
	return kitchencost.ItemState{
		Stock:         item.CurrentStock.InexactFloat64(),
		Price:         item.PricePerUnit.InexactFloat64(),
		Currency:      item.Currency,
		MinStockLevel: item.MinStockLevel.InexactFloat64(),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return kitchencost.ErrItemNotFound
	}
	return err
}
