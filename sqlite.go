package kitchencost

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite3 = "sqlite3" // cgo, github.com/mattn/go-sqlite3
	DriverSQLite  = "sqlite"  // pure Go, modernc.org/sqlite
)

// SQLiteStore persists items, transactions, exchange rates, recipes and
// ingredients. It implements ItemStore, LedgerStore, LedgerReader,
// RateProvider and RecipeLookup.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(driver, path string) (*SQLiteStore, error) {
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS inventory_items (
			id TEXT PRIMARY KEY,
			name TEXT,
			current_stock REAL NOT NULL DEFAULT 0,
			price_per_unit REAL NOT NULL DEFAULT 0,
			currency TEXT,
			min_stock_level REAL NOT NULL DEFAULT 0,
			unit_of_measure TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS inventory_transactions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE,
			item_id TEXT,
			type TEXT,
			quantity REAL,
			cost_per_unit REAL,
			currency TEXT,
			reference TEXT,
			notes TEXT,
			created_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_transactions_item ON inventory_transactions (item_id);`,
		`CREATE TABLE IF NOT EXISTS exchange_rates (
			from_currency TEXT,
			to_currency TEXT,
			rate REAL,
			updated_at TEXT,
			PRIMARY KEY (from_currency, to_currency)
		);`,
		`CREATE TABLE IF NOT EXISTS ingredients (
			id TEXT PRIMARY KEY,
			name TEXT,
			price_per_unit REAL,
			unit TEXT,
			currency TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS recipes (
			id TEXT PRIMARY KEY,
			name TEXT,
			servings REAL,
			waste_buffer_percent REAL,
			currency TEXT,
			target_cost_percentage REAL,
			selling_price REAL,
			yield_quantity REAL,
			yield_unit TEXT,
			components BLOB
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) PutItem(ctx context.Context, item InventoryItem) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO inventory_items (id, name, current_stock, price_per_unit, currency, min_stock_level, unit_of_measure)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, current_stock = excluded.current_stock,
			price_per_unit = excluded.price_per_unit, currency = excluded.currency,
			min_stock_level = excluded.min_stock_level, unit_of_measure = excluded.unit_of_measure`,
		item.ID, item.Name, item.CurrentStock, item.PricePerUnit, item.Currency, item.MinStockLevel, item.UnitOfMeasure)
	return err
}

func (s *SQLiteStore) Item(ctx context.Context, id string) (*InventoryItem, error) {
	var item InventoryItem
	err := s.db.QueryRowContext(ctx, `SELECT id, name, current_stock, price_per_unit, currency, min_stock_level, unit_of_measure
		FROM inventory_items WHERE id = ?`, id).
		Scan(&item.ID, &item.Name, &item.CurrentStock, &item.PricePerUnit, &item.Currency, &item.MinStockLevel, &item.UnitOfMeasure)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *SQLiteStore) ReadItem(ctx context.Context, itemID string) (ItemState, error) {
	item, err := s.Item(ctx, itemID)
	if err != nil {
		return ItemState{}, err
	}
	return ItemState{
		Stock:         item.CurrentStock,
		Price:         item.PricePerUnit,
		Currency:      item.Currency,
		MinStockLevel: item.MinStockLevel,
	}, nil
}

func (s *SQLiteStore) WriteItem(ctx context.Context, itemID string, state ItemState) error {
	res, err := s.db.ExecContext(ctx, `UPDATE inventory_items SET current_stock = ?, price_per_unit = ?, currency = ? WHERE id = ?`,
		state.Stock, state.Price, state.Currency, itemID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *SQLiteStore) AppendTransaction(ctx context.Context, tx InventoryTransaction) (*InventoryTransaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	var cost sql.NullFloat64
	if tx.CostPerUnit != nil {
		cost = sql.NullFloat64{Float64: *tx.CostPerUnit, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO inventory_transactions (id, item_id, type, quantity, cost_per_unit, currency, reference, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.ItemID, string(tx.Type), tx.Quantity, cost, tx.Currency, tx.Reference, tx.Notes, tx.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *SQLiteStore) Transactions(ctx context.Context, itemID string) ([]InventoryTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, item_id, type, quantity, cost_per_unit, currency, reference, notes, created_at
		FROM inventory_transactions WHERE item_id = ? ORDER BY seq`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InventoryTransaction
	for rows.Next() {
		var (
			tx        InventoryTransaction
			txType    string
			cost      sql.NullFloat64
			createdAt string
		)
		if err := rows.Scan(&tx.ID, &tx.ItemID, &txType, &tx.Quantity, &cost, &tx.Currency, &tx.Reference, &tx.Notes, &createdAt); err != nil {
			return nil, err
		}
		tx.Type = TransactionType(txType)
		if cost.Valid {
			c := cost.Float64
			tx.CostPerUnit = &c
		}
		if tx.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("transaction %s created_at: %w", tx.ID, err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetRate(ctx context.Context, fromCurrency, toCurrency string, rate float64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO exchange_rates (from_currency, to_currency, rate, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(from_currency, to_currency) DO UPDATE SET rate = excluded.rate, updated_at = excluded.updated_at`,
		strings.ToUpper(fromCurrency), strings.ToUpper(toCurrency), rate, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) LookupRate(ctx context.Context, from, to string) (*Rate, error) {
	r := Rate{From: strings.ToUpper(from), To: strings.ToUpper(to)}
	err := s.db.QueryRowContext(ctx, `SELECT rate FROM exchange_rates WHERE from_currency = ? AND to_currency = ?`, r.From, r.To).Scan(&r.Rate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type componentRecord struct {
	IngredientID string  `msgpack:"i,omitempty"`
	SubRecipeID  string  `msgpack:"r,omitempty"`
	Quantity     float64 `msgpack:"q"`
	Unit         string  `msgpack:"u"`
}

func (s *SQLiteStore) PutIngredient(ctx context.Context, ing Ingredient) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO ingredients (id, name, price_per_unit, unit, currency) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, price_per_unit = excluded.price_per_unit,
			unit = excluded.unit, currency = excluded.currency`,
		ing.ID, ing.Name, ing.Price.PricePerUnit, ing.Price.Unit, ing.Price.Currency)
	return err
}

func (s *SQLiteStore) Ingredient(ctx context.Context, id string) (*Ingredient, error) {
	var ing Ingredient
	err := s.db.QueryRowContext(ctx, `SELECT id, name, price_per_unit, unit, currency FROM ingredients WHERE id = ?`, id).
		Scan(&ing.ID, &ing.Name, &ing.Price.PricePerUnit, &ing.Price.Unit, &ing.Price.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIngredientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ing, nil
}

func (s *SQLiteStore) PutRecipe(ctx context.Context, r Recipe) error {
	records := make([]componentRecord, len(r.Components))
	for i, c := range r.Components {
		records[i] = componentRecord{IngredientID: c.IngredientID, SubRecipeID: c.SubRecipeID, Quantity: c.Quantity, Unit: c.Unit}
	}
	components, err := msgpack.Marshal(records)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO recipes (id, name, servings, waste_buffer_percent, currency, target_cost_percentage, selling_price, yield_quantity, yield_unit, components)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, servings = excluded.servings,
			waste_buffer_percent = excluded.waste_buffer_percent, currency = excluded.currency,
			target_cost_percentage = excluded.target_cost_percentage, selling_price = excluded.selling_price,
			yield_quantity = excluded.yield_quantity, yield_unit = excluded.yield_unit, components = excluded.components`,
		r.ID, r.Name, r.Servings, r.WasteBufferPercent, r.Currency, nullFloat(r.TargetCostPercentage), nullFloat(r.SellingPrice),
		r.YieldQuantity, r.YieldUnit, components)
	return err
}

func (s *SQLiteStore) Recipe(ctx context.Context, id string) (*Recipe, error) {
	var (
		r          Recipe
		target     sql.NullFloat64
		selling    sql.NullFloat64
		components []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, servings, waste_buffer_percent, currency, target_cost_percentage, selling_price, yield_quantity, yield_unit, components
		FROM recipes WHERE id = ?`, id).
		Scan(&r.ID, &r.Name, &r.Servings, &r.WasteBufferPercent, &r.Currency, &target, &selling, &r.YieldQuantity, &r.YieldUnit, &components)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecipeNotFound
	}
	if err != nil {
		return nil, err
	}
	if target.Valid {
		r.TargetCostPercentage = &target.Float64
	}
	if selling.Valid {
		r.SellingPrice = &selling.Float64
	}
	var records []componentRecord
	if len(components) > 0 {
		if err := msgpack.Unmarshal(components, &records); err != nil {
			return nil, fmt.Errorf("recipe %s components: %w", id, err)
		}
	}
	for _, c := range records {
		r.Components = append(r.Components, RecipeComponent{IngredientID: c.IngredientID, SubRecipeID: c.SubRecipeID, Quantity: c.Quantity, Unit: c.Unit})
	}
	return &r, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
