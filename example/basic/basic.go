package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"kitchencost"
	"kitchencost/config"
	"kitchencost/gormstore"
	costmsgpack "kitchencost/msgpack"
	"kitchencost/report"
)

type inventoryStore interface {
	kitchencost.ItemStore
	kitchencost.LedgerStore
	kitchencost.RateProvider
	PutItem(ctx context.Context, item kitchencost.InventoryItem) error
	SetRate(ctx context.Context, fromCurrency, toCurrency string, rate float64) error
}

func openStore(cfg *config.Config) (inventoryStore, *kitchencost.SQLiteStore, error) {
	if cfg.Store == config.StoreMySQL {
		s, err := gormstore.OpenMySQL(cfg.MySQLDSN)
		return s, nil, err
	}
	s, err := kitchencost.OpenSQLite(cfg.SQLiteDriver, cfg.SQLitePath)
	return s, s, err
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := config.NewLogger(cfg.LogLevel)
	ctx := context.Background()

	store, sqliteStore, err := openStore(cfg)
	if err != nil {
		config.LogError(logger, "example", "main", "open store", cfg.Store, err)
		os.Exit(1)
	}
	if sqliteStore != nil {
		defer sqliteStore.Close()
	}

	var locker kitchencost.Locker = kitchencost.NewLocalLocker()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		locker = kitchencost.NewRedisLocker(rdb, cfg.LockTTL)
	}

	if err := seed(ctx, store); err != nil {
		config.LogError(logger, "example", "seed", "seeding store", nil, err)
		os.Exit(1)
	}

	ledger := kitchencost.NewLedger(store, store, kitchencost.WithLocker(locker), kitchencost.WithLedgerLogger(logger))
	cost := 7.0
	if _, err := ledger.LogTransaction(ctx, kitchencost.LogRequest{
		ItemID: "flour", Type: kitchencost.TransactionPurchase, Quantity: 10, CostPerUnit: &cost, Currency: "USD", Reference: "PO-1",
	}); err != nil {
		config.LogError(logger, "example", "main", "purchase", "flour", err)
		os.Exit(1)
	}
	if _, err := ledger.LogTransaction(ctx, kitchencost.LogRequest{
		ItemID: "flour", Type: kitchencost.TransactionUsage, Quantity: 4, Notes: "bread prep",
	}); err != nil {
		config.LogError(logger, "example", "main", "usage", "flour", err)
		os.Exit(1)
	}
	state, err := store.ReadItem(ctx, "flour")
	if err != nil {
		config.LogError(logger, "example", "main", "read item", "flour", err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{"stock": state.Stock, "price": state.Price, "currency": state.Currency}).Info("flour after transactions")

	catalog := demoCatalog()
	engine := kitchencost.NewCostEngine(
		kitchencost.NewCurrencyConverter(store, logger),
		kitchencost.WithRecipeLookup(catalog),
		kitchencost.WithPricingFormula(cfg.PricingFormula),
		kitchencost.WithCostLogger(logger),
	)
	summary, err := engine.RecipeCost(ctx, "bread", nil)
	if err != nil {
		config.LogError(logger, "example", "main", "recipe cost", "bread", err)
		os.Exit(1)
	}
	fmt.Printf("bread: total %.2f %s, per serving %.2f, suggested price %.2f\n",
		summary.TotalCost, summary.Currency, summary.CostPerServing, summary.SuggestedPrice)

	prep := kitchencost.NewPrepAggregator(catalog, logger)
	sheet, err := prep.Aggregate(ctx, []kitchencost.PrepSelection{
		{RecipeID: "bread", RequestedServings: 30},
		{RecipeID: "pizza", RequestedServings: 16},
	})
	if err != nil {
		config.LogError(logger, "example", "main", "prep sheet", nil, err)
		os.Exit(1)
	}
	for _, line := range sheet.Lines {
		fmt.Printf("%-10s %8.1f %s\n", line.IngredientName, line.TotalQuantity, line.Unit)
	}

	var xlsx bytes.Buffer
	if err := report.WritePrepSheet(&xlsx, sheet); err != nil {
		config.LogError(logger, "example", "main", "prep sheet xlsx", nil, err)
		os.Exit(1)
	}
	if err := os.WriteFile("prep.xlsx", xlsx.Bytes(), 0o644); err != nil {
		config.LogError(logger, "example", "main", "write prep.xlsx", nil, err)
		os.Exit(1)
	}

	history, err := ledger.History(ctx, "flour")
	if err != nil {
		config.LogError(logger, "example", "main", "history", "flour", err)
		os.Exit(1)
	}
	var stream bytes.Buffer
	if err := costmsgpack.WriteTransactions(&stream, history); err != nil {
		config.LogError(logger, "example", "main", "encode history", nil, err)
		os.Exit(1)
	}
	var buf costmsgpack.TransactionBuffer
	decoded, err := buf.Feed(stream.Bytes())
	if err != nil {
		config.LogError(logger, "example", "main", "decode history", nil, err)
		os.Exit(1)
	}
	fmt.Printf("ledger export: %d transactions, %d bytes\n", len(decoded), stream.Len())
}

func seed(ctx context.Context, store inventoryStore) error {
	if err := store.PutItem(ctx, kitchencost.InventoryItem{
		ID: "flour", Name: "Flour", CurrentStock: 10, PricePerUnit: 5, Currency: "USD", MinStockLevel: 5, UnitOfMeasure: "kg",
	}); err != nil {
		return err
	}
	return store.SetRate(ctx, "EUR", "USD", 1.08)
}

func demoCatalog() *kitchencost.MemoryCatalog {
	c := kitchencost.NewMemoryCatalog()
	c.PutIngredient(kitchencost.Ingredient{ID: "flour", Name: "Flour", Price: kitchencost.IngredientPrice{PricePerUnit: 0.0012, Unit: "g", Currency: "USD"}})
	c.PutIngredient(kitchencost.Ingredient{ID: "yeast", Name: "Yeast", Price: kitchencost.IngredientPrice{PricePerUnit: 0.02, Unit: "g", Currency: "EUR"}})
	c.PutIngredient(kitchencost.Ingredient{ID: "oil", Name: "Olive oil", Price: kitchencost.IngredientPrice{PricePerUnit: 9, Unit: "l", Currency: "EUR"}})
	c.PutIngredient(kitchencost.Ingredient{ID: "tomato", Name: "Tomato", Price: kitchencost.IngredientPrice{PricePerUnit: 0.3, Unit: "piece", Currency: "USD"}})

	target := 30.0
	price := 4.5
	c.PutRecipe(kitchencost.Recipe{
		ID: "dough", Name: "Dough", Servings: 10, Currency: "USD", YieldQuantity: 1, YieldUnit: "kg",
		Components: []kitchencost.RecipeComponent{
			{IngredientID: "flour", Quantity: 600, Unit: "g"},
			{IngredientID: "yeast", Quantity: 10, Unit: "g"},
			{IngredientID: "oil", Quantity: 2, Unit: "tbsp"},
		},
	})
	c.PutRecipe(kitchencost.Recipe{
		ID: "bread", Name: "Bread", Servings: 10, Currency: "USD", WasteBufferPercent: 5,
		TargetCostPercentage: &target, SellingPrice: &price,
		Components: []kitchencost.RecipeComponent{
			{SubRecipeID: "dough", Quantity: 800, Unit: "g"},
			{IngredientID: "flour", Quantity: 50, Unit: "g"},
		},
	})
	c.PutRecipe(kitchencost.Recipe{
		ID: "pizza", Name: "Pizza", Servings: 8, Currency: "USD", WasteBufferPercent: 8,
		Components: []kitchencost.RecipeComponent{
			{SubRecipeID: "dough", Quantity: 1, Unit: "kg"},
			{IngredientID: "flour", Quantity: 100, Unit: "g"},
			{IngredientID: "tomato", Quantity: 6, Unit: "piece"},
		},
	})
	return c
}
