package kitchencost

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// PricingFormula selects how a suggested selling price is derived from a cost
// and a target percentage.
type PricingFormula int

const (
	// PricingCostPercentage: price = cost / (target/100), target is food cost %.
	PricingCostPercentage PricingFormula = iota
	// PricingMarginOnPrice: price = cost / (1 - target/100), target is margin %.
	PricingMarginOnPrice
)

func (f PricingFormula) String() string {
	switch f {
	case PricingMarginOnPrice:
		return "margin"
	default:
		return "cost-percentage"
	}
}

func ParsePricingFormula(s string) (PricingFormula, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cost-percentage":
		return PricingCostPercentage, nil
	case "margin":
		return PricingMarginOnPrice, nil
	}
	return PricingCostPercentage, fmt.Errorf("unknown pricing formula %q", s)
}

type IngredientCostResult struct {
	Cost  float64
	Error string
}

// CostItem is one priced line of a recipe: Quantity in Unit, priced at
// BasePrice per BaseUnit in Currency.
type CostItem struct {
	Name      string
	Quantity  float64
	Unit      string
	BasePrice float64
	BaseUnit  string
	Currency  string
}

type LineCost struct {
	Name      string
	Cost      float64
	Converted float64
	Rate      *float64
	Error     string
}

type RecipeTotalResult struct {
	Subtotal  float64
	WasteCost float64
	TotalCost float64
	Lines     []LineCost
	Errors    []string
}

// RecipeRef identifies the recipe being totalled for cycle detection.
type RecipeRef struct {
	ID   string
	Name string
}

type CostEngine struct {
	units      *UnitConverter
	currencies *CurrencyConverter
	recipes    RecipeLookup
	formula    PricingFormula
	logger     logrus.FieldLogger
}

type CostEngineOption func(*CostEngine)

func WithRecipeLookup(recipes RecipeLookup) CostEngineOption {
	return func(ce *CostEngine) { ce.recipes = recipes }
}

func WithPricingFormula(formula PricingFormula) CostEngineOption {
	return func(ce *CostEngine) { ce.formula = formula }
}

func WithCostLogger(logger logrus.FieldLogger) CostEngineOption {
	return func(ce *CostEngine) { ce.logger = logger }
}

func NewCostEngine(currencies *CurrencyConverter, opts ...CostEngineOption) *CostEngine {
	ce := &CostEngine{
		units:      NewUnitConverter(),
		currencies: currencies,
	}
	for _, opt := range opts {
		opt(ce)
	}
	ce.logger = loggerOrDiscard(ce.logger)
	return ce
}

// IngredientCost prices quantity usedUnit against basePrice per baseUnit. A unit
// mismatch yields a zero cost with the error message attached.
func (ce *CostEngine) IngredientCost(quantity float64, usedUnit string, basePrice float64, baseUnit string) IngredientCostResult {
	converted, err := ce.units.Convert(quantity, usedUnit, baseUnit)
	if err != nil {
		return IngredientCostResult{Cost: 0, Error: err.Error()}
	}
	return IngredientCostResult{Cost: converted * basePrice}
}

// RecipeTotal prices every item, converts each into recipeCurrency concurrently
// and sums the results. Per-line failures are collected in input order; only a
// circular reference detected through guard is returned as an error.
func (ce *CostEngine) RecipeTotal(ctx context.Context, items []CostItem, wasteBufferPercent float64, recipeCurrency string, guard *CycleGuard, self *RecipeRef) (*RecipeTotalResult, error) {
	if guard != nil && self != nil {
		if err := guard.Enter(self.ID, self.Name); err != nil {
			return nil, err
		}
	}

	lines := make([]LineCost, len(items))
	var g errgroup.Group
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			lines[i] = ce.priceLine(ctx, item, recipeCurrency)
			return nil
		})
	}
	_ = g.Wait()

	converted := make([]float64, len(lines))
	var errs []string
	for i, line := range lines {
		converted[i] = line.Converted
		if line.Error != "" {
			errs = append(errs, line.Error)
		}
	}

	subtotal := floats.Sum(converted)
	wasteCost := subtotal * wasteBufferPercent / 100
	return &RecipeTotalResult{
		Subtotal:  subtotal,
		WasteCost: wasteCost,
		TotalCost: subtotal + wasteCost,
		Lines:     lines,
		Errors:    errs,
	}, nil
}

func (ce *CostEngine) priceLine(ctx context.Context, item CostItem, recipeCurrency string) LineCost {
	line := LineCost{Name: item.Name}
	ic := ce.IngredientCost(item.Quantity, item.Unit, item.BasePrice, item.BaseUnit)
	if ic.Error != "" {
		line.Error = lineError(item.Name, ic.Error)
		ce.logger.WithFields(logrus.Fields{
			"item": item.Name,
			"unit": item.Unit,
			"base": item.BaseUnit,
		}).Warn("ingredient unit mismatch")
		return line
	}
	line.Cost = ic.Cost

	currency := item.Currency
	if currency == "" {
		currency = recipeCurrency
	}
	res := ce.currencies.Convert(ctx, ic.Cost, currency, recipeCurrency)
	line.Converted = res.Converted
	line.Rate = res.Rate
	if res.Error != "" {
		line.Error = lineError(item.Name, res.Error)
	}
	return line
}

func lineError(name, msg string) string {
	if name == "" {
		return msg
	}
	return name + ": " + msg
}

func IsCircularReference(err error) bool {
	var cre *CircularReferenceError
	return errors.As(err, &cre)
}

func ProfitMargin(cost, sellingPrice float64) float64 {
	if sellingPrice <= 0 {
		return 0
	}
	return (sellingPrice - cost) / sellingPrice * 100
}

func FoodCostPercentage(cost, sellingPrice float64) float64 {
	if sellingPrice <= 0 {
		return 0
	}
	return cost / sellingPrice * 100
}

// SuggestedPrice applies PricingCostPercentage.
func SuggestedPrice(cost, targetCostPercentage float64) float64 {
	return SuggestedPriceWith(PricingCostPercentage, cost, targetCostPercentage)
}

func SuggestedPriceWith(formula PricingFormula, cost, target float64) float64 {
	if target <= 0 {
		return 0
	}
	switch formula {
	case PricingMarginOnPrice:
		if target >= 100 {
			return 0
		}
		return round2(cost / (1 - target/100))
	default:
		return round2(cost / (target / 100))
	}
}

// WeightedAverage blends an existing stock price with an added lot.
func WeightedAverage(currentStock, currentPrice, addedStock, addedPrice float64) float64 {
	total := currentStock + addedStock
	if total <= 0 {
		return 0
	}
	value := decimal.NewFromFloat(currentStock).Mul(decimal.NewFromFloat(currentPrice)).
		Add(decimal.NewFromFloat(addedStock).Mul(decimal.NewFromFloat(addedPrice)))
	return value.Div(decimal.NewFromFloat(total)).InexactFloat64()
}
