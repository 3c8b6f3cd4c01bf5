package kitchencost

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func bakeryCatalog() *MemoryCatalog {
	c := NewMemoryCatalog()
	c.PutIngredient(Ingredient{ID: "flour", Name: "Flour", Price: IngredientPrice{PricePerUnit: 0.002, Unit: "g", Currency: "USD"}})
	c.PutIngredient(Ingredient{ID: "tomato", Name: "Tomato", Price: IngredientPrice{PricePerUnit: 0.5, Unit: "piece", Currency: "USD"}})
	c.PutIngredient(Ingredient{ID: "oil", Name: "Oil", Price: IngredientPrice{PricePerUnit: 10, Unit: "l", Currency: "EUR"}})
	c.PutRecipe(Recipe{
		ID: "dough", Name: "Dough", Servings: 10, Currency: "USD", YieldQuantity: 1, YieldUnit: "kg",
		Components: []RecipeComponent{{IngredientID: "flour", Quantity: 500, Unit: "g"}},
	})
	c.PutRecipe(Recipe{
		ID: "bread", Name: "Bread", Servings: 2, Currency: "USD", WasteBufferPercent: 10,
		SellingPrice: ptr(2), TargetCostPercentage: ptr(25),
		Components: []RecipeComponent{
			{SubRecipeID: "dough", Quantity: 800, Unit: "g"},
			{IngredientID: "tomato", Quantity: 1, Unit: "piece"},
		},
	})
	return c
}

func TestCostEngine_RecipeCostNested(t *testing.T) {
	ce := newTestEngine(NewMemoryRates(), WithRecipeLookup(bakeryCatalog()))

	summary, err := ce.RecipeCost(context.Background(), "bread", nil)
	require.NoError(t, err)

	assert.Empty(t, summary.Errors)
	require.Len(t, summary.Lines, 2)
	assert.Equal(t, "Dough", summary.Lines[0].Name)
	assert.InDelta(t, 0.8, summary.Lines[0].Converted, 1e-9)
	assert.InDelta(t, 1.3, summary.Subtotal, 1e-9)
	assert.InDelta(t, 0.13, summary.WasteCost, 1e-9)
	assert.InDelta(t, 1.43, summary.TotalCost, 1e-9)
	assert.InDelta(t, 0.715, summary.CostPerServing, 1e-9)
	assert.InDelta(t, 35.75, summary.FoodCostPercentage, 1e-9)
	assert.InDelta(t, 64.25, summary.ProfitMargin, 1e-9)
	assert.InDelta(t, 2.86, summary.SuggestedPrice, 1e-9)
}

func TestCostEngine_RecipeCostMarginFormula(t *testing.T) {
	ce := newTestEngine(NewMemoryRates(), WithRecipeLookup(bakeryCatalog()), WithPricingFormula(PricingMarginOnPrice))

	summary, err := ce.RecipeCost(context.Background(), "bread", nil)
	require.NoError(t, err)
	// 0.715 / 0.75
	assert.InDelta(t, 0.95, summary.SuggestedPrice, 1e-9)
}

func TestCostEngine_RecipeCostPortionPricedSubRecipe(t *testing.T) {
	c := bakeryCatalog()
	c.PutRecipe(Recipe{
		ID: "base", Name: "Base", Servings: 4, Currency: "USD",
		Components: []RecipeComponent{{IngredientID: "tomato", Quantity: 4, Unit: "piece"}},
	})
	c.PutRecipe(Recipe{
		ID: "plate", Name: "Plate", Servings: 1, Currency: "USD",
		Components: []RecipeComponent{{SubRecipeID: "base", Quantity: 3, Unit: UnitPortion}},
	})
	ce := newTestEngine(NewMemoryRates(), WithRecipeLookup(c))

	summary, err := ce.RecipeCost(context.Background(), "plate", nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, summary.TotalCost, 1e-9)
}

func TestCostEngine_RecipeCostCollectsSubRecipeErrors(t *testing.T) {
	c := bakeryCatalog()
	c.PutRecipe(Recipe{
		ID: "dressing", Name: "Dressing", Servings: 1, Currency: "USD", YieldQuantity: 100, YieldUnit: "ml",
		Components: []RecipeComponent{{IngredientID: "oil", Quantity: 100, Unit: "ml"}},
	})
	c.PutRecipe(Recipe{
		ID: "salad", Name: "Salad", Servings: 1, Currency: "USD",
		Components: []RecipeComponent{
			{SubRecipeID: "dressing", Quantity: 20, Unit: "ml"},
			{IngredientID: "flour", Quantity: 1, Unit: "cup"},
		},
	})
	ce := newTestEngine(NewMemoryRates(), WithRecipeLookup(c))

	summary, err := ce.RecipeCost(context.Background(), "salad", nil)
	require.NoError(t, err)
	require.Len(t, summary.Errors, 2)
	assert.Contains(t, summary.Errors[0], "Dressing > Oil: No exchange rate found for EUR → USD")
	assert.Contains(t, summary.Errors[1], "Flour")
	// dressing carries its unconverted 1.0 through: 20 ml of 100 ml
	assert.InDelta(t, 0.2, summary.TotalCost, 1e-9)
}

func TestCostEngine_RecipeCostDetectsCycle(t *testing.T) {
	c := NewMemoryCatalog()
	c.PutRecipe(Recipe{ID: "a", Name: "Alpha", Servings: 1, Components: []RecipeComponent{{SubRecipeID: "b", Quantity: 1, Unit: UnitPortion}}})
	c.PutRecipe(Recipe{ID: "b", Name: "Bravo", Servings: 1, Components: []RecipeComponent{{SubRecipeID: "a", Quantity: 1, Unit: UnitPortion}}})
	ce := newTestEngine(NewMemoryRates(), WithRecipeLookup(c))

	_, err := ce.RecipeCost(context.Background(), "a", nil)
	var cre *CircularReferenceError
	require.True(t, errors.As(err, &cre))
	assert.Equal(t, "a", cre.RecipeID)
	assert.Equal(t, "Alpha", cre.RecipeName)
}

func TestCostEngine_RecipeCostSelfReference(t *testing.T) {
	c := NewMemoryCatalog()
	c.PutRecipe(Recipe{ID: "s", Name: "Stock", Servings: 1, Components: []RecipeComponent{{SubRecipeID: "s", Quantity: 1, Unit: UnitPortion}}})
	ce := newTestEngine(NewMemoryRates(), WithRecipeLookup(c))

	_, err := ce.RecipeCost(context.Background(), "s", nil)
	assert.True(t, IsCircularReference(err))
}

func TestCostEngine_RecipeCostSharedSubRecipe(t *testing.T) {
	c := bakeryCatalog()
	c.PutRecipe(Recipe{
		ID: "mid", Name: "Mid", Servings: 1, Currency: "USD",
		Components: []RecipeComponent{{SubRecipeID: "dough", Quantity: 1, Unit: "kg"}},
	})
	c.PutRecipe(Recipe{
		ID: "top", Name: "Top", Servings: 1, Currency: "USD",
		Components: []RecipeComponent{
			{SubRecipeID: "dough", Quantity: 500, Unit: "g"},
			{SubRecipeID: "mid", Quantity: 1, Unit: UnitPortion},
		},
	})
	ce := newTestEngine(NewMemoryRates(), WithRecipeLookup(c))

	guard := NewCycleGuard()
	summary, err := ce.RecipeCost(context.Background(), "top", guard)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, summary.TotalCost, 1e-9)
	assert.False(t, guard.Contains("top"))
	assert.False(t, guard.Contains("dough"))
}

func TestCostEngine_RecipeCostMissingReferences(t *testing.T) {
	c := bakeryCatalog()
	c.PutRecipe(Recipe{ID: "ghost", Name: "Ghost", Servings: 1, Components: []RecipeComponent{{IngredientID: "saffron", Quantity: 1, Unit: "g"}}})
	c.PutRecipe(Recipe{ID: "both", Name: "Both", Servings: 1, Components: []RecipeComponent{{IngredientID: "flour", SubRecipeID: "dough", Quantity: 1, Unit: "g"}}})
	ce := newTestEngine(NewMemoryRates(), WithRecipeLookup(c))

	_, err := ce.RecipeCost(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrRecipeNotFound)

	_, err = ce.RecipeCost(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, ErrIngredientNotFound)

	_, err = ce.RecipeCost(context.Background(), "both", nil)
	assert.ErrorContains(t, err, "exactly one")
}
