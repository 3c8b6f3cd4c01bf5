package kitchencost

import (
	"context"
	"errors"
	"fmt"
)

// UnitPortion is the unit a sub-recipe without an explicit yield is priced in.
const UnitPortion = "portion"

type Ingredient struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price IngredientPrice `json:"price"`
}

// RecipeComponent references exactly one of an ingredient or a sub-recipe.
type RecipeComponent struct {
	IngredientID string  `json:"ingredient_id,omitempty"`
	SubRecipeID  string  `json:"sub_recipe_id,omitempty"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
}

func (c RecipeComponent) IsSubRecipe() bool {
	return c.SubRecipeID != ""
}

func (c RecipeComponent) validate() error {
	if (c.IngredientID == "") == (c.SubRecipeID == "") {
		return fmt.Errorf("component must reference exactly one of ingredient or sub-recipe (ingredient=%q, sub-recipe=%q)", c.IngredientID, c.SubRecipeID)
	}
	return nil
}

type Recipe struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	Servings             float64           `json:"servings"`
	Components           []RecipeComponent `json:"components"`
	WasteBufferPercent   float64           `json:"waste_buffer_percent"`
	Currency             string            `json:"currency"`
	TargetCostPercentage *float64          `json:"target_cost_percentage,omitempty"`
	SellingPrice         *float64          `json:"selling_price,omitempty"`
	// YieldQuantity/YieldUnit price the recipe when it is used as a sub-recipe.
	YieldQuantity float64 `json:"yield_quantity,omitempty"`
	YieldUnit     string  `json:"yield_unit,omitempty"`
}

// RecipeLookup gives read access to recipe and ingredient definitions.
// Unknown ids return ErrRecipeNotFound / ErrIngredientNotFound.
type RecipeLookup interface {
	Recipe(ctx context.Context, id string) (*Recipe, error)
	Ingredient(ctx context.Context, id string) (*Ingredient, error)
}

type RecipeCostSummary struct {
	Recipe             *Recipe
	Currency           string
	Lines              []LineCost
	Subtotal           float64
	WasteCost          float64
	TotalCost          float64
	CostPerServing     float64
	FoodCostPercentage float64
	ProfitMargin       float64
	SuggestedPrice     float64
	Errors             []string
}

// RecipeCost prices a recipe and all of its sub-recipes depth first. A nil
// guard starts a fresh traversal.
func (ce *CostEngine) RecipeCost(ctx context.Context, recipeID string, guard *CycleGuard) (*RecipeCostSummary, error) {
	if ce.recipes == nil {
		return nil, errors.New("cost engine has no recipe lookup")
	}
	if guard == nil {
		guard = NewCycleGuard()
	}
	recipe, err := ce.recipes.Recipe(ctx, recipeID)
	if err != nil {
		return nil, fmt.Errorf("recipe %s: %w", recipeID, err)
	}
	if err := guard.Enter(recipe.ID, recipe.Name); err != nil {
		return nil, err
	}
	defer guard.Exit(recipe.ID)

	items := make([]CostItem, 0, len(recipe.Components))
	var subErrs []string
	for _, c := range recipe.Components {
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("recipe %s: %w", recipe.Name, err)
		}
		item, errs, err := ce.componentItem(ctx, c, guard)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		subErrs = append(subErrs, errs...)
	}

	total, err := ce.RecipeTotal(ctx, items, recipe.WasteBufferPercent, recipe.Currency, nil, nil)
	if err != nil {
		return nil, err
	}

	summary := &RecipeCostSummary{
		Recipe:    recipe,
		Currency:  recipe.Currency,
		Lines:     total.Lines,
		Subtotal:  total.Subtotal,
		WasteCost: total.WasteCost,
		TotalCost: total.TotalCost,
		Errors:    append(subErrs, total.Errors...),
	}
	if recipe.Servings > 0 {
		summary.CostPerServing = total.TotalCost / recipe.Servings
	}
	if recipe.SellingPrice != nil {
		summary.FoodCostPercentage = FoodCostPercentage(summary.CostPerServing, *recipe.SellingPrice)
		summary.ProfitMargin = ProfitMargin(summary.CostPerServing, *recipe.SellingPrice)
	}
	if recipe.TargetCostPercentage != nil {
		summary.SuggestedPrice = SuggestedPriceWith(ce.formula, summary.CostPerServing, *recipe.TargetCostPercentage)
	}
	return summary, nil
}

// componentItem also returns the line errors of a sub-recipe, prefixed with
// its name.
func (ce *CostEngine) componentItem(ctx context.Context, c RecipeComponent, guard *CycleGuard) (CostItem, []string, error) {
	if !c.IsSubRecipe() {
		ing, err := ce.recipes.Ingredient(ctx, c.IngredientID)
		if err != nil {
			return CostItem{}, nil, fmt.Errorf("ingredient %s: %w", c.IngredientID, err)
		}
		return CostItem{
			Name:      ing.Name,
			Quantity:  c.Quantity,
			Unit:      c.Unit,
			BasePrice: ing.Price.PricePerUnit,
			BaseUnit:  ing.Price.Unit,
			Currency:  ing.Price.Currency,
		}, nil, nil
	}

	sub, err := ce.RecipeCost(ctx, c.SubRecipeID, guard)
	if err != nil {
		return CostItem{}, nil, err
	}
	errs := make([]string, len(sub.Errors))
	for i, e := range sub.Errors {
		errs[i] = sub.Recipe.Name + " > " + e
	}
	price, unit := subRecipeUnitPrice(sub)
	return CostItem{
		Name:      sub.Recipe.Name,
		Quantity:  c.Quantity,
		Unit:      c.Unit,
		BasePrice: price,
		BaseUnit:  unit,
		Currency:  sub.Currency,
	}, errs, nil
}

func subRecipeUnitPrice(sub *RecipeCostSummary) (float64, string) {
	r := sub.Recipe
	if r.YieldQuantity > 0 && r.YieldUnit != "" {
		return sub.TotalCost / r.YieldQuantity, r.YieldUnit
	}
	return sub.CostPerServing, UnitPortion
}
