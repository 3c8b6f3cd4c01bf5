package kitchencost

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

type PrepSelection struct {
	RecipeID          string  `json:"recipe_id" validate:"required"`
	RequestedServings float64 `json:"requested_servings" validate:"gt=0"`
}

type PrepBreakdown struct {
	RecipeName string  `json:"recipe_name"`
	Quantity   float64 `json:"qty"`
}

type PrepSheetLineItem struct {
	IngredientID   string          `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	TotalQuantity  float64         `json:"total_quantity"`
	Unit           string          `json:"unit"`
	Breakdown      []PrepBreakdown `json:"breakdown"`
}

// PrepConflict is a scaled line left out of the totals because its ingredient
// was already listed in a different unit.
type PrepConflict struct {
	IngredientID string  `json:"ingredient_id"`
	RecipeName   string  `json:"recipe_name"`
	Quantity     float64 `json:"qty"`
	Unit         string  `json:"unit"`
	KeptUnit     string  `json:"kept_unit"`
}

type PrepSheet struct {
	Lines     []PrepSheetLineItem `json:"lines"`
	Conflicts []PrepConflict      `json:"conflicts,omitempty"`
}

func ScaleFactor(requestedServings, baseServings float64) float64 {
	return requestedServings / baseServings
}

func ScaleQuantity(baseQuantity, factor float64) float64 {
	return baseQuantity * factor
}

type PrepAggregator struct {
	recipes  RecipeLookup
	validate *validator.Validate
	logger   logrus.FieldLogger
}

func NewPrepAggregator(recipes RecipeLookup, logger logrus.FieldLogger) *PrepAggregator {
	return &PrepAggregator{
		recipes:  recipes,
		validate: validator.New(),
		logger:   loggerOrDiscard(logger),
	}
}

// Aggregate scales the ingredient lines of every selected recipe and merges
// them per ingredient. A repeat ingredient in a different unit is not merged;
// it is reported in Conflicts. Sub-recipe components are not expanded.
func (pa *PrepAggregator) Aggregate(ctx context.Context, selections []PrepSelection) (*PrepSheet, error) {
	lines := make(map[string]*PrepSheetLineItem)
	sheet := &PrepSheet{}

	for _, sel := range selections {
		if err := pa.validate.Struct(sel); err != nil {
			return nil, fmt.Errorf("invalid prep selection: %w", err)
		}
		recipe, err := pa.recipes.Recipe(ctx, sel.RecipeID)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: %w", sel.RecipeID, err)
		}
		if recipe.Servings <= 0 {
			return nil, fmt.Errorf("recipe %s: %w", recipe.Name, ErrInvalidServings)
		}
		factor := ScaleFactor(sel.RequestedServings, recipe.Servings)

		for _, c := range recipe.Components {
			if c.IsSubRecipe() {
				continue
			}
			qty := ScaleQuantity(c.Quantity, factor)
			line, ok := lines[c.IngredientID]
			if !ok {
				ing, err := pa.recipes.Ingredient(ctx, c.IngredientID)
				if err != nil {
					return nil, fmt.Errorf("ingredient %s: %w", c.IngredientID, err)
				}
				lines[c.IngredientID] = &PrepSheetLineItem{
					IngredientID:   c.IngredientID,
					IngredientName: ing.Name,
					Unit:           c.Unit,
					Breakdown:      []PrepBreakdown{{RecipeName: recipe.Name, Quantity: qty}},
				}
				continue
			}
			if normalizeUnit(line.Unit) != normalizeUnit(c.Unit) {
				sheet.Conflicts = append(sheet.Conflicts, PrepConflict{
					IngredientID: c.IngredientID,
					RecipeName:   recipe.Name,
					Quantity:     qty,
					Unit:         c.Unit,
					KeptUnit:     line.Unit,
				})
				pa.logger.WithFields(logrus.Fields{
					"ingredient": line.IngredientName,
					"recipe":     recipe.Name,
					"unit":       c.Unit,
					"kept_unit":  line.Unit,
				}).Warn("prep line dropped: unit differs from earlier line")
				continue
			}
			line.Breakdown = append(line.Breakdown, PrepBreakdown{RecipeName: recipe.Name, Quantity: qty})
		}
	}

	sheet.Lines = make([]PrepSheetLineItem, 0, len(lines))
	for _, line := range lines {
		qtys := make([]float64, len(line.Breakdown))
		for i, b := range line.Breakdown {
			qtys[i] = b.Quantity
		}
		line.TotalQuantity = floats.Sum(qtys)
		sheet.Lines = append(sheet.Lines, *line)
	}
	sortPrepLines(sheet.Lines)
	return sheet, nil
}

func sortPrepLines(lines []PrepSheetLineItem) {
	sort.Slice(lines, func(i, j int) bool {
		a, b := strings.ToLower(lines[i].IngredientName), strings.ToLower(lines[j].IngredientName)
		if a != b {
			return a < b
		}
		return lines[i].IngredientID < lines[j].IngredientID
	})
}
