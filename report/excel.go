package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"kitchencost"
)

const (
	PrepSheetName      = "Prep"
	ConflictsSheetName = "Unmerged"
	CostSheetName      = "Cost"
)

// WritePrepSheet writes one row per ingredient with its per-recipe breakdown,
// plus an Unmerged sheet when some lines could not be merged.
func WritePrepSheet(w io.Writer, sheet *kitchencost.PrepSheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PrepSheetName); err != nil {
		return err
	}
	if err := setRow(f, PrepSheetName, 1, "Ingredient", "Total", "Unit", "Breakdown"); err != nil {
		return err
	}
	for i, line := range sheet.Lines {
		parts := make([]string, len(line.Breakdown))
		for j, b := range line.Breakdown {
			parts[j] = fmt.Sprintf("%s: %g", b.RecipeName, b.Quantity)
		}
		if err := setRow(f, PrepSheetName, i+2, line.IngredientName, line.TotalQuantity, line.Unit, strings.Join(parts, "; ")); err != nil {
			return err
		}
	}

	if len(sheet.Conflicts) > 0 {
		if _, err := f.NewSheet(ConflictsSheetName); err != nil {
			return err
		}
		if err := setRow(f, ConflictsSheetName, 1, "Ingredient ID", "Recipe", "Quantity", "Unit", "Listed In"); err != nil {
			return err
		}
		for i, c := range sheet.Conflicts {
			if err := setRow(f, ConflictsSheetName, i+2, c.IngredientID, c.RecipeName, c.Quantity, c.Unit, c.KeptUnit); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

// WriteRecipeCost writes the priced lines of a recipe followed by its totals.
func WriteRecipeCost(w io.Writer, summary *kitchencost.RecipeCostSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CostSheetName); err != nil {
		return err
	}
	if err := setRow(f, CostSheetName, 1, "Line", "Cost", "Cost ("+summary.Currency+")", "Error"); err != nil {
		return err
	}
	row := 2
	for _, line := range summary.Lines {
		if err := setRow(f, CostSheetName, row, line.Name, line.Cost, line.Converted, line.Error); err != nil {
			return err
		}
		row++
	}
	row++
	totals := []struct {
		label string
		value float64
	}{
		{"Subtotal", summary.Subtotal},
		{"Waste", summary.WasteCost},
		{"Total", summary.TotalCost},
		{"Per serving", summary.CostPerServing},
		{"Food cost %", summary.FoodCostPercentage},
		{"Margin %", summary.ProfitMargin},
		{"Suggested price", summary.SuggestedPrice},
	}
	for _, t := range totals {
		if err := setRow(f, CostSheetName, row, t.label, nil, t.value); err != nil {
			return err
		}
		row++
	}
	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
