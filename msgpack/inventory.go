package costmsgpack

import (
	"time"

	"kitchencost"
)

type Transaction struct {
	UUID        string   `msgpack:"uuid,omitempty"`
	ItemUUID    string   `msgpack:"item_uuid,omitempty"`
	Type        string   `msgpack:"type,omitempty"`
	Quantity    float64  `msgpack:"quantity,omitempty"`
	CostPerUnit *float64 `msgpack:"cost_per_unit,omitempty"`
	Currency    string   `msgpack:"currency,omitempty"`
	Reference   string   `msgpack:"reference,omitempty"`
	Note        string   `msgpack:"note,omitempty"`
	DatetimeMs  int64    `msgpack:"date,omitempty"`
}

type PrepBreakdown struct {
	RecipeName string  `msgpack:"recipe_name,omitempty"`
	Quantity   float64 `msgpack:"qty,omitempty"`
}

type PrepLine struct {
	IngredientUUID string          `msgpack:"ingredient_uuid,omitempty"`
	IngredientName string          `msgpack:"ingredient_name,omitempty"`
	TotalQuantity  float64         `msgpack:"total_quantity,omitempty"`
	Unit           string          `msgpack:"unit,omitempty"`
	Breakdown      []PrepBreakdown `msgpack:"breakdown,omitempty"`
}

type PrepConflict struct {
	IngredientUUID string  `msgpack:"ingredient_uuid,omitempty"`
	RecipeName     string  `msgpack:"recipe_name,omitempty"`
	Quantity       float64 `msgpack:"qty,omitempty"`
	Unit           string  `msgpack:"unit,omitempty"`
	KeptUnit       string  `msgpack:"kept_unit,omitempty"`
}

type PrepSheet struct {
	Lines     []PrepLine     `msgpack:"lines,omitempty"`
	Conflicts []PrepConflict `msgpack:"conflicts,omitempty"`
}

func NewTransaction(tx *kitchencost.InventoryTransaction) Transaction {
	return Transaction{
		UUID:        tx.ID,
		ItemUUID:    tx.ItemID,
		Type:        string(tx.Type),
		Quantity:    tx.Quantity,
		CostPerUnit: tx.CostPerUnit,
		Currency:    tx.Currency,
		Reference:   tx.Reference,
		Note:        tx.Notes,
		DatetimeMs:  tx.CreatedAt.UnixMilli(),
	}
}

func ToInvTransaction(tx *Transaction) kitchencost.InventoryTransaction {
	return kitchencost.InventoryTransaction{
		ID:          tx.UUID,
		ItemID:      tx.ItemUUID,
		Type:        kitchencost.TransactionType(tx.Type),
		Quantity:    tx.Quantity,
		CostPerUnit: tx.CostPerUnit,
		Currency:    tx.Currency,
		Reference:   tx.Reference,
		Notes:       tx.Note,
		CreatedAt:   time.UnixMilli(tx.DatetimeMs).UTC(),
	}
}

func NewPrepSheet(sheet *kitchencost.PrepSheet) PrepSheet {
	out := PrepSheet{}
	for _, l := range sheet.Lines {
		line := PrepLine{
			IngredientUUID: l.IngredientID,
			IngredientName: l.IngredientName,
			TotalQuantity:  l.TotalQuantity,
			Unit:           l.Unit,
		}
		for _, b := range l.Breakdown {
			line.Breakdown = append(line.Breakdown, PrepBreakdown{RecipeName: b.RecipeName, Quantity: b.Quantity})
		}
		out.Lines = append(out.Lines, line)
	}
	for _, c := range sheet.Conflicts {
		out.Conflicts = append(out.Conflicts, PrepConflict{
			IngredientUUID: c.IngredientID,
			RecipeName:     c.RecipeName,
			Quantity:       c.Quantity,
			Unit:           c.Unit,
			KeptUnit:       c.KeptUnit,
		})
	}
	return out
}

func ToInvPrepSheet(sheet *PrepSheet) kitchencost.PrepSheet {
	out := kitchencost.PrepSheet{Lines: make([]kitchencost.PrepSheetLineItem, 0, len(sheet.Lines))}
	for _, l := range sheet.Lines {
		line := kitchencost.PrepSheetLineItem{
			IngredientID:   l.IngredientUUID,
			IngredientName: l.IngredientName,
			TotalQuantity:  l.TotalQuantity,
			Unit:           l.Unit,
		}
		for _, b := range l.Breakdown {
			line.Breakdown = append(line.Breakdown, kitchencost.PrepBreakdown{RecipeName: b.RecipeName, Quantity: b.Quantity})
		}
		out.Lines = append(out.Lines, line)
	}
	for _, c := range sheet.Conflicts {
		out.Conflicts = append(out.Conflicts, kitchencost.PrepConflict{
			IngredientID: c.IngredientUUID,
			RecipeName:   c.RecipeName,
			Quantity:     c.Quantity,
			Unit:         c.Unit,
			KeptUnit:     c.KeptUnit,
		})
	}
	return out
}
