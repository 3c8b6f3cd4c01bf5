package kitchencost

import (
	"io"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MoneyPrecision is the number of decimals prices are rounded to.
const MoneyPrecision = 2

type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// IngredientPrice is the purchase price of an ingredient, per Unit in Currency.
type IngredientPrice struct {
	PricePerUnit float64 `json:"price_per_unit"`
	Unit         string  `json:"unit"`
	Currency     string  `json:"currency"`
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(MoneyPrecision).InexactFloat64()
}

func loggerOrDiscard(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger != nil {
		return logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
