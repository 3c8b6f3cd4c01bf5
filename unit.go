package kitchencost

import (
	"fmt"
	"sort"
	"strings"
)

type UnitType int

const (
	UnitTypeUnknown UnitType = iota
	UnitTypeMass
	UnitTypeVolume
	UnitTypePiece
)

func (t UnitType) String() string {
	switch t {
	case UnitTypeMass:
		return "mass"
	case UnitTypeVolume:
		return "volume"
	case UnitTypePiece:
		return "piece"
	default:
		return "unknown"
	}
}

const (
	UnitGram       = "g"
	UnitKilogram   = "kg"
	UnitMilligram  = "mg"
	UnitOunce      = "oz"
	UnitPound      = "lb"
	UnitMillilitre = "ml"
	UnitLitre      = "l"
	UnitCup        = "cup"
	UnitTablespoon = "tbsp"
	UnitTeaspoon   = "tsp"
	UnitGallon     = "gallon"
	UnitPiece      = "piece"
)

// factor to base unit: grams for mass, millilitres for volume
var (
	massRates = map[string]float64{
		UnitGram:      1,
		UnitKilogram:  1000,
		UnitMilligram: 0.001,
		UnitOunce:     28.3495,
		UnitPound:     453.592,
	}
	volumeRates = map[string]float64{
		UnitMillilitre: 1,
		UnitLitre:      1000,
		UnitCup:        236.588,
		UnitTablespoon: 14.7868,
		UnitTeaspoon:   4.92892,
		UnitGallon:     3785.41,
	}
	pieceUnits = map[string]struct{}{
		UnitPiece: {},
	}
)

// UnitMismatchError is returned when two units do not share a dimension.
type UnitMismatchError struct {
	From     string
	To       string
	FromType UnitType
	ToType   UnitType
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("cannot convert %s (%s) to %s (%s)", e.From, e.FromType, e.To, e.ToType)
}

type UnitConverter struct{}

func NewUnitConverter() *UnitConverter {
	return &UnitConverter{}
}

func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

func (uc *UnitConverter) TypeOf(unit string) UnitType {
	u := normalizeUnit(unit)
	if _, ok := massRates[u]; ok {
		return UnitTypeMass
	}
	if _, ok := volumeRates[u]; ok {
		return UnitTypeVolume
	}
	if _, ok := pieceUnits[u]; ok {
		return UnitTypePiece
	}
	return UnitTypeUnknown
}

// Convert converts value from one unit to another of the same dimension.
// Equal unit names short-circuit, even for units outside the tables.
func (uc *UnitConverter) Convert(value float64, fromUnit, toUnit string) (float64, error) {
	from, to := normalizeUnit(fromUnit), normalizeUnit(toUnit)
	if from == to {
		return value, nil
	}
	fromType, toType := uc.TypeOf(from), uc.TypeOf(to)
	if fromType != toType || fromType == UnitTypeUnknown {
		return 0, &UnitMismatchError{From: fromUnit, To: toUnit, FromType: fromType, ToType: toType}
	}
	var rates map[string]float64
	switch fromType {
	case UnitTypeMass:
		rates = massRates
	case UnitTypeVolume:
		rates = volumeRates
	default:
		// pieces only convert to themselves
		return 0, &UnitMismatchError{From: fromUnit, To: toUnit, FromType: fromType, ToType: toType}
	}
	return value * rates[from] / rates[to], nil
}

// KnownUnits lists every unit in the conversion tables, sorted.
func KnownUnits() []string {
	units := make([]string, 0, len(massRates)+len(volumeRates)+len(pieceUnits))
	for u := range massRates {
		units = append(units, u)
	}
	for u := range volumeRates {
		units = append(units, u)
	}
	for u := range pieceUnits {
		units = append(units, u)
	}
	sort.Strings(units)
	return units
}

func (uc *UnitConverter) ConvertQuantity(q Quantity, toUnit string) (Quantity, error) {
	v, err := uc.Convert(q.Value, q.Unit, toUnit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: v, Unit: toUnit}, nil
}
