package kitchencost

import "errors"

var (
	ErrItemNotFound       = errors.New("inventory item not found")
	ErrRecipeNotFound     = errors.New("recipe not found")
	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrInvalidServings    = errors.New("servings must be greater than zero")
	ErrLockNotObtained    = errors.New("could not obtain item lock")
)
