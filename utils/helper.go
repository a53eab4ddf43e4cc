package utils

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ProcessValidationErrors flattens gin binding errors into field -> rule.
func ProcessValidationErrors(err error) map[string]string {

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// IsPositiveWholeQty reports whether q is a whole number greater than zero.
// Quantities are stored as decimals but the ledger only accepts integral units.
func IsPositiveWholeQty(q decimal.Decimal) bool {
	return q.IsPositive() && q.Equal(q.Truncate(0))
}
