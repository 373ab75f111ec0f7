// Package money holds the rules shared by every stored amount.
package money

import (
	"github.com/shopspring/decimal"

	"finapi/pkg/apperr"
)

// Max is the largest value a numeric(12,2) column holds.
var Max = decimal.RequireFromString("9999999999.99")

// Check reports amounts with more than 2 decimal places or out of column
// range.
func Check(field string, v decimal.Decimal) *apperr.FieldError {
	if !v.Equal(v.Round(2)) {
		return &apperr.FieldError{Field: field, Message: field + " must have at most 2 decimal places"}
	}
	if v.Abs().GreaterThan(Max) {
		return &apperr.FieldError{Field: field, Message: field + " is too large"}
	}
	return nil
}
