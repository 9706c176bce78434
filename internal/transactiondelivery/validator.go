package transactiondelivery

import (
	"github.com/go-playground/validator/v10"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// ValidTransactionType validates whether the field names a transaction type.
var ValidTransactionType validator.Func = func(fl validator.FieldLevel) bool {
	if t, ok := fl.Field().Interface().(string); ok {
		return domain.TransactionType(t).Valid()
	}

	return false
}

// ValidStatus validates whether the field names a transaction status.
var ValidStatus validator.Func = func(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return domain.Status(s).Valid()
	}

	return false
}
