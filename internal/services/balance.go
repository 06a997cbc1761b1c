package services

import (
	"github.com/coinvault/backend/internal/models"
	"github.com/shopspring/decimal"
)

// ApplyTransaction computes the balance that results from applying a
// transaction of the given type and amount to the current balance. All
// arithmetic is exact decimal; floats never touch monetary values.
//
// The amount must be strictly positive. Withdrawals fail with
// ErrInsufficientFunds when the current balance cannot cover them.
func ApplyTransaction(current, amount decimal.Decimal, txType models.TransactionType) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, models.ErrInvalidAmount
	}

	switch txType {
	case models.TypeDeposit:
		return current.Add(amount), nil
	case models.TypeWithdrawal:
		if current.LessThan(amount) {
			return decimal.Decimal{}, models.ErrInsufficientFunds
		}
		return current.Sub(amount), nil
	default:
		return decimal.Decimal{}, models.ErrInvalidTransactionType
	}
}
