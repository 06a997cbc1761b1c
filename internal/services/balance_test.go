package services

import (
	"testing"

	"github.com/coinvault/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	assert.NoError(t, err)
	return d
}

func TestApplyTransaction_Deposit(t *testing.T) {
	t.Run("adds exactly", func(t *testing.T) {
		got, err := ApplyTransaction(dec(t, "10.10"), dec(t, "0.05"), models.TypeDeposit)
		assert.NoError(t, err)
		assert.Equal(t, "10.15", got.String())
	})

	t.Run("no float drift over repeated deposits", func(t *testing.T) {
		balance := dec(t, "0")
		for i := 0; i < 100; i++ {
			var err error
			balance, err = ApplyTransaction(balance, dec(t, "0.1"), models.TypeDeposit)
			assert.NoError(t, err)
		}
		assert.Equal(t, "10", balance.String())
	})

	t.Run("BTC scale amounts", func(t *testing.T) {
		got, err := ApplyTransaction(dec(t, "0.00000001"), dec(t, "0.00000002"), models.TypeDeposit)
		assert.NoError(t, err)
		assert.Equal(t, "0.00000003", got.String())
	})
}

func TestApplyTransaction_Withdrawal(t *testing.T) {
	t.Run("subtracts exactly", func(t *testing.T) {
		got, err := ApplyTransaction(dec(t, "100.00"), dec(t, "40.25"), models.TypeWithdrawal)
		assert.NoError(t, err)
		assert.True(t, got.Equal(dec(t, "59.75")))
	})

	t.Run("down to zero is allowed", func(t *testing.T) {
		got, err := ApplyTransaction(dec(t, "5.00"), dec(t, "5.00"), models.TypeWithdrawal)
		assert.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := ApplyTransaction(dec(t, "5.00"), dec(t, "10.00"), models.TypeWithdrawal)
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	})
}

func TestApplyTransaction_InvalidAmount(t *testing.T) {
	for _, amount := range []string{"0", "-1", "-0.01"} {
		for _, txType := range []models.TransactionType{models.TypeDeposit, models.TypeWithdrawal} {
			_, err := ApplyTransaction(dec(t, "100"), dec(t, amount), txType)
			assert.ErrorIs(t, err, models.ErrInvalidAmount, "amount %s type %s", amount, txType)
		}
	}
}

func TestApplyTransaction_InvalidType(t *testing.T) {
	_, err := ApplyTransaction(dec(t, "100"), dec(t, "1"), models.TransactionType("transfer"))
	assert.ErrorIs(t, err, models.ErrInvalidTransactionType)
}
