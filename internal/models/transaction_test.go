package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCanceled.Terminal())
}

func TestCurrency_Valid(t *testing.T) {
	assert.True(t, CurrencyUSD.Valid())
	assert.True(t, CurrencyBTC.Valid())
	assert.False(t, Currency("EUR").Valid())
	assert.False(t, Currency("usd").Valid())
}

func TestTransaction_JSON(t *testing.T) {
	amount := decimal.RequireFromString("10.50")
	transaction := Transaction{
		ID:       "tx-1",
		UserID:   "user-1",
		Type:     TypeDeposit,
		Amount:   amount,
		Currency: CurrencyUSD,
		Status:   StatusPending,
	}

	data, err := json.Marshal(transaction)
	assert.NoError(t, err)

	var decoded map[string]any
	assert.NoError(t, json.Unmarshal(data, &decoded))

	// Amounts travel as decimal strings, never floats.
	assert.Equal(t, "10.5", decoded["amount"])
	// The balance snapshot is omitted until the effect is applied.
	assert.NotContains(t, decoded, "balance")
	assert.Equal(t, "user-1", decoded["userId"])
}
