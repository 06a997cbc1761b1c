package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a balance mutation.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
)

// TransactionStatus enumerates the transaction lifecycle. Pending is the
// only non-terminal status; completed, failed and canceled are terminal.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCanceled  TransactionStatus = "canceled"
)

// Terminal reports whether no further status transition is allowed.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Currency selects which user balance field a transaction settles against.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyBTC Currency = "BTC"
)

// BalanceColumns maps each supported currency to the users-table column
// holding its balance. Currency handling goes through this table instead
// of string comparisons scattered through the code.
var BalanceColumns = map[Currency]string{
	CurrencyUSD: "balance",
	CurrencyBTC: "balance_btc",
}

// Valid reports whether the currency is one of the supported set.
func (c Currency) Valid() bool {
	_, ok := BalanceColumns[c]
	return ok
}

// Transaction is a ledger entry. Amount is always positive. Balance is the
// snapshot of the user's balance immediately after this transaction took
// effect and stays nil until the effect has actually been applied.
type Transaction struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	Type           TransactionType   `json:"type"`
	Amount         decimal.Decimal   `json:"amount"`
	Balance        *decimal.Decimal  `json:"balance,omitempty"`
	Currency       Currency          `json:"currency"`
	Status         TransactionStatus `json:"status"`
	CreatedByAdmin bool              `json:"createdByAdmin"`
	Method         string            `json:"method,omitempty"`
	Note           string            `json:"note,omitempty"`
	Date           *time.Time        `json:"date,omitempty"`
	Reference      string            `json:"transactionId,omitempty"`
	PaymentDetails map[string]any    `json:"paymentDetails,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	User           *UserProfile      `json:"user,omitempty"`
}
