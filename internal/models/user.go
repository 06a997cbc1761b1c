package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the directory entry the ledger settles against. Balance and
// BalanceBTC are exact decimals; Version backs the optimistic-locking
// check on every balance write.
type User struct {
	ID                   string          `json:"id"`
	Email                string          `json:"email"`
	FirstName            string          `json:"firstName"`
	LastName             string          `json:"lastName"`
	Roles                []string        `json:"roles"`
	Balance              decimal.Decimal `json:"balance"`
	BalanceBTC           decimal.Decimal `json:"balanceBTC"`
	Version              int             `json:"-"`
	IsTransactionAllowed bool            `json:"isTransactionAllowed"`
	WalletBTCAddress     string          `json:"walletBTCAddress,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// UserProfile is the public slice of a user attached to transaction
// responses for display.
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// BalanceFor returns the user's balance in the given currency.
func (u *User) BalanceFor(currency Currency) decimal.Decimal {
	if currency == CurrencyBTC {
		return u.BalanceBTC
	}
	return u.Balance
}

// Profile returns the public view of the user.
func (u *User) Profile() *UserProfile {
	return &UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
