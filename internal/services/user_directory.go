package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/coinvault/backend/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// UserDirectory is the ledger's view of the user store: profile reads plus
// the balance read/write surface. Every balance write goes through a
// version-checked conditional update, and mutation paths lock the user row
// first so two completions for the same user cannot interleave.
type UserDirectory struct {
	db *sql.DB
}

func NewUserDirectory(db *sql.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

const userColumns = `id, email, first_name, last_name, roles, balance::text, balance_btc::text, version, is_transaction_allowed, COALESCE(wallet_btc_address, ''), created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var balanceStr, balanceBTCStr string

	err := row.Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName,
		pq.Array(&user.Roles), &balanceStr, &balanceBTCStr, &user.Version,
		&user.IsTransactionAllowed, &user.WalletBTCAddress,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}

	if user.Balance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("invalid stored balance for user %s: %w", user.ID, err)
	}
	if user.BalanceBTC, err = decimal.NewFromString(balanceBTCStr); err != nil {
		return nil, fmt.Errorf("invalid stored BTC balance for user %s: %w", user.ID, err)
	}

	return &user, nil
}

// GetUser fetches a user outside of any transaction, for read-only surfaces.
func (d *UserDirectory) GetUser(userID string) (*models.User, error) {
	row := d.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// lockUser fetches a user inside dbTx holding a row lock until commit.
// Balance-mutating flows must read through this so concurrent completions
// for the same user serialize instead of racing read-modify-write.
func (d *UserDirectory) lockUser(dbTx *sql.Tx, userID string) (*models.User, error) {
	row := dbTx.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID)
	return scanUser(row)
}

// setBalance writes a new balance for the given currency with an optimistic
// version check. The column name comes from the fixed currency table, never
// from request input.
func (d *UserDirectory) setBalance(dbTx *sql.Tx, userID string, currency models.Currency, value decimal.Decimal, version int) error {
	column, ok := models.BalanceColumns[currency]
	if !ok {
		return models.ErrInvalidInput
	}

	result, err := dbTx.Exec(fmt.Sprintf(`
		UPDATE users
		SET %s = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`, column),
		value.String(), time.Now(), userID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for user %s", userID)
	}

	return nil
}

// getProfile loads the public profile attached to transaction responses.
func (d *UserDirectory) getProfile(userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := d.db.QueryRow(`
		SELECT id, email, first_name, last_name FROM users WHERE id = $1`, userID).
		Scan(&profile.ID, &profile.Email, &profile.FirstName, &profile.LastName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return &profile, nil
}
