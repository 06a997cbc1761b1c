package models

import "errors"

// Domain errors surfaced by the transaction core. The HTTP layer maps
// these to transport status codes; none of them are retried.
var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrUserNotFound            = errors.New("user not found")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInvalidTransactionType  = errors.New("invalid transaction type")
	ErrInvalidStatusTransition = errors.New("transaction is already in a terminal status")
)
