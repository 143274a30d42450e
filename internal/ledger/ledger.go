// Package ledger defines the fund-custody collaborator used by the
// settlement engine: atomic debit/credit of fungible value between a
// holder and a pool. The engine depends only on the atomic-transfer
// contract, never on any particular account or token representation.
//
// Implementations include PostgreSQL (source of truth) and in-memory
// (for testing and development).
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds is returned when the source account cannot
	// cover the requested transfer.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)

// Ledger moves value between accounts. Transfer is all-or-nothing: the
// debit and credit are committed together or not at all.
type Ledger interface {
	// Transfer debits amount from one account and credits it to another.
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) error

	// Balance returns the current balance of an account. Unknown
	// accounts have a zero balance.
	Balance(ctx context.Context, account string) (decimal.Decimal, error)

	// Deposit credits newly issued funds to an account. This is the
	// faucet used to fund bettors; pooled stakes only ever move through
	// Transfer.
	Deposit(ctx context.Context, account string, amount decimal.Decimal) error
}
