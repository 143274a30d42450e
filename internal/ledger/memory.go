package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryLedger implements Ledger with an in-memory balance map. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

// NewMemoryLedger creates a new in-memory ledger with no funded accounts.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]decimal.Decimal),
	}
}

func (l *MemoryLedger) Transfer(_ context.Context, from, to string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from].LessThan(amount) {
		return ErrInsufficientFunds
	}
	l.balances[from] = l.balances[from].Sub(amount)
	l.balances[to] = l.balances[to].Add(amount)
	return nil
}

func (l *MemoryLedger) Balance(_ context.Context, account string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.balances[account], nil
}

func (l *MemoryLedger) Deposit(_ context.Context, account string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[account] = l.balances[account].Add(amount)
	return nil
}
