package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger implements Ledger using PostgreSQL. Balances are stored
// as NUMERIC for exact decimal precision, and a transfer runs inside a
// transaction with a balance-guarded debit so the debit and credit are
// durable together or not at all.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a new PostgreSQL-backed ledger.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("transfer begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// The WHERE guard makes an overdraft impossible; zero rows means the
	// account is missing or underfunded, which are the same condition.
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $2::NUMERIC
		 WHERE id = $1 AND balance >= $2::NUMERIC`,
		from, amount.String())
	if err != nil {
		return fmt.Errorf("transfer debit %s: %w", from, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (id, balance) VALUES ($1, $2::NUMERIC)
		 ON CONFLICT (id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance`,
		to, amount.String())
	if err != nil {
		return fmt.Errorf("transfer credit %s: %w", to, err)
	}

	return tx.Commit(ctx)
}

func (l *PostgresLedger) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	var balanceS string
	err := l.pool.QueryRow(ctx,
		`SELECT balance::TEXT FROM accounts WHERE id = $1`, account).
		Scan(&balanceS)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance %s: %w", account, err)
	}

	balance, err := decimal.NewFromString(balanceS)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance %s: %w", account, err)
	}
	return balance, nil
}

func (l *PostgresLedger) Deposit(ctx context.Context, account string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	_, err := l.pool.Exec(ctx,
		`INSERT INTO accounts (id, balance) VALUES ($1, $2::NUMERIC)
		 ON CONFLICT (id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance`,
		account, amount.String())
	if err != nil {
		return fmt.Errorf("deposit %s: %w", account, err)
	}
	return nil
}
