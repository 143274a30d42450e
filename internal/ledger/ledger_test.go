package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestMemoryLedger_DepositAndBalance(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	if err := l.Deposit(ctx, "alice", d(100)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	bal, err := l.Balance(ctx, "alice")
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if !bal.Equal(d(100)) {
		t.Errorf("expected balance 100, got %s", bal)
	}
}

func TestMemoryLedger_UnknownAccountIsZero(t *testing.T) {
	l := NewMemoryLedger()

	bal, err := l.Balance(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if !bal.IsZero() {
		t.Errorf("expected zero balance, got %s", bal)
	}
}

func TestMemoryLedger_Transfer(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	l.Deposit(ctx, "alice", d(100))
	if err := l.Transfer(ctx, "alice", "pool", d(60)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	aliceBal, _ := l.Balance(ctx, "alice")
	poolBal, _ := l.Balance(ctx, "pool")
	if !aliceBal.Equal(d(40)) {
		t.Errorf("expected alice=40, got %s", aliceBal)
	}
	if !poolBal.Equal(d(60)) {
		t.Errorf("expected pool=60, got %s", poolBal)
	}
}

func TestMemoryLedger_InsufficientFunds(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	l.Deposit(ctx, "alice", d(10))
	if err := l.Transfer(ctx, "alice", "pool", d(11)); err != ErrInsufficientFunds {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}

	// The failed transfer must not have moved anything.
	aliceBal, _ := l.Balance(ctx, "alice")
	if !aliceBal.Equal(d(10)) {
		t.Errorf("balance changed on failed transfer: %s", aliceBal)
	}
}

func TestMemoryLedger_InvalidAmount(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	if err := l.Transfer(ctx, "a", "b", d(0)); err != ErrInvalidAmount {
		t.Errorf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if err := l.Deposit(ctx, "a", d(-5)); err != ErrInvalidAmount {
		t.Errorf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestMemoryLedger_ConcurrentTransfersConserveValue(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	l.Deposit(ctx, "alice", d(1000))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Transfer(ctx, "alice", "pool", d(10))
		}()
	}
	wg.Wait()

	aliceBal, _ := l.Balance(ctx, "alice")
	poolBal, _ := l.Balance(ctx, "pool")
	if !aliceBal.Add(poolBal).Equal(d(1000)) {
		t.Errorf("value not conserved: alice=%s pool=%s", aliceBal, poolBal)
	}
	if !poolBal.Equal(d(500)) {
		t.Errorf("expected all 50 transfers to land, pool=%s", poolBal)
	}
}
