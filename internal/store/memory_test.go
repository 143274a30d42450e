package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paribet/market-engine/internal/model"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func newMarket(id uint64, outcomes int) *model.Market {
	labels := make([]string, outcomes)
	pools := make([]decimal.Decimal, outcomes)
	for i := range labels {
		labels[i] = string(rune('A' + i))
		pools[i] = decimal.Zero
	}
	return &model.Market{
		ID:             id,
		Question:       "test market",
		Outcomes:       labels,
		OutcomePools:   pools,
		TotalPool:      decimal.Zero,
		MinBet:         d(1),
		ResolutionTime: time.Now().Add(time.Hour),
		CreatedAt:      time.Now(),
	}
}

func TestMemoryStore_InitializeOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.InitializeRegistry(ctx, "authority"); err != nil {
		t.Fatalf("first initialize failed: %v", err)
	}
	if err := s.InitializeRegistry(ctx, "other"); err != ErrAlreadyInitialized {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}

	reg, err := s.GetRegistry(ctx)
	if err != nil {
		t.Fatalf("get registry failed: %v", err)
	}
	if reg.Authority != "authority" {
		t.Errorf("second initialize must not change authority, got %s", reg.Authority)
	}
}

func TestMemoryStore_NotInitialized(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetRegistry(ctx); err != ErrNotInitialized {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := s.NextMarketID(ctx); err != ErrNotInitialized {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestMemoryStore_NextMarketID_DenseUnderConcurrency(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.InitializeRegistry(ctx, "authority")

	const n = 100
	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.NextMarketID(ctx)
			if err != nil {
				t.Errorf("next market id failed: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("market id %d assigned twice", id)
		}
		seen[id] = true
	}
	for i := uint64(0); i < n; i++ {
		if !seen[i] {
			t.Errorf("market id %d never assigned", i)
		}
	}

	reg, _ := s.GetRegistry(ctx)
	if reg.MarketCount != n {
		t.Errorf("expected market_count=%d, got %d", n, reg.MarketCount)
	}
}

func TestMemoryStore_ApplyBet_UpdatesPools(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateMarket(ctx, newMarket(0, 2))

	bet := &model.Bet{
		ID:           "bet-1",
		Bettor:       "alice",
		MarketID:     0,
		OutcomeIndex: 1,
		Amount:       d(500),
		PlacedAt:     time.Now(),
	}
	if err := s.ApplyBet(ctx, bet); err != nil {
		t.Fatalf("apply bet failed: %v", err)
	}

	m, _ := s.GetMarket(ctx, 0)
	if !m.OutcomePools[1].Equal(d(500)) {
		t.Errorf("expected pool[1]=500, got %s", m.OutcomePools[1])
	}
	if !m.OutcomePools[0].IsZero() {
		t.Errorf("expected pool[0]=0, got %s", m.OutcomePools[0])
	}
	if !m.TotalPool.Equal(d(500)) {
		t.Errorf("expected total_pool=500, got %s", m.TotalPool)
	}

	got, err := s.GetBet(ctx, "bet-1")
	if err != nil {
		t.Fatalf("get bet failed: %v", err)
	}
	if got.Claimed {
		t.Error("new bet must not be claimed")
	}
}

func TestMemoryStore_ApplyBet_ConcurrentNoLostUpdates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateMarket(ctx, newMarket(0, 3))

	const n = 60
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bet := &model.Bet{
				ID:           fmt.Sprintf("bet-%d", i),
				Bettor:       "bettor",
				MarketID:     0,
				OutcomeIndex: i % 3,
				Amount:       d(10),
				PlacedAt:     time.Now(),
			}
			if err := s.ApplyBet(ctx, bet); err != nil {
				t.Errorf("apply bet failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	m, _ := s.GetMarket(ctx, 0)
	sum := decimal.Zero
	for _, p := range m.OutcomePools {
		sum = sum.Add(p)
	}
	if !m.TotalPool.Equal(sum) {
		t.Errorf("total_pool %s != sum of pools %s", m.TotalPool, sum)
	}
	if !m.TotalPool.Equal(d(n * 10)) {
		t.Errorf("lost updates: expected total %d, got %s", n*10, m.TotalPool)
	}
}

func TestMemoryStore_ResolveMarket_Once(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateMarket(ctx, newMarket(0, 2))

	if err := s.ResolveMarket(ctx, 0, 1); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if err := s.ResolveMarket(ctx, 0, 0); err != ErrAlreadyResolved {
		t.Errorf("expected ErrAlreadyResolved, got %v", err)
	}

	m, _ := s.GetMarket(ctx, 0)
	if !m.Resolved || m.WinningOutcome == nil || *m.WinningOutcome != 1 {
		t.Errorf("resolution state wrong: resolved=%v winning=%v", m.Resolved, m.WinningOutcome)
	}
}

func TestMemoryStore_MarkClaimed_ExactlyOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateMarket(ctx, newMarket(0, 2))
	s.ApplyBet(ctx, &model.Bet{
		ID: "bet-1", Bettor: "alice", MarketID: 0, OutcomeIndex: 0,
		Amount: d(100), PlacedAt: time.Now(),
	})

	const n = 20
	var wg sync.WaitGroup
	successes := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.MarkClaimed(ctx, "bet-1"); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	var won int
	for range successes {
		won++
	}
	if won != 1 {
		t.Errorf("expected exactly one successful claim, got %d", won)
	}

	if err := s.MarkClaimed(ctx, "bet-1"); err != ErrAlreadyClaimed {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestMemoryStore_GetMarket_CopiesState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateMarket(ctx, newMarket(0, 2))

	m, _ := s.GetMarket(ctx, 0)
	m.OutcomePools[0] = d(999)
	m.Outcomes[0] = "tampered"

	fresh, _ := s.GetMarket(ctx, 0)
	if !fresh.OutcomePools[0].IsZero() {
		t.Error("pool mutation leaked into the store")
	}
	if fresh.Outcomes[0] == "tampered" {
		t.Error("outcome mutation leaked into the store")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetMarket(ctx, 7); err != ErrMarketNotFound {
		t.Errorf("expected ErrMarketNotFound, got %v", err)
	}
	if _, err := s.GetBet(ctx, "missing"); err != ErrBetNotFound {
		t.Errorf("expected ErrBetNotFound, got %v", err)
	}
	if err := s.MarkClaimed(ctx, "missing"); err != ErrBetNotFound {
		t.Errorf("expected ErrBetNotFound, got %v", err)
	}
	if err := s.ResolveMarket(ctx, 7, 0); err != ErrMarketNotFound {
		t.Errorf("expected ErrMarketNotFound, got %v", err)
	}
}
