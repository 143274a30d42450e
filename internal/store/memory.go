package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/paribet/market-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	registry *model.Registry
	markets  map[uint64]*model.Market
	bets     map[string]*model.Bet
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets: make(map[uint64]*model.Market),
		bets:    make(map[string]*model.Bet),
	}
}

func (s *MemoryStore) InitializeRegistry(_ context.Context, authority string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry != nil {
		return ErrAlreadyInitialized
	}
	s.registry = &model.Registry{Authority: authority, MarketCount: 0}
	return nil
}

func (s *MemoryStore) GetRegistry(_ context.Context) (*model.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.registry == nil {
		return nil, ErrNotInitialized
	}
	reg := *s.registry
	return &reg, nil
}

func (s *MemoryStore) NextMarketID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry == nil {
		return 0, ErrNotInitialized
	}
	id := s.registry.MarketCount
	s.registry.MarketCount++
	return id, nil
}

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.markets[m.ID]; exists {
		return fmt.Errorf("market %d already exists", m.ID)
	}
	s.markets[m.ID] = copyMarket(m)
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id uint64) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, ErrMarketNotFound
	}
	return copyMarket(m), nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *copyMarket(m))
	}
	return markets, nil
}

func (s *MemoryStore) ApplyBet(_ context.Context, bet *model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[bet.MarketID]
	if !ok {
		return ErrMarketNotFound
	}
	if bet.OutcomeIndex < 0 || bet.OutcomeIndex >= len(m.OutcomePools) {
		return fmt.Errorf("outcome index %d out of range for market %d", bet.OutcomeIndex, bet.MarketID)
	}
	if _, exists := s.bets[bet.ID]; exists {
		return fmt.Errorf("bet %s already exists", bet.ID)
	}

	m.OutcomePools[bet.OutcomeIndex] = m.OutcomePools[bet.OutcomeIndex].Add(bet.Amount)
	m.TotalPool = m.TotalPool.Add(bet.Amount)

	stored := *bet
	s.bets[bet.ID] = &stored
	return nil
}

func (s *MemoryStore) ResolveMarket(_ context.Context, id uint64, winningOutcome int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return ErrMarketNotFound
	}
	if m.Resolved {
		return ErrAlreadyResolved
	}
	m.Resolved = true
	win := winningOutcome
	m.WinningOutcome = &win
	return nil
}

func (s *MemoryStore) GetBet(_ context.Context, id string) (*model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bets[id]
	if !ok {
		return nil, ErrBetNotFound
	}
	bet := *b
	return &bet, nil
}

func (s *MemoryStore) MarkClaimed(_ context.Context, betID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bets[betID]
	if !ok {
		return ErrBetNotFound
	}
	if b.Claimed {
		return ErrAlreadyClaimed
	}
	b.Claimed = true
	return nil
}

// copyMarket deep-copies a market so callers never share pool slices
// with stored state.
func copyMarket(m *model.Market) *model.Market {
	out := *m
	out.Outcomes = append([]string(nil), m.Outcomes...)
	out.OutcomePools = append([]decimal.Decimal(nil), m.OutcomePools...)
	if m.WinningOutcome != nil {
		win := *m.WinningOutcome
		out.WinningOutcome = &win
	}
	return &out
}
