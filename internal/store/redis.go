package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paribet/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for market and bet lookups. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back to the
// primary. Registry operations pass through — the counter must always be
// read from the source of truth.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Registry passthrough ---

func (s *CachedStore) InitializeRegistry(ctx context.Context, authority string) error {
	return s.primary.InitializeRegistry(ctx, authority)
}

func (s *CachedStore) GetRegistry(ctx context.Context) (*model.Registry, error) {
	return s.primary.GetRegistry(ctx)
}

func (s *CachedStore) NextMarketID(ctx context.Context) (uint64, error) {
	return s.primary.NextMarketID(ctx)
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) ApplyBet(ctx context.Context, bet *model.Bet) error {
	if err := s.primary.ApplyBet(ctx, bet); err != nil {
		return err
	}
	// Invalidate; next read re-populates with the new pools.
	s.rdb.Del(ctx, marketKey(bet.MarketID), betKey(bet.ID))
	return nil
}

func (s *CachedStore) ResolveMarket(ctx context.Context, id uint64, winningOutcome int) error {
	if err := s.primary.ResolveMarket(ctx, id, winningOutcome); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketKey(id))
	return nil
}

func (s *CachedStore) MarkClaimed(ctx context.Context, betID string) error {
	if err := s.primary.MarkClaimed(ctx, betID); err != nil {
		return err
	}
	s.rdb.Del(ctx, betKey(betID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id uint64) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) GetBet(ctx context.Context, id string) (*model.Bet, error) {
	data, err := s.rdb.Get(ctx, betKey(id)).Bytes()
	if err == nil {
		var b model.Bet
		if json.Unmarshal(data, &b) == nil {
			return &b, nil
		}
	}

	b, err := s.primary.GetBet(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(b); err == nil {
		s.rdb.Set(ctx, betKey(id), data, s.ttl)
	}
	return b, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
	}
}

func marketKey(id uint64) string { return fmt.Sprintf("market:%d", id) }
func betKey(id string) string    { return fmt.Sprintf("bet:%s", id) }
