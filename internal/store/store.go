// Package store defines the persistence interface for the settlement
// engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/paribet/market-engine/internal/model"
)

var (
	// ErrAlreadyInitialized is returned when the registry has already
	// been created. Initialization happens exactly once.
	ErrAlreadyInitialized = errors.New("store: registry already initialized")

	// ErrNotInitialized is returned when an operation requires the
	// registry before initialize has run.
	ErrNotInitialized = errors.New("store: registry not initialized")

	// ErrMarketNotFound is returned for lookups of unknown market IDs.
	ErrMarketNotFound = errors.New("store: market not found")

	// ErrBetNotFound is returned for lookups of unknown bet IDs.
	ErrBetNotFound = errors.New("store: bet not found")

	// ErrAlreadyResolved guards the one-time resolution transition.
	ErrAlreadyResolved = errors.New("store: market already resolved")

	// ErrAlreadyClaimed guards the one-time claim transition.
	ErrAlreadyClaimed = errors.New("store: bet already claimed")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. The one-time transitions
// (resolve, claim) and the market counter are enforced here with
// conditional updates so they stay exactly-once under concurrent callers,
// independent of any in-process locking above this layer.
type Store interface {
	// --- Registry operations ---

	// InitializeRegistry creates the one registry row. Fails with
	// ErrAlreadyInitialized on any call after the first.
	InitializeRegistry(ctx context.Context, authority string) error

	// GetRegistry returns the registry state.
	GetRegistry(ctx context.Context) (*model.Registry, error)

	// NextMarketID atomically returns the current market count and
	// increments it. Two concurrent calls never observe the same ID.
	NextMarketID(ctx context.Context) (uint64, error)

	// --- Market operations ---

	// CreateMarket persists a new market with zeroed pools.
	CreateMarket(ctx context.Context, market *model.Market) error

	// GetMarket retrieves a market by its ID.
	GetMarket(ctx context.Context, id uint64) (*model.Market, error)

	// ListMarkets returns all markets.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// ApplyBet records an accepted stake: inserts the bet entry and
	// increments the chosen outcome pool and the total pool as one
	// atomic unit.
	ApplyBet(ctx context.Context, bet *model.Bet) error

	// ResolveMarket sets resolved and the winning outcome exactly once.
	// Fails with ErrAlreadyResolved if the market is already resolved.
	ResolveMarket(ctx context.Context, id uint64, winningOutcome int) error

	// --- Bet operations ---

	// GetBet retrieves a bet entry by its ID.
	GetBet(ctx context.Context, id string) (*model.Bet, error)

	// MarkClaimed flips a bet's claimed flag exactly once. Fails with
	// ErrAlreadyClaimed if the flag is already set, so a second
	// concurrent settlement attempt is rejected, never double-paid.
	MarkClaimed(ctx context.Context, betID string) error
}
