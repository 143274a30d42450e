// Package model defines the core domain types shared across the settlement
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Registry is the process-wide platform state. There is exactly one row:
// the platform authority and a strictly increasing market counter that
// assigns dense market identifiers 0..MarketCount-1.
type Registry struct {
	Authority   string `json:"authority" db:"authority"`
	MarketCount uint64 `json:"market_count" db:"market_count"`
}

// Market is a single pari-mutuel betting pool over a fixed set of mutually
// exclusive outcomes. Question, outcomes, minimum stake, and resolution
// time are immutable after creation; only the pools grow (via accepted
// bets) until resolution flips the market into its terminal state.
// Invariant: TotalPool equals the sum of OutcomePools at all times.
type Market struct {
	ID             uint64            `json:"market_id" db:"market_id"`
	Question       string            `json:"question" db:"question"`
	Outcomes       []string          `json:"outcomes" db:"outcomes"`
	OutcomePools   []decimal.Decimal `json:"outcome_pools" db:"outcome_pools"`
	TotalPool      decimal.Decimal   `json:"total_pool" db:"total_pool"`
	MinBet         decimal.Decimal   `json:"min_bet" db:"min_bet"`
	ResolutionTime time.Time         `json:"resolution_time" db:"resolution_time"`
	Resolved       bool              `json:"resolved" db:"resolved"`
	WinningOutcome *int              `json:"winning_outcome,omitempty" db:"winning_outcome"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

// Bet is one bettor's stake on one outcome of one market — the unit of
// payout accounting. It holds a non-owning reference to its market; a
// market never enumerates its bets. A bet is mutated exactly once, to
// Claimed=true, during settlement, and never otherwise.
type Bet struct {
	ID           string          `json:"bet_id" db:"bet_id"`
	Bettor       string          `json:"bettor" db:"bettor"`
	MarketID     uint64          `json:"market_id" db:"market_id"`
	OutcomeIndex int             `json:"outcome_index" db:"outcome_index"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Claimed      bool            `json:"claimed" db:"claimed"`
	PlacedAt     time.Time       `json:"placed_at" db:"placed_at"`
}

// PoolAccount returns the ledger account that custodies a market's
// pooled stakes.
func PoolAccount(marketID uint64) string {
	return fmt.Sprintf("market-pool:%d", marketID)
}
