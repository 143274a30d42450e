// Package pari implements the pari-mutuel settlement rule for betting
// markets with a finite set of mutually exclusive outcomes.
//
// Under pari-mutuel settlement all stakes are pooled and winners split the
// entire pool — losing stakes included — in proportion to their share of
// the winning-outcome pool:
//
//	payout = stake * totalPool / winningPool
//
// All monetary values use shopspring/decimal — never float64 for money.
// Stakes are integral base units, and division truncates toward zero, so
// each market retains a remainder bounded by the number of winning bets.
// The multiply-before-divide is exact: decimal coefficients are big.Int
// backed, so the product cannot overflow regardless of stake size.
package pari

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoWinningStake is returned when the winning-outcome pool is not
// positive. A caller that has already verified the stake belongs to the
// winning outcome can never hit this: the stake itself is part of the
// winning pool. Surfacing it as an error keeps an invariant breach loud
// instead of silently paying zero.
var ErrNoWinningStake = errors.New("pari: winning pool is empty")

// Payout computes the settlement amount owed to a single winning stake.
//
// Preconditions: stake > 0, stake has already been verified to back the
// winning outcome (which implies winningPool >= stake), and totalPool is
// the market's full pool at resolution. The quotient is truncated toward
// zero to whole base units.
func Payout(stake, totalPool, winningPool decimal.Decimal) (decimal.Decimal, error) {
	if winningPool.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrNoWinningStake
	}
	q, _ := stake.Mul(totalPool).QuoRem(winningPool, 0)
	return q, nil
}
