package betting

import "errors"

// Sentinel errors for precondition failures. All checks run before any
// state mutation; an operation that returns one of these has committed
// nothing. One-time-transition guards (AlreadyInitialized,
// AlreadyResolved, AlreadyClaimed) live in the store package, and
// InsufficientFunds in the ledger package, since those layers enforce them.
var (
	// ErrUnauthorized is returned when the caller lacks the required
	// authority, or a claimant is not the bet's bettor.
	ErrUnauthorized = errors.New("betting: caller is not authorized")

	// ErrInvalidOutcomeSet is returned when a market is created with
	// fewer than MinOutcomes or more than MaxOutcomes outcomes.
	ErrInvalidOutcomeSet = errors.New("betting: market outcome set is invalid")

	// ErrInvalidParameters is returned for malformed creation or stake
	// parameters: empty/oversized question, non-future resolution time,
	// non-positive minimum bet, or a non-integral stake amount.
	ErrInvalidParameters = errors.New("betting: invalid parameters")

	// ErrMarketResolved rejects bets on a market that has been resolved.
	ErrMarketResolved = errors.New("betting: market is already resolved")

	// ErrMarketExpired rejects bets at or after the resolution deadline,
	// even if the market has not been formally resolved yet.
	ErrMarketExpired = errors.New("betting: betting period has ended")

	// ErrInvalidOutcome is returned for an outcome index that does not
	// point into the market's outcome set.
	ErrInvalidOutcome = errors.New("betting: invalid outcome index")

	// ErrInsufficientStake rejects bets below the market's minimum.
	ErrInsufficientStake = errors.New("betting: bet amount is below the market minimum")

	// ErrTooEarly rejects resolution before the resolution time.
	ErrTooEarly = errors.New("betting: too early to resolve market")

	// ErrNotResolved rejects settlement while the market is still open
	// or merely expired.
	ErrNotResolved = errors.New("betting: market is not resolved yet")

	// ErrNotAWinner rejects settlement of a bet on a losing outcome.
	// Losing bets have no claim path; they stay unclaimed forever.
	ErrNotAWinner = errors.New("betting: bet is on a losing outcome")
)
