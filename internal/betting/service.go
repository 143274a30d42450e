// Package betting provides the HTTP handlers and business logic for the
// pari-mutuel settlement engine: registry initialization, market creation,
// bet placement, resolution, and exactly-once payout claims.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Stakes are integral base units so settlement division is well defined.
package betting

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paribet/market-engine/internal/ledger"
	"github.com/paribet/market-engine/internal/metrics"
	"github.com/paribet/market-engine/internal/model"
	"github.com/paribet/market-engine/internal/pari"
	"github.com/paribet/market-engine/internal/store"
)

// Market shape limits, matching the on-chain account sizing this engine
// settles for.
const (
	MinOutcomes    = 2
	MaxOutcomes    = 10
	MaxQuestionLen = 200
)

// Service handles market operations. A mutex serializes mutating
// operations (single-instance); the store layer additionally enforces the
// one-time transitions with conditional updates, so exactly-once claims
// and resolutions do not depend on this lock alone.
type Service struct {
	store  store.Store
	ledger ledger.Ledger
	mu     sync.Mutex
	wsHub  *WSHub // optional WebSocket hub for event broadcasts
	now    func() time.Time
}

// NewService creates a new betting service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, led ledger.Ledger, hub *WSHub) *Service {
	return &Service{
		store:  st,
		ledger: led,
		wsHub:  hub,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service's time source. Tests use this to walk
// markets through the open → expired → resolved lifecycle.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// --- Request/Response types ---

// InitializeRequest is the JSON body for POST /initialize.
type InitializeRequest struct {
	Authority string `json:"authority"`
}

// CreateMarketRequest is the JSON body for market creation.
type CreateMarketRequest struct {
	Authority      string          `json:"authority"`
	Question       string          `json:"question"`
	Outcomes       []string        `json:"outcomes"`
	ResolutionTime time.Time       `json:"resolution_time"`
	MinBet         decimal.Decimal `json:"min_bet"`
}

// PlaceBetRequest is the JSON body for POST /markets/{marketID}/bets.
type PlaceBetRequest struct {
	Bettor       string          `json:"bettor"`
	OutcomeIndex int             `json:"outcome_index"`
	Amount       decimal.Decimal `json:"amount"`
}

// ResolveMarketRequest is the JSON body for POST /markets/{marketID}/resolve.
type ResolveMarketRequest struct {
	Authority           string `json:"authority"`
	WinningOutcomeIndex int    `json:"winning_outcome_index"`
}

// ClaimPayoutRequest is the JSON body for POST /bets/{betID}/claim.
type ClaimPayoutRequest struct {
	Bettor string `json:"bettor"`
}

// ClaimPayoutResponse is returned from a successful claim.
type ClaimPayoutResponse struct {
	BetID    string          `json:"bet_id"`
	Bettor   string          `json:"bettor"`
	MarketID uint64          `json:"market_id"`
	Stake    decimal.Decimal `json:"stake"`
	Payout   decimal.Decimal `json:"payout"`
}

// DepositRequest is the JSON body for the dev faucet.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BalanceResponse reports a ledger account balance.
type BalanceResponse struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

// --- HTTP Handlers ---

// Initialize handles POST /api/v1/initialize.
// Creates the registry exactly once for the platform's lifetime.
func (s *Service) Initialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Authority == "" {
		writeError(w, "authority is required", http.StatusBadRequest)
		return
	}

	if err := s.store.InitializeRegistry(r.Context(), req.Authority); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("registry initialized", "authority", req.Authority)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(model.Registry{Authority: req.Authority, MarketCount: 0})
}

// GetRegistry handles GET /api/v1/registry.
func (s *Service) GetRegistry(w http.ResponseWriter, r *http.Request) {
	reg, err := s.store.GetRegistry(r.Context())
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reg)
}

// CreateMarket handles POST /api/v1/markets.
// Authority-gated; allocates the next dense market ID from the registry.
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	reg, err := s.store.GetRegistry(ctx)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	if req.Authority != reg.Authority {
		writeError(w, ErrUnauthorized.Error(), statusFor(ErrUnauthorized))
		return
	}

	if len(req.Outcomes) < MinOutcomes || len(req.Outcomes) > MaxOutcomes {
		metrics.RejectedOperations.WithLabelValues("create_market").Inc()
		writeError(w, ErrInvalidOutcomeSet.Error(), statusFor(ErrInvalidOutcomeSet))
		return
	}
	if req.Question == "" || len(req.Question) > MaxQuestionLen ||
		!req.MinBet.IsPositive() || !req.MinBet.IsInteger() ||
		!req.ResolutionTime.After(s.now()) {
		metrics.RejectedOperations.WithLabelValues("create_market").Inc()
		writeError(w, ErrInvalidParameters.Error(), statusFor(ErrInvalidParameters))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.store.NextMarketID(ctx)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	pools := make([]decimal.Decimal, len(req.Outcomes))
	for i := range pools {
		pools[i] = decimal.Zero
	}

	market := &model.Market{
		ID:             id,
		Question:       req.Question,
		Outcomes:       req.Outcomes,
		OutcomePools:   pools,
		TotalPool:      decimal.Zero,
		MinBet:         req.MinBet,
		ResolutionTime: req.ResolutionTime.UTC(),
		Resolved:       false,
		CreatedAt:      s.now(),
	}

	if err := s.store.CreateMarket(ctx, market); err != nil {
		writeError(w, "failed to persist market", http.StatusInternalServerError)
		return
	}

	metrics.MarketsCreated.Inc()
	slog.Info("market created",
		"market_id", id,
		"question", req.Question,
		"outcomes", len(req.Outcomes),
		"min_bet", req.MinBet.String(),
		"resolution_time", market.ResolutionTime,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "market_created",
			MarketID: id,
			Question: req.Question,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(market)
}

// GetMarket handles GET /api/v1/markets/{marketID}.
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return
	}

	market, err := s.store.GetMarket(r.Context(), id)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(market)
}

// ListMarkets handles GET /api/v1/markets.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(markets)
}

// PlaceBet handles POST /api/v1/markets/{marketID}/bets.
// Moves the stake into the market's pool account and records the bet as
// one unit: a store failure refunds the transfer.
func (s *Service) PlaceBet(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return
	}

	var req PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Bettor == "" {
		writeError(w, "bettor is required", http.StatusBadRequest)
		return
	}
	if !req.Amount.IsPositive() || !req.Amount.IsInteger() {
		writeError(w, ErrInvalidParameters.Error(), statusFor(ErrInvalidParameters))
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	market, err := s.store.GetMarket(ctx, id)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	// Precondition checks, all before any mutation.
	if market.Resolved {
		metrics.RejectedOperations.WithLabelValues("place_bet").Inc()
		writeError(w, ErrMarketResolved.Error(), statusFor(ErrMarketResolved))
		return
	}
	if !s.now().Before(market.ResolutionTime) {
		metrics.RejectedOperations.WithLabelValues("place_bet").Inc()
		writeError(w, ErrMarketExpired.Error(), statusFor(ErrMarketExpired))
		return
	}
	if req.OutcomeIndex < 0 || req.OutcomeIndex >= len(market.Outcomes) {
		metrics.RejectedOperations.WithLabelValues("place_bet").Inc()
		writeError(w, ErrInvalidOutcome.Error(), statusFor(ErrInvalidOutcome))
		return
	}
	if req.Amount.LessThan(market.MinBet) {
		metrics.RejectedOperations.WithLabelValues("place_bet").Inc()
		writeError(w, ErrInsufficientStake.Error(), statusFor(ErrInsufficientStake))
		return
	}

	pool := model.PoolAccount(id)
	if err := s.ledger.Transfer(ctx, req.Bettor, pool, req.Amount); err != nil {
		metrics.RejectedOperations.WithLabelValues("place_bet").Inc()
		writeError(w, err.Error(), statusFor(err))
		return
	}

	bet := &model.Bet{
		ID:           uuid.New().String(),
		Bettor:       req.Bettor,
		MarketID:     id,
		OutcomeIndex: req.OutcomeIndex,
		Amount:       req.Amount,
		Claimed:      false,
		PlacedAt:     s.now(),
	}

	if err := s.store.ApplyBet(ctx, bet); err != nil {
		// The stake moved but the bet did not commit; give it back.
		if rerr := s.ledger.Transfer(ctx, pool, req.Bettor, req.Amount); rerr != nil {
			slog.Error("bet refund failed", "bet_id", bet.ID, "err", rerr)
		}
		writeError(w, "failed to record bet", http.StatusInternalServerError)
		return
	}

	marketLabel := strconv.FormatUint(id, 10)
	metrics.BetsTotal.WithLabelValues(marketLabel).Inc()
	metrics.StakeVolume.WithLabelValues(marketLabel).Add(req.Amount.InexactFloat64())

	slog.Info("bet placed",
		"bet_id", bet.ID,
		"market_id", id,
		"bettor", req.Bettor,
		"outcome_index", req.OutcomeIndex,
		"amount", req.Amount.String(),
	)

	if s.wsHub != nil {
		idx := req.OutcomeIndex
		s.wsHub.Broadcast(WSMessage{
			Type:         "bet_placed",
			MarketID:     id,
			BetID:        bet.ID,
			Bettor:       req.Bettor,
			OutcomeIndex: &idx,
			Amount:       req.Amount.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(bet)
}

// GetBet handles GET /api/v1/bets/{betID}.
func (s *Service) GetBet(w http.ResponseWriter, r *http.Request) {
	bet, err := s.store.GetBet(r.Context(), chi.URLParam(r, "betID"))
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bet)
}

// ResolveMarket handles POST /api/v1/markets/{marketID}/resolve.
// Authority-gated; sets the winning outcome exactly once. Irreversible —
// there is no re-resolution or dispute path.
func (s *Service) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return
	}

	var req ResolveMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	reg, err := s.store.GetRegistry(ctx)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	if req.Authority != reg.Authority {
		writeError(w, ErrUnauthorized.Error(), statusFor(ErrUnauthorized))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	market, err := s.store.GetMarket(ctx, id)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	if market.Resolved {
		metrics.RejectedOperations.WithLabelValues("resolve_market").Inc()
		writeError(w, store.ErrAlreadyResolved.Error(), statusFor(store.ErrAlreadyResolved))
		return
	}
	if s.now().Before(market.ResolutionTime) {
		metrics.RejectedOperations.WithLabelValues("resolve_market").Inc()
		writeError(w, ErrTooEarly.Error(), statusFor(ErrTooEarly))
		return
	}
	if req.WinningOutcomeIndex < 0 || req.WinningOutcomeIndex >= len(market.Outcomes) {
		metrics.RejectedOperations.WithLabelValues("resolve_market").Inc()
		writeError(w, ErrInvalidOutcome.Error(), statusFor(ErrInvalidOutcome))
		return
	}

	if err := s.store.ResolveMarket(ctx, id, req.WinningOutcomeIndex); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	metrics.MarketsResolved.Inc()
	slog.Info("market resolved",
		"market_id", id,
		"winning_outcome", req.WinningOutcomeIndex,
		"winning_label", market.Outcomes[req.WinningOutcomeIndex],
	)

	if s.wsHub != nil {
		idx := req.WinningOutcomeIndex
		s.wsHub.Broadcast(WSMessage{
			Type:           "market_resolved",
			MarketID:       id,
			OutcomeIndex:   &idx,
			WinningOutcome: market.Outcomes[req.WinningOutcomeIndex],
		})
	}

	market.Resolved = true
	market.WinningOutcome = &req.WinningOutcomeIndex

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(market)
}

// ClaimPayout handles POST /api/v1/bets/{betID}/claim.
// Pays a winning bet its pari-mutuel share of the whole pool, exactly once.
func (s *Service) ClaimPayout(w http.ResponseWriter, r *http.Request) {
	betID := chi.URLParam(r, "betID")

	var req ClaimPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	bet, err := s.store.GetBet(ctx, betID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	market, err := s.store.GetMarket(ctx, bet.MarketID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	// Precondition checks, in the settlement order: resolved, unclaimed,
	// owned by the caller, on the winning outcome.
	if !market.Resolved || market.WinningOutcome == nil {
		metrics.RejectedOperations.WithLabelValues("claim_payout").Inc()
		writeError(w, ErrNotResolved.Error(), statusFor(ErrNotResolved))
		return
	}
	if bet.Claimed {
		metrics.RejectedOperations.WithLabelValues("claim_payout").Inc()
		writeError(w, store.ErrAlreadyClaimed.Error(), statusFor(store.ErrAlreadyClaimed))
		return
	}
	if bet.Bettor != req.Bettor {
		metrics.RejectedOperations.WithLabelValues("claim_payout").Inc()
		writeError(w, ErrUnauthorized.Error(), statusFor(ErrUnauthorized))
		return
	}
	win := *market.WinningOutcome
	if bet.OutcomeIndex != win {
		metrics.RejectedOperations.WithLabelValues("claim_payout").Inc()
		writeError(w, ErrNotAWinner.Error(), statusFor(ErrNotAWinner))
		return
	}

	// The bet backs the winning outcome, so its stake is part of the
	// winning pool and the divisor is necessarily positive.
	payout, err := pari.Payout(bet.Amount, market.TotalPool, market.OutcomePools[win])
	if err != nil {
		slog.Error("settlement invariant violated", "bet_id", betID, "err", err)
		writeError(w, "settlement failed", http.StatusInternalServerError)
		return
	}

	pool := model.PoolAccount(bet.MarketID)
	if err := s.ledger.Transfer(ctx, pool, bet.Bettor, payout); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	if err := s.store.MarkClaimed(ctx, betID); err != nil {
		// The payout moved but the claim did not commit; take it back.
		if rerr := s.ledger.Transfer(ctx, bet.Bettor, pool, payout); rerr != nil {
			slog.Error("payout rollback failed", "bet_id", betID, "err", rerr)
		}
		writeError(w, err.Error(), statusFor(err))
		return
	}

	metrics.PayoutsTotal.Inc()
	metrics.PayoutVolume.Add(payout.InexactFloat64())

	slog.Info("payout claimed",
		"bet_id", betID,
		"market_id", bet.MarketID,
		"bettor", bet.Bettor,
		"stake", bet.Amount.String(),
		"payout", payout.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "payout_claimed",
			MarketID: bet.MarketID,
			BetID:    betID,
			Bettor:   bet.Bettor,
			Payout:   payout.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ClaimPayoutResponse{
		BetID:    betID,
		Bettor:   bet.Bettor,
		MarketID: bet.MarketID,
		Stake:    bet.Amount,
		Payout:   payout,
	})
}

// Deposit handles POST /api/v1/accounts/{accountID}/deposit — the dev
// faucet that funds bettor accounts.
func (s *Service) Deposit(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "accountID")

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Amount.IsPositive() || !req.Amount.IsInteger() {
		writeError(w, ErrInvalidParameters.Error(), statusFor(ErrInvalidParameters))
		return
	}

	ctx := r.Context()
	if err := s.ledger.Deposit(ctx, account, req.Amount); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	balance, err := s.ledger.Balance(ctx, account)
	if err != nil {
		writeError(w, "failed to read balance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BalanceResponse{Account: account, Balance: balance})
}

// GetBalance handles GET /api/v1/accounts/{accountID}.
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "accountID")

	balance, err := s.ledger.Balance(r.Context(), account)
	if err != nil {
		writeError(w, "failed to read balance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BalanceResponse{Account: account, Balance: balance})
}

// --- Helpers ---

func marketIDParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "marketID"), 10, 64)
}

// statusFor maps domain errors to HTTP status codes: malformed input is
// 400, authority failures 403, unknown entities 404, and lifecycle or
// one-time-transition violations 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidOutcomeSet),
		errors.Is(err, ErrInvalidParameters),
		errors.Is(err, ErrInvalidOutcome),
		errors.Is(err, ErrInsufficientStake),
		errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, store.ErrMarketNotFound),
		errors.Is(err, store.ErrBetNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyInitialized),
		errors.Is(err, store.ErrNotInitialized),
		errors.Is(err, store.ErrAlreadyResolved),
		errors.Is(err, store.ErrAlreadyClaimed),
		errors.Is(err, ErrMarketResolved),
		errors.Is(err, ErrMarketExpired),
		errors.Is(err, ErrTooEarly),
		errors.Is(err, ErrNotResolved),
		errors.Is(err, ErrNotAWinner),
		errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
