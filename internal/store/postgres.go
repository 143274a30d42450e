package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/paribet/market-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// see schema.sql for the table definitions.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InitializeRegistry(ctx context.Context, authority string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO global_state (id, authority, market_count)
		 VALUES (1, $1, 0)
		 ON CONFLICT (id) DO NOTHING`,
		authority)
	if err != nil {
		return fmt.Errorf("initialize registry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyInitialized
	}
	return nil
}

func (s *PostgresStore) GetRegistry(ctx context.Context) (*model.Registry, error) {
	var reg model.Registry
	err := s.pool.QueryRow(ctx,
		`SELECT authority, market_count FROM global_state WHERE id = 1`).
		Scan(&reg.Authority, &reg.MarketCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}
	return &reg, nil
}

func (s *PostgresStore) NextMarketID(ctx context.Context) (uint64, error) {
	// Increment-and-read in one statement: the row lock serializes
	// concurrent creations, so no two callers see the same ID.
	var id uint64
	err := s.pool.QueryRow(ctx,
		`UPDATE global_state SET market_count = market_count + 1
		 WHERE id = 1
		 RETURNING market_count - 1`).
		Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotInitialized
	}
	if err != nil {
		return 0, fmt.Errorf("next market id: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	pools := make([]string, len(m.OutcomePools))
	for i, p := range m.OutcomePools {
		pools[i] = p.String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (market_id, question, outcomes, outcome_pools, total_pool,
		                      min_bet, resolution_time, resolved, winning_outcome, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC[], $5::NUMERIC, $6::NUMERIC, $7, $8, $9, $10)`,
		m.ID, m.Question, m.Outcomes, pools,
		m.TotalPool.String(), m.MinBet.String(),
		m.ResolutionTime, m.Resolved, m.WinningOutcome, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create market %d: %w", m.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetMarket(ctx context.Context, id uint64) (*model.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT market_id, question, outcomes,
		        outcome_pools::TEXT[], total_pool::TEXT, min_bet::TEXT,
		        resolution_time, resolved, winning_outcome, created_at
		 FROM markets WHERE market_id = $1`, id)

	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMarketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get market %d: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, question, outcomes,
		        outcome_pools::TEXT[], total_pool::TEXT, min_bet::TEXT,
		        resolution_time, resolved, winning_outcome, created_at
		 FROM markets ORDER BY market_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) ApplyBet(ctx context.Context, bet *model.Bet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("apply bet begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Postgres arrays are 1-indexed.
	tag, err := tx.Exec(ctx,
		`UPDATE markets
		 SET outcome_pools[$2] = outcome_pools[$2] + $3::NUMERIC,
		     total_pool = total_pool + $3::NUMERIC
		 WHERE market_id = $1`,
		bet.MarketID, bet.OutcomeIndex+1, bet.Amount.String())
	if err != nil {
		return fmt.Errorf("apply bet pools %d: %w", bet.MarketID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMarketNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO bets (bet_id, bettor, market_id, outcome_index, amount, claimed, placed_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`,
		bet.ID, bet.Bettor, bet.MarketID, bet.OutcomeIndex,
		bet.Amount.String(), bet.Claimed, bet.PlacedAt)
	if err != nil {
		return fmt.Errorf("apply bet insert %s: %w", bet.ID, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ResolveMarket(ctx context.Context, id uint64, winningOutcome int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET resolved = TRUE, winning_outcome = $2
		 WHERE market_id = $1 AND resolved = FALSE`,
		id, winningOutcome)
	if err != nil {
		return fmt.Errorf("resolve market %d: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: missing market or a lost race against another resolver.
	var resolved bool
	err = s.pool.QueryRow(ctx,
		`SELECT resolved FROM markets WHERE market_id = $1`, id).Scan(&resolved)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrMarketNotFound
	}
	if err != nil {
		return fmt.Errorf("resolve market %d: %w", id, err)
	}
	return ErrAlreadyResolved
}

func (s *PostgresStore) GetBet(ctx context.Context, id string) (*model.Bet, error) {
	var b model.Bet
	var amountS string

	err := s.pool.QueryRow(ctx,
		`SELECT bet_id, bettor, market_id, outcome_index, amount::TEXT, claimed, placed_at
		 FROM bets WHERE bet_id = $1`, id).
		Scan(&b.ID, &b.Bettor, &b.MarketID, &b.OutcomeIndex, &amountS, &b.Claimed, &b.PlacedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bet %s: %w", id, err)
	}

	b.Amount, err = decimal.NewFromString(amountS)
	if err != nil {
		return nil, fmt.Errorf("get bet %s: %w", id, err)
	}
	return &b, nil
}

func (s *PostgresStore) MarkClaimed(ctx context.Context, betID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bets SET claimed = TRUE
		 WHERE bet_id = $1 AND claimed = FALSE`,
		betID)
	if err != nil {
		return fmt.Errorf("mark claimed %s: %w", betID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var claimed bool
	err = s.pool.QueryRow(ctx,
		`SELECT claimed FROM bets WHERE bet_id = $1`, betID).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrBetNotFound
	}
	if err != nil {
		return fmt.Errorf("mark claimed %s: %w", betID, err)
	}
	return ErrAlreadyClaimed
}

// pgxRow covers pgx.Row and pgx.Rows for shared scanning.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanMarket(row pgxRow) (*model.Market, error) {
	var m model.Market
	var poolsS []string
	var totalS, minBetS string

	if err := row.Scan(&m.ID, &m.Question, &m.Outcomes,
		&poolsS, &totalS, &minBetS,
		&m.ResolutionTime, &m.Resolved, &m.WinningOutcome, &m.CreatedAt); err != nil {
		return nil, err
	}

	m.OutcomePools = make([]decimal.Decimal, len(poolsS))
	for i, p := range poolsS {
		d, err := decimal.NewFromString(p)
		if err != nil {
			return nil, fmt.Errorf("market %d pool %d: %w", m.ID, i, err)
		}
		m.OutcomePools[i] = d
	}

	var err error
	if m.TotalPool, err = decimal.NewFromString(totalS); err != nil {
		return nil, fmt.Errorf("market %d total pool: %w", m.ID, err)
	}
	if m.MinBet, err = decimal.NewFromString(minBetS); err != nil {
		return nil, fmt.Errorf("market %d min bet: %w", m.ID, err)
	}
	return &m, nil
}
