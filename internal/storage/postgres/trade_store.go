package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	run_id, trade_id, profile_name, entry_date, exit_date,
	entry_cost, realized_pnl, exit_reason,
	legs, entry_prices, exit_prices, path
`

// InsertBulk adds multiple closed trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, runID string, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	if runID == "" {
		return storage.ErrInvalidInput
	}
	for _, t := range trades {
		if t == nil || t.TradeID == "" || !t.Closed {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trades (` + tradeColumns + `) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12
		)
	`

	for _, t := range trades {
		legs, err := encodeLegs(t.Legs)
		if err != nil {
			return err
		}
		path, err := encodePath(t.Path)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, query,
			runID, t.TradeID, t.ProfileName, t.EntryDate.Time(), t.ExitDate.Time(),
			t.EntryCost, t.RealizedPnL, t.ExitReason,
			legs, nonNil(t.EntryPrices), nonNil(t.ExitPrices), path,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by key. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, runID, tradeID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE run_id = $1 AND trade_id = $2`

	row := s.pool.QueryRow(ctx, query, runID, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByRun retrieves all trades of a run, ordered by (profile, entry_date, trade_id) ASC.
func (s *TradeStore) GetByRun(ctx context.Context, runID string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE run_id = $1
		ORDER BY profile_name COLLATE "C" ASC, entry_date ASC, trade_id COLLATE "C" ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trades by run: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByRunProfile retrieves trades of one profile, ordered by (entry_date, trade_id) ASC.
func (s *TradeStore) GetByRunProfile(ctx context.Context, runID, profile string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE run_id = $1 AND profile_name = $2
		ORDER BY entry_date ASC, trade_id COLLATE "C" ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, profile)
	if err != nil {
		return nil, fmt.Errorf("get trades by run/profile: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrade scans a single row into a closed Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var (
		t                 domain.Trade
		runID             string
		entryDate, exitDt time.Time
		legs, path        []byte
	)

	err := row.Scan(
		&runID, &t.TradeID, &t.ProfileName, &entryDate, &exitDt,
		&t.EntryCost, &t.RealizedPnL, &t.ExitReason,
		&legs, &t.EntryPrices, &t.ExitPrices, &path,
	)
	if err != nil {
		return nil, err
	}

	t.EntryDate = dates.FromTime(entryDate)
	t.ExitDate = dates.FromTime(exitDt)
	t.Closed = true

	if t.Legs, err = decodeLegs(legs); err != nil {
		return nil, err
	}
	if t.Path, err = decodePath(path); err != nil {
		return nil, err
	}

	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}

// nonNil maps a nil slice to an empty one for NOT NULL array columns.
func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
