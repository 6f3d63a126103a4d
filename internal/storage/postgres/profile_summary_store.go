package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rotation-engine/internal/domain"
	"rotation-engine/internal/storage"
)

// ProfileSummaryStore implements storage.ProfileSummaryStore using PostgreSQL.
type ProfileSummaryStore struct {
	pool *Pool
}

// NewProfileSummaryStore creates a new ProfileSummaryStore.
func NewProfileSummaryStore(pool *Pool) *ProfileSummaryStore {
	return &ProfileSummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProfileSummaryStore = (*ProfileSummaryStore)(nil)

const summaryColumns = `
	run_id, profile_name, total_trades, wins, losses, win_rate,
	total_pnl, mean_return_pct, median_return_pct, best_return_pct, worst_return_pct,
	mean_days_held, max_consecutive_losses, exit_reasons
`

// Insert adds a summary. Returns ErrDuplicateKey if (run_id, profile_name) exists.
func (s *ProfileSummaryStore) Insert(ctx context.Context, ps *domain.ProfileSummary) error {
	if ps == nil || ps.RunID == "" || ps.ProfileName == "" {
		return storage.ErrInvalidInput
	}

	reasons := ps.ExitReasons
	if reasons == nil {
		reasons = map[string]int{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("encode exit reasons: %w", err)
	}

	query := `
		INSERT INTO profile_summaries (` + summaryColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14
		)
	`

	_, err = s.pool.Exec(ctx, query,
		ps.RunID, ps.ProfileName, ps.TotalTrades, ps.Wins, ps.Losses, ps.WinRate,
		ps.TotalPnL, ps.MeanReturnPct, ps.MedianReturnPct, ps.BestReturnPct, ps.WorstReturnPct,
		ps.MeanDaysHeld, ps.MaxConsecutiveLosses, reasonsJSON,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert profile summary: %w", err)
	}
	return nil
}

// GetByRun retrieves all summaries of a run, ordered by profile_name ASC.
func (s *ProfileSummaryStore) GetByRun(ctx context.Context, runID string) ([]*domain.ProfileSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM profile_summaries
		WHERE run_id = $1
		ORDER BY profile_name COLLATE "C" ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get profile summaries by run: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// GetAll retrieves all summaries ordered by (run_id, profile_name) ASC.
func (s *ProfileSummaryStore) GetAll(ctx context.Context) ([]*domain.ProfileSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM profile_summaries
		ORDER BY run_id COLLATE "C" ASC, profile_name COLLATE "C" ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all profile summaries: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// scanSummaries scans multiple rows into a slice of ProfileSummary.
func scanSummaries(rows pgx.Rows) ([]*domain.ProfileSummary, error) {
	var result []*domain.ProfileSummary

	for rows.Next() {
		var ps domain.ProfileSummary
		var reasons []byte

		err := rows.Scan(
			&ps.RunID, &ps.ProfileName, &ps.TotalTrades, &ps.Wins, &ps.Losses, &ps.WinRate,
			&ps.TotalPnL, &ps.MeanReturnPct, &ps.MedianReturnPct, &ps.BestReturnPct, &ps.WorstReturnPct,
			&ps.MeanDaysHeld, &ps.MaxConsecutiveLosses, &reasons,
		)
		if err != nil {
			return nil, fmt.Errorf("scan profile summary row: %w", err)
		}

		if err := json.Unmarshal(reasons, &ps.ExitReasons); err != nil {
			return nil, fmt.Errorf("decode exit reasons: %w", err)
		}

		result = append(result, &ps)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile summary rows: %w", err)
	}

	return result, nil
}
