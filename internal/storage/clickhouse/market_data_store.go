package clickhouse

import (
	"context"
	"fmt"
	"time"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/storage"
)

// MarketDataStore implements storage.MarketDataStore using ClickHouse.
type MarketDataStore struct {
	conn *Conn
}

// NewMarketDataStore creates a new MarketDataStore.
func NewMarketDataStore(conn *Conn) *MarketDataStore {
	return &MarketDataStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MarketDataStore = (*MarketDataStore)(nil)

// InsertBulk adds multiple rows. Fails entire batch on duplicate (symbol, date).
func (s *MarketDataStore) InsertBulk(ctx context.Context, rows []*domain.MarketRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol string
		date   dates.Date
	}
	seen := make(map[key]struct{})
	for _, r := range rows {
		if r == nil || r.Symbol == "" || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{r.Symbol, r.Date}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, r := range rows {
		exists, err := s.exists(ctx, r.Symbol, r.Date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_rows (
			symbol, date, open, high, low, close, volume, regime, features
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		features := r.Features
		if features == nil {
			features = map[string]float64{}
		}
		err = batch.Append(
			r.Symbol, r.Date.Time(),
			r.Open, r.High, r.Low, r.Close, r.Volume,
			r.Regime, features,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRange retrieves rows for a symbol within [from, to] (inclusive), ordered by date ASC.
func (s *MarketDataStore) GetRange(ctx context.Context, symbol string, from, to dates.Date) ([]*domain.MarketRow, error) {
	query := `
		SELECT symbol, date, open, high, low, close, volume, regime, features
		FROM market_rows
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("query market rows: %w", err)
	}
	defer rows.Close()

	return scanMarketRows(rows)
}

// exists checks if a row with the given key exists.
func (s *MarketDataStore) exists(ctx context.Context, symbol string, date dates.Date) (bool, error) {
	query := `
		SELECT count(*) FROM market_rows
		WHERE symbol = ? AND date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, date.Time()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanMarketRows scans multiple rows.
func scanMarketRows(rows chRows) ([]*domain.MarketRow, error) {
	var result []*domain.MarketRow

	for rows.Next() {
		var r domain.MarketRow
		var day time.Time
		var features map[string]float64

		err := rows.Scan(
			&r.Symbol, &day,
			&r.Open, &r.High, &r.Low, &r.Close, &r.Volume,
			&r.Regime, &features,
		)
		if err != nil {
			return nil, fmt.Errorf("scan market row: %w", err)
		}

		r.Date = dates.FromTime(day)
		if len(features) > 0 {
			r.Features = features
		}
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market rows: %w", err)
	}

	return result, nil
}
