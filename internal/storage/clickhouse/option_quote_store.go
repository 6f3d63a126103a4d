package clickhouse

import (
	"context"
	"fmt"
	"time"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/lookup"
	"rotation-engine/internal/storage"
)

// OptionQuoteStore implements storage.OptionQuoteStore using ClickHouse.
type OptionQuoteStore struct {
	conn *Conn
}

// NewOptionQuoteStore creates a new OptionQuoteStore.
func NewOptionQuoteStore(conn *Conn) *OptionQuoteStore {
	return &OptionQuoteStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OptionQuoteStore = (*OptionQuoteStore)(nil)

// InsertBulk adds multiple quotes. Fails entire batch on duplicate
// (symbol, date, expiry, strike, option_type).
func (s *OptionQuoteStore) InsertBulk(ctx context.Context, quotes []*domain.OptionQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol   string
		date     dates.Date
		contract lookup.ContractKey
	}
	seen := make(map[key]struct{})
	for _, q := range quotes {
		if q == nil || q.Symbol == "" || q.Date.IsZero() || !q.OptionType.Valid() {
			return storage.ErrInvalidInput
		}
		k := key{q.Symbol, q.Date, lookup.KeyOfQuote(q)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, q := range quotes {
		exists, err := s.exists(ctx, q)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO option_quotes (
			symbol, date, expiry, strike, option_type, bid, ask, mid
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, q := range quotes {
		err = batch.Append(
			q.Symbol, q.Date.Time(), q.Expiry.Time(),
			q.Strike, string(q.OptionType),
			q.Bid, q.Ask, q.Mid,
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

// GetRange retrieves quotes for a symbol quoted within [from, to] (inclusive),
// ordered by (date, expiry, strike, option_type) ASC.
func (s *OptionQuoteStore) GetRange(ctx context.Context, symbol string, from, to dates.Date) ([]*domain.OptionQuote, error) {
	query := `
		SELECT symbol, date, expiry, strike, option_type, bid, ask, mid
		FROM option_quotes
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, expiry ASC, strike ASC, option_type ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("query option quotes: %w", err)
	}
	defer rows.Close()

	return scanOptionQuotes(rows)
}

// exists checks if a quote with the same key exists. Strikes compare at
// the same milli precision used by lookup.ContractKey.
func (s *OptionQuoteStore) exists(ctx context.Context, q *domain.OptionQuote) (bool, error) {
	query := `
		SELECT count(*) FROM option_quotes
		WHERE symbol = ? AND date = ? AND expiry = ?
		  AND round(strike * 1000) = ? AND option_type = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query,
		q.Symbol, q.Date.Time(), q.Expiry.Time(),
		float64(lookup.KeyOfQuote(q).StrikeMilli), string(q.OptionType),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanOptionQuotes scans multiple rows.
func scanOptionQuotes(rows chRows) ([]*domain.OptionQuote, error) {
	var result []*domain.OptionQuote

	for rows.Next() {
		var q domain.OptionQuote
		var day, expiry time.Time
		var optionType string

		err := rows.Scan(
			&q.Symbol, &day, &expiry,
			&q.Strike, &optionType,
			&q.Bid, &q.Ask, &q.Mid,
		)
		if err != nil {
			return nil, fmt.Errorf("scan option quote: %w", err)
		}

		q.Date = dates.FromTime(day)
		q.Expiry = dates.FromTime(expiry)
		q.OptionType = domain.OptionType(optionType)
		result = append(result, &q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate option quotes: %w", err)
	}

	return result, nil
}
