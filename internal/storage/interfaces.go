package storage

import (
	"context"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
)

// MarketDataStore provides access to market_rows storage.
type MarketDataStore interface {
	// InsertBulk adds multiple rows atomically. Fails entire batch on any
	// duplicate (symbol, date).
	InsertBulk(ctx context.Context, rows []*domain.MarketRow) error

	// GetRange retrieves rows for a symbol within [from, to] (inclusive),
	// ordered by date ASC.
	GetRange(ctx context.Context, symbol string, from, to dates.Date) ([]*domain.MarketRow, error)
}

// OptionQuoteStore provides access to option_quotes storage.
type OptionQuoteStore interface {
	// InsertBulk adds multiple quotes atomically. Fails entire batch on any
	// duplicate (symbol, date, expiry, strike, option_type).
	InsertBulk(ctx context.Context, quotes []*domain.OptionQuote) error

	// GetRange retrieves quotes for a symbol quoted within [from, to] (inclusive),
	// ordered by (date, expiry, strike, option_type) ASC.
	GetRange(ctx context.Context, symbol string, from, to dates.Date) ([]*domain.OptionQuote, error)
}

// TradeStore provides access to closed trades storage.
// Trades are keyed by (run_id, trade_id).
type TradeStore interface {
	// InsertBulk adds multiple closed trades of one run atomically.
	// Fails entire batch on any duplicate key.
	InsertBulk(ctx context.Context, runID string, trades []*domain.Trade) error

	// GetByID retrieves one trade. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID, tradeID string) (*domain.Trade, error)

	// GetByRun retrieves all trades of a run, ordered by (profile, entry_date, trade_id) ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.Trade, error)

	// GetByRunProfile retrieves trades of one profile in a run, ordered by
	// (entry_date, trade_id) ASC.
	GetByRunProfile(ctx context.Context, runID, profile string) ([]*domain.Trade, error)
}

// ProfileSummaryStore provides access to profile_summaries storage.
type ProfileSummaryStore interface {
	// Insert adds a summary. Returns ErrDuplicateKey if (run_id, profile_name) exists.
	Insert(ctx context.Context, s *domain.ProfileSummary) error

	// GetByRun retrieves all summaries of a run, ordered by profile_name ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.ProfileSummary, error)

	// GetAll retrieves all summaries ordered by (run_id, profile_name) ASC.
	GetAll(ctx context.Context) ([]*domain.ProfileSummary, error)
}
