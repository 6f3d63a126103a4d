package domain

import (
	"fmt"

	"rotation-engine/internal/dates"
)

// DataError identifies an input row and field that cannot be simulated.
type DataError struct {
	Date   dates.Date
	Field  string
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("market data %s field %q: %s", e.Date, e.Field, e.Reason)
}

// DailyMarkSnapshot is one row of a trade's path.
type DailyMarkSnapshot struct {
	Day              int // 1-based, contiguous since entry
	Date             dates.Date
	UnrealizedPnL    float64            // same sign convention as realized P&L
	DTERemaining     int                // nearest leg DTE at Date
	LegMarks         []float64          // per-leg unit marks
	MarketConditions map[string]float64 // copy of the feature row
}

// DailyResult is one row of daily_results; exactly one per input row.
type DailyResult struct {
	Date          dates.Date
	RealizedPnL   float64 // cumulative realized P&L to date
	UnrealizedPnL float64 // open trade mark, 0 when flat
	TotalPnL      float64 // realized + unrealized
	DailyPnL      float64 // change in TotalPnL since the previous row
	TradeOpen     bool    // a trade is open at end of day
	TradeOpened   bool    // a trade was opened today
	TradeClosed   bool    // a trade was closed today
	OpenTradeID   string  // id of the trade open at end of day
}

// TradeSummary is one row of trade_summary.
// Corresponds to trades table in PostgreSQL.
type TradeSummary struct {
	RunID       string
	TradeID     string
	ProfileName string
	EntryDate   dates.Date
	ExitDate    dates.Date
	EntryCost   float64
	RealizedPnL float64
	ReturnPct   float64 // realized_pnl / |entry_cost|
	DaysHeld    int     // calendar days
	ExitReason  string
	LegCount    int
	PeakPnL     float64 // best path mark
	DaysToPeak  int     // path day of the best mark
}

// RunResult is the output of one simulator run for one profile.
type RunResult struct {
	ProfileName    string
	DailyResults   []DailyResult
	TradeSummary   []TradeSummary
	Trades         []*Trade // closed trades with full paths
	ToyPricedMarks int      // leg marks that fell back to toy pricing
}

// ProfileSummary holds per-profile aggregate totals.
// Corresponds to profile_summaries table in PostgreSQL.
type ProfileSummary struct {
	RunID                string
	ProfileName          string
	TotalTrades          int
	Wins                 int
	Losses               int
	WinRate              float64
	TotalPnL             float64
	MeanReturnPct        float64
	MedianReturnPct      float64
	BestReturnPct        float64
	WorstReturnPct       float64
	MeanDaysHeld         float64
	MaxConsecutiveLosses int
	ExitReasons          map[string]int
}
