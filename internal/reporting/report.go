package reporting

import (
	"time"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
)

// Report represents a backtest run report.
type Report struct {
	// Metadata
	GeneratedAt  time.Time
	RunID        string
	ProfileCount int

	// Data Summary
	DataSummary DataSummary

	// Profile Metrics (sorted by profile_name)
	ProfileMetrics []ProfileMetricRow

	// Exit reason breakdown (sorted by profile_name, reason)
	ExitReasons []ExitReasonRow

	// Closed trades (sorted by profile_name, entry_date, trade_id)
	Trades []domain.TradeSummary
}

// DataSummary contains data description.
type DataSummary struct {
	TotalTrades    int
	TotalPnL       float64
	FirstEntryDate dates.Date // zero when there are no trades
	LastExitDate   dates.Date
}

// ProfileMetricRow represents one row in the profile metrics table.
type ProfileMetricRow struct {
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
}

// ExitReasonRow counts exits of one reason for one profile.
type ExitReasonRow struct {
	ProfileName string
	Reason      string
	Count       int
	Share       float64 // count / profile total trades
}
