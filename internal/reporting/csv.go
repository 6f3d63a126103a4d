package reporting

import (
	"fmt"
	"strings"

	"rotation-engine/internal/domain"
)

// RenderTradeSummaryCSV renders closed-trade rows as CSV string.
func RenderTradeSummaryCSV(rows []domain.TradeSummary) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,profile,entry_date,exit_date,entry_cost,realized_pnl,return_pct,")
	sb.WriteString("days_held,exit_reason,peak_pnl,days_to_peak\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.6f,%.6f,%.6f,%d,%s,%.6f,%d\n",
			r.TradeID,
			r.ProfileName,
			r.EntryDate,
			r.ExitDate,
			r.EntryCost,
			r.RealizedPnL,
			r.ReturnPct,
			r.DaysHeld,
			csvField(r.ExitReason),
			r.PeakPnL,
			r.DaysToPeak,
		))
	}

	return sb.String()
}

// RenderDailyResultsCSV renders daily result rows as CSV string.
func RenderDailyResultsCSV(rows []domain.DailyResult) string {
	var sb strings.Builder

	sb.WriteString("date,realized_pnl,unrealized_pnl,total_pnl,daily_pnl,trade_open,trade_opened,trade_closed,open_trade_id\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%.6f,%.6f,%t,%t,%t,%s\n",
			r.Date,
			r.RealizedPnL,
			r.UnrealizedPnL,
			r.TotalPnL,
			r.DailyPnL,
			r.TradeOpen,
			r.TradeOpened,
			r.TradeClosed,
			r.OpenTradeID,
		))
	}

	return sb.String()
}

// RenderProfileCSV renders profile metrics as CSV string.
func RenderProfileCSV(rows []ProfileMetricRow) string {
	var sb strings.Builder

	sb.WriteString("profile,total_trades,wins,losses,win_rate,total_pnl,mean_return_pct,median_return_pct,")
	sb.WriteString("best_return_pct,worst_return_pct,mean_days_held,max_consecutive_losses\n")

	for _, m := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.2f,%d\n",
			m.ProfileName,
			m.TotalTrades,
			m.Wins,
			m.Losses,
			m.WinRate,
			m.TotalPnL,
			m.MeanReturnPct,
			m.MedianReturnPct,
			m.BestReturnPct,
			m.WorstReturnPct,
			m.MeanDaysHeld,
			m.MaxConsecutiveLosses,
		))
	}

	return sb.String()
}

// csvField quotes values containing a comma, quote or newline.
func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
