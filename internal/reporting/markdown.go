package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Profiles: %d\n\n", r.RunID, r.ProfileCount))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.DataSummary.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Total Realized P&L | %.4f |\n", r.DataSummary.TotalPnL))
	if !r.DataSummary.FirstEntryDate.IsZero() {
		sb.WriteString(fmt.Sprintf("| First Entry | %s |\n", r.DataSummary.FirstEntryDate))
		sb.WriteString(fmt.Sprintf("| Last Exit | %s |\n", r.DataSummary.LastExitDate))
	}
	sb.WriteString("\n")

	// Profile Metrics
	sb.WriteString("## Profile Metrics\n\n")
	if len(r.ProfileMetrics) > 0 {
		sb.WriteString("| Profile | Trades | Wins | Losses | WinRate | TotalPnL | MeanRet | MedianRet | Best | Worst | AvgHeld | MaxLossStreak |\n")
		sb.WriteString("|---------|--------|------|--------|---------|----------|---------|-----------|------|-------|---------|---------------|\n")
		for _, m := range r.ProfileMetrics {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.1f | %d |\n",
				m.ProfileName, m.TotalTrades, m.Wins, m.Losses, m.WinRate, m.TotalPnL,
				m.MeanReturnPct, m.MedianReturnPct, m.BestReturnPct, m.WorstReturnPct,
				m.MeanDaysHeld, m.MaxConsecutiveLosses))
		}
	} else {
		sb.WriteString("No profile metrics available.\n")
	}
	sb.WriteString("\n")

	// Exit Reasons
	sb.WriteString("## Exit Reasons\n\n")
	if len(r.ExitReasons) > 0 {
		sb.WriteString("| Profile | Reason | Count | Share |\n")
		sb.WriteString("|---------|--------|-------|-------|\n")
		for _, e := range r.ExitReasons {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.1f%% |\n", e.ProfileName, e.Reason, e.Count, e.Share*100))
		}
	} else {
		sb.WriteString("No exits recorded.\n")
	}
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Trade | Entry | Exit | Cost | P&L | Return | Held | Reason |\n")
		sb.WriteString("|-------|-------|------|------|-----|--------|------|--------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.2f | %.2f | %.2f%% | %d | %s |\n",
				t.TradeID, t.EntryDate, t.ExitDate, t.EntryCost, t.RealizedPnL, t.ReturnPct*100, t.DaysHeld, t.ExitReason))
		}
	} else {
		sb.WriteString("No trades.\n")
	}

	return sb.String()
}
