package metrics

import (
	"sort"

	"rotation-engine/internal/domain"
)

// ComputeProfileSummary aggregates closed-trade rows of one profile.
// Trades are sorted by EntryDate ASC, TradeID ASC before computing
// order-dependent metrics (MaxConsecutiveLosses).
// A trade is a win when realized P&L > 0; everything else is a loss.
func ComputeProfileSummary(profile string, trades []domain.TradeSummary) *domain.ProfileSummary {
	n := len(trades)
	summary := &domain.ProfileSummary{
		ProfileName: profile,
		ExitReasons: make(map[string]int),
	}
	if n == 0 {
		return summary
	}

	// Sort trades deterministically by EntryDate ASC, TradeID ASC
	sorted := make([]domain.TradeSummary, n)
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntryDate != sorted[j].EntryDate {
			return sorted[i].EntryDate.Before(sorted[j].EntryDate)
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	wins := 0
	totalPnL := 0.0
	returns := make([]float64, n)
	held := make([]float64, n)
	for i, t := range sorted {
		if t.RealizedPnL > 0 {
			wins++
		}
		totalPnL += t.RealizedPnL
		returns[i] = t.ReturnPct
		held[i] = float64(t.DaysHeld)
		summary.ExitReasons[t.ExitReason]++
	}

	sortedReturns := make([]float64, n)
	copy(sortedReturns, returns)
	sort.Float64s(sortedReturns)

	summary.TotalTrades = n
	summary.Wins = wins
	summary.Losses = n - wins
	summary.WinRate = computeWinRate(wins, n)
	summary.TotalPnL = totalPnL
	summary.MeanReturnPct = computeMean(returns)
	summary.MedianReturnPct = computePercentile(sortedReturns, 0.50)
	summary.WorstReturnPct = sortedReturns[0]
	summary.BestReturnPct = sortedReturns[n-1]
	summary.MeanDaysHeld = computeMean(held)
	summary.MaxConsecutiveLosses = computeMaxConsecutiveLosses(sorted)

	return summary
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxConsecutiveLosses finds longest streak of realized P&L <= 0.
// Trades must be in chronological order.
func computeMaxConsecutiveLosses(trades []domain.TradeSummary) int {
	maxStreak := 0
	currentStreak := 0

	for _, t := range trades {
		if t.RealizedPnL <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
