package reporting

import (
	"context"
	"sort"
	"time"

	"rotation-engine/internal/artifact"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/metrics"
	"rotation-engine/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	tradeStore   storage.TradeStore
	summaryStore storage.ProfileSummaryStore
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(tradeStore storage.TradeStore, summaryStore storage.ProfileSummaryStore) *Generator {
	return &Generator{
		tradeStore:   tradeStore,
		summaryStore: summaryStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the report of one stored run.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	summaries, err := g.summaryStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	trades, err := g.tradeStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	// Runs persisted without summaries are summarized from their trades.
	if len(summaries) == 0 && len(trades) > 0 {
		summaries, err = metrics.NewAggregator(g.tradeStore, g.summaryStore).ComputeRun(ctx, runID)
		if err != nil {
			return nil, err
		}
	}

	rows := make([]domain.TradeSummary, len(trades))
	for i, t := range trades {
		rows[i] = t.Summary()
		rows[i].RunID = runID
	}

	return Build(runID, g.now(), summaries, rows), nil
}

// MixedRuns is the report run id when profiles carry different run ids.
const MixedRuns = "multiple"

// FromDocument produces a report from an artifact document.
func FromDocument(doc artifact.Document, now time.Time) (*Report, error) {
	var (
		runID     string
		summaries []*domain.ProfileSummary
		rows      []domain.TradeSummary
	)

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pr := doc[name]
		switch runID {
		case "", pr.RunID:
			runID = pr.RunID
		default:
			runID = MixedRuns
		}
		s := pr.Summary
		summaries = append(summaries, &domain.ProfileSummary{
			RunID:                pr.RunID,
			ProfileName:          name,
			TotalTrades:          s.TotalTrades,
			Wins:                 s.Wins,
			Losses:               s.Losses,
			WinRate:              s.WinRate,
			TotalPnL:             s.TotalPnL,
			MeanReturnPct:        s.MeanReturnPct,
			MedianReturnPct:      s.MedianReturnPct,
			BestReturnPct:        s.BestReturnPct,
			WorstReturnPct:       s.WorstReturnPct,
			MeanDaysHeld:         s.MeanDaysHeld,
			MaxConsecutiveLosses: s.MaxConsecutiveLosses,
			ExitReasons:          s.ExitReasons,
		})

		trades, err := pr.ToTrades()
		if err != nil {
			return nil, err
		}
		for _, t := range trades {
			row := t.Summary()
			row.RunID = pr.RunID
			rows = append(rows, row)
		}
	}

	return Build(runID, now, summaries, rows), nil
}

// Build assembles a Report from summaries and trade rows.
func Build(runID string, generatedAt time.Time, summaries []*domain.ProfileSummary, trades []domain.TradeSummary) *Report {
	r := &Report{
		GeneratedAt:  generatedAt,
		RunID:        runID,
		ProfileCount: len(summaries),
	}

	for _, s := range summaries {
		r.ProfileMetrics = append(r.ProfileMetrics, ProfileMetricRow{
			ProfileName:          s.ProfileName,
			TotalTrades:          s.TotalTrades,
			Wins:                 s.Wins,
			Losses:               s.Losses,
			WinRate:              s.WinRate,
			TotalPnL:             s.TotalPnL,
			MeanReturnPct:        s.MeanReturnPct,
			MedianReturnPct:      s.MedianReturnPct,
			BestReturnPct:        s.BestReturnPct,
			WorstReturnPct:       s.WorstReturnPct,
			MeanDaysHeld:         s.MeanDaysHeld,
			MaxConsecutiveLosses: s.MaxConsecutiveLosses,
		})
		for reason, count := range s.ExitReasons {
			share := 0.0
			if s.TotalTrades > 0 {
				share = float64(count) / float64(s.TotalTrades)
			}
			r.ExitReasons = append(r.ExitReasons, ExitReasonRow{
				ProfileName: s.ProfileName,
				Reason:      reason,
				Count:       count,
				Share:       share,
			})
		}
	}

	sort.Slice(r.ProfileMetrics, func(i, j int) bool {
		return r.ProfileMetrics[i].ProfileName < r.ProfileMetrics[j].ProfileName
	})
	sort.Slice(r.ExitReasons, func(i, j int) bool {
		a, b := r.ExitReasons[i], r.ExitReasons[j]
		if a.ProfileName != b.ProfileName {
			return a.ProfileName < b.ProfileName
		}
		return a.Reason < b.Reason
	})

	r.Trades = make([]domain.TradeSummary, len(trades))
	copy(r.Trades, trades)
	sortTradeRows(r.Trades)

	r.DataSummary.TotalTrades = len(r.Trades)
	for _, t := range r.Trades {
		r.DataSummary.TotalPnL += t.RealizedPnL
		if r.DataSummary.FirstEntryDate.IsZero() || t.EntryDate.Before(r.DataSummary.FirstEntryDate) {
			r.DataSummary.FirstEntryDate = t.EntryDate
		}
		if t.ExitDate.After(r.DataSummary.LastExitDate) {
			r.DataSummary.LastExitDate = t.ExitDate
		}
	}

	return r
}

func sortTradeRows(rows []domain.TradeSummary) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ProfileName != b.ProfileName {
			return a.ProfileName < b.ProfileName
		}
		if a.EntryDate != b.EntryDate {
			return a.EntryDate.Before(b.EntryDate)
		}
		return a.TradeID < b.TradeID
	})
}
