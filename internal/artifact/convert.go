package artifact

import (
	"fmt"

	"rotation-engine/internal/domain"
)

// FromRunResult builds the ProfileResult of one run. summary may be nil for
// an empty summary block. Daily rows are included when withDaily is set.
func FromRunResult(res *domain.RunResult, summary *domain.ProfileSummary, runID, digest string, withDaily bool) *ProfileResult {
	pr := &ProfileResult{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		Digest:        digest,
		Trades:        make([]TradeDoc, 0, len(res.Trades)),
	}

	for _, t := range res.Trades {
		pr.Trades = append(pr.Trades, FromTrade(t))
	}

	if summary != nil {
		pr.Summary = FromSummary(summary)
	} else {
		pr.Summary.ExitReasons = map[string]int{}
	}

	if withDaily {
		pr.Daily = make([]DailyDoc, len(res.DailyResults))
		for i, d := range res.DailyResults {
			pr.Daily[i] = DailyDoc{
				Date:          d.Date,
				RealizedPnL:   d.RealizedPnL,
				UnrealizedPnL: d.UnrealizedPnL,
				TotalPnL:      d.TotalPnL,
				DailyPnL:      d.DailyPnL,
				TradeOpen:     d.TradeOpen,
				OpenTradeID:   d.OpenTradeID,
			}
		}
	}

	return pr
}

// FromTrade converts a closed trade.
func FromTrade(t *domain.Trade) TradeDoc {
	s := t.Summary()

	legs := make([]LegDoc, len(t.Legs))
	for i, l := range t.Legs {
		legs[i] = LegDoc{
			Strike:              l.Strike,
			Expiry:              l.Expiry,
			OptionType:          string(l.OptionType),
			Quantity:            l.Quantity,
			DaysToExpiryAtEntry: l.DaysToExpiryAtEntry,
		}
	}

	path := make([]PathDoc, len(t.Path))
	for i, p := range t.Path {
		path[i] = PathDoc{
			Day:              p.Day,
			Date:             p.Date,
			MTMPnL:           p.UnrealizedPnL,
			DTERemaining:     p.DTERemaining,
			MarketConditions: p.MarketConditions,
		}
	}

	return TradeDoc{
		TradeID: t.TradeID,
		Profile: t.ProfileName,
		Entry: EntryDoc{
			EntryDate:   t.EntryDate,
			EntryCost:   t.EntryCost,
			Legs:        legs,
			EntryPrices: t.EntryPrices,
		},
		Exit: ExitDoc{
			ExitDate:    t.ExitDate,
			ExitPrices:  t.ExitPrices,
			RealizedPnL: t.RealizedPnL,
			DaysHeld:    s.DaysHeld,
			ReturnPct:   s.ReturnPct,
		},
		ExitReason: t.ExitReason,
		Path:       path,
		PeakPnL:    s.PeakPnL,
		DaysToPeak: s.DaysToPeak,
	}
}

// FromSummary converts a profile summary.
func FromSummary(s *domain.ProfileSummary) SummaryDoc {
	reasons := s.ExitReasons
	if reasons == nil {
		reasons = map[string]int{}
	}
	return SummaryDoc{
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
		ExitReasons:          reasons,
	}
}

// ToTrade converts a persisted trade back into a closed domain.Trade.
// Leg marks are not persisted, so path snapshots carry none.
func (d TradeDoc) ToTrade() (*domain.Trade, error) {
	legs := make([]domain.TradeLeg, len(d.Entry.Legs))
	for i, l := range d.Entry.Legs {
		typ, err := domain.ParseOptionType(l.OptionType)
		if err != nil {
			return nil, fmt.Errorf("trade %s leg %d: %w", d.TradeID, i, err)
		}
		legs[i] = domain.TradeLeg{
			Strike:              l.Strike,
			Expiry:              l.Expiry,
			OptionType:          typ,
			Quantity:            l.Quantity,
			DaysToExpiryAtEntry: l.DaysToExpiryAtEntry,
		}
	}

	path := make([]domain.DailyMarkSnapshot, len(d.Path))
	for i, p := range d.Path {
		path[i] = domain.DailyMarkSnapshot{
			Day:              p.Day,
			Date:             p.Date,
			UnrealizedPnL:    p.MTMPnL,
			DTERemaining:     p.DTERemaining,
			MarketConditions: p.MarketConditions,
		}
	}

	return &domain.Trade{
		TradeID:     d.TradeID,
		ProfileName: d.Profile,
		EntryDate:   d.Entry.EntryDate,
		Legs:        legs,
		EntryPrices: d.Entry.EntryPrices,
		EntryCost:   d.Entry.EntryCost,
		Path:        path,
		ExitDate:    d.Exit.ExitDate,
		ExitReason:  d.ExitReason,
		ExitPrices:  d.Exit.ExitPrices,
		RealizedPnL: d.Exit.RealizedPnL,
		Closed:      true,
	}, nil
}

// ToTrades converts every trade of the profile result.
func (pr *ProfileResult) ToTrades() ([]*domain.Trade, error) {
	out := make([]*domain.Trade, 0, len(pr.Trades))
	for _, d := range pr.Trades {
		t, err := d.ToTrade()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
