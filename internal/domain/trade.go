package domain

import (
	"fmt"

	"rotation-engine/internal/dates"
)

// Trade is an open or closed options position of one or more legs.
// Entry prices are aligned with Legs by index (leg identity = position).
//
// Sign convention: EntryCost > 0 is a net debit (cash paid), EntryCost < 0 is
// a net credit (cash received). Longs contribute +quantity*price, shorts
// contribute -|quantity|*price. Realized and unrealized P&L both use
// sum(quantity * (price_now - price_entry)).
type Trade struct {
	TradeID     string     // profile_YYYYMMDD_NNNN
	ProfileName string     // strategy profile that opened the trade
	EntryDate   dates.Date // canonical entry day
	Legs        []TradeLeg // definition order, never reordered
	EntryPrices []float64  // per-unit entry price per leg
	EntryCost   float64    // sum(quantity * entry price)

	// Path is appended once per marked day while the trade is open.
	Path []DailyMarkSnapshot

	// Exit (zero until closed)
	ExitDate    dates.Date
	ExitReason  string
	ExitPrices  []float64
	RealizedPnL float64
	Closed      bool
}

// Exit reason codes. DTE threshold reasons are formatted by DTEThresholdReason.
const (
	ExitReasonExpiry        = "expiry"
	ExitReasonMaxDays       = "max_days_in_trade"
	ExitReasonTP1           = "tp1"
	ExitReasonTP2           = "tp2"
	ExitReasonMaxLossStop   = "max_loss_stop"
	ExitReasonCondition     = "condition_exit"
	ExitReasonDataExhausted = "data_exhausted"
)

// DTEThresholdReason returns the exit reason for a roll trigger at n DTE.
func DTEThresholdReason(n int) string {
	return fmt.Sprintf("DTE threshold (%d DTE)", n)
}

// EntryCost computes the signed net cost of opening legs at prices.
func EntryCost(legs []TradeLeg, prices []float64) float64 {
	cost := 0.0
	for i, leg := range legs {
		cost += float64(leg.Quantity) * prices[i]
	}
	return cost
}

// PositionPnL computes sum(quantity * (current - entry)) over all legs.
// Used for both mark-to-market and realized P&L.
func PositionPnL(legs []TradeLeg, entry, current []float64) float64 {
	pnl := 0.0
	for i, leg := range legs {
		pnl += float64(leg.Quantity) * (current[i] - entry[i])
	}
	return pnl
}

// ReturnPct returns pnl as a fraction of |entryCost|, or 0 for a zero-cost trade.
func ReturnPct(pnl, entryCost float64) float64 {
	if entryCost == 0 {
		return 0
	}
	if entryCost < 0 {
		return pnl / -entryCost
	}
	return pnl / entryCost
}

// NearestDTE returns the smallest days-to-expiry across legs at date.
func (t *Trade) NearestDTE(date dates.Date) int {
	nearest := 0
	for i, leg := range t.Legs {
		dte := leg.DTE(date)
		if i == 0 || dte < nearest {
			nearest = dte
		}
	}
	return nearest
}

// Validate checks structural invariants of a freshly constructed trade.
func (t *Trade) Validate() error {
	if t.TradeID == "" {
		return fmt.Errorf("trade id is empty")
	}
	if t.EntryDate.IsZero() {
		return fmt.Errorf("trade %s: entry date is not set", t.TradeID)
	}
	if len(t.Legs) == 0 {
		return fmt.Errorf("trade %s: no legs", t.TradeID)
	}
	for i, leg := range t.Legs {
		if err := leg.Validate(t.EntryDate); err != nil {
			return fmt.Errorf("trade %s leg %d: %w", t.TradeID, i, err)
		}
	}
	if t.EntryPrices != nil && len(t.EntryPrices) != len(t.Legs) {
		return fmt.Errorf("trade %s: %d entry prices for %d legs", t.TradeID, len(t.EntryPrices), len(t.Legs))
	}
	return nil
}

// DaysHeld returns calendar days between entry and exit (0 while open).
func (t *Trade) DaysHeld() int {
	if !t.Closed {
		return 0
	}
	return t.EntryDate.DaysUntil(t.ExitDate)
}

// PeakPnL returns the highest mark in the path and the day it occurred.
// Returns (0, 0) for an empty path.
func (t *Trade) PeakPnL() (float64, int) {
	peak, day := 0.0, 0
	for i, snap := range t.Path {
		if i == 0 || snap.UnrealizedPnL > peak {
			peak, day = snap.UnrealizedPnL, snap.Day
		}
	}
	return peak, day
}

// Summary flattens a closed trade into its trade_summary row.
func (t *Trade) Summary() TradeSummary {
	peak, peakDay := t.PeakPnL()
	return TradeSummary{
		TradeID:     t.TradeID,
		ProfileName: t.ProfileName,
		EntryDate:   t.EntryDate,
		ExitDate:    t.ExitDate,
		EntryCost:   t.EntryCost,
		RealizedPnL: t.RealizedPnL,
		ReturnPct:   ReturnPct(t.RealizedPnL, t.EntryCost),
		DaysHeld:    t.DaysHeld(),
		ExitReason:  t.ExitReason,
		LegCount:    len(t.Legs),
		PeakPnL:     peak,
		DaysToPeak:  peakDay,
	}
}

// Clone returns a deep copy of t.
func (t *Trade) Clone() *Trade {
	c := *t
	c.Legs = append([]TradeLeg(nil), t.Legs...)
	c.EntryPrices = cloneFloats(t.EntryPrices)
	c.ExitPrices = cloneFloats(t.ExitPrices)
	if t.Path != nil {
		c.Path = make([]DailyMarkSnapshot, len(t.Path))
		for i, s := range t.Path {
			s.LegMarks = cloneFloats(s.LegMarks)
			if s.MarketConditions != nil {
				m := make(map[string]float64, len(s.MarketConditions))
				for k, v := range s.MarketConditions {
					m[k] = v
				}
				s.MarketConditions = m
			}
			c.Path[i] = s
		}
	}
	return &c
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v...)
}
