// Package verification checks simulator output: run invariants on a
// result, and replayed trades against stored ones.
package verification

import (
	"fmt"
	"math"

	"rotation-engine/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s: stored %v, replayed %v", d.Field, d.Expected, d.Actual)
}

// VerificationResult contains the result of verifying a single trade.
type VerificationResult struct {
	TradeID     string            // verified trade ID
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
	StoredPnL   float64           // realized P&L of the stored trade
	ReplayedPnL float64           // realized P&L of the replayed trade
}

// CompareTrades compares two closed trades and returns divergences.
// Uses FloatTolerance for float64 comparisons. Leg marks and market
// conditions of the path are not compared.
func CompareTrades(stored, replayed *domain.Trade) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	// Identity
	if stored.TradeID != replayed.TradeID {
		add("TradeID", stored.TradeID, replayed.TradeID)
	}
	if stored.ProfileName != replayed.ProfileName {
		add("ProfileName", stored.ProfileName, replayed.ProfileName)
	}

	// Entry
	if stored.EntryDate != replayed.EntryDate {
		add("EntryDate", stored.EntryDate, replayed.EntryDate)
	}
	if len(stored.Legs) != len(replayed.Legs) {
		add("Legs", len(stored.Legs), len(replayed.Legs))
	} else {
		for i := range stored.Legs {
			s, r := stored.Legs[i], replayed.Legs[i]
			if s.OptionType != r.OptionType || s.Quantity != r.Quantity || s.Expiry != r.Expiry || !floatEquals(s.Strike, r.Strike) {
				add(fmt.Sprintf("Legs[%d]", i), s.String(), r.String())
			}
		}
	}
	if !floatSliceEquals(stored.EntryPrices, replayed.EntryPrices) {
		add("EntryPrices", stored.EntryPrices, replayed.EntryPrices)
	}
	if !floatEquals(stored.EntryCost, replayed.EntryCost) {
		add("EntryCost", stored.EntryCost, replayed.EntryCost)
	}

	// Exit
	if stored.ExitDate != replayed.ExitDate {
		add("ExitDate", stored.ExitDate, replayed.ExitDate)
	}
	if stored.ExitReason != replayed.ExitReason {
		add("ExitReason", stored.ExitReason, replayed.ExitReason)
	}
	if !floatSliceEquals(stored.ExitPrices, replayed.ExitPrices) {
		add("ExitPrices", stored.ExitPrices, replayed.ExitPrices)
	}
	if !floatEquals(stored.RealizedPnL, replayed.RealizedPnL) {
		add("RealizedPnL", stored.RealizedPnL, replayed.RealizedPnL)
	}

	// Path
	if len(stored.Path) != len(replayed.Path) {
		add("Path", len(stored.Path), len(replayed.Path))
		return divergences
	}
	for i := range stored.Path {
		s, r := stored.Path[i], replayed.Path[i]
		field := fmt.Sprintf("Path[%d]", i)
		switch {
		case s.Day != r.Day:
			add(field+".Day", s.Day, r.Day)
		case s.Date != r.Date:
			add(field+".Date", s.Date, r.Date)
		case s.DTERemaining != r.DTERemaining:
			add(field+".DTERemaining", s.DTERemaining, r.DTERemaining)
		case !floatEquals(s.UnrealizedPnL, r.UnrealizedPnL):
			add(field+".UnrealizedPnL", s.UnrealizedPnL, r.UnrealizedPnL)
		}
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

// floatSliceEquals compares element-wise; nil and empty are equal.
func floatSliceEquals(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !floatEquals(a[i], b[i]) {
			return false
		}
	}
	return true
}
