package verification

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"rotation-engine/internal/domain"
)

// ErrInvariant is wrapped by every CheckRun failure.
var ErrInvariant = errors.New("run invariant violated")

// CheckRun asserts the structural invariants of one simulator result
// over rows input rows:
//   - one daily row per input row
//   - every trade closed, with a summary row and a unique id
//   - open intervals do not overlap
//   - entry cost and realized P&L follow the sign convention
//   - paths are contiguous and end at the realized P&L
//   - final cumulative realized P&L equals the sum over trades
//
// All violations are returned joined.
func CheckRun(rows int, res *domain.RunResult) error {
	if res == nil {
		return fmt.Errorf("%w: nil result", ErrInvariant)
	}
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvariant}, args...)...))
	}

	if len(res.DailyResults) != rows {
		fail("%d daily rows for %d input rows", len(res.DailyResults), rows)
	}
	if len(res.TradeSummary) != len(res.Trades) {
		fail("%d summary rows for %d trades", len(res.TradeSummary), len(res.Trades))
	}

	ids := make(map[string]struct{}, len(res.Trades))
	total := 0.0
	for _, t := range res.Trades {
		if _, dup := ids[t.TradeID]; dup {
			fail("duplicate trade id %s", t.TradeID)
		}
		ids[t.TradeID] = struct{}{}
		total += t.RealizedPnL
		checkTrade(t, fail)
	}

	trades := append([]*domain.Trade(nil), res.Trades...)
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].EntryDate.Before(trades[j].EntryDate)
	})
	for i := 1; i < len(trades); i++ {
		if trades[i].EntryDate.Before(trades[i-1].ExitDate) {
			fail("trade %s opened %s before %s closed %s",
				trades[i].TradeID, trades[i].EntryDate, trades[i-1].TradeID, trades[i-1].ExitDate)
		}
	}

	if n := len(res.DailyResults); n > 0 {
		last := res.DailyResults[n-1]
		if last.TradeOpen {
			fail("trade %s still open after the last row", last.OpenTradeID)
		}
		if !floatEquals(last.RealizedPnL, total) {
			fail("final realized P&L %.8f, trades sum to %.8f", last.RealizedPnL, total)
		}
	}
	for _, d := range res.DailyResults {
		if math.IsNaN(d.TotalPnL) || math.IsInf(d.TotalPnL, 0) {
			fail("non-finite total P&L on %s", d.Date)
		}
	}

	return errors.Join(errs...)
}

func checkTrade(t *domain.Trade, fail func(string, ...interface{})) {
	if !t.Closed || t.ExitReason == "" || t.ExitDate.IsZero() {
		fail("trade %s is not closed", t.TradeID)
		return
	}
	if t.ExitDate.Before(t.EntryDate) {
		fail("trade %s exits %s before entry %s", t.TradeID, t.ExitDate, t.EntryDate)
	}
	if len(t.EntryPrices) != len(t.Legs) || len(t.ExitPrices) != len(t.Legs) {
		fail("trade %s has %d legs, %d entry and %d exit prices",
			t.TradeID, len(t.Legs), len(t.EntryPrices), len(t.ExitPrices))
		return
	}
	if cost := domain.EntryCost(t.Legs, t.EntryPrices); !floatEquals(cost, t.EntryCost) {
		fail("trade %s entry cost %.8f, legs give %.8f", t.TradeID, t.EntryCost, cost)
	}
	if pnl := domain.PositionPnL(t.Legs, t.EntryPrices, t.ExitPrices); !floatEquals(pnl, t.RealizedPnL) {
		fail("trade %s realized P&L %.8f, legs give %.8f", t.TradeID, t.RealizedPnL, pnl)
	}

	for i, s := range t.Path {
		if s.Day != i+1 {
			fail("trade %s path day %d at index %d", t.TradeID, s.Day, i)
			return
		}
	}
	if n := len(t.Path); n > 0 {
		last := t.Path[n-1]
		if last.Date != t.ExitDate {
			fail("trade %s path ends %s, exit %s", t.TradeID, last.Date, t.ExitDate)
		}
		if !floatEquals(last.UnrealizedPnL, t.RealizedPnL) {
			fail("trade %s last mark %.8f, realized %.8f", t.TradeID, last.UnrealizedPnL, t.RealizedPnL)
		}
	}
}
