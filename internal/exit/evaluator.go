// Package exit decides, once per marked day, whether an open trade closes.
package exit

import (
	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
)

// ConditionFunc is a caller-supplied exit predicate over the day's row.
// Thresholds live with the caller, never in the evaluator.
type ConditionFunc func(row *domain.MarketRow) bool

// State is the open trade as seen on one marked day.
type State struct {
	Day           int        // 1-based days since entry
	Date          dates.Date // marked day
	NearestDTE    int        // smallest leg DTE at Date
	UnrealizedPnL float64    // mark-to-market P&L
	EntryCost     float64    // signed entry cost
}

// PnLFraction returns UnrealizedPnL / |EntryCost|.
// ok is false for a zero-cost trade, which disables percentage rules.
func (s State) PnLFraction() (float64, bool) {
	if s.EntryCost == 0 {
		return 0, false
	}
	return domain.ReturnPct(s.UnrealizedPnL, s.EntryCost), true
}

// Decision is the evaluator's verdict for one day.
type Decision struct {
	Exit   bool
	Reason string
}

// Hold is the no-exit decision.
var Hold = Decision{}

func exitWith(reason string) Decision {
	return Decision{Exit: true, Reason: reason}
}

// Evaluator applies exit rules in a fixed priority order.
// First matching rule wins:
//  1. expiry          any leg DTE <= 0
//  2. DTE threshold   nearest DTE <= roll threshold
//  3. max days        day >= max_days_in_trade
//  4. profit target   tp2 checked before tp1
//  5. stop loss       pnl fraction <= max loss
//  6. condition       caller predicate
type Evaluator struct {
	cfg  domain.SimulationConfig
	cond ConditionFunc
}

// NewEvaluator creates an Evaluator. cond may be nil.
func NewEvaluator(cfg domain.SimulationConfig, cond ConditionFunc) *Evaluator {
	return &Evaluator{cfg: cfg, cond: cond}
}

// Evaluate returns the exit decision for state on row's day.
func (e *Evaluator) Evaluate(state State, row *domain.MarketRow) Decision {
	if state.NearestDTE <= 0 {
		return exitWith(domain.ExitReasonExpiry)
	}

	if n := e.cfg.RollDTEThreshold; n > 0 && state.NearestDTE <= n {
		return exitWith(domain.DTEThresholdReason(n))
	}

	if n := e.cfg.MaxDaysInTrade; n > 0 && state.Day >= n {
		return exitWith(domain.ExitReasonMaxDays)
	}

	if frac, ok := state.PnLFraction(); ok {
		rules := e.cfg.Exit
		if rules.ProfitTargetTP2 != nil && frac >= *rules.ProfitTargetTP2 {
			return exitWith(domain.ExitReasonTP2)
		}
		if rules.ProfitTargetTP1 != nil && frac >= *rules.ProfitTargetTP1 {
			return exitWith(domain.ExitReasonTP1)
		}
		if rules.MaxLoss != nil && frac <= *rules.MaxLoss {
			return exitWith(domain.ExitReasonMaxLossStop)
		}
	}

	if e.cond != nil && row != nil && e.cond(row) {
		return exitWith(domain.ExitReasonCondition)
	}

	return Hold
}
