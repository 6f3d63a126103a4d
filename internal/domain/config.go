package domain

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned for recognized but unimplemented options.
var ErrUnsupported = errors.New("unsupported option")

// ConfigError reports an invalid configuration field at construction time.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// ExitRules holds the optional P&L-fraction exit thresholds.
// Fractions are relative to |entry cost|; nil disables the rule.
type ExitRules struct {
	ProfitTargetTP1 *float64 // e.g. 0.5 = +50%
	ProfitTargetTP2 *float64 // must exceed TP1 when both set
	MaxLoss         *float64 // negative, e.g. -0.5 = -50%
}

// SimulationConfig is fixed for the duration of a run.
type SimulationConfig struct {
	DeltaHedgeEnabled bool // not simulated; must be false
	RollDTEThreshold  int  // exit when nearest leg DTE <= threshold; 0 disables
	MaxDaysInTrade    int  // exit when day since entry >= cap; 0 disables
	AllowToyPricing   bool // synthetic pricing fallback when no chain quote exists
	ToyVolatility     float64
	Exit              ExitRules
}

// DefaultToyVolatility is the annualized volatility assumed by toy pricing.
const DefaultToyVolatility = 0.20

// Validate fails fast on contradictory or unsupported settings.
func (c SimulationConfig) Validate() error {
	if c.DeltaHedgeEnabled {
		return fmt.Errorf("%w: %w", &ConfigError{Field: "delta_hedge_enabled", Reason: "delta hedging is not simulated"}, ErrUnsupported)
	}
	if c.RollDTEThreshold < 0 {
		return &ConfigError{Field: "roll_dte_threshold", Reason: "must be >= 0"}
	}
	if c.MaxDaysInTrade < 0 {
		return &ConfigError{Field: "max_days_in_trade", Reason: "must be >= 0"}
	}
	if c.RollDTEThreshold > 0 && c.MaxDaysInTrade > 0 && c.RollDTEThreshold > c.MaxDaysInTrade {
		return &ConfigError{
			Field:  "roll_dte_threshold",
			Reason: fmt.Sprintf("%d exceeds max_days_in_trade %d", c.RollDTEThreshold, c.MaxDaysInTrade),
		}
	}
	if c.ToyVolatility < 0 {
		return &ConfigError{Field: "toy_volatility", Reason: "must be >= 0"}
	}

	r := c.Exit
	if r.ProfitTargetTP1 != nil && !(*r.ProfitTargetTP1 > 0) {
		return &ConfigError{Field: "exit.tp1", Reason: "must be positive"}
	}
	if r.ProfitTargetTP2 != nil && !(*r.ProfitTargetTP2 > 0) {
		return &ConfigError{Field: "exit.tp2", Reason: "must be positive"}
	}
	if r.ProfitTargetTP1 != nil && r.ProfitTargetTP2 != nil && *r.ProfitTargetTP2 <= *r.ProfitTargetTP1 {
		return &ConfigError{Field: "exit.tp2", Reason: "must exceed tp1"}
	}
	if r.MaxLoss != nil && !(*r.MaxLoss < 0) {
		return &ConfigError{Field: "exit.max_loss", Reason: "must be negative"}
	}
	return nil
}

// EffectiveToyVolatility returns ToyVolatility or the default when unset.
func (c SimulationConfig) EffectiveToyVolatility() float64 {
	if c.ToyVolatility > 0 {
		return c.ToyVolatility
	}
	return DefaultToyVolatility
}
