package strategy

import (
	"fmt"
	"slices"

	"rotation-engine/internal/domain"
)

// Rule is a compiled domain.RuleConfig.
type Rule struct {
	column    string
	cmp       func(v, threshold float64) bool
	threshold float64
	regimes   []string
}

// NewRule validates cfg and compiles its operator.
func NewRule(cfg domain.RuleConfig) (*Rule, error) {
	r := &Rule{
		column:    cfg.Column,
		threshold: cfg.Threshold,
		regimes:   slices.Clone(cfg.Regimes),
	}

	if cfg.Column == "" {
		if len(cfg.Regimes) == 0 {
			return nil, ErrEmptyRule
		}
		return r, nil
	}

	switch cfg.Op {
	case domain.OpGT:
		r.cmp = func(v, t float64) bool { return v > t }
	case domain.OpGTE:
		r.cmp = func(v, t float64) bool { return v >= t }
	case domain.OpLT:
		r.cmp = func(v, t float64) bool { return v < t }
	case domain.OpLTE:
		r.cmp = func(v, t float64) bool { return v <= t }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, cfg.Op)
	}
	return r, nil
}

// Match reports whether row satisfies the rule. A missing or non-finite
// column never matches.
func (r *Rule) Match(row *domain.MarketRow) bool {
	if row == nil {
		return false
	}
	if len(r.regimes) > 0 && !slices.Contains(r.regimes, row.Regime) {
		return false
	}
	if r.column == "" {
		return true
	}
	v, ok := row.Value(r.column)
	if !ok {
		return false
	}
	return r.cmp(v, r.threshold)
}
