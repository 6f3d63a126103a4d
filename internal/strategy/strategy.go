package strategy

import (
	"rotation-engine/internal/domain"
	"rotation-engine/internal/exit"
)

// Profile is the callback contract the simulator drives for one strategy
// archetype.
type Profile interface {
	// Name returns the profile identifier used in trade ids.
	Name() string

	// ShouldEnter reports whether to open a trade on row.
	// Must return false whenever current is not nil.
	ShouldEnter(row *domain.MarketRow, current *domain.Trade) bool

	// Construct builds the legs of a new trade opened on row.
	// EntryPrices may be left nil for the simulator to price.
	Construct(row *domain.MarketRow, tradeID string) (*domain.Trade, error)

	// ConditionExit returns the condition-exit predicate, or nil.
	ConditionExit() exit.ConditionFunc
}

// StructureCustom labels profiles that are not built from a template.
const StructureCustom = "custom"

// StructureOf returns the template structure of p, or StructureCustom.
func StructureOf(p Profile) string {
	if t, ok := p.(*Template); ok {
		return t.Structure()
	}
	return StructureCustom
}

// FuncProfile adapts plain functions to Profile.
type FuncProfile struct {
	ProfileName string
	Entry       func(row *domain.MarketRow, current *domain.Trade) bool
	Constructor func(row *domain.MarketRow, tradeID string) (*domain.Trade, error)
	Condition   exit.ConditionFunc
}

// Name implements Profile.
func (p *FuncProfile) Name() string {
	return p.ProfileName
}

// ShouldEnter implements Profile. The single-position rule is enforced
// here even if Entry ignores current.
func (p *FuncProfile) ShouldEnter(row *domain.MarketRow, current *domain.Trade) bool {
	if current != nil || p.Entry == nil {
		return false
	}
	return p.Entry(row, current)
}

// Construct implements Profile.
func (p *FuncProfile) Construct(row *domain.MarketRow, tradeID string) (*domain.Trade, error) {
	if p.Constructor == nil {
		return nil, ErrMissingConstructor
	}
	return p.Constructor(row, tradeID)
}

// ConditionExit implements Profile.
func (p *FuncProfile) ConditionExit() exit.ConditionFunc {
	return p.Condition
}

// Ensure FuncProfile implements Profile
var _ Profile = (*FuncProfile)(nil)
