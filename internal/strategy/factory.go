package strategy

import (
	"errors"

	"rotation-engine/internal/domain"
)

// Factory errors
var (
	ErrUnknownStructure    = errors.New("unknown profile structure")
	ErrMissingName         = errors.New("profile requires Name")
	ErrInvalidTargetDTE    = errors.New("profile requires TargetDTE > 0")
	ErrMissingStrikeOffset = errors.New("short_strangle/spreads require StrikeOffset > 0")
	ErrInvalidStrikeOffset = errors.New("strike offset must be in [0, 1)")
	ErrInvalidQuantity     = errors.New("quantity must be >= 0")
	ErrInvalidStrikeStep   = errors.New("strike step must be >= 0")
	ErrUnknownOperator     = errors.New("unknown rule operator")
	ErrEmptyRule           = errors.New("rule requires Column or Regimes")
	ErrMissingConstructor  = errors.New("profile has no trade constructor")
	ErrDegenerateStrikes   = errors.New("legs of the same type share a strike")
)

// Defaults applied by FromConfig.
const (
	DefaultStrikeStep = 1.0
	DefaultQuantity   = 1
)

// FromConfig creates a Profile from domain.ProfileConfig.
// Validates required parameters per structure.
func FromConfig(cfg domain.ProfileConfig) (Profile, error) {
	if cfg.Name == "" {
		return nil, ErrMissingName
	}
	if cfg.TargetDTE <= 0 {
		return nil, ErrInvalidTargetDTE
	}
	if cfg.StrikeOffset < 0 || cfg.StrikeOffset >= 1 {
		return nil, ErrInvalidStrikeOffset
	}
	if cfg.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if cfg.StrikeStep < 0 {
		return nil, ErrInvalidStrikeStep
	}

	switch cfg.Structure {
	case domain.StructureLongStraddle, domain.StructureLongCall, domain.StructureLongPut:
	case domain.StructureShortStrangle, domain.StructureCallDebitSpread, domain.StructurePutCreditSpread:
		if cfg.StrikeOffset == 0 {
			return nil, ErrMissingStrikeOffset
		}
	default:
		return nil, ErrUnknownStructure
	}

	entry, err := compileRule(cfg.Entry)
	if err != nil {
		return nil, err
	}
	condition, err := compileRule(cfg.ConditionExit)
	if err != nil {
		return nil, err
	}

	step := cfg.StrikeStep
	if step == 0 {
		step = DefaultStrikeStep
	}
	qty := cfg.Quantity
	if qty == 0 {
		qty = DefaultQuantity
	}

	return NewTemplate(cfg.Name, cfg.Structure, cfg.TargetDTE, cfg.StrikeOffset, step, qty, entry, condition), nil
}

// compileRule returns nil for a nil config.
func compileRule(cfg *domain.RuleConfig) (*Rule, error) {
	if cfg == nil {
		return nil, nil
	}
	return NewRule(*cfg)
}
