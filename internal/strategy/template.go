package strategy

import (
	"fmt"
	"math"
	"time"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/exit"
)

// Template is a configured option structure: it enters on its entry rule
// and builds legs around the row's close.
type Template struct {
	name         string
	structure    string
	targetDTE    int
	strikeOffset float64
	strikeStep   float64
	quantity     int
	entry        *Rule
	condition    *Rule
}

// NewTemplate creates a Template. Parameters are assumed validated by FromConfig.
func NewTemplate(name, structure string, targetDTE int, strikeOffset, strikeStep float64, quantity int, entry, condition *Rule) *Template {
	return &Template{
		name:         name,
		structure:    structure,
		targetDTE:    targetDTE,
		strikeOffset: strikeOffset,
		strikeStep:   strikeStep,
		quantity:     quantity,
		entry:        entry,
		condition:    condition,
	}
}

// Name implements Profile.
func (t *Template) Name() string {
	return t.name
}

// Structure returns the structure constant of the template.
func (t *Template) Structure() string {
	return t.structure
}

// ShouldEnter implements Profile.
func (t *Template) ShouldEnter(row *domain.MarketRow, current *domain.Trade) bool {
	if current != nil {
		return false
	}
	if t.entry == nil {
		return true
	}
	return t.entry.Match(row)
}

// ConditionExit implements Profile.
func (t *Template) ConditionExit() exit.ConditionFunc {
	if t.condition == nil {
		return nil
	}
	return t.condition.Match
}

// Construct implements Profile. Legs are centered on the row's close.
func (t *Template) Construct(row *domain.MarketRow, tradeID string) (*domain.Trade, error) {
	spot, ok := row.Value(domain.ColumnClose)
	if !ok || spot <= 0 {
		return nil, &domain.DataError{Date: row.Date, Field: domain.ColumnClose, Reason: "spot is required to place strikes"}
	}

	expiry := ExpiryFor(row.Date, t.targetDTE)
	atm := t.roundStrike(spot)
	upper := t.roundStrike(spot * (1 + t.strikeOffset))
	lower := t.roundStrike(spot * (1 - t.strikeOffset))
	q := t.quantity

	leg := func(strike float64, typ domain.OptionType, qty int) domain.TradeLeg {
		return domain.TradeLeg{
			Strike:              strike,
			Expiry:              expiry,
			OptionType:          typ,
			Quantity:            qty,
			DaysToExpiryAtEntry: row.Date.DaysUntil(expiry),
		}
	}

	var legs []domain.TradeLeg
	switch t.structure {
	case domain.StructureLongStraddle:
		legs = []domain.TradeLeg{leg(atm, domain.OptionCall, q), leg(atm, domain.OptionPut, q)}
	case domain.StructureShortStrangle:
		legs = []domain.TradeLeg{leg(upper, domain.OptionCall, -q), leg(lower, domain.OptionPut, -q)}
	case domain.StructureLongCall:
		legs = []domain.TradeLeg{leg(upper, domain.OptionCall, q)}
	case domain.StructureLongPut:
		legs = []domain.TradeLeg{leg(lower, domain.OptionPut, q)}
	case domain.StructureCallDebitSpread:
		legs = []domain.TradeLeg{leg(atm, domain.OptionCall, q), leg(upper, domain.OptionCall, -q)}
	case domain.StructurePutCreditSpread:
		legs = []domain.TradeLeg{leg(atm, domain.OptionPut, -q), leg(lower, domain.OptionPut, q)}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStructure, t.structure)
	}

	if err := checkDistinctStrikes(legs); err != nil {
		return nil, fmt.Errorf("%s on %s: %w", t.name, row.Date, err)
	}

	return &domain.Trade{
		TradeID:     tradeID,
		ProfileName: t.name,
		EntryDate:   row.Date,
		Legs:        legs,
	}, nil
}

func (t *Template) roundStrike(v float64) float64 {
	return math.Round(v/t.strikeStep) * t.strikeStep
}

// checkDistinctStrikes rejects spreads whose wings rounded onto the same strike.
func checkDistinctStrikes(legs []domain.TradeLeg) error {
	for i := 0; i < len(legs); i++ {
		for j := i + 1; j < len(legs); j++ {
			if legs[i].OptionType == legs[j].OptionType && legs[i].Strike == legs[j].Strike {
				return ErrDegenerateStrikes
			}
		}
	}
	return nil
}

// ExpiryFor returns the first Friday at least targetDTE days after date.
func ExpiryFor(date dates.Date, targetDTE int) dates.Date {
	d := date.AddDays(targetDTE)
	shift := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	return d.AddDays(shift)
}

// Ensure Template implements Profile
var _ Profile = (*Template)(nil)
