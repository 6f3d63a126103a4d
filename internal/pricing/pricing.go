package pricing

import (
	"errors"
	"fmt"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
)

// ErrPricingUnavailable is returned when a leg has no chain quote and
// toy pricing is disabled.
var ErrPricingUnavailable = errors.New("pricing unavailable")

// UnavailableError locates the leg and day that could not be priced.
type UnavailableError struct {
	TradeID string
	Leg     domain.TradeLeg
	Date    dates.Date
	Cause   error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("no price for leg %s on %s", e.Leg, e.Date)
	if e.TradeID != "" {
		msg = fmt.Sprintf("trade %s: %s", e.TradeID, msg)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap lets errors.Is match ErrPricingUnavailable.
func (e *UnavailableError) Unwrap() error {
	return ErrPricingUnavailable
}

// Pricer returns a per-unit price for a leg on a date.
// toy reports whether the synthetic fallback produced the price.
type Pricer interface {
	PriceLeg(leg domain.TradeLeg, date dates.Date, row *domain.MarketRow) (price float64, toy bool, err error)
}

// Adapter prices from the real chain first and falls back to ToyPrice
// only when the run allows it.
type Adapter struct {
	chain    *ChainPricer
	allowToy bool
	vol      float64
}

// NewAdapter creates an Adapter. chain may be nil when no chain data is loaded.
func NewAdapter(chain *ChainPricer, cfg domain.SimulationConfig) *Adapter {
	return &Adapter{
		chain:    chain,
		allowToy: cfg.AllowToyPricing,
		vol:      cfg.EffectiveToyVolatility(),
	}
}

// PriceLeg implements Pricer.
func (a *Adapter) PriceLeg(leg domain.TradeLeg, date dates.Date, row *domain.MarketRow) (float64, bool, error) {
	var cause error
	if a.chain != nil {
		price, err := a.chain.Quote(leg, date)
		if err == nil {
			return price, false, nil
		}
		cause = err
	}

	if !a.allowToy {
		return 0, false, &UnavailableError{Leg: leg, Date: date, Cause: cause}
	}

	if row == nil {
		return 0, false, &UnavailableError{Leg: leg, Date: date, Cause: errors.New("no market row for spot")}
	}
	spot, ok := row.Value(domain.ColumnClose)
	if !ok || spot <= 0 {
		return 0, false, &domain.DataError{Date: date, Field: domain.ColumnClose, Reason: "spot is required for toy pricing"}
	}

	return ToyPrice(leg, date, spot, a.vol), true, nil
}

// Compile-time interface check
var _ Pricer = (*Adapter)(nil)
