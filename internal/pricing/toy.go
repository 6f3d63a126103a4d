package pricing

import (
	"math"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
)

// atmTimeValueFactor approximates 1/sqrt(2*pi), the at-the-money
// Black-Scholes time value per unit of S*sigma*sqrt(T).
const atmTimeValueFactor = 0.4

// ToyPrice is a deterministic synthetic option price:
//
//	intrinsic + 0.4 * spot * vol * sqrt(max(dte, 0) / 365)
//
// It is not a production model. Time value decays to zero at expiry and
// ignores moneyness, rates and dividends.
func ToyPrice(leg domain.TradeLeg, date dates.Date, spot, vol float64) float64 {
	intrinsic := 0.0
	switch leg.OptionType {
	case domain.OptionCall:
		intrinsic = math.Max(spot-leg.Strike, 0)
	case domain.OptionPut:
		intrinsic = math.Max(leg.Strike-spot, 0)
	}

	dte := leg.DTE(date)
	if dte <= 0 {
		return intrinsic
	}

	timeValue := atmTimeValueFactor * spot * vol * math.Sqrt(float64(dte)/365.0)
	return intrinsic + timeValue
}
