package pricing

import (
	"fmt"
	"math"
	"sort"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/lookup"
)

// ChainPricer prices legs from real end-of-day option quotes.
type ChainPricer struct {
	byContract map[lookup.ContractKey][]*domain.OptionQuote
}

// NewChainPricer indexes quotes by contract and sorts each series by date.
// The input slice is not modified.
func NewChainPricer(quotes []*domain.OptionQuote) *ChainPricer {
	byContract := make(map[lookup.ContractKey][]*domain.OptionQuote)
	for _, q := range quotes {
		key := lookup.KeyOfQuote(q)
		byContract[key] = append(byContract[key], q)
	}
	for _, series := range byContract {
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Date.Before(series[j].Date)
		})
	}
	return &ChainPricer{byContract: byContract}
}

// Contracts returns the number of distinct contracts indexed.
func (c *ChainPricer) Contracts() int {
	return len(c.byContract)
}

// Quote returns the mark for leg on date: Mid, or (Bid+Ask)/2 when Mid is
// unusable. NaN or non-positive marks count as no quote.
func (c *ChainPricer) Quote(leg domain.TradeLeg, date dates.Date) (float64, error) {
	q, err := lookup.QuoteAt(date, c.byContract[lookup.KeyOf(leg)])
	if err != nil {
		return 0, err
	}

	if usable(q.Mid) {
		return q.Mid, nil
	}
	if usable(q.Bid) && usable(q.Ask) {
		return (q.Bid + q.Ask) / 2, nil
	}
	return 0, fmt.Errorf("%w: unusable mark for %s on %s", lookup.ErrNoQuote, leg, date)
}

// PriceLeg implements Pricer without any fallback.
func (c *ChainPricer) PriceLeg(leg domain.TradeLeg, date dates.Date, _ *domain.MarketRow) (float64, bool, error) {
	price, err := c.Quote(leg, date)
	if err != nil {
		return 0, false, &UnavailableError{Leg: leg, Date: date, Cause: err}
	}
	return price, false, nil
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// Compile-time interface check
var _ Pricer = (*ChainPricer)(nil)
