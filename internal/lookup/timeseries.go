package lookup

import (
	"errors"
	"math"
	"sort"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoQuote     = errors.New("no option quote available")
	ErrNoPriceData = errors.New("no price data available")
)

// ContractKey identifies one listed option contract of an underlying.
// Strikes are keyed in thousandths to avoid float equality.
type ContractKey struct {
	Expiry      dates.Date
	StrikeMilli int64
	OptionType  domain.OptionType
}

// KeyOf returns the contract key for a leg.
func KeyOf(leg domain.TradeLeg) ContractKey {
	return ContractKey{Expiry: leg.Expiry, StrikeMilli: strikeMilli(leg.Strike), OptionType: leg.OptionType}
}

// KeyOfQuote returns the contract key for a quote.
func KeyOfQuote(q *domain.OptionQuote) ContractKey {
	return ContractKey{Expiry: q.Expiry, StrikeMilli: strikeMilli(q.Strike), OptionType: q.OptionType}
}

func strikeMilli(strike float64) int64 {
	return int64(math.Round(strike * 1000))
}

// QuoteAt returns the quote dated exactly on target.
// quotes must be sorted by Date ASC for a single contract.
// Unlike close prices, option quotes are never carried forward: a stale
// mark would hide a missing chain day. Returns ErrNoQuote when absent.
func QuoteAt(target dates.Date, quotes []*domain.OptionQuote) (*domain.OptionQuote, error) {
	i := sort.Search(len(quotes), func(i int) bool {
		return !quotes[i].Date.Before(target)
	})
	if i < len(quotes) && quotes[i].Date == target {
		return quotes[i], nil
	}
	return nil, ErrNoQuote
}

// CloseAt returns the close of the row at or before target.
// If no row is before target, returns the first available close.
// Returns ErrNoPriceData if rows is empty.
func CloseAt(target dates.Date, rows []*domain.MarketRow) (float64, error) {
	if len(rows) == 0 {
		return 0, ErrNoPriceData
	}

	for i := len(rows) - 1; i >= 0; i-- {
		if !rows[i].Date.After(target) {
			return rows[i].Close, nil
		}
	}

	return rows[0].Close, nil
}
