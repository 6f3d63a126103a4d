package normalization

import (
	"sort"

	"rotation-engine/internal/domain"
)

// SortMarketRows orders rows by (date ASC, symbol ASC).
func SortMarketRows(rows []*domain.MarketRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return compareMarketRows(rows[i], rows[j]) < 0
	})
}

// SortOptionQuotes orders quotes by (date ASC, expiry ASC, strike ASC, option_type ASC).
func SortOptionQuotes(quotes []*domain.OptionQuote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return compareOptionQuotes(quotes[i], quotes[j]) < 0
	})
}

// compareMarketRows returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareMarketRows(a, b *domain.MarketRow) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if a.Symbol != b.Symbol {
		if a.Symbol < b.Symbol {
			return -1
		}
		return 1
	}
	return 0
}

// compareOptionQuotes returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareOptionQuotes(a, b *domain.OptionQuote) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if c := a.Expiry.Compare(b.Expiry); c != 0 {
		return c
	}
	if a.Strike != b.Strike {
		if a.Strike < b.Strike {
			return -1
		}
		return 1
	}
	if a.OptionType != b.OptionType {
		if a.OptionType < b.OptionType {
			return -1
		}
		return 1
	}
	return 0
}
