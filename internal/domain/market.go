package domain

import (
	"math"
	"sort"

	"rotation-engine/internal/dates"
)

// Standard price columns of a MarketRow.
const (
	ColumnOpen   = "open"
	ColumnHigh   = "high"
	ColumnLow    = "low"
	ColumnClose  = "close"
	ColumnVolume = "volume"
)

// MarketRow is one day of the feature table consumed by the simulator.
// Corresponds to market_rows table in ClickHouse.
type MarketRow struct {
	Symbol   string     // underlying symbol
	Date     dates.Date // canonical trading day
	Open     float64    // OHLCV
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Regime   string             // external regime label, opaque to the core
	Features map[string]float64 // indicator columns by name (rv20, ma_slope, ...)
}

// Value returns a column by name: OHLCV first, then Features.
// ok is false when the column is missing or not finite.
func (r *MarketRow) Value(column string) (float64, bool) {
	var v float64
	switch column {
	case ColumnOpen:
		v = r.Open
	case ColumnHigh:
		v = r.High
	case ColumnLow:
		v = r.Low
	case ColumnClose:
		v = r.Close
	case ColumnVolume:
		v = r.Volume
	default:
		f, exists := r.Features[column]
		if !exists {
			return 0, false
		}
		v = f
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Conditions copies the row into a flat column map for trade paths.
// Non-finite indicator values are omitted.
func (r *MarketRow) Conditions() map[string]float64 {
	out := make(map[string]float64, len(r.Features)+5)
	out[ColumnOpen] = r.Open
	out[ColumnHigh] = r.High
	out[ColumnLow] = r.Low
	out[ColumnClose] = r.Close
	out[ColumnVolume] = r.Volume
	for k, v := range r.Features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[k] = v
	}
	return out
}

// FeatureNames returns indicator names in sorted order.
func (r *MarketRow) FeatureNames() []string {
	names := make([]string, 0, len(r.Features))
	for k := range r.Features {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// OptionQuote is one end-of-day quote from a real options chain.
// Corresponds to option_quotes table in ClickHouse.
type OptionQuote struct {
	Symbol     string
	Date       dates.Date // quote day
	Expiry     dates.Date
	Strike     float64
	OptionType OptionType
	Bid        float64
	Ask        float64
	Mid        float64 // (bid+ask)/2 unless the vendor supplies its own mark
}
