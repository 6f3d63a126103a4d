package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/lookup"
	"rotation-engine/internal/pricing"
	"rotation-engine/internal/storage"
	"rotation-engine/internal/strategy"
)

// Synthetic regime labels.
const (
	RegimeTrendingUp   = "trending_up"
	RegimeTrendingDown = "trending_down"
	RegimeHighVol      = "high_vol"
	RegimeNeutral      = "neutral"
)

// Synthetic feature columns.
const (
	FeatureRV5     = "rv5"
	FeatureRV20    = "rv20"
	FeatureMA20    = "ma20"
	FeatureMASlope = "ma_slope"
)

// SyntheticOptions parameterizes SyntheticMarketRows.
type SyntheticOptions struct {
	Symbol     string
	Start      dates.Date
	Days       int // trading days to generate
	StartPrice float64
	Seed       int64
}

// SyntheticMarketRows generates a deterministic weekday feature table:
// a random walk whose volatility switches between calm and stressed
// states, with trailing realized vol and moving-average features.
func SyntheticMarketRows(opts SyntheticOptions) []*domain.MarketRow {
	rng := rand.New(rand.NewSource(opts.Seed))

	rows := make([]*domain.MarketRow, 0, opts.Days)
	closes := make([]float64, 0, opts.Days)
	returns := make([]float64, 0, opts.Days)
	ma := make([]float64, 0, opts.Days)

	price := opts.StartPrice
	dailyVol := 0.01
	d := opts.Start
	for len(rows) < opts.Days {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			d = d.AddDays(1)
			continue
		}

		// Volatility state switches rarely.
		if rng.Float64() < 0.03 {
			if dailyVol < 0.015 {
				dailyVol = 0.022
			} else {
				dailyVol = 0.01
			}
		}

		open := price
		ret := 0.0003 + dailyVol*rng.NormFloat64()
		price = open * math.Exp(ret)
		span := math.Abs(price-open) + open*dailyVol*rng.Float64()

		closes = append(closes, price)
		returns = append(returns, ret)
		ma = append(ma, mean(tail(closes, 20)))

		row := &domain.MarketRow{
			Symbol:   opts.Symbol,
			Date:     d,
			Open:     round2(open),
			High:     round2(math.Max(open, price) + span/2),
			Low:      round2(math.Min(open, price) - span/2),
			Close:    round2(price),
			Volume:   math.Round(5e7 * (1 + 0.3*rng.Float64())),
			Features: map[string]float64{},
		}

		row.Features[FeatureMA20] = round6(ma[len(ma)-1])
		if len(returns) >= 5 {
			row.Features[FeatureRV5] = round6(annualize(stdev(tail(returns, 5))))
		}
		if len(returns) >= 20 {
			row.Features[FeatureRV20] = round6(annualize(stdev(tail(returns, 20))))
		}
		if len(ma) > 5 {
			prev := ma[len(ma)-6]
			row.Features[FeatureMASlope] = round6((ma[len(ma)-1] - prev) / prev / 5)
		}
		row.Regime = classify(row.Features)

		rows = append(rows, row)
		d = d.AddDays(1)
	}
	return rows
}

func classify(f map[string]float64) string {
	rv, hasRV := f[FeatureRV20]
	slope, hasSlope := f[FeatureMASlope]
	switch {
	case hasRV && rv > 0.25:
		return RegimeHighVol
	case hasSlope && slope > 0.001:
		return RegimeTrendingUp
	case hasSlope && slope < -0.001:
		return RegimeTrendingDown
	default:
		return RegimeNeutral
	}
}

type quoteKey struct {
	contract lookup.ContractKey
	date     dates.Date
}

// SyntheticQuotes builds a chain covering every contract the profiles
// would open on any row, quoted from that row until expiry or the end of
// rows. Mids are the toy price with small seeded noise.
func SyntheticQuotes(rows []*domain.MarketRow, profiles []strategy.Profile, vol float64, seed int64) ([]*domain.OptionQuote, error) {
	rng := rand.New(rand.NewSource(seed))
	seen := make(map[quoteKey]struct{})
	var quotes []*domain.OptionQuote

	for _, profile := range profiles {
		for i, entry := range rows {
			trade, err := profile.Construct(entry, "fixture")
			if err != nil {
				return nil, fmt.Errorf("construct %s on %s: %w", profile.Name(), entry.Date, err)
			}
			for _, leg := range trade.Legs {
				for _, row := range rows[i:] {
					if row.Date.After(leg.Expiry) {
						break
					}
					key := quoteKey{contract: lookup.KeyOf(leg), date: row.Date}
					if _, ok := seen[key]; ok {
						continue
					}
					seen[key] = struct{}{}

					mid := pricing.ToyPrice(leg, row.Date, row.Close, vol) * (1 + 0.02*rng.NormFloat64())
					mid = math.Max(round2(mid), 0.05)
					half := math.Max(0.025, round2(0.01*mid))
					quotes = append(quotes, &domain.OptionQuote{
						Symbol:     row.Symbol,
						Date:       row.Date,
						Expiry:     leg.Expiry,
						Strike:     leg.Strike,
						OptionType: leg.OptionType,
						Bid:        math.Max(mid-half, 0.01),
						Ask:        mid + half,
						Mid:        mid,
					})
				}
			}
		}
	}
	return quotes, nil
}

// LoadFixtures populates the market and quote stores. Rows already
// present from an earlier load are left as they are.
func LoadFixtures(
	ctx context.Context,
	marketStore storage.MarketDataStore,
	quoteStore storage.OptionQuoteStore,
	rows []*domain.MarketRow,
	quotes []*domain.OptionQuote,
) error {
	if err := marketStore.InsertBulk(ctx, rows); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("load market rows: %w", err)
	}
	if quoteStore == nil || len(quotes) == 0 {
		return nil
	}
	if err := quoteStore.InsertBulk(ctx, quotes); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("load option quotes: %w", err)
	}
	return nil
}

func tail(v []float64, n int) []float64 {
	if len(v) <= n {
		return v
	}
	return v[len(v)-n:]
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func stdev(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	m := mean(v)
	ss := 0.0
	for _, x := range v {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(v)-1))
}

func annualize(daily float64) float64 {
	return daily * math.Sqrt(252)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
