package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/observability"
	"rotation-engine/internal/pricing"
	"rotation-engine/internal/storage/memory"
	"rotation-engine/internal/strategy"
)

var (
	from = dates.MustParse("2024-01-01")
	to   = dates.MustParse("2024-12-31")
)

// weekdayRows builds n weekday rows with a gently oscillating close.
func weekdayRows(n int) []*domain.MarketRow {
	rows := make([]*domain.MarketRow, 0, n)
	d := dates.MustParse("2024-01-02")
	for len(rows) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			px := 470 + 8*math.Sin(float64(len(rows))/4)
			rows = append(rows, &domain.MarketRow{
				Symbol: "SPY",
				Date:   d,
				Open:   px, High: px + 2, Low: px - 2, Close: px,
				Volume:   1e6,
				Regime:   "neutral",
				Features: map[string]float64{"rv20": 0.15 + 0.01*float64(len(rows)%5)},
			})
		}
		d = d.AddDays(1)
	}
	return rows
}

func profiles(t *testing.T, names ...string) []strategy.Profile {
	t.Helper()
	out := make([]strategy.Profile, 0, len(names))
	for _, name := range names {
		cfg := domain.ProfileConfig{Name: name, Structure: name, TargetDTE: 30}
		if name != domain.StructureLongStraddle {
			cfg.StrikeOffset = 0.03
		}
		p, err := strategy.FromConfig(cfg)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func simConfig() domain.SimulationConfig {
	return domain.SimulationConfig{
		RollDTEThreshold: 3,
		MaxDaysInTrade:   7,
		AllowToyPricing:  true,
	}
}

type fixture struct {
	market   *memory.MarketDataStore
	quotes   *memory.OptionQuoteStore
	trades   *memory.TradeStore
	summary  *memory.ProfileSummaryStore
	metrics  *observability.Metrics
	runner   *Runner
	rowCount int
}

func newFixture(t *testing.T, rows int) *fixture {
	t.Helper()
	f := &fixture{
		market:   memory.NewMarketDataStore(),
		quotes:   memory.NewOptionQuoteStore(),
		trades:   memory.NewTradeStore(),
		summary:  memory.NewProfileSummaryStore(),
		metrics:  observability.NewMetrics(""),
		rowCount: rows,
	}
	require.NoError(t, f.market.InsertBulk(context.Background(), weekdayRows(rows)))

	runner, err := NewRunner(Options{
		MarketStore:  f.market,
		QuoteStore:   f.quotes,
		TradeStore:   f.trades,
		SummaryStore: f.summary,
		Logger:       zerolog.Nop(),
		Metrics:      f.metrics,
		Parallelism:  2,
		Clock:        func() time.Time { return time.Unix(1700000000, 0) },
	})
	require.NoError(t, err)
	f.runner = runner
	return f
}

func TestRunner_Run(t *testing.T) {
	f := newFixture(t, 60)
	ctx := context.Background()

	res, err := f.runner.Run(ctx, Request{
		Symbol:     "SPY",
		From:       from,
		To:         to,
		Simulation: simConfig(),
		Profiles:   profiles(t, domain.StructureShortStrangle, domain.StructureLongStraddle),
	})
	require.NoError(t, err)

	assert.Equal(t, 60, res.Rows)
	require.Len(t, res.Runs, 2)
	assert.Equal(t, domain.StructureLongStraddle, res.Runs[0].Profile, "runs sorted by profile")

	for _, run := range res.Runs {
		assert.Len(t, run.Result.DailyResults, 60)
		assert.Equal(t, run.Profile, run.Structure, "template structure carried on the run")
		assert.NotEmpty(t, run.Result.Trades)
		assert.Equal(t, len(run.Result.Trades), run.Summary.TotalTrades)
		assert.Equal(t, run.RunID, run.Summary.RunID)

		// Persisted under the run id
		stored, err := f.trades.GetByRunProfile(ctx, run.RunID, run.Profile)
		require.NoError(t, err)
		assert.Len(t, stored, len(run.Result.Trades))

		summaries, err := f.summary.GetByRun(ctx, run.RunID)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, run.Summary.TotalPnL, summaries[0].TotalPnL)

		// Artifact
		pr := res.Document[run.Profile]
		require.NotNil(t, pr)
		assert.Equal(t, run.RunID, pr.RunID)
		assert.Equal(t, run.Digest, pr.Digest)
		assert.Len(t, pr.Trades, len(run.Result.Trades))
		assert.Nil(t, pr.Daily, "daily rows omitted unless requested")
		require.NotNil(t, pr.Config)
		assert.True(t, pr.Config.AllowToyPricing)
		assert.Equal(t, run.Result.ToyPricedMarks, pr.Config.ToyPricedMarks)
		assert.Positive(t, pr.Config.ToyPricedMarks)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues(domain.StructureLongStraddle, "ok"))+
		testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues(domain.StructureShortStrangle, "ok")))
	assert.Equal(t, 120.0, testutil.ToFloat64(f.metrics.RowsSimulated))
}

func TestRunner_ProfileOrderDoesNotChangeResults(t *testing.T) {
	req := func(names ...string) Request {
		return Request{
			Symbol:     "SPY",
			From:       from,
			To:         to,
			Simulation: simConfig(),
			Profiles:   profiles(t, names...),
		}
	}

	a, err := newFixture(t, 40).runner.Run(context.Background(),
		req(domain.StructureLongStraddle, domain.StructureLongCall, domain.StructurePutCreditSpread))
	require.NoError(t, err)
	b, err := newFixture(t, 40).runner.Run(context.Background(),
		req(domain.StructurePutCreditSpread, domain.StructureLongStraddle, domain.StructureLongCall))
	require.NoError(t, err)

	require.Len(t, b.Runs, len(a.Runs))
	for i := range a.Runs {
		assert.Equal(t, a.Runs[i].Profile, b.Runs[i].Profile)
		assert.Equal(t, a.Runs[i].Digest, b.Runs[i].Digest)
	}
}

func TestRunner_RerunIsIdempotent(t *testing.T) {
	f := newFixture(t, 30)
	ctx := context.Background()
	req := Request{
		Symbol:     "SPY",
		From:       from,
		To:         to,
		Simulation: simConfig(),
		Profiles:   profiles(t, domain.StructureLongStraddle),
	}

	first, err := f.runner.Run(ctx, req)
	require.NoError(t, err)
	second, err := f.runner.Run(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.Runs[0].RunID, second.Runs[0].RunID)

	stored, err := f.trades.GetByRun(ctx, first.Runs[0].RunID)
	require.NoError(t, err)
	assert.Len(t, stored, len(first.Runs[0].Result.Trades))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StoreDuplicates.WithLabelValues("trades")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StoreDuplicates.WithLabelValues("profile_summaries")))
}

func TestRunner_IncludeDaily(t *testing.T) {
	f := newFixture(t, 10)

	res, err := f.runner.Run(context.Background(), Request{
		Symbol:       "SPY",
		From:         from,
		To:           to,
		Simulation:   simConfig(),
		Profiles:     profiles(t, domain.StructureLongPut),
		IncludeDaily: true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Document[domain.StructureLongPut].Daily, 10)
}

func TestRunner_ChainQuotesPreferred(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	// Quote every contract a long call at 3% OTM can pick on every row
	rows, err := f.market.GetRange(ctx, "SPY", from, to)
	require.NoError(t, err)
	p := profiles(t, domain.StructureLongCall)[0]

	var quotes []*domain.OptionQuote
	seen := map[string]bool{}
	for _, entry := range rows {
		trade, err := p.Construct(entry, "probe")
		require.NoError(t, err)
		leg := trade.Legs[0]
		for _, r := range rows {
			key := leg.String() + r.Date.String()
			if seen[key] || r.Date.Before(entry.Date) {
				continue
			}
			seen[key] = true
			quotes = append(quotes, &domain.OptionQuote{
				Symbol: "SPY", Date: r.Date, Expiry: leg.Expiry, Strike: leg.Strike,
				OptionType: leg.OptionType, Bid: 1.9, Ask: 2.1, Mid: 2.0,
			})
		}
	}
	require.NoError(t, f.quotes.InsertBulk(ctx, quotes))

	cfg := simConfig()
	cfg.AllowToyPricing = false
	res, err := f.runner.Run(ctx, Request{
		Symbol: "SPY", From: from, To: to, Simulation: cfg,
		Profiles: []strategy.Profile{p},
	})
	require.NoError(t, err)
	assert.Zero(t, res.Runs[0].Result.ToyPricedMarks)
	for _, tr := range res.Runs[0].Result.Trades {
		assert.Equal(t, []float64{2.0}, tr.EntryPrices)
		assert.Zero(t, tr.RealizedPnL)
	}
}

func TestRunner_PricingUnavailable(t *testing.T) {
	f := newFixture(t, 5)

	cfg := simConfig()
	cfg.AllowToyPricing = false
	_, err := f.runner.Run(context.Background(), Request{
		Symbol: "SPY", From: from, To: to, Simulation: cfg,
		Profiles: profiles(t, domain.StructureLongStraddle),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pricing.ErrPricingUnavailable))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues(domain.StructureLongStraddle, "error")))
}

func TestRunner_RequestValidation(t *testing.T) {
	f := newFixture(t, 5)
	straddle := profiles(t, domain.StructureLongStraddle)

	badCfg := simConfig()
	badCfg.DeltaHedgeEnabled = true

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing symbol", Request{From: from, To: to, Simulation: simConfig(), Profiles: straddle}, ErrMissingSymbol},
		{"no profiles", Request{Symbol: "SPY", From: from, To: to, Simulation: simConfig()}, ErrNoProfiles},
		{"inverted range", Request{Symbol: "SPY", From: to, To: from, Simulation: simConfig(), Profiles: straddle}, ErrInvalidRange},
		{"zero range", Request{Symbol: "SPY", Simulation: simConfig(), Profiles: straddle}, ErrInvalidRange},
		{"duplicate profile", Request{Symbol: "SPY", From: from, To: to, Simulation: simConfig(),
			Profiles: append(straddle, straddle...)}, ErrDuplicateProfile},
		{"unsupported config", Request{Symbol: "SPY", From: from, To: to, Simulation: badCfg, Profiles: straddle}, domain.ErrUnsupported},
		{"no data", Request{Symbol: "QQQ", From: from, To: to, Simulation: simConfig(), Profiles: straddle}, ErrNoMarketData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.runner.Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunner_Cancelled(t *testing.T) {
	f := newFixture(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.runner.Run(ctx, Request{
		Symbol: "SPY", From: from, To: to, Simulation: simConfig(),
		Profiles: profiles(t, domain.StructureLongStraddle),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRunner_RequiresMarketStore(t *testing.T) {
	_, err := NewRunner(Options{})
	assert.ErrorIs(t, err, ErrNilMarketStore)
}
