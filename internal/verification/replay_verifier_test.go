package verification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotation-engine/internal/backtest"
	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/pipeline"
	"rotation-engine/internal/pricing"
	"rotation-engine/internal/simulation"
	"rotation-engine/internal/storage/memory"
	"rotation-engine/internal/strategy"
)

type harness struct {
	market *memory.MarketDataStore
	trades *memory.TradeStore
	rows   []*domain.MarketRow
}

func newHarness(t *testing.T, days int) *harness {
	t.Helper()
	h := &harness{
		market: memory.NewMarketDataStore(),
		trades: memory.NewTradeStore(),
		rows: pipeline.SyntheticMarketRows(pipeline.SyntheticOptions{
			Symbol: "SPY", Start: dates.MustParse("2024-01-02"), Days: days, StartPrice: 470, Seed: 11,
		}),
	}
	require.NoError(t, h.market.InsertBulk(context.Background(), h.rows))
	return h
}

func testRequest(t *testing.T) backtest.Request {
	t.Helper()
	var profiles []strategy.Profile
	for _, cfg := range []domain.ProfileConfig{
		{Name: "straddle", Structure: domain.StructureLongStraddle, TargetDTE: 30},
		{Name: "call_spread", Structure: domain.StructureCallDebitSpread, TargetDTE: 21, StrikeOffset: 0.02},
	} {
		p, err := strategy.FromConfig(cfg)
		require.NoError(t, err)
		profiles = append(profiles, p)
	}
	return backtest.Request{
		Symbol:     "SPY",
		From:       dates.MustParse("2024-01-01"),
		To:         dates.MustParse("2024-12-31"),
		Simulation: domain.SimulationConfig{RollDTEThreshold: 3, MaxDaysInTrade: 8, AllowToyPricing: true},
		Profiles:   profiles,
	}
}

// store runs and persists the backtest, returning run ids by profile.
func (h *harness) store(t *testing.T, req backtest.Request) (*backtest.Result, map[string]string) {
	t.Helper()
	runner, err := backtest.NewRunner(backtest.Options{
		MarketStore: h.market,
		TradeStore:  h.trades,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	res, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	ids := make(map[string]string, len(res.Runs))
	for _, run := range res.Runs {
		ids[run.Profile] = run.RunID
	}
	return res, ids
}

func (h *harness) verifier(t *testing.T) *ReplayVerifier {
	t.Helper()
	v, err := NewReplayVerifier(ReplayVerifierOptions{
		MarketStore: h.market,
		TradeStore:  h.trades,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return v
}

func TestReplayVerifier_VerifyRuns_Match(t *testing.T) {
	h := newHarness(t, 60)
	req := testRequest(t)
	_, ids := h.store(t, req)

	report, err := h.verifier(t).VerifyRuns(context.Background(), req, ids)
	require.NoError(t, err)

	require.Len(t, report.Profiles, 2)
	assert.Equal(t, "call_spread", report.Profiles[0].Profile)
	for _, p := range report.Profiles {
		assert.True(t, p.Match(), "profile %s: %+v", p.Profile, p)
		assert.Positive(t, p.TotalTrades)
		assert.Equal(t, p.TotalTrades, p.MatchedTrades)
		assert.Empty(t, p.InvariantError)
	}
	assert.True(t, report.AllMatch())
}

func TestReplayVerifier_VerifyRuns_ConfigChanged(t *testing.T) {
	h := newHarness(t, 60)
	req := testRequest(t)
	_, ids := h.store(t, req)

	req.Simulation.MaxDaysInTrade = 4
	report, err := h.verifier(t).VerifyRuns(context.Background(), req, ids)
	require.NoError(t, err)

	assert.False(t, report.AllMatch())
	for _, p := range report.Profiles {
		assert.NotEqual(t, p.StoredRunID, p.ReplayedRunID)
		assert.False(t, p.Match())
	}
}

func TestReplayVerifier_VerifyRuns_UnknownRun(t *testing.T) {
	h := newHarness(t, 30)
	req := testRequest(t)

	report, err := h.verifier(t).VerifyRuns(context.Background(), req, nil)
	require.NoError(t, err)

	for _, p := range report.Profiles {
		assert.Zero(t, p.TotalTrades)
		assert.NotEmpty(t, p.ExtraTrades)
		assert.False(t, p.Match())
	}
}

func TestReplayVerifier_VerifyDocument(t *testing.T) {
	h := newHarness(t, 60)
	req := testRequest(t)
	res, _ := h.store(t, req)
	v := h.verifier(t)

	report, err := v.VerifyDocument(context.Background(), req, res.Document)
	require.NoError(t, err)
	assert.True(t, report.AllMatch())

	// Tamper with one stored exit
	doc := res.Document
	tampered := doc["straddle"].Trades[0]
	tampered.Exit.RealizedPnL += 1
	doc["straddle"].Trades[0] = tampered

	report, err = v.VerifyDocument(context.Background(), req, doc)
	require.NoError(t, err)
	assert.False(t, report.AllMatch())

	straddle := report.Profiles[1]
	require.Equal(t, "straddle", straddle.Profile)
	assert.Equal(t, 1, straddle.DivergentTrades)
	require.NotEmpty(t, straddle.Results)
	assert.Equal(t, "RealizedPnL", straddle.Results[0].Divergences[0].Field)
}

func TestReplayVerifier_RequiresTradeStore(t *testing.T) {
	h := newHarness(t, 5)
	v, err := NewReplayVerifier(ReplayVerifierOptions{MarketStore: h.market})
	require.NoError(t, err)

	_, err = v.VerifyRuns(context.Background(), testRequest(t), nil)
	assert.ErrorIs(t, err, ErrNilTradeStore)
}

func TestCheckRun_SimulatorOutput(t *testing.T) {
	h := newHarness(t, 90)
	req := testRequest(t)

	for _, profile := range req.Profiles {
		sim, err := simulation.New(profile, req.Simulation, pricing.NewAdapter(nil, req.Simulation))
		require.NoError(t, err)
		res, err := sim.Run(h.rows)
		require.NoError(t, err)

		require.NoError(t, CheckRun(len(h.rows), res), profile.Name())
	}
}

func TestCheckRun_Violations(t *testing.T) {
	h := newHarness(t, 60)
	req := testRequest(t)
	profile := req.Profiles[1]

	run := func() *domain.RunResult {
		sim, err := simulation.New(profile, req.Simulation, pricing.NewAdapter(nil, req.Simulation))
		require.NoError(t, err)
		res, err := sim.Run(h.rows)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(res.Trades), 2)
		return res
	}

	tests := []struct {
		name   string
		mutate func(*domain.RunResult)
		want   string
	}{
		{"missing daily row", func(r *domain.RunResult) { r.DailyResults = r.DailyResults[1:] }, "daily rows"},
		{"duplicate id", func(r *domain.RunResult) { r.Trades[1].TradeID = r.Trades[0].TradeID }, "duplicate trade id"},
		{"overlap", func(r *domain.RunResult) { r.Trades[0].ExitDate = r.Trades[1].EntryDate.AddDays(1) }, "before"},
		{"open at end", func(r *domain.RunResult) { r.Trades[0].Closed = false }, "not closed"},
		{"pnl drift", func(r *domain.RunResult) { r.Trades[0].RealizedPnL += 0.01 }, "realized P&L"},
		{"path gap", func(r *domain.RunResult) {
			for _, tr := range r.Trades {
				if len(tr.Path) > 1 {
					tr.Path[1].Day = 3
					return
				}
			}
		}, "path day"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run()
			tt.mutate(res)
			err := CheckRun(len(h.rows), res)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvariant))
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}
