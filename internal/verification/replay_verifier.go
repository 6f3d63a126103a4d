package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"rotation-engine/internal/artifact"
	"rotation-engine/internal/backtest"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/storage"
)

// ErrNilTradeStore is returned by VerifyRuns without a trade store.
var ErrNilTradeStore = errors.New("verifier requires a trade store")

// ProfileReport holds the verification of one profile run.
type ProfileReport struct {
	Profile         string
	StoredRunID     string
	ReplayedRunID   string
	TotalTrades     int      // stored trades
	MatchedTrades   int      // stored trades replayed identically
	DivergentTrades int      // stored trades replayed differently
	MissingTrades   []string // stored ids the replay did not produce
	ExtraTrades     []string // replayed ids that were not stored
	InvariantError  string   // CheckRun failure on the replay, if any
	Results         []VerificationResult
}

// Match reports whether the replay reproduced the stored run.
func (p *ProfileReport) Match() bool {
	return p.StoredRunID == p.ReplayedRunID &&
		p.DivergentTrades == 0 &&
		len(p.MissingTrades) == 0 &&
		len(p.ExtraTrades) == 0 &&
		p.InvariantError == ""
}

// VerificationReport contains results for every verified profile.
type VerificationReport struct {
	Profiles []ProfileReport // sorted by profile
}

// AllMatch reports whether every profile matched.
func (r *VerificationReport) AllMatch() bool {
	for i := range r.Profiles {
		if !r.Profiles[i].Match() {
			return false
		}
	}
	return true
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	MarketStore storage.MarketDataStore
	QuoteStore  storage.OptionQuoteStore // optional
	TradeStore  storage.TradeStore       // required by VerifyRuns
	Logger      zerolog.Logger
}

// ReplayVerifier re-runs a backtest without persisting and compares the
// replayed trades with stored ones.
type ReplayVerifier struct {
	runner     *backtest.Runner
	tradeStore storage.TradeStore
	logger     zerolog.Logger
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) (*ReplayVerifier, error) {
	runner, err := backtest.NewRunner(backtest.Options{
		MarketStore: opts.MarketStore,
		QuoteStore:  opts.QuoteStore,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &ReplayVerifier{runner: runner, tradeStore: opts.TradeStore, logger: opts.Logger}, nil
}

// VerifyRuns replays req and compares each profile with the trades stored
// under runIDs[profile]. Profiles missing from runIDs are compared with
// an empty stored run.
func (v *ReplayVerifier) VerifyRuns(ctx context.Context, req backtest.Request, runIDs map[string]string) (*VerificationReport, error) {
	if v.tradeStore == nil {
		return nil, ErrNilTradeStore
	}
	return v.verify(ctx, req, func(profile string) (string, []*domain.Trade, error) {
		runID := runIDs[profile]
		if runID == "" {
			return "", nil, nil
		}
		trades, err := v.tradeStore.GetByRunProfile(ctx, runID, profile)
		if err != nil {
			return "", nil, fmt.Errorf("load stored trades of %s: %w", profile, err)
		}
		return runID, trades, nil
	})
}

// VerifyDocument replays req and compares each profile with an artifact.
func (v *ReplayVerifier) VerifyDocument(ctx context.Context, req backtest.Request, doc artifact.Document) (*VerificationReport, error) {
	return v.verify(ctx, req, func(profile string) (string, []*domain.Trade, error) {
		pr, ok := doc[profile]
		if !ok {
			return "", nil, nil
		}
		trades, err := pr.ToTrades()
		if err != nil {
			return "", nil, fmt.Errorf("decode stored trades of %s: %w", profile, err)
		}
		return pr.RunID, trades, nil
	})
}

type storedFunc func(profile string) (runID string, trades []*domain.Trade, err error)

func (v *ReplayVerifier) verify(ctx context.Context, req backtest.Request, stored storedFunc) (*VerificationReport, error) {
	res, err := v.runner.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	report := &VerificationReport{Profiles: make([]ProfileReport, 0, len(res.Runs))}
	for _, run := range res.Runs {
		runID, trades, err := stored(run.Profile)
		if err != nil {
			return nil, err
		}

		pr := compareRun(run.Profile, runID, trades, run.RunID, run.Result.Trades)
		if err := CheckRun(res.Rows, run.Result); err != nil {
			pr.InvariantError = err.Error()
		}

		v.logger.Info().
			Str("profile", pr.Profile).
			Str("stored_run_id", pr.StoredRunID).
			Str("replayed_run_id", pr.ReplayedRunID).
			Int("matched", pr.MatchedTrades).
			Int("divergent", pr.DivergentTrades).
			Bool("match", pr.Match()).
			Msg("profile verified")

		report.Profiles = append(report.Profiles, pr)
	}
	return report, nil
}

func compareRun(profile, storedRunID string, stored []*domain.Trade, replayedRunID string, replayed []*domain.Trade) ProfileReport {
	pr := ProfileReport{
		Profile:       profile,
		StoredRunID:   storedRunID,
		ReplayedRunID: replayedRunID,
		TotalTrades:   len(stored),
		Results:       make([]VerificationResult, 0, len(stored)),
	}

	byID := make(map[string]*domain.Trade, len(replayed))
	for _, t := range replayed {
		byID[t.TradeID] = t
	}

	seen := make(map[string]struct{}, len(stored))
	for _, s := range stored {
		seen[s.TradeID] = struct{}{}
		r, ok := byID[s.TradeID]
		if !ok {
			pr.MissingTrades = append(pr.MissingTrades, s.TradeID)
			pr.DivergentTrades++
			continue
		}
		divergences := CompareTrades(s, r)
		pr.Results = append(pr.Results, VerificationResult{
			TradeID:     s.TradeID,
			Match:       len(divergences) == 0,
			Divergences: divergences,
			StoredPnL:   s.RealizedPnL,
			ReplayedPnL: r.RealizedPnL,
		})
		if len(divergences) == 0 {
			pr.MatchedTrades++
		} else {
			pr.DivergentTrades++
		}
	}

	for _, t := range replayed {
		if _, ok := seen[t.TradeID]; !ok {
			pr.ExtraTrades = append(pr.ExtraTrades, t.TradeID)
		}
	}
	sort.Strings(pr.MissingTrades)
	sort.Strings(pr.ExtraTrades)
	return pr
}
