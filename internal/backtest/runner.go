// Package backtest runs a set of profiles over one market data range.
// Each profile is simulated in isolation; results are persisted and
// assembled into an artifact document.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rotation-engine/internal/artifact"
	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/idhash"
	"rotation-engine/internal/metrics"
	"rotation-engine/internal/observability"
	"rotation-engine/internal/pricing"
	"rotation-engine/internal/simulation"
	"rotation-engine/internal/storage"
	"rotation-engine/internal/strategy"
)

// Runner errors
var (
	ErrNoProfiles       = errors.New("backtest requires at least one profile")
	ErrDuplicateProfile = errors.New("duplicate profile name")
	ErrMissingSymbol    = errors.New("backtest requires a symbol")
	ErrInvalidRange     = errors.New("backtest range requires From <= To")
	ErrNoMarketData     = errors.New("no market rows in range")
	ErrNilMarketStore   = errors.New("backtest requires a market data store")
)

// Options for creating Runner.
type Options struct {
	// Required
	MarketStore storage.MarketDataStore

	// Optional; a nil QuoteStore prices from the toy model only.
	QuoteStore storage.OptionQuoteStore

	// Optional; nil stores skip persistence.
	TradeStore   storage.TradeStore
	SummaryStore storage.ProfileSummaryStore

	Logger      zerolog.Logger
	Metrics     *observability.Metrics // optional
	Parallelism int                    // max concurrent profiles; 0 = unbounded
	Clock       func() time.Time       // defaults to time.Now
}

// Request describes one backtest.
type Request struct {
	Symbol       string
	From, To     dates.Date
	Simulation   domain.SimulationConfig
	Profiles     []strategy.Profile
	IncludeDaily bool // include daily rows in the artifact
}

// ProfileRun is the outcome of one profile.
type ProfileRun struct {
	Profile   string
	Structure string // template structure, or strategy.StructureCustom
	RunID     string
	Digest    string
	Result    *domain.RunResult
	Summary   *domain.ProfileSummary
}

// Result holds every profile run and the artifact built from them.
type Result struct {
	Runs     []*ProfileRun // sorted by profile name
	Document artifact.Document
	Rows     int // market rows simulated
}

// Runner executes backtests.
type Runner struct {
	marketStore  storage.MarketDataStore
	quoteStore   storage.OptionQuoteStore
	tradeStore   storage.TradeStore
	summaryStore storage.ProfileSummaryStore
	logger       zerolog.Logger
	metrics      *observability.Metrics
	parallelism  int
	clock        func() time.Time
}

// NewRunner creates a new Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.MarketStore == nil {
		return nil, ErrNilMarketStore
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Runner{
		marketStore:  opts.MarketStore,
		quoteStore:   opts.QuoteStore,
		tradeStore:   opts.TradeStore,
		summaryStore: opts.SummaryStore,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		parallelism:  opts.Parallelism,
		clock:        clock,
	}, nil
}

// Run loads the market range once, simulates every profile and persists
// the results. Runs share no mutable state, so profile order never
// changes any result.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	rows, err := r.marketStore.GetRange(ctx, req.Symbol, req.From, req.To)
	if err != nil {
		return nil, fmt.Errorf("load market rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNoMarketData, req.Symbol, req.From, req.To)
	}

	var chain *pricing.ChainPricer
	if r.quoteStore != nil {
		quotes, err := r.quoteStore.GetRange(ctx, req.Symbol, req.From, req.To)
		if err != nil {
			return nil, fmt.Errorf("load option quotes: %w", err)
		}
		if len(quotes) > 0 {
			chain = pricing.NewChainPricer(quotes)
		}
	}
	pricer := pricing.NewAdapter(chain, req.Simulation)

	contracts := 0
	if chain != nil {
		contracts = chain.Contracts()
	}
	r.logger.Info().
		Str("symbol", req.Symbol).
		Stringer("from", rows[0].Date).
		Stringer("to", rows[len(rows)-1].Date).
		Int("rows", len(rows)).
		Int("contracts", contracts).
		Int("profiles", len(req.Profiles)).
		Msg("backtest started")

	runs := make([]*ProfileRun, len(req.Profiles))

	g, gctx := errgroup.WithContext(ctx)
	if r.parallelism > 0 {
		g.SetLimit(r.parallelism)
	}
	for i, profile := range req.Profiles {
		i, profile := i, profile
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			run, err := r.runProfile(profile, req.Simulation, pricer, rows)
			if err != nil {
				return fmt.Errorf("profile %s: %w", profile.Name(), err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Profile < runs[j].Profile })

	for _, run := range runs {
		if err := r.persist(ctx, run); err != nil {
			return nil, err
		}
	}

	doc := make(artifact.Document, len(runs))
	for _, run := range runs {
		pr := artifact.FromRunResult(run.Result, run.Summary, run.RunID, run.Digest, req.IncludeDaily)
		pr.Config = artifact.Settings(req.Simulation, run.Result.ToyPricedMarks)
		doc[run.Profile] = pr
	}

	if r.metrics != nil {
		r.metrics.MarkSuccess(r.clock())
	}

	return &Result{Runs: runs, Document: doc, Rows: len(rows)}, nil
}

// runProfile simulates one profile. It touches no shared mutable state.
func (r *Runner) runProfile(profile strategy.Profile, cfg domain.SimulationConfig, pricer pricing.Pricer, rows []*domain.MarketRow) (*ProfileRun, error) {
	start := r.clock()

	sim, err := simulation.New(profile, cfg, pricer)
	if err != nil {
		return nil, err
	}

	res, err := sim.Run(rows)
	if r.metrics != nil {
		r.metrics.RecordRun(profile.Name(), res, r.clock().Sub(start), err)
	}
	if err != nil {
		return nil, err
	}

	digest := idhash.ComputeRunDigest(res)
	runID := idhash.ComputeRunID(digest)

	for i := range res.TradeSummary {
		res.TradeSummary[i].RunID = runID
	}
	summary := metrics.ComputeProfileSummary(profile.Name(), res.TradeSummary)
	summary.RunID = runID

	structure := strategy.StructureOf(profile)
	log := r.logger.With().Str("profile", profile.Name()).Str("structure", structure).Str("run_id", runID).Logger()
	for _, t := range res.TradeSummary {
		log.Debug().
			Str("trade_id", t.TradeID).
			Stringer("entry_date", t.EntryDate).
			Stringer("exit_date", t.ExitDate).
			Str("exit_reason", t.ExitReason).
			Float64("pnl", t.RealizedPnL).
			Msg("trade closed")
	}
	if res.ToyPricedMarks > 0 {
		log.Warn().Int("marks", res.ToyPricedMarks).Msg("legs priced by toy model")
	}
	log.Info().
		Int("trades", summary.TotalTrades).
		Float64("total_pnl", summary.TotalPnL).
		Float64("win_rate", summary.WinRate).
		Msg("profile finished")

	return &ProfileRun{
		Profile:   profile.Name(),
		Structure: structure,
		RunID:     runID,
		Digest:    digest,
		Result:    res,
		Summary:   summary,
	}, nil
}

// persist stores trades and the summary of one run. A duplicate key means
// an identical run was stored before; run ids are content digests, so the
// stored rows already equal these.
func (r *Runner) persist(ctx context.Context, run *ProfileRun) error {
	log := r.logger.With().Str("profile", run.Profile).Str("run_id", run.RunID).Logger()

	if r.tradeStore != nil && len(run.Result.Trades) > 0 {
		err := r.tradeStore.InsertBulk(ctx, run.RunID, run.Result.Trades)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			log.Warn().Msg("trades already persisted")
			r.recordDuplicate("trades")
		case err != nil:
			return fmt.Errorf("persist trades of %s: %w", run.Profile, err)
		}
	}

	if r.summaryStore != nil {
		err := r.summaryStore.Insert(ctx, run.Summary)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			log.Warn().Msg("summary already persisted")
			r.recordDuplicate("profile_summaries")
		case err != nil:
			return fmt.Errorf("persist summary of %s: %w", run.Profile, err)
		}
	}

	return nil
}

func (r *Runner) recordDuplicate(table string) {
	if r.metrics != nil {
		r.metrics.RecordDuplicate(table)
	}
}

func validateRequest(req Request) error {
	if req.Symbol == "" {
		return ErrMissingSymbol
	}
	if req.From.IsZero() || req.To.IsZero() || req.To.Before(req.From) {
		return fmt.Errorf("%w: %s..%s", ErrInvalidRange, req.From, req.To)
	}
	if len(req.Profiles) == 0 {
		return ErrNoProfiles
	}
	seen := make(map[string]struct{}, len(req.Profiles))
	for _, p := range req.Profiles {
		if p == nil {
			return simulation.ErrNilProfile
		}
		if _, dup := seen[p.Name()]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateProfile, p.Name())
		}
		seen[p.Name()] = struct{}{}
	}
	return req.Simulation.Validate()
}
