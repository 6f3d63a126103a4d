package simulation

import (
	"errors"
	"fmt"
	"math"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/exit"
	"rotation-engine/internal/idhash"
	"rotation-engine/internal/normalization"
	"rotation-engine/internal/pricing"
	"rotation-engine/internal/strategy"
)

// Simulator errors
var (
	ErrNilProfile       = errors.New("simulator requires a profile")
	ErrNilPricer        = errors.New("simulator requires a pricer")
	ErrEmptyProfileName = errors.New("profile name is empty")
	ErrNilTrade         = errors.New("trade constructor returned nil")
	ErrTradeIDMismatch  = errors.New("trade constructor changed the assigned trade id")
	ErrTradeIDCollision = errors.New("trade id collision")
)

// Simulator walks one profile over a daily feature table.
// A Simulator holds no per-run state and may be reused; each Run is
// independent and deterministic for identical inputs.
type Simulator struct {
	profile   strategy.Profile
	cfg       domain.SimulationConfig
	pricer    pricing.Pricer
	evaluator *exit.Evaluator
}

// New creates a Simulator. Configuration errors fail here, not mid-run.
func New(profile strategy.Profile, cfg domain.SimulationConfig, pricer pricing.Pricer) (*Simulator, error) {
	if profile == nil {
		return nil, ErrNilProfile
	}
	if profile.Name() == "" {
		return nil, ErrEmptyProfileName
	}
	if pricer == nil {
		return nil, ErrNilPricer
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Simulator{
		profile:   profile,
		cfg:       cfg,
		pricer:    pricer,
		evaluator: exit.NewEvaluator(cfg, profile.ConditionExit()),
	}, nil
}

// Config returns the simulation config the simulator was built with.
func (s *Simulator) Config() domain.SimulationConfig {
	return s.cfg
}

// runState is the mutable state of a single Run.
type runState struct {
	open      *domain.Trade
	counter   int
	seenIDs   map[string]struct{}
	realized  float64
	prevTotal float64
	toyMarks  int
	result    *domain.RunResult
}

// Run simulates the profile over rows, which must be sorted by date.
// For each row:
//  1. Mark the open trade, append a path snapshot, evaluate exit rules
//  2. If flat, ask the profile to enter and open a new trade
//  3. Append the daily result row
//
// Step 2 runs after step 1, so a profile may re-enter on the row where its
// previous trade exited. Such intervals touch but do not overlap.
// A trade still open on the last row is closed with data_exhausted.
// Rows are validated up front; any NaN price fails the run with *domain.DataError.
func (s *Simulator) Run(rows []*domain.MarketRow) (*domain.RunResult, error) {
	if err := normalization.ValidateRows(rows); err != nil {
		return nil, err
	}

	st := &runState{
		seenIDs: make(map[string]struct{}),
		result: &domain.RunResult{
			ProfileName:  s.profile.Name(),
			DailyResults: make([]domain.DailyResult, 0, len(rows)),
		},
	}

	for i, row := range rows {
		last := i == len(rows)-1
		day := domain.DailyResult{Date: row.Date}
		unrealized := 0.0

		// 1. Mark and evaluate exits
		if st.open != nil {
			pnl, closed, err := s.markOpenTrade(st, row, last)
			if err != nil {
				return nil, err
			}
			if closed {
				day.TradeClosed = true
			} else {
				unrealized = pnl
			}
		}

		// 2. Entry
		if st.open == nil && s.profile.ShouldEnter(row, nil) {
			if err := s.openTrade(st, row); err != nil {
				return nil, err
			}
			day.TradeOpened = true

			if last {
				if err := s.forceCloseOnEntry(st, row); err != nil {
					return nil, err
				}
				day.TradeClosed = true
			}
		}

		// 3. Daily row
		day.RealizedPnL = st.realized
		day.UnrealizedPnL = unrealized
		day.TotalPnL = st.realized + unrealized
		day.DailyPnL = day.TotalPnL - st.prevTotal
		st.prevTotal = day.TotalPnL
		if st.open != nil {
			day.TradeOpen = true
			day.OpenTradeID = st.open.TradeID
		}
		st.result.DailyResults = append(st.result.DailyResults, day)
	}

	if st.open != nil {
		return nil, fmt.Errorf("trade %s left open after last row", st.open.TradeID)
	}

	st.result.ToyPricedMarks = st.toyMarks
	return st.result, nil
}

// markOpenTrade appends today's snapshot and closes the trade if a rule fires.
// Returns the unrealized P&L and whether the trade was closed.
func (s *Simulator) markOpenTrade(st *runState, row *domain.MarketRow, last bool) (float64, bool, error) {
	t := st.open

	marks, err := s.priceLegs(st, t, row)
	if err != nil {
		return 0, false, err
	}
	pnl := domain.PositionPnL(t.Legs, t.EntryPrices, marks)
	nearest := t.NearestDTE(row.Date)

	snap := domain.DailyMarkSnapshot{
		Day:              len(t.Path) + 1,
		Date:             row.Date,
		UnrealizedPnL:    pnl,
		DTERemaining:     nearest,
		LegMarks:         marks,
		MarketConditions: row.Conditions(),
	}
	t.Path = append(t.Path, snap)

	decision := s.evaluator.Evaluate(exit.State{
		Day:           snap.Day,
		Date:          row.Date,
		NearestDTE:    nearest,
		UnrealizedPnL: pnl,
		EntryCost:     t.EntryCost,
	}, row)

	if !decision.Exit && last {
		decision = exit.Decision{Exit: true, Reason: domain.ExitReasonDataExhausted}
	}
	if !decision.Exit {
		return pnl, false, nil
	}

	s.closeTrade(st, row.Date, marks, decision.Reason)
	return pnl, true, nil
}

// openTrade mints a trade id, builds the trade and prices its entry.
func (s *Simulator) openTrade(st *runState, row *domain.MarketRow) error {
	name := s.profile.Name()
	st.counter++
	id := idhash.ComputeTradeID(name, row.Date, st.counter)
	if _, dup := st.seenIDs[id]; dup {
		return fmt.Errorf("%w: %s", ErrTradeIDCollision, id)
	}

	t, err := s.profile.Construct(row, id)
	if err != nil {
		return fmt.Errorf("construct trade %s: %w", id, err)
	}
	if t == nil {
		return fmt.Errorf("%w: %s", ErrNilTrade, id)
	}
	if t.TradeID != "" && t.TradeID != id {
		return fmt.Errorf("%w: got %s, want %s", ErrTradeIDMismatch, t.TradeID, id)
	}

	t.TradeID = id
	t.ProfileName = name
	t.EntryDate = row.Date
	t.Path = nil
	t.Closed = false
	if err := t.Validate(); err != nil {
		return err
	}

	if t.EntryPrices == nil {
		prices, err := s.priceLegs(st, t, row)
		if err != nil {
			return err
		}
		t.EntryPrices = prices
	} else {
		for i, p := range t.EntryPrices {
			if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
				return &domain.DataError{Date: row.Date, Field: fmt.Sprintf("entry_prices[%d]", i), Reason: "entry price must be finite and non-negative"}
			}
		}
	}
	t.EntryCost = domain.EntryCost(t.Legs, t.EntryPrices)

	st.seenIDs[id] = struct{}{}
	st.open = t
	return nil
}

// forceCloseOnEntry closes a trade opened on the final row at that row's prices.
// No snapshot is recorded: the trade was never marked after entry.
func (s *Simulator) forceCloseOnEntry(st *runState, row *domain.MarketRow) error {
	marks, err := s.priceLegs(st, st.open, row)
	if err != nil {
		return err
	}
	s.closeTrade(st, row.Date, marks, domain.ExitReasonDataExhausted)
	return nil
}

// closeTrade finalizes the open trade and clears the slot.
func (s *Simulator) closeTrade(st *runState, date dates.Date, marks []float64, reason string) {
	t := st.open
	t.ExitDate = date
	t.ExitReason = reason
	t.ExitPrices = marks
	t.RealizedPnL = domain.PositionPnL(t.Legs, t.EntryPrices, marks)
	t.Closed = true

	st.realized += t.RealizedPnL
	st.result.Trades = append(st.result.Trades, t)
	st.result.TradeSummary = append(st.result.TradeSummary, t.Summary())
	st.open = nil
}

// priceLegs prices every leg of t on row's date.
func (s *Simulator) priceLegs(st *runState, t *domain.Trade, row *domain.MarketRow) ([]float64, error) {
	prices := make([]float64, len(t.Legs))
	for i, leg := range t.Legs {
		p, toy, err := s.pricer.PriceLeg(leg, row.Date, row)
		if err != nil {
			var ue *pricing.UnavailableError
			if errors.As(err, &ue) && ue.TradeID == "" {
				ue.TradeID = t.TradeID
			}
			return nil, fmt.Errorf("price leg %d: %w", i, err)
		}
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, &domain.DataError{Date: row.Date, Field: fmt.Sprintf("%s leg %d price", t.TradeID, i), Reason: "pricer returned a non-finite price"}
		}
		if toy {
			st.toyMarks++
		}
		prices[i] = p
	}
	return prices, nil
}
