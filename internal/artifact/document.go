// Package artifact defines the persisted run document: one entry per
// profile holding its trades with full paths and a summary block.
// Downstream analysis keys off these field names; change them only with
// a SchemaVersion bump.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
)

// SchemaVersion is written into every ProfileResult.
const SchemaVersion = 1

// Errors returned by Decode and conversions.
var (
	ErrSchemaVersion = errors.New("unsupported artifact schema version")
	ErrEmptyDocument = errors.New("artifact document has no profiles")
)

// Document maps profile name to its result.
type Document map[string]*ProfileResult

// ProfileResult is the persisted output of one profile run.
type ProfileResult struct {
	SchemaVersion int          `json:"schema_version"`
	RunID         string       `json:"run_id"`
	Digest        string       `json:"digest"`
	Trades        []TradeDoc   `json:"trades"`
	Summary       SummaryDoc   `json:"summary"`
	Daily         []DailyDoc   `json:"daily,omitempty"`
	Config        *RunSettings `json:"config,omitempty"`
}

// RunSettings echoes the simulation config used for the run.
type RunSettings struct {
	RollDTEThreshold int      `json:"roll_dte_threshold"`
	MaxDaysInTrade   int      `json:"max_days_in_trade"`
	AllowToyPricing  bool     `json:"allow_toy_pricing"`
	ToyVolatility    float64  `json:"toy_volatility,omitempty"`
	ProfitTargetTP1  *float64 `json:"tp1,omitempty"`
	ProfitTargetTP2  *float64 `json:"tp2,omitempty"`
	MaxLoss          *float64 `json:"max_loss,omitempty"`
	ToyPricedMarks   int      `json:"toy_priced_marks"`
}

// TradeDoc is one closed trade.
type TradeDoc struct {
	TradeID    string    `json:"trade_id"`
	Profile    string    `json:"profile"`
	Entry      EntryDoc  `json:"entry"`
	Exit       ExitDoc   `json:"exit"`
	ExitReason string    `json:"exit_reason"`
	Path       []PathDoc `json:"path"`
	PeakPnL    float64   `json:"peak_pnl"`
	DaysToPeak int       `json:"days_to_peak"`
}

// EntryDoc is the entry block of a trade.
type EntryDoc struct {
	EntryDate   dates.Date `json:"entry_date"`
	EntryCost   float64    `json:"entry_cost"`
	Legs        []LegDoc   `json:"legs"`
	EntryPrices []float64  `json:"entry_prices"`
}

// LegDoc is one leg in definition order.
type LegDoc struct {
	Strike              float64    `json:"strike"`
	Expiry              dates.Date `json:"expiry"`
	OptionType          string     `json:"option_type"`
	Quantity            int        `json:"quantity"`
	DaysToExpiryAtEntry int        `json:"dte_at_entry"`
}

// ExitDoc is the exit block of a trade.
type ExitDoc struct {
	ExitDate    dates.Date `json:"exit_date"`
	ExitPrices  []float64  `json:"exit_prices"`
	RealizedPnL float64    `json:"realized_pnl"`
	DaysHeld    int        `json:"days_held"`
	ReturnPct   float64    `json:"return_pct"`
}

// PathDoc is one daily mark of a trade.
type PathDoc struct {
	Day              int                `json:"day"`
	Date             dates.Date         `json:"date"`
	MTMPnL           float64            `json:"mtm_pnl"`
	DTERemaining     int                `json:"dte_remaining"`
	MarketConditions map[string]float64 `json:"market_conditions"`
}

// SummaryDoc holds aggregate totals of a profile.
type SummaryDoc struct {
	TotalTrades          int            `json:"total_trades"`
	Wins                 int            `json:"wins"`
	Losses               int            `json:"losses"`
	WinRate              float64        `json:"win_rate"`
	TotalPnL             float64        `json:"total_pnl"`
	MeanReturnPct        float64        `json:"mean_return_pct"`
	MedianReturnPct      float64        `json:"median_return_pct"`
	BestReturnPct        float64        `json:"best_return_pct"`
	WorstReturnPct       float64        `json:"worst_return_pct"`
	MeanDaysHeld         float64        `json:"mean_days_held"`
	MaxConsecutiveLosses int            `json:"max_consecutive_losses"`
	ExitReasons          map[string]int `json:"exit_reasons"`
}

// DailyDoc is one row of daily results.
type DailyDoc struct {
	Date          dates.Date `json:"date"`
	RealizedPnL   float64    `json:"realized_pnl"`
	UnrealizedPnL float64    `json:"unrealized_pnl"`
	TotalPnL      float64    `json:"total_pnl"`
	DailyPnL      float64    `json:"daily_pnl"`
	TradeOpen     bool       `json:"trade_open"`
	OpenTradeID   string     `json:"open_trade_id,omitempty"`
}

// Encode writes doc as indented JSON. Map keys are emitted sorted, so equal
// documents encode to equal bytes.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return nil
}

// Decode reads a document and checks every profile's schema version.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(doc) == 0 {
		return nil, ErrEmptyDocument
	}
	for name, pr := range doc {
		if pr == nil || pr.SchemaVersion != SchemaVersion {
			got := 0
			if pr != nil {
				got = pr.SchemaVersion
			}
			return nil, fmt.Errorf("%w: profile %s has %d, want %d", ErrSchemaVersion, name, got, SchemaVersion)
		}
	}
	return doc, nil
}

// Settings extracts the RunSettings block from cfg.
func Settings(cfg domain.SimulationConfig, toyMarks int) *RunSettings {
	return &RunSettings{
		RollDTEThreshold: cfg.RollDTEThreshold,
		MaxDaysInTrade:   cfg.MaxDaysInTrade,
		AllowToyPricing:  cfg.AllowToyPricing,
		ToyVolatility:    cfg.ToyVolatility,
		ProfitTargetTP1:  cfg.Exit.ProfitTargetTP1,
		ProfitTargetTP2:  cfg.Exit.ProfitTargetTP2,
		MaxLoss:          cfg.Exit.MaxLoss,
		ToyPricedMarks:   toyMarks,
	}
}
