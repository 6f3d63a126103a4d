package pipeline

import (
	"context"
	"fmt"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/normalization"
	"rotation-engine/internal/storage"
)

// Default sufficiency thresholds.
const (
	DefaultMinRows    = 20
	DefaultMaxGapDays = 5 // a long weekend plus a holiday
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all checks.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // data integrity errors
}

// SufficiencyChecker validates the market data range before a backtest.
type SufficiencyChecker struct {
	marketStore   storage.MarketDataStore
	quoteStore    storage.OptionQuoteStore
	minRows       int
	maxGapDays    int
	requireQuotes bool
}

// NewSufficiencyChecker creates a new sufficiency checker. quoteStore may be nil.
func NewSufficiencyChecker(marketStore storage.MarketDataStore, quoteStore storage.OptionQuoteStore) *SufficiencyChecker {
	return &SufficiencyChecker{
		marketStore: marketStore,
		quoteStore:  quoteStore,
		minRows:     DefaultMinRows,
		maxGapDays:  DefaultMaxGapDays,
	}
}

// WithThresholds overrides the row count and gap thresholds.
func (c *SufficiencyChecker) WithThresholds(minRows, maxGapDays int) *SufficiencyChecker {
	c.minRows = minRows
	c.maxGapDays = maxGapDays
	return c
}

// RequireQuotes makes full chain coverage a passing condition. Set it
// when toy pricing is disabled.
func (c *SufficiencyChecker) RequireQuotes(require bool) *SufficiencyChecker {
	c.requireQuotes = require
	return c
}

// Check runs every check over symbol's rows in [from, to].
func (c *SufficiencyChecker) Check(ctx context.Context, symbol string, from, to dates.Date) (*SufficiencyResult, error) {
	rows, err := c.marketStore.GetRange(ctx, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get market rows: %w", err)
	}

	result := &SufficiencyResult{
		Checks:  make([]SufficiencyCheck, 0, 4),
		AllPass: true,
		Errors:  []string{},
	}
	add := func(check SufficiencyCheck) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
		}
	}

	// Check 1: enough rows
	add(SufficiencyCheck{
		Name:      "Market rows",
		Threshold: fmt.Sprintf(">= %d", c.minRows),
		Actual:    fmt.Sprintf("%d", len(rows)),
		Pass:      len(rows) >= c.minRows,
	})

	// Check 2: no long calendar gaps
	gap, at := maxGap(rows)
	gapCheck := SufficiencyCheck{
		Name:      "Max calendar gap",
		Threshold: fmt.Sprintf("<= %d days", c.maxGapDays),
		Actual:    fmt.Sprintf("%d days", gap),
		Pass:      gap <= c.maxGapDays,
	}
	if !gapCheck.Pass {
		gapCheck.Actual += " (before " + at.String() + ")"
	}
	add(gapCheck)

	// Check 3: rows are well formed
	valid := SufficiencyCheck{Name: "Row integrity", Threshold: "0 errors", Actual: "0 errors", Pass: true}
	if err := normalization.ValidateRows(rows); err != nil {
		valid.Actual = "1+ errors"
		valid.Pass = false
		result.Errors = append(result.Errors, err.Error())
	}
	add(valid)

	// Check 4: chain coverage
	covered, err := c.quotedDays(ctx, symbol, from, to, rows)
	if err != nil {
		return nil, err
	}
	coverage := 0.0
	if len(rows) > 0 {
		coverage = float64(covered) / float64(len(rows))
	}
	chain := SufficiencyCheck{
		Name:      "Option chain coverage",
		Threshold: "n/a (toy pricing)",
		Actual:    fmt.Sprintf("%.1f%% of days", coverage*100),
		Pass:      true,
	}
	if c.requireQuotes {
		chain.Threshold = "100% of days"
		chain.Pass = len(rows) > 0 && covered == len(rows)
	}
	add(chain)

	return result, nil
}

// quotedDays counts rows that have at least one quote.
func (c *SufficiencyChecker) quotedDays(ctx context.Context, symbol string, from, to dates.Date, rows []*domain.MarketRow) (int, error) {
	if c.quoteStore == nil {
		return 0, nil
	}
	quotes, err := c.quoteStore.GetRange(ctx, symbol, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to get option quotes: %w", err)
	}
	days := make(map[dates.Date]struct{})
	for _, q := range quotes {
		days[q.Date] = struct{}{}
	}
	covered := 0
	for _, row := range rows {
		if _, ok := days[row.Date]; ok {
			covered++
		}
	}
	return covered, nil
}

func maxGap(rows []*domain.MarketRow) (int, dates.Date) {
	gap := 0
	var at dates.Date
	for i := 1; i < len(rows); i++ {
		if g := rows[i-1].Date.DaysUntil(rows[i].Date); g > gap {
			gap = g
			at = rows[i].Date
		}
	}
	return gap, at
}
