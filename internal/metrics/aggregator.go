package metrics

import (
	"context"
	"errors"

	"rotation-engine/internal/domain"
	"rotation-engine/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator rebuilds profile summaries from persisted trades.
type Aggregator struct {
	tradeStore   storage.TradeStore
	summaryStore storage.ProfileSummaryStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tradeStore storage.TradeStore, summaryStore storage.ProfileSummaryStore) *Aggregator {
	return &Aggregator{
		tradeStore:   tradeStore,
		summaryStore: summaryStore,
	}
}

// ComputeSummary computes the summary of one profile in a stored run.
// Returns ErrNoTrades if the run has no trades for the profile.
func (a *Aggregator) ComputeSummary(ctx context.Context, runID, profile string) (*domain.ProfileSummary, error) {
	trades, err := a.tradeStore.GetByRunProfile(ctx, runID, profile)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	rows := make([]domain.TradeSummary, len(trades))
	for i, t := range trades {
		rows[i] = t.Summary()
		rows[i].RunID = runID
	}

	summary := ComputeProfileSummary(profile, rows)
	summary.RunID = runID
	return summary, nil
}

// ComputeRun computes summaries for every profile with trades in a run,
// ordered by profile name.
func (a *Aggregator) ComputeRun(ctx context.Context, runID string) ([]*domain.ProfileSummary, error) {
	trades, err := a.tradeStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	// GetByRun orders by profile first
	var result []*domain.ProfileSummary
	var rows []domain.TradeSummary
	flush := func(profile string) {
		s := ComputeProfileSummary(profile, rows)
		s.RunID = runID
		result = append(result, s)
		rows = nil
	}
	for i, t := range trades {
		if i > 0 && t.ProfileName != trades[i-1].ProfileName {
			flush(trades[i-1].ProfileName)
		}
		row := t.Summary()
		row.RunID = runID
		rows = append(rows, row)
	}
	flush(trades[len(trades)-1].ProfileName)

	return result, nil
}

// ComputeAndStore computes and persists the summary of one profile.
// Returns storage.ErrDuplicateKey if the summary already exists (append-only).
func (a *Aggregator) ComputeAndStore(ctx context.Context, runID, profile string) (*domain.ProfileSummary, error) {
	summary, err := a.ComputeSummary(ctx, runID, profile)
	if err != nil {
		return nil, err
	}

	if err := a.summaryStore.Insert(ctx, summary); err != nil {
		return nil, err
	}

	return summary, nil
}
