package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotation-engine/internal/domain"
	"rotation-engine/internal/storage"
)

func TestProfileSummaryStore_InsertAndGetByRun(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProfileSummaryStore(pool)
	ctx := context.Background()

	summaries := []*domain.ProfileSummary{
		{
			RunID: "run-1", ProfileName: "short_strangle",
			TotalTrades: 4, Wins: 3, Losses: 1, WinRate: 0.75,
			TotalPnL: 2.4, MeanReturnPct: 0.2, MedianReturnPct: 0.25,
			BestReturnPct: 0.5, WorstReturnPct: -0.4, MeanDaysHeld: 12.5,
			MaxConsecutiveLosses: 1,
			ExitReasons:          map[string]int{domain.ExitReasonTP1: 3, domain.ExitReasonMaxLossStop: 1},
		},
		{
			RunID: "run-1", ProfileName: "long_straddle",
			TotalTrades: 0,
		},
	}
	for _, s := range summaries {
		require.NoError(t, store.Insert(ctx, s))
	}

	got, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by profile_name
	assert.Equal(t, "long_straddle", got[0].ProfileName)
	assert.Empty(t, got[0].ExitReasons)
	assert.Equal(t, summaries[0], got[1])
}

func TestProfileSummaryStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProfileSummaryStore(pool)
	ctx := context.Background()

	s := &domain.ProfileSummary{RunID: "run-1", ProfileName: "p", ExitReasons: map[string]int{}}
	require.NoError(t, store.Insert(ctx, s))

	err := store.Insert(ctx, s)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestProfileSummaryStore_GetAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProfileSummaryStore(pool)
	ctx := context.Background()

	for _, key := range [][2]string{{"run-b", "p"}, {"run-a", "q"}, {"run-a", "p"}} {
		require.NoError(t, store.Insert(ctx, &domain.ProfileSummary{RunID: key[0], ProfileName: key[1]}))
	}

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "run-a", got[0].RunID)
	assert.Equal(t, "p", got[0].ProfileName)
	assert.Equal(t, "q", got[1].ProfileName)
	assert.Equal(t, "run-b", got[2].RunID)
}

func TestProfileSummaryStore_InsertInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProfileSummaryStore(pool)

	err := store.Insert(context.Background(), &domain.ProfileSummary{ProfileName: "p"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
