package clickhouse

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/storage"
)

func marketRow(symbol, date string, px float64) *domain.MarketRow {
	return &domain.MarketRow{
		Symbol: symbol,
		Date:   dates.MustParse(date),
		Open:   px,
		High:   px + 1,
		Low:    px - 1,
		Close:  px,
		Volume: 1_000_000,
		Regime: "trend_up",
		Features: map[string]float64{
			"rv20":     0.18,
			"ma_slope": 0.002,
		},
	}
}

func TestMarketDataStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMarketDataStore(conn)
	ctx := context.Background()

	// Test empty insert
	err := store.InsertBulk(ctx, nil)
	assert.NoError(t, err)

	rows := []*domain.MarketRow{
		marketRow("SPY", "2024-01-03", 470),
		marketRow("SPY", "2024-01-02", 468),
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetRange(ctx, "SPY", dates.MustParse("2024-01-01"), dates.MustParse("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by date ASC
	assert.Equal(t, "2024-01-02", got[0].Date.String())
	assert.Equal(t, "2024-01-03", got[1].Date.String())
	assert.Equal(t, 468.0, got[0].Close)
	assert.Equal(t, "trend_up", got[0].Regime)
	assert.Equal(t, 0.18, got[0].Features["rv20"])
	assert.Equal(t, 0.002, got[0].Features["ma_slope"])
}

func TestMarketDataStore_InsertBulk_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMarketDataStore(conn)
	ctx := context.Background()

	rows := []*domain.MarketRow{marketRow("SPY", "2024-01-02", 468)}
	require.NoError(t, store.InsertBulk(ctx, rows))

	// Try to insert duplicate
	err := store.InsertBulk(ctx, rows)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same date, other symbol is fine
	require.NoError(t, store.InsertBulk(ctx, []*domain.MarketRow{marketRow("QQQ", "2024-01-02", 400)}))
}

func TestMarketDataStore_InsertBulk_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMarketDataStore(conn)
	ctx := context.Background()

	rows := []*domain.MarketRow{
		marketRow("SPY", "2024-01-02", 468),
		marketRow("SPY", "2024-01-02", 469),
	}
	err := store.InsertBulk(ctx, rows)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Nothing written
	got, err := store.GetRange(ctx, "SPY", dates.MustParse("2024-01-01"), dates.MustParse("2024-01-31"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMarketDataStore_NaNFeatureRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMarketDataStore(conn)
	ctx := context.Background()

	row := marketRow("SPY", "2024-01-02", 468)
	row.Features["rv20"] = math.NaN()
	require.NoError(t, store.InsertBulk(ctx, []*domain.MarketRow{row}))

	got, err := store.GetRange(ctx, "SPY", row.Date, row.Date)
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, ok := got[0].Value("rv20")
	assert.False(t, ok, "NaN feature must stay unusable after round trip")
}

func TestMarketDataStore_GetRange_Bounds(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMarketDataStore(conn)
	ctx := context.Background()

	rows := []*domain.MarketRow{
		marketRow("SPY", "2024-01-02", 468),
		marketRow("SPY", "2024-01-03", 469),
		marketRow("SPY", "2024-01-04", 470),
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetRange(ctx, "SPY", dates.MustParse("2024-01-03"), dates.MustParse("2024-01-04"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-03", got[0].Date.String())
}
