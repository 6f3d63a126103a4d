package memory

import (
	"context"
	"maps"
	"sync"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/normalization"
	"rotation-engine/internal/storage"
)

type marketRowKey struct {
	symbol string
	date   dates.Date
}

// MarketDataStore is an in-memory implementation of storage.MarketDataStore.
type MarketDataStore struct {
	mu   sync.RWMutex
	data map[marketRowKey]*domain.MarketRow
}

// NewMarketDataStore creates a new in-memory market data store.
func NewMarketDataStore() *MarketDataStore {
	return &MarketDataStore{
		data: make(map[marketRowKey]*domain.MarketRow),
	}
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *MarketDataStore) InsertBulk(_ context.Context, rows []*domain.MarketRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[marketRowKey]struct{}, len(rows))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range rows {
		if r == nil || r.Symbol == "" || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := marketRowKey{r.Symbol, r.Date}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range rows {
		s.data[marketRowKey{r.Symbol, r.Date}] = copyMarketRow(r)
	}

	return nil
}

// GetRange retrieves rows within [from, to] (inclusive), ordered by date ASC.
func (s *MarketDataStore) GetRange(_ context.Context, symbol string, from, to dates.Date) ([]*domain.MarketRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketRow
	for key, r := range s.data {
		if key.symbol == symbol && !key.date.Before(from) && !key.date.After(to) {
			result = append(result, copyMarketRow(r))
		}
	}

	normalization.SortMarketRows(result)

	return result, nil
}

func copyMarketRow(r *domain.MarketRow) *domain.MarketRow {
	c := *r
	c.Features = maps.Clone(r.Features)
	return &c
}

var _ storage.MarketDataStore = (*MarketDataStore)(nil)
