package memory

import (
	"context"
	"sort"
	"sync"

	"rotation-engine/internal/domain"
	"rotation-engine/internal/storage"
)

type tradeKey struct {
	runID   string
	tradeID string
}

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[tradeKey]*domain.Trade
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[tradeKey]*domain.Trade),
	}
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, runID string, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[tradeKey]struct{}, len(trades))

	for _, t := range trades {
		if t == nil || t.TradeID == "" || !t.Closed {
			return storage.ErrInvalidInput
		}
		key := tradeKey{runID, t.TradeID}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, t := range trades {
		s.data[tradeKey{runID, t.TradeID}] = t.Clone()
	}

	return nil
}

// GetByID retrieves a trade by key. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, runID, tradeID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeKey{runID, tradeID}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// GetByRun retrieves all trades of a run, ordered by (profile, entry_date, trade_id) ASC.
func (s *TradeStore) GetByRun(_ context.Context, runID string) ([]*domain.Trade, error) {
	return s.filter(func(k tradeKey, _ *domain.Trade) bool {
		return k.runID == runID
	}), nil
}

// GetByRunProfile retrieves trades of one profile, ordered by (entry_date, trade_id) ASC.
func (s *TradeStore) GetByRunProfile(_ context.Context, runID, profile string) ([]*domain.Trade, error) {
	return s.filter(func(k tradeKey, t *domain.Trade) bool {
		return k.runID == runID && t.ProfileName == profile
	}), nil
}

func (s *TradeStore) filter(keep func(tradeKey, *domain.Trade) bool) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for k, t := range s.data {
		if keep(k, t) {
			result = append(result, t.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.ProfileName != b.ProfileName {
			return a.ProfileName < b.ProfileName
		}
		if a.EntryDate != b.EntryDate {
			return a.EntryDate.Before(b.EntryDate)
		}
		return a.TradeID < b.TradeID
	})

	return result
}

var _ storage.TradeStore = (*TradeStore)(nil)
