package memory

import (
	"context"
	"sync"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/lookup"
	"rotation-engine/internal/normalization"
	"rotation-engine/internal/storage"
)

type optionQuoteKey struct {
	symbol   string
	date     dates.Date
	contract lookup.ContractKey
}

// OptionQuoteStore is an in-memory implementation of storage.OptionQuoteStore.
type OptionQuoteStore struct {
	mu   sync.RWMutex
	data map[optionQuoteKey]*domain.OptionQuote
}

// NewOptionQuoteStore creates a new in-memory option quote store.
func NewOptionQuoteStore() *OptionQuoteStore {
	return &OptionQuoteStore{
		data: make(map[optionQuoteKey]*domain.OptionQuote),
	}
}

func keyOfQuote(q *domain.OptionQuote) optionQuoteKey {
	return optionQuoteKey{symbol: q.Symbol, date: q.Date, contract: lookup.KeyOfQuote(q)}
}

// InsertBulk adds multiple quotes atomically. Fails entire batch on any duplicate.
func (s *OptionQuoteStore) InsertBulk(_ context.Context, quotes []*domain.OptionQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[optionQuoteKey]struct{}, len(quotes))

	for _, q := range quotes {
		if q == nil || q.Symbol == "" || q.Date.IsZero() || !q.OptionType.Valid() {
			return storage.ErrInvalidInput
		}
		key := keyOfQuote(q)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, q := range quotes {
		copy := *q
		s.data[keyOfQuote(q)] = &copy
	}

	return nil
}

// GetRange retrieves quotes within [from, to] (inclusive), in canonical quote order.
func (s *OptionQuoteStore) GetRange(_ context.Context, symbol string, from, to dates.Date) ([]*domain.OptionQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OptionQuote
	for key, q := range s.data {
		if key.symbol == symbol && !key.date.Before(from) && !key.date.After(to) {
			copy := *q
			result = append(result, &copy)
		}
	}

	normalization.SortOptionQuotes(result)
	return result, nil
}

var _ storage.OptionQuoteStore = (*OptionQuoteStore)(nil)
