package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"rotation-engine/internal/domain"
	"rotation-engine/internal/storage"
)

type summaryKey struct {
	runID   string
	profile string
}

// ProfileSummaryStore is an in-memory implementation of storage.ProfileSummaryStore.
type ProfileSummaryStore struct {
	mu   sync.RWMutex
	data map[summaryKey]*domain.ProfileSummary
}

// NewProfileSummaryStore creates a new in-memory profile summary store.
func NewProfileSummaryStore() *ProfileSummaryStore {
	return &ProfileSummaryStore{
		data: make(map[summaryKey]*domain.ProfileSummary),
	}
}

// Insert adds a summary. Returns ErrDuplicateKey if (run_id, profile_name) exists.
func (s *ProfileSummaryStore) Insert(_ context.Context, ps *domain.ProfileSummary) error {
	if ps == nil || ps.RunID == "" || ps.ProfileName == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := summaryKey{ps.RunID, ps.ProfileName}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = copySummary(ps)
	return nil
}

// GetByRun retrieves all summaries of a run, ordered by profile_name ASC.
func (s *ProfileSummaryStore) GetByRun(_ context.Context, runID string) ([]*domain.ProfileSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ProfileSummary
	for k, ps := range s.data {
		if k.runID == runID {
			result = append(result, copySummary(ps))
		}
	}
	sortSummaries(result)
	return result, nil
}

// GetAll retrieves all summaries ordered by (run_id, profile_name) ASC.
func (s *ProfileSummaryStore) GetAll(_ context.Context) ([]*domain.ProfileSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ProfileSummary, 0, len(s.data))
	for _, ps := range s.data {
		result = append(result, copySummary(ps))
	}
	sortSummaries(result)
	return result, nil
}

func copySummary(ps *domain.ProfileSummary) *domain.ProfileSummary {
	c := *ps
	c.ExitReasons = maps.Clone(ps.ExitReasons)
	return &c
}

func sortSummaries(result []*domain.ProfileSummary) {
	sort.Slice(result, func(i, j int) bool {
		if result[i].RunID != result[j].RunID {
			return result[i].RunID < result[j].RunID
		}
		return result[i].ProfileName < result[j].ProfileName
	})
}

var _ storage.ProfileSummaryStore = (*ProfileSummaryStore)(nil)
